package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"solana-holder-scan/internal/observability"
)

// Default client configuration values.
const (
	DefaultTimeout     = 50 * time.Second
	DefaultMaxAttempts = 6
)

// HTTPClient issues JSON-RPC 2.0 calls against the pools of a Cluster.
// Every attempt waits on the shared rate limiter, picks a healthy endpoint
// not yet tried by this call and reports the outcome to the health tracker.
type HTTPClient struct {
	cluster     *Cluster
	client      *http.Client
	timeout     time.Duration
	maxAttempts uint
	backoff     Backoff
	logger      zerolog.Logger
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.timeout = d
	}
}

// WithMaxAttempts sets the default attempt budget per call.
func WithMaxAttempts(n uint) ClientOption {
	return func(c *HTTPClient) {
		c.maxAttempts = n
	}
}

// WithBackoff sets the wait schedule between attempts.
func WithBackoff(b Backoff) ClientOption {
	return func(c *HTTPClient) {
		c.backoff = b
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// NewHTTPClient creates a client bound to the cluster.
func NewHTTPClient(cluster *Cluster, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		cluster:     cluster,
		client:      &http.Client{},
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff(),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CallOption adjusts a single call.
type CallOption func(*callConfig)

type callConfig struct {
	attempts uint
}

// WithAttempts overrides the attempt budget for one call.
func WithAttempts(n uint) CallOption {
	return func(cc *callConfig) {
		cc.attempts = n
	}
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Call performs a JSON-RPC call on the named pool and decodes the result
// into result. Errors are classified into TransportError, ErrRateLimited
// and RPCError; only retryable ones consume further attempts.
func (c *HTTPClient) Call(ctx context.Context, pool, method string, params []interface{}, result interface{}, opts ...CallOption) error {
	p, err := c.cluster.Pool(pool)
	if err != nil {
		return err
	}

	cc := callConfig{attempts: c.maxAttempts}
	for _, opt := range opts {
		opt(&cc)
	}

	var (
		usedMu sync.Mutex
		used   = make(map[string]struct{}, p.Len())
	)
	start := time.Now()

	raw, err := Retry(ctx, RetryPolicy{
		Attempts: cc.attempts,
		Backoff:  c.backoff,
		RetryIf:  IsRetryable,
		OnRetry: func(attempt uint, err error) {
			c.logger.Debug().
				Str("method", method).
				Str("pool", pool).
				Uint("attempt", attempt).
				Err(err).
				Msg("rpc attempt failed, retrying")
		},
	}, func(ctx context.Context, _ uint) (json.RawMessage, error) {
		if err := c.cluster.Limiter.Acquire(ctx); err != nil {
			return nil, canceled(err)
		}

		usedMu.Lock()
		if len(used) >= p.Len() {
			clear(used)
		}
		endpoint := p.Select(used, c.cluster.Health)
		used[endpoint] = struct{}{}
		usedMu.Unlock()

		return c.attempt(ctx, endpoint, method, params)
	})

	outcome := "ok"
	switch {
	case err == nil:
	case IsCanceled(err):
		outcome = "canceled"
	default:
		outcome = "error"
	}
	observability.RecordRPCCall(method, outcome, time.Since(start).Seconds())

	if err != nil {
		if IsCanceled(err) {
			return err
		}
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && !rpcErr.Retryable() {
			return err
		}
		return Exhausted(fmt.Errorf("%s: %w", method, err), cc.attempts)
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("%s: unmarshal result: %w", method, err)
		}
	}
	return nil
}

// attempt sends one request to one endpoint.
func (c *HTTPClient) attempt(ctx context.Context, endpoint, method string, params []interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	attemptCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.transportFailure(endpoint, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, canceled(ctxErr)
		}
		return nil, c.transportFailure(endpoint, 0, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, canceled(ctxErr)
		}
		return nil, c.transportFailure(endpoint, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.cluster.Health.MarkFailure(endpoint)
		observability.RecordEndpointFailure(c.cluster.Health.Label(endpoint), "rate_limited")
		return nil, fmt.Errorf("%s: %w", hostOf(endpoint), ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.transportFailure(endpoint, resp.StatusCode, fmt.Errorf("unexpected status: %s", truncate(respBody, 200)))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, c.transportFailure(endpoint, resp.StatusCode, fmt.Errorf("unmarshal response: %w", err))
	}

	if rpcResp.Error != nil {
		observability.RecordEndpointFailure(c.cluster.Health.Label(endpoint), "rpc_error")
		return nil, rpcResp.Error
	}

	c.cluster.Health.MarkSuccess(endpoint)
	return rpcResp.Result, nil
}

func (c *HTTPClient) transportFailure(endpoint string, status int, err error) error {
	c.cluster.Health.MarkFailure(endpoint)
	observability.RecordEndpointFailure(c.cluster.Health.Label(endpoint), "transport")
	return &TransportError{Endpoint: endpoint, StatusCode: status, Err: err}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
