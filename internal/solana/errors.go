package solana

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// RPC error taxonomy.
var (
	// ErrCanceled is returned when the caller's context is done before the
	// call resolved. It is never retried.
	ErrCanceled = errors.New("rpc call canceled")

	// ErrRateLimited is returned for HTTP 429 responses.
	ErrRateLimited = errors.New("rate limited (429)")

	// ErrRetriesExhausted wraps the last error once the attempt budget is spent.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrEmptyPool is returned when a pool is configured without endpoints.
	ErrEmptyPool = errors.New("endpoint pool has no endpoints")

	// ErrOverlappingPools is returned when an endpoint is configured in more than one pool.
	ErrOverlappingPools = errors.New("endpoint configured in more than one pool")

	// ErrUnknownPool is returned when a call names a pool that does not exist.
	ErrUnknownPool = errors.New("unknown endpoint pool")

	// ErrInvalidAddress is returned for malformed base58 public keys.
	ErrInvalidAddress = errors.New("invalid solana address")
)

// recoverableMessage matches JSON-RPC error messages that indicate a
// transient condition on the node side.
var recoverableMessage = regexp.MustCompile(`(?i)rate.?limit|too many requests|timeout|timed out|temporar|unavailable|network|connection|try again|busy|overloaded`)

// TransportError is a failure below the JSON-RPC layer: connection errors,
// timeouts, non-2xx status codes or undecodable bodies.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error from %s (status %d): %v", hostOf(e.Endpoint), e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error from %s: %v", hostOf(e.Endpoint), e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RPCError represents a JSON-RPC 2.0 error payload.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Retryable reports whether the error message belongs to a known transient class.
func (e *RPCError) Retryable() bool {
	return recoverableMessage.MatchString(e.Message)
}

// IsRetryable classifies an error returned from a single call attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsCanceled(err) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Retryable()
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsCanceled reports whether err stems from caller cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

func canceled(cause error) error {
	if errors.Is(cause, ErrCanceled) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}
