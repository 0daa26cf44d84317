package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
)

const (
	defaultMaxRetryTimes = 3
	defaultRetryInterval = 500 * time.Millisecond
	defaultTimeout       = 10 * time.Second
)

// statusError is a non-2xx response from a price API.
type statusError struct {
	URL        string
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// retryable reports whether another attempt may succeed.
func (e *statusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// getJSON fetches url and decodes the body into T, retrying rate limits,
// server errors and transport failures with exponential backoff.
func getJSON[T any](ctx context.Context, client *http.Client, url string, retryInterval time.Duration) (T, error) {
	call := func() (T, error) {
		var out T

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return out, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return out, fmt.Errorf("GET %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			io.Copy(io.Discard, resp.Body)
			serr := &statusError{URL: url, StatusCode: resp.StatusCode}
			if !serr.retryable() {
				return out, retry.Unrecoverable(serr)
			}
			return out, serr
		}

		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return out, retry.Unrecoverable(fmt.Errorf("decode %s: %w", url, err))
		}
		return out, nil
	}

	return retry.DoWithData(call,
		retry.Context(ctx),
		retry.Attempts(defaultMaxRetryTimes),
		retry.Delay(retryInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Debug().
				Uint("attempt", n+1).
				Uint("max_attempts", defaultMaxRetryTimes).
				Err(err).
				Msg("price request failed, retrying")
		}),
	)
}
