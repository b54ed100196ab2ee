package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Failure taxonomy shared by every connector. NotFound and Unauthorized are
// terminal and never retried; RateLimited and transport/server errors are
// transient and retried until the attempt budget is exhausted, at which point
// the caller reports Unavailable wrapping the last underlying error.
var (
	ErrNotFound     = errors.New("remote: not found")
	ErrUnauthorized = errors.New("remote: unauthorized")
	ErrRateLimited  = errors.New("remote: rate limited")
	ErrUnavailable  = errors.New("remote: unavailable")
)

var (
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")

	// errBuildRequest marks request-construction failures. No retry can
	// fix a request that cannot be built.
	errBuildRequest = errors.New("build request")
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff returns the retry policy used by all connectors unless
// overridden in config.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Terminal reports whether err must not be retried.
func Terminal(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, errBuildRequest) ||
		errors.Is(err, context.Canceled)
}

// ClassifyStatus maps an HTTP status code onto the failure taxonomy.
// Returns nil for 2xx.
func ClassifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrNotFound, code)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("server error: status %d", code)
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}

// Caller wraps idempotent read-only remote operations with bounded retries,
// exponential backoff, and a circuit breaker.
type Caller struct {
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker

	// sleep is injectable so tests can run without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCaller creates a Caller with its own circuit breaker. Terminal errors do
// not count against the breaker: a stream of 404s says nothing about the
// upstream's health.
func NewCaller(name string, backoff BackoffConfig) *Caller {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		IsSuccessful: func(err error) bool {
			return err == nil || Terminal(err)
		},
	})

	return &Caller{
		backoff: backoff,
		circuit: cb,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do executes op with retries. Terminal failures propagate immediately;
// transient failures are retried with exponential backoff until the attempt
// budget is spent, then reported as ErrUnavailable.
func (c *Caller) Do(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
	if c.backoff.MaxAttempts <= 0 || c.backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := c.circuit.Execute(func() (interface{}, error) {
			return op(ctx)
		})
		if err == nil {
			return result, nil
		}

		if Terminal(err) {
			return nil, err
		}

		// An open circuit means the upstream is already known bad; do not
		// burn the remaining attempts against it.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open: %v", ErrUnavailable, err)
		}

		lastErr = err
		attempt++
		if attempt >= c.backoff.MaxAttempts {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
		}

		delay := c.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt-1)))
		if c.backoff.MaxInterval > 0 && delay > c.backoff.MaxInterval {
			delay = c.backoff.MaxInterval
		}

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// DoAs is a typed convenience over Caller.Do.
func DoAs[T any](ctx context.Context, c *Caller, op func(ctx context.Context) (T, error)) (T, error) {
	result, err := c.Do(ctx, func(ctx context.Context) (any, error) {
		return op(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, ok := result.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected result type %T", result)
	}
	return v, nil
}

// Fetch executes an HTTP request built by buildRequest through the caller and
// returns the full response body. Status codes are classified onto the
// failure taxonomy before the retry decision is made. The body is read inside
// the attempt so the whole exchange shares one attempt's lifetime.
func Fetch(ctx context.Context, c *Caller, client *http.Client, buildRequest func() (*http.Request, error)) ([]byte, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	return DoAs(ctx, c, func(ctx context.Context) ([]byte, error) {
		req, err := buildRequest()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBuildRequest, err)
		}
		req = req.WithContext(ctx)

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if err := ClassifyStatus(resp.StatusCode); err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return body, nil
	})
}
