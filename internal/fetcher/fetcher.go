// Package fetcher performs paced, retrying HTTP GETs for the crawler.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"seoaudit/internal/pacer"
)

const (
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

var errInvalidRequest = errors.New("invalid request")

// Kind classifies a fetch failure.
type Kind int

const (
	// KindConnection covers DNS, dial, reset, and other transport errors.
	KindConnection Kind = iota
	// KindTimeout covers deadline and timeout failures.
	KindTimeout
	// KindHTTPStatus covers responses with a 4xx/5xx status code.
	KindHTTPStatus
)

// Error is a typed fetch failure. StatusCode is set only for KindHTTPStatus.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("http status %d: %s", e.StatusCode, statusText(e.StatusCode))
	case KindTimeout:
		return fmt.Sprintf("timeout: %v", e.Err)
	default:
		return fmt.Sprintf("connection: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Result contains the HTTP response data.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetcher performs GET requests with pacing and transient-failure retries.
// HTTP error statuses are reported but never retried.
type Fetcher struct {
	client     *http.Client
	timeout    time.Duration
	userAgent  string
	pacer      *pacer.Pacer
	retries    int
	retryDelay time.Duration
	clock      pacer.Timer
}

// New creates a Fetcher with the provided configuration.
func New(
	client *http.Client,
	timeout time.Duration,
	userAgent string,
	pace *pacer.Pacer,
	retries int,
	retryDelay time.Duration,
	clock pacer.Timer,
) *Fetcher {
	if retryDelay <= 0 {
		retryDelay = baseRetryDelay
	}

	if clock == nil {
		clock = pacer.Clock{}
	}

	return &Fetcher{
		client:     client,
		timeout:    timeout,
		userAgent:  userAgent,
		pacer:      pace,
		retries:    retries,
		retryDelay: retryDelay,
		clock:      clock,
	}
}

// Fetch performs a GET request, retrying transient network failures
// (connection errors, timeouts, truncated reads) up to the configured
// retry count. A 4xx/5xx response returns the Result from that attempt
// together with a KindHTTPStatus error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	attempts := f.retries + 1

	var lastResult Result
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := f.fetchOnce(ctx, rawURL)
		lastResult = result
		lastErr = err

		if err == nil {
			if result.StatusCode >= http.StatusBadRequest {
				return result, &Error{Kind: KindHTTPStatus, StatusCode: result.StatusCode}
			}

			if ctx.Err() != nil {
				return Result{}, classify(ctx.Err())
			}

			return result, nil
		}

		if !f.retryAfter(ctx, attempt, attempts, err) {
			break
		}
	}

	return lastResult, classify(lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (Result, error) {
	if f.pacer != nil {
		if err := f.pacer.Wait(ctx); err != nil {
			return Result{}, err
		}
	}

	return f.doRequest(ctx, rawURL)
}

// retryAfter reports whether another attempt should run, sleeping the
// backoff delay first. It never retries after the parent context ends.
func (f *Fetcher) retryAfter(ctx context.Context, attempt int, attempts int, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	if !isTransient(err) || attempt == attempts-1 {
		return false
	}

	return f.clock.Sleep(ctx, f.retryDelayFor(attempt+1)) == nil
}

func (f *Fetcher) doRequest(ctx context.Context, rawURL string) (Result, error) {
	requestCtx := ctx
	var cancel context.CancelFunc
	if f.timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	if parsedURL.Path == "" {
		parsedURL.Path = "/"
	}

	request, err := http.NewRequestWithContext(requestCtx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	if f.userAgent != "" {
		request.Header.Set("User-Agent", f.userAgent)
	}

	response, err := f.client.Do(request)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return Result{StatusCode: response.StatusCode, Header: response.Header}, fmt.Errorf("read body: %w", err)
	}

	return Result{StatusCode: response.StatusCode, Header: response.Header, Body: body}, nil
}

// classify wraps a raw network error into a typed *Error.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Err: err}
	}

	return &Error{Kind: KindConnection, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

// isTransient reports whether the failure is worth one more attempt.
// Invalid requests and caller cancellation are final.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, errInvalidRequest) {
		return false
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func statusText(statusCode int) string {
	text := http.StatusText(statusCode)
	if text == "" {
		return "unknown status"
	}

	return text
}

func (f *Fetcher) retryDelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := f.retryDelay
	for i := 1; i < attempt; i++ {
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}

		delay *= 2
	}

	if delay > maxRetryDelay {
		return maxRetryDelay
	}

	return delay
}
