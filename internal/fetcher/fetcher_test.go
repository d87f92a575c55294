package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return fn(req) }

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		c.slept = append(c.slept, d)
		return nil
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func newFetcher(transport roundTripFunc, retries int) (*Fetcher, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)}
	client := &http.Client{Transport: transport}

	return New(client, time.Second, "seo-audit-test", nil, retries, 10*time.Millisecond, clock), clock
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	var agent string
	f, _ := newFetcher(func(req *http.Request) (*http.Response, error) {
		agent = req.Header.Get("User-Agent")
		return response(http.StatusOK, "<html></html>"), nil
	}, 1)

	result, err := f.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, []byte("<html></html>"), result.Body)
	require.Equal(t, "seo-audit-test", agent)
}

func TestFetchHTTPStatusNotRetried(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
	}{
		{name: "client error", status: http.StatusNotFound},
		{name: "server error", status: http.StatusInternalServerError},
		{name: "rate limited", status: http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			attempts := 0
			f, clock := newFetcher(func(*http.Request) (*http.Response, error) {
				attempts++
				return response(tt.status, "nope"), nil
			}, 2)

			result, err := f.Fetch(context.Background(), "https://example.com/x")
			require.Equal(t, 1, attempts, "status errors must not be retried")
			require.Empty(t, clock.slept)
			require.Equal(t, tt.status, result.StatusCode)

			var fetchErr *Error
			require.ErrorAs(t, err, &fetchErr)
			require.Equal(t, KindHTTPStatus, fetchErr.Kind)
			require.Equal(t, tt.status, fetchErr.StatusCode)
		})
	}
}

func TestFetchRetriesTransientConnectionError(t *testing.T) {
	t.Parallel()

	attempts := 0
	f, clock := newFetcher(func(*http.Request) (*http.Response, error) {
		attempts++
		if attempts == 1 {
			return nil, timeoutError{}
		}
		return response(http.StatusOK, "ok"), nil
	}, 1)

	result, err := f.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, 2, attempts)
	require.Len(t, clock.slept, 1)
}

func TestFetchRetriesExhausted(t *testing.T) {
	t.Parallel()

	attempts := 0
	f, _ := newFetcher(func(*http.Request) (*http.Response, error) {
		attempts++
		return nil, errors.New("connection refused")
	}, 1)

	_, err := f.Fetch(context.Background(), "https://example.com")
	require.Error(t, err)
	require.Equal(t, 2, attempts, "one retry after the first attempt")

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, KindConnection, fetchErr.Kind)
}

func TestFetchTimeoutClassified(t *testing.T) {
	t.Parallel()

	f, _ := newFetcher(func(*http.Request) (*http.Response, error) {
		return nil, timeoutError{}
	}, 0)

	_, err := f.Fetch(context.Background(), "https://example.com")
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, KindTimeout, fetchErr.Kind)
}

func TestFetchInvalidURLNotRetried(t *testing.T) {
	t.Parallel()

	attempts := 0
	f, _ := newFetcher(func(*http.Request) (*http.Response, error) {
		attempts++
		return response(http.StatusOK, "ok"), nil
	}, 3)

	_, err := f.Fetch(context.Background(), "://broken")
	require.Error(t, err)
	require.Equal(t, 0, attempts)
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	f, _ := newFetcher(func(*http.Request) (*http.Response, error) {
		attempts++
		return nil, ctx.Err()
	}, 3)

	_, err := f.Fetch(ctx, "https://example.com")
	require.Error(t, err)
	require.LessOrEqual(t, attempts, 1, "cancellation must stop retries")
}

func TestRetryDelayBackoff(t *testing.T) {
	t.Parallel()

	f := &Fetcher{retryDelay: 100 * time.Millisecond}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 100 * time.Millisecond},
		{attempt: 1, want: 100 * time.Millisecond},
		{attempt: 2, want: 200 * time.Millisecond},
		{attempt: 3, want: 400 * time.Millisecond},
		{attempt: 10, want: maxRetryDelay},
	}

	for _, tt := range tests {
		if got := f.retryDelayFor(tt.attempt); got != tt.want {
			t.Fatalf("retryDelayFor(%d) = %v; want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestErrorString(t *testing.T) {
	t.Parallel()

	statusErr := &Error{Kind: KindHTTPStatus, StatusCode: 404}
	require.Equal(t, "http status 404: Not Found", statusErr.Error())

	timeoutErr := &Error{Kind: KindTimeout, Err: errors.New("deadline exceeded")}
	require.Contains(t, timeoutErr.Error(), "timeout")

	connErr := &Error{Kind: KindConnection, Err: errors.New("refused")}
	require.Contains(t, connErr.Error(), "connection")
}
