package audit

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

const fixtureBaseURL = "https://example.com"

var fixtureTime = time.Date(2024, time.June, 1, 12, 34, 56, 0, time.UTC)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return fn(req) }

type pageResponder func(*http.Request) (*http.Response, error)

// newSiteClient returns an http.Client routing by URL.Path for host
// "example.com". Unknown paths and other hosts get 404 unless a "*"
// handler is provided.
func newSiteClient(t *testing.T, routes map[string]pageResponder) *http.Client {
	t.Helper()

	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if h, ok := routes["*"]; ok {
				return h(req)
			}

			if !strings.EqualFold(req.URL.Host, "example.com") {
				return htmlResponse(http.StatusNotFound, "not found"), nil
			}

			path := req.URL.EscapedPath()
			if path == "" {
				path = "/"
			}

			h, ok := routes[path]
			if !ok {
				return htmlResponse(http.StatusNotFound, "not found"), nil
			}

			return h(req)
		}),
	}
}

func htmlResponse(status int, body string) *http.Response {
	header := http.Header{}
	header.Set("Content-Type", "text/html")

	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func servePage(body string) pageResponder {
	return func(*http.Request) (*http.Response, error) {
		return htmlResponse(http.StatusOK, body), nil
	}
}

func serveContentType(contentType string, body string) pageResponder {
	return func(*http.Request) (*http.Response, error) {
		header := http.Header{}
		header.Set("Content-Type", contentType)

		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     header,
			Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		}, nil
	}
}

func serveStatus(status int) pageResponder {
	return func(*http.Request) (*http.Response, error) {
		return htmlResponse(status, "error"), nil
	}
}

// richPage builds markup that scores 100: long title, description, one
// H1, 300+ words, and the given internal links.
func richPage(title string, links ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>")
	b.WriteString(title)
	b.WriteString(`</title><meta name="description" content="about this page"></head><body><h1>Heading</h1><p>`)
	for i := 0; i < 320; i++ {
		b.WriteString("word ")
	}
	b.WriteString("</p>")
	for _, link := range links {
		b.WriteString(`<a href="` + link + `">link</a>`)
	}
	b.WriteString("</body></html>")

	return b.String()
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Sleep(ctx context.Context, duration time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func testOptions(client *http.Client) Options {
	return Options{
		URL:        fixtureBaseURL,
		Pages:      10,
		Workers:    1,
		Retries:    0,
		Timeout:    time.Second,
		UserAgent:  "test-agent",
		HTTPClient: client,
		Clock:      &testClock{now: fixtureTime},
	}
}
