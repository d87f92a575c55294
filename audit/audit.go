// Package audit crawls a site within a page budget, scores each page on
// SEO heuristics, and aggregates the results into a JSON report.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"seoaudit/internal/fetcher"
	"seoaudit/internal/pacer"
)

const defaultUserAgent = "seo-audit/1.0"

// Configuration errors, fatal before any crawling starts.
var (
	ErrMissingURL    = errors.New("url is required")
	ErrInvalidBudget = errors.New("page budget must be positive")
)

// Run crawls up to opts.Pages same-site pages starting at opts.URL and
// returns the finalized report. Per-page failures are recorded in the
// report; only configuration problems return an error. A canceled or
// expired context ends the crawl early with whatever was collected.
func Run(ctx context.Context, opts Options) (Report, error) {
	report := Report{
		Site:  opts.URL,
		Pages: NewPageMap(),
	}

	clock := opts.Clock
	if clock == nil {
		clock = pacer.NewClock()
	}

	if opts.URL == "" {
		return report, ErrMissingURL
	}

	rootURL, err := parseRootURL(opts.URL)
	if err != nil {
		return report, fmt.Errorf("invalid root url: %w", err)
	}
	report.Site = rootURL.String()

	if opts.Pages <= 0 {
		return report, ErrInvalidBudget
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	pace := pacer.NewWithTimer(rateInterval(opts), clock)

	fetch := fetcher.New(
		httpClient,
		opts.Timeout,
		userAgent,
		pace,
		normalizeRetries(opts.Retries),
		opts.Delay,
		clock,
	)

	c := newCrawler(opts, rootURL, fetch, clock)
	c.run(ctx, &report)

	report.GeneratedAt = clock.Now().UTC().Format(time.RFC3339)

	return report, nil
}

// RunJSON crawls like Run and returns the serialized report, indented
// per opts.IndentJSON. Configuration errors return no bytes.
func RunJSON(ctx context.Context, opts Options) ([]byte, error) {
	report, err := Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	return Marshal(report, opts.IndentJSON), nil
}

// Marshal serializes a report, optionally indented. The output always
// ends with a newline.
func Marshal(report Report, indent bool) []byte {
	var (
		data []byte
		err  error
	)

	if indent {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}

	if err != nil {
		data = []byte(`{"error":"failed to marshal report"}`)
	}

	return ensureNewline(data)
}

func ensureNewline(data []byte) []byte {
	if len(data) == 0 || data[len(data)-1] != '\n' {
		return append(data, '\n')
	}

	return data
}

func parseRootURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("scheme must be http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("missing host")
	}
	if parsed.Path == "/" {
		parsed.Path = ""
		parsed.RawPath = ""
	}
	parsed.Fragment = ""

	return parsed, nil
}

func rateInterval(opts Options) time.Duration {
	if opts.RPS > 0 {
		interval := time.Duration(float64(time.Second) / opts.RPS)
		if interval <= 0 {
			return time.Nanosecond
		}

		return interval
	}

	if opts.Delay > 0 {
		return opts.Delay
	}

	return 0
}

func normalizeRetries(retries int) int {
	if retries < 0 {
		return 0
	}

	return retries
}
