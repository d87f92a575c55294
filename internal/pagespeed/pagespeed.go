// Package pagespeed queries the PageSpeed Insights v5 API for a
// performance sub-score. Failures degrade to an omitted score upstream;
// nothing here ever aborts a crawl.
package pagespeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"seoaudit/internal/cache"
)

const (
	defaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	defaultTimeout  = 30 * time.Second
)

// Client calls the PageSpeed Insights API. Scores are memoized per URL
// for the lifetime of the client, so one audit run costs at most one
// API call per page.
type Client struct {
	client   *http.Client
	endpoint string
	apiKey   string
	timeout  time.Duration
	scores   *cache.Cache[float64]
}

// New creates a Client. A nil http.Client falls back to http.DefaultClient.
func New(client *http.Client, apiKey string) *Client {
	return NewWithEndpoint(client, apiKey, defaultEndpoint)
}

// NewWithEndpoint creates a Client against a custom API endpoint.
func NewWithEndpoint(client *http.Client, apiKey string, endpoint string) *Client {
	if client == nil {
		client = http.DefaultClient
	}

	return &Client{
		client:   client,
		endpoint: endpoint,
		apiKey:   apiKey,
		timeout:  defaultTimeout,
		scores:   cache.New[float64](),
	}
}

// Enabled reports whether the client is configured with an API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

type apiResponse struct {
	LighthouseResult struct {
		Categories struct {
			Performance struct {
				Score *float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
	} `json:"lighthouseResult"`
}

// Score returns the Lighthouse performance score for pageURL on a 0-100
// scale.
func (c *Client) Score(ctx context.Context, pageURL string) (float64, error) {
	if !c.Enabled() {
		return 0, fmt.Errorf("pagespeed: no api key configured")
	}

	if score, ok := c.scores.Get(pageURL); ok {
		return score, nil
	}

	score, err := c.query(ctx, pageURL)
	if err != nil {
		return 0, err
	}

	c.scores.Set(pageURL, score)

	return score, nil
}

func (c *Client) query(ctx context.Context, pageURL string) (float64, error) {
	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := url.Values{}
	query.Set("url", pageURL)
	query.Set("key", c.apiKey)
	query.Set("category", "performance")

	request, err := http.NewRequestWithContext(requestCtx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("pagespeed: build request: %w", err)
	}

	response, err := c.client.Do(request)
	if err != nil {
		return 0, fmt.Errorf("pagespeed: %w", err)
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("pagespeed: http status %d", response.StatusCode)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return 0, fmt.Errorf("pagespeed: read body: %w", err)
	}

	var decoded apiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, fmt.Errorf("pagespeed: decode response: %w", err)
	}

	score := decoded.LighthouseResult.Categories.Performance.Score
	if score == nil {
		return 0, fmt.Errorf("pagespeed: response has no performance score")
	}

	return *score * 100, nil
}
