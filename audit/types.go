package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"seoaudit/internal/pacer"
	"seoaudit/internal/pagespeed"
)

// Page statuses. A score is present iff the status is StatusOK.
const (
	StatusOK         = "ok"
	StatusFetchError = "fetch_error"
	StatusParseError = "parse_error"
)

// Options configures an audit run.
// Pages is the crawl budget: the maximum number of URLs visited.
// Delay and RPS control request pacing; RPS overrides Delay.
// Retries is the number of retries after the first attempt, applied to
// transient network failures only.
type Options struct {
	URL                string
	Pages              int
	Retries            int
	Delay              time.Duration
	Timeout            time.Duration
	RPS                float64
	UserAgent          string
	Workers            int
	MaxConcurrentFetch int
	IndentJSON         bool
	HTTPClient         *http.Client
	Clock              pacer.Timer
	PageSpeed          *pagespeed.Client
}

// Report is the site-level audit result serialized to report.json.
// Pages preserves crawl discovery order.
type Report struct {
	Site        string   `json:"site"`
	GeneratedAt string   `json:"generated_at"`
	Pages       *PageMap `json:"pages"`
}

// Page describes one attempted URL. Signals and Scores are present only
// for successfully analyzed pages, so an unscored failure cannot carry a
// score by construction.
type Page struct {
	URL     string   `json:"url"`
	Status  string   `json:"status"`
	Error   string   `json:"error,omitempty"`
	Signals *Signals `json:"signals,omitempty"`
	Scores  *Scores  `json:"scores,omitempty"`
}

// Signals are the extracted markup properties feeding the scorer.
// ImageAltRatio is 1.0 for image-free pages.
type Signals struct {
	HasTitle           bool    `json:"has_title"`
	TitleLength        int     `json:"title_length"`
	HasMetaDescription bool    `json:"has_meta_description"`
	H1Count            int     `json:"h1_count"`
	ImageAltRatio      float64 `json:"image_alt_ratio"`
	InternalLinkCount  int     `json:"internal_link_count"`
	WordCount          int     `json:"word_count"`
}

// Scores holds the heuristic score with its deficiency reasons and the
// optional PageSpeed sub-score.
type Scores struct {
	Score     int      `json:"score"`
	Reasons   []string `json:"reasons"`
	PageSpeed *float64 `json:"pagespeed,omitempty"`
}

// PageMap is a URL-keyed map of pages that marshals in insertion order,
// so the report reflects crawl discovery order run after run.
type PageMap struct {
	keys  []string
	items map[string]Page
}

// NewPageMap creates an empty PageMap.
func NewPageMap() *PageMap {
	return &PageMap{
		items: map[string]Page{},
	}
}

// Set inserts or replaces the page for a URL. A replaced entry keeps its
// original position.
func (m *PageMap) Set(url string, page Page) {
	if _, ok := m.items[url]; !ok {
		m.keys = append(m.keys, url)
	}

	m.items[url] = page
}

// Get returns the page for a URL and whether it exists.
func (m *PageMap) Get(url string) (Page, bool) {
	page, ok := m.items[url]

	return page, ok
}

// Len reports the number of entries.
func (m *PageMap) Len() int {
	return len(m.items)
}

// URLs returns the keys in insertion order.
func (m *PageMap) URLs() []string {
	urls := make([]string, len(m.keys))
	copy(urls, m.keys)

	return urls
}

// MarshalJSON writes the map as a JSON object in insertion order.
func (m *PageMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, key := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}

		encodedPage, err := json.Marshal(m.items[key])
		if err != nil {
			return nil, err
		}

		buf.Write(encodedKey)
		buf.WriteByte(':')
		buf.Write(encodedPage)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving its key order.
func (m *PageMap) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))

	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("pages: expected object, got %v", token)
	}

	m.keys = nil
	m.items = map[string]Page{}

	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return err
		}

		key, ok := keyToken.(string)
		if !ok {
			return fmt.Errorf("pages: expected string key, got %v", keyToken)
		}

		var page Page
		if err := decoder.Decode(&page); err != nil {
			return err
		}

		m.Set(key, page)
	}

	_, err = decoder.Token()

	return err
}
