package pagespeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreParsesPerformanceCategory(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		require.Equal(t, "https://example.com", r.URL.Query().Get("url"))
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.Equal(t, "performance", r.URL.Query().Get("category"))

		_, _ = w.Write([]byte(`{"lighthouseResult":{"categories":{"performance":{"score":0.93}}}}`))
	}))
	defer server.Close()

	client := NewWithEndpoint(server.Client(), "test-key", server.URL)

	score, err := client.Score(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.InDelta(t, 93.0, score, 0.001)
}

func TestScoreMemoizedPerURL(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"lighthouseResult":{"categories":{"performance":{"score":0.5}}}}`))
	}))
	defer server.Close()

	client := NewWithEndpoint(server.Client(), "test-key", server.URL)

	for i := 0; i < 3; i++ {
		score, err := client.Score(context.Background(), "https://example.com/page")
		require.NoError(t, err)
		require.InDelta(t, 50.0, score, 0.001)
	}

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestScoreErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{name: "quota exceeded", status: http.StatusTooManyRequests, payload: `{"error":{}}`},
		{name: "server error", status: http.StatusInternalServerError, payload: ""},
		{name: "malformed json", status: http.StatusOK, payload: `{"lighthouseResult":`},
		{name: "missing score", status: http.StatusOK, payload: `{"lighthouseResult":{"categories":{}}}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			client := NewWithEndpoint(server.Client(), "test-key", server.URL)

			_, err := client.Score(context.Background(), "https://example.com")
			require.Error(t, err)
		})
	}
}

func TestDisabledWithoutKey(t *testing.T) {
	t.Parallel()

	var nilClient *Client
	require.False(t, nilClient.Enabled())

	client := New(nil, "")
	require.False(t, client.Enabled())

	_, err := client.Score(context.Background(), "https://example.com")
	require.Error(t, err)
}
