package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"media-scraper/pkg/config"
	"media-scraper/pkg/utils"
)

func testPageConfig() *config.AppConfig {
	return &config.AppConfig{
		UserAgent:         "media-scraper-test/1.0",
		MaxRetries:        1,
		InitialRetryDelay: time.Millisecond,
		MaxRetryDelay:     5 * time.Millisecond,
	}
}

func TestCanonicalPageURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			"affiliate tag stripped",
			"https://www.example.com/dp/B0TESTASIN?tag=partner-20",
			"https://www.example.com/dp/B0TESTASIN",
			false,
		},
		{
			"other params kept",
			"https://www.example.com/dp/B0TESTASIN?th=1&tag=partner-20",
			"https://www.example.com/dp/B0TESTASIN?th=1",
			false,
		},
		{
			"no query untouched",
			"https://www.example.com/dp/B0TESTASIN",
			"https://www.example.com/dp/B0TESTASIN",
			false,
		},
		{"bad scheme", "ftp://example.com/dp/B0TESTASIN", "", true},
		{"unparseable", "https://exa mple.com/%zz", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := CanonicalPageURL(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, utils.ErrParsing)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestFetchPage_ReturnsBodyAndSetsUserAgent(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte("<html>product page</html>"))
	}))
	defer server.Close()

	cfg := testPageConfig()
	log := testLogger()
	fetcher := NewFetcher(&http.Client{}, cfg, log)
	rl := NewRateLimiter(0, log)
	pf := NewHTTPPageFetcher(fetcher, rl, nil, semaphore.NewWeighted(2), cfg, log)

	body, err := pf.FetchPage(context.Background(), server.URL+"/dp/B0TESTASIN?tag=partner-20")
	require.NoError(t, err)
	assert.Equal(t, "<html>product page</html>", body)
	assert.Equal(t, "media-scraper-test/1.0", gotAgent)
}

func TestFetchPage_RobotsDisallowed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /dp/\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("should not be reached"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testPageConfig()
	log := testLogger()
	fetcher := NewFetcher(&http.Client{}, cfg, log)
	rl := NewRateLimiter(0, log)
	robots := NewRobotsChecker(fetcher, rl, cfg, log)
	pf := NewHTTPPageFetcher(fetcher, rl, robots, nil, cfg, log)

	_, err := pf.FetchPage(context.Background(), server.URL+"/dp/B0TESTASIN")
	assert.ErrorIs(t, err, utils.ErrRobotsDisallowed)
}

func TestFetchPage_MissingRobotsAllows(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/dp/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("page"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testPageConfig()
	log := testLogger()
	fetcher := NewFetcher(&http.Client{}, cfg, log)
	rl := NewRateLimiter(0, log)
	robots := NewRobotsChecker(fetcher, rl, cfg, log)
	pf := NewHTTPPageFetcher(fetcher, rl, robots, nil, cfg, log)

	body, err := pf.FetchPage(context.Background(), server.URL+"/dp/B0TESTASIN")
	require.NoError(t, err)
	assert.Equal(t, "page", body)
}
