package batch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-scraper/pkg/config"
	"media-scraper/pkg/download"
	"media-scraper/pkg/extract"
	"media-scraper/pkg/fetch"
	"media-scraper/pkg/models"
	"media-scraper/pkg/scrape"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type stubPages struct {
	page string
	err  error
}

func (s stubPages) FetchPage(ctx context.Context, pageURL string) (string, error) {
	return s.page, s.err
}

// rewriteTransport sends every request to the test server regardless of host.
type rewriteTransport struct {
	host string
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.host
	return http.DefaultTransport.RoundTrip(req)
}

func testConfig(t *testing.T) *config.AppConfig {
	return &config.AppConfig{
		UserAgent:         "media-scraper-test/1.0",
		OutputRoot:        filepath.Join(t.TempDir(), "media"),
		MaxImages:         3,
		MaxVideos:         1,
		MaxRetries:        0,
		InitialRetryDelay: time.Millisecond,
		MaxRetryDelay:     5 * time.Millisecond,
		MinAssetBytes:     10,
		ProximityWindow:   5000,
	}
}

func newTestRunner(cfg *config.AppConfig, pages fetch.PageFetcher, serverHost string) *Runner {
	log := testLogger()
	client := &http.Client{Transport: rewriteTransport{host: serverHost}}
	fetcher := fetch.NewFetcher(client, cfg, log)
	rl := fetch.NewRateLimiter(0, log)
	dl := download.NewDownloader(fetcher, rl, nil, nil, cfg, log)
	ex := extract.NewExtractor(cfg.ProximityWindow, nil, log)
	processor := scrape.NewProcessor(pages, ex, dl, cfg, log)
	return NewRunner(processor, cfg, log)
}

func catalogOf(n int) []models.ProductDescriptor {
	products := make([]models.ProductDescriptor, 0, n)
	for i := 0; i < n; i++ {
		products = append(products, models.ProductDescriptor{
			ID: fmt.Sprintf("B0PRODUCT%02d", i+1),
		})
	}
	return products
}

func TestRun_ResumeSkipsEarlierChunks(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 10
	// No source urls and no fallbacks: every product finishes fast with errors
	runner := newTestRunner(cfg, stubPages{page: ""}, "127.0.0.1:1")

	report, err := runner.Run(context.Background(), catalogOf(30), 2)
	require.NoError(t, err)

	assert.Equal(t, 20, report.TotalProducts)
	require.Len(t, report.Products, 20)
	assert.Equal(t, "B0PRODUCT11", report.Products[0].ProductID)
	for _, r := range report.Products {
		assert.NotContains(t, []string{"B0PRODUCT01", "B0PRODUCT05", "B0PRODUCT10"}, r.ProductID)
	}
}

func TestRun_DuplicateSuppressedAcrossProducts(t *testing.T) {
	// Same bytes under two different URLs
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("identical-bytes;", 20)))
	}))
	defer server.Close()

	cfg := testConfig(t)
	runner := newTestRunner(cfg, stubPages{err: fmt.Errorf("fetch disabled")}, server.Listener.Addr().String())

	products := []models.ProductDescriptor{
		{ID: "B0AAAAAAAA", SourceURL: "https://www.example.com/dp/B0AAAAAAAA", FallbackImageURL: "https://cdn.example.com/images/I/one._AC_SL500_.jpg"},
		{ID: "B0BBBBBBBB", SourceURL: "https://www.example.com/dp/B0BBBBBBBB", FallbackImageURL: "https://cdn.example.com/images/I/two._AC_SL500_.jpg"},
	}
	report, err := runner.Run(context.Background(), products, 1)
	require.NoError(t, err)

	require.Len(t, report.Products, 2)
	assert.Equal(t, 1, report.Products[0].ImagesDownloaded)
	assert.Zero(t, report.Products[1].ImagesDownloaded)

	var dupNote bool
	for _, msg := range report.Products[1].Errors {
		if strings.Contains(msg, "duplicate content suppressed") {
			dupNote = true
		}
	}
	assert.True(t, dupNote, "second product should carry a duplicate-suppression note")

	assert.Equal(t, 1, report.TotalImagesDownloaded)
	assert.Equal(t, "50.0%", report.SuccessRate)
}

func TestRun_CooldownBetweenChunks(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 2
	cfg.BatchCooldown = 60 * time.Millisecond
	runner := newTestRunner(cfg, stubPages{page: ""}, "127.0.0.1:1")

	start := time.Now()
	report, err := runner.Run(context.Background(), catalogOf(4), 1)
	require.NoError(t, err)

	assert.Equal(t, 4, report.TotalProducts)
	// One cool-down between the two chunks, none after the last
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRun_CancellationProducesPartialReport(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 1
	cfg.BatchCooldown = time.Hour
	runner := newTestRunner(cfg, stubPages{page: ""}, "127.0.0.1:1")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	report, err := runner.Run(ctx, catalogOf(5), 1)
	require.NoError(t, err)
	assert.Less(t, report.TotalProducts, 5)
	assert.GreaterOrEqual(t, report.TotalProducts, 1)
}

func TestRun_EmptyCatalog(t *testing.T) {
	cfg := testConfig(t)
	runner := newTestRunner(cfg, stubPages{page: ""}, "127.0.0.1:1")

	report, err := runner.Run(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Zero(t, report.TotalProducts)
	assert.Equal(t, "0.0%", report.SuccessRate)
}

func TestWriteAndReadReport(t *testing.T) {
	report := &models.BatchReport{
		RunID:         "test-run",
		Timestamp:     time.Now().UTC().Truncate(time.Second),
		TotalProducts: 2,
		SuccessRate:   "50.0%",
		Products: []models.ProductMediaResult{
			{ProductID: "B0AAAAAAAA", ImagesDownloaded: 1, Errors: []string{}},
			{ProductID: "B0BBBBBBBB", Errors: []string{"no image candidates found"}},
		},
	}

	path := filepath.Join(t.TempDir(), "reports", "report.json")
	require.NoError(t, WriteReport(report, path))

	got, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, got.RunID)
	assert.Equal(t, report.SuccessRate, got.SuccessRate)
	require.Len(t, got.Products, 2)
	assert.Equal(t, "B0AAAAAAAA", got.Products[0].ProductID)
}
