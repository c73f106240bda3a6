package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"media-scraper/pkg/config"
)

// RobotsChecker fetches, parses and caches robots.txt per host and answers
// allow/deny questions for the configured user agent. A host whose robots.txt
// cannot be fetched or parsed is cached as nil and treated as allow-all.
type RobotsChecker struct {
	fetcher       *Fetcher
	rateLimiter   *RateLimiter
	robotsCache   map[string]*robotstxt.RobotsData
	robotsCacheMu sync.Mutex
	cfg           *config.AppConfig
	log           *logrus.Logger
}

// NewRobotsChecker creates a RobotsChecker sharing the pipeline's fetcher and
// rate limiter.
func NewRobotsChecker(fetcher *Fetcher, rateLimiter *RateLimiter, cfg *config.AppConfig, log *logrus.Logger) *RobotsChecker {
	return &RobotsChecker{
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		robotsCache: make(map[string]*robotstxt.RobotsData),
		cfg:         cfg,
		log:         log,
	}
}

// Allowed reports whether the configured user agent may fetch targetURL.
// Missing or unparseable robots data permits the fetch.
func (rc *RobotsChecker) Allowed(ctx context.Context, targetURL *url.URL, userAgent string) bool {
	data := rc.robotsData(ctx, targetURL)
	if data == nil {
		return true
	}
	return data.TestAgent(targetURL.RequestURI(), userAgent)
}

// robotsData returns cached robots data for the host, fetching on a miss.
func (rc *RobotsChecker) robotsData(ctx context.Context, targetURL *url.URL) *robotstxt.RobotsData {
	if ctx == nil {
		ctx = context.Background()
	}

	host := targetURL.Hostname()
	rc.robotsCacheMu.Lock()
	data, found := rc.robotsCache[host]
	rc.robotsCacheMu.Unlock()
	if found {
		return data
	}

	robotsURL := &url.URL{Scheme: targetURL.Scheme, Host: targetURL.Host, Path: "/robots.txt"}
	if robotsURL.Scheme != "http" && robotsURL.Scheme != "https" {
		robotsURL.Scheme = "https"
	}
	robotsLog := rc.log.WithFields(logrus.Fields{"host": host, "robots_url": robotsURL.String()})
	robotsLog.Info("Fetching robots.txt...")

	data = rc.fetchAndParse(ctx, robotsURL, robotsLog)

	rc.robotsCacheMu.Lock()
	rc.robotsCache[host] = data
	rc.robotsCacheMu.Unlock()
	return data
}

func (rc *RobotsChecker) fetchAndParse(ctx context.Context, robotsURL *url.URL, robotsLog *logrus.Entry) *robotstxt.RobotsData {
	rc.rateLimiter.ApplyDelay(robotsURL.Hostname(), rc.cfg.RateLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		robotsLog.Errorf("Error creating robots.txt request: %v", err)
		return nil
	}
	req.Header.Set("User-Agent", rc.cfg.UserAgent)

	resp, fetchErr := rc.fetcher.FetchWithRetry(req, ctx)
	rc.rateLimiter.UpdateLastRequestTime(robotsURL.Hostname())
	if fetchErr != nil {
		if resp != nil {
			drainAndClose(resp)
		}
		robotsLog.Warnf("Fetching robots.txt failed, assuming allow-all: %v", fetchErr)
		return nil
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		robotsLog.Errorf("Error reading robots.txt body: %v", err)
		return nil
	}

	data, err := robotstxt.FromBytes(bodyBytes)
	if err != nil {
		robotsLog.Errorf("Error parsing robots.txt: %v", err)
		return nil
	}

	robotsLog.Info("Successfully fetched and parsed robots.txt")
	return data
}
