package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"media-scraper/pkg/config"
	"media-scraper/pkg/utils"
)

// PageFetcher retrieves the full content of a product page. The interface
// exists so the processor can run against a browser-backed implementation or
// a test stub without changing the pipeline.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// HTTPPageFetcher fetches product pages over plain HTTP, honoring robots.txt,
// the per-host rate limit and the global network-operation semaphore.
type HTTPPageFetcher struct {
	fetcher     *Fetcher
	rateLimiter *RateLimiter
	robots      *RobotsChecker
	netOps      *semaphore.Weighted
	cfg         *config.AppConfig
	log         *logrus.Logger
}

// NewHTTPPageFetcher creates an HTTPPageFetcher. robots and netOps may be nil
// to disable the respective checks.
func NewHTTPPageFetcher(fetcher *Fetcher, rateLimiter *RateLimiter, robots *RobotsChecker, netOps *semaphore.Weighted, cfg *config.AppConfig, log *logrus.Logger) *HTTPPageFetcher {
	return &HTTPPageFetcher{
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		robots:      robots,
		netOps:      netOps,
		cfg:         cfg,
		log:         log,
	}
}

// FetchPage retrieves pageURL and returns the response body as a string.
// Affiliate tracking parameters are stripped before the request so identical
// products shared through different tags resolve to the same page.
func (pf *HTTPPageFetcher) FetchPage(ctx context.Context, pageURL string) (string, error) {
	u, err := CanonicalPageURL(pageURL)
	if err != nil {
		return "", err
	}

	if pf.cfg.GetRespectRobots() && pf.robots != nil {
		if !pf.robots.Allowed(ctx, u, pf.cfg.UserAgent) {
			return "", fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, u.String())
		}
	}

	if pf.netOps != nil {
		if err := pf.netOps.Acquire(ctx, 1); err != nil {
			return "", utils.WrapErrorf(err, "acquiring network slot for '%s'", u.String())
		}
		defer pf.netOps.Release(1)
	}

	pf.rateLimiter.ApplyDelay(u.Hostname(), pf.cfg.RateLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: for page '%s': %w", utils.ErrRequestCreation, u.String(), err)
	}
	req.Header.Set("User-Agent", pf.cfg.UserAgent)

	resp, err := pf.fetcher.FetchWithRetry(req, ctx)
	pf.rateLimiter.UpdateLastRequestTime(u.Hostname())
	if err != nil {
		if resp != nil {
			drainAndClose(resp)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: for page '%s': %w", utils.ErrResponseBodyRead, u.String(), err)
	}

	pf.log.WithFields(logrus.Fields{"url": u.String(), "bytes": len(body)}).Debug("Fetched product page")
	return string(body), nil
}

// CanonicalPageURL parses a product page URL and removes the affiliate "tag"
// query parameter.
func CanonicalPageURL(pageURL string) (*url.URL, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid page URL '%s': %w", utils.ErrParsing, pageURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme in page URL '%s'", utils.ErrParsing, pageURL)
	}

	q := u.Query()
	if q.Has("tag") {
		q.Del("tag")
		u.RawQuery = q.Encode()
	}
	return u, nil
}
