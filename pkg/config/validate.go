package config

import "time"

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings; AppConfig validation never fails fatally,
// bad values are replaced with defaults and reported.
// Modifies receiver in place.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}

	if c.OutputRoot == "" {
		warnings = append(warnings, "output_root is empty, defaulting to './product_media'")
		c.OutputRoot = "./product_media"
	}

	if c.ReportFile == "" {
		c.ReportFile = "scrape_report.json"
	}

	if c.StateDir == "" {
		c.StateDir = "./scraper_state"
	}

	// RateLimit is a hard politeness requirement, not an optimization;
	// the target host actively blocks high-frequency clients.
	if c.RateLimit <= 0 {
		warnings = append(warnings, "rate_limit should be > 0, defaulting to 2s")
		c.RateLimit = 2 * time.Second
	}

	if c.BatchSize <= 0 {
		warnings = append(warnings, "batch_size should be > 0, defaulting to 25")
		c.BatchSize = 25
	}

	if c.BatchCooldown <= 0 {
		c.BatchCooldown = 30 * time.Second
	}
	if c.BatchCooldown < c.RateLimit {
		warnings = append(warnings, "batch_cooldown smaller than rate_limit, raising to rate_limit")
		c.BatchCooldown = c.RateLimit
	}

	if c.MaxImages <= 0 {
		c.MaxImages = 3
	}
	if c.MaxVideos < 0 {
		warnings = append(warnings, "max_videos cannot be negative, setting to 0 (video downloads disabled)")
		c.MaxVideos = 0
	} else if c.MaxVideos == 0 {
		c.MaxVideos = 1
	}

	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 3
	}
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, "initial_retry_delay > max_retry_delay, using max_retry_delay for initial")
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// Sub-threshold responses are usually error pages mislabeled as 200 OK.
	if c.MinAssetBytes <= 0 {
		c.MinAssetBytes = 1024
	}

	if c.ProximityWindow <= 0 {
		c.ProximityWindow = 5000
	}

	if c.MaxNetworkOps <= 0 {
		c.MaxNetworkOps = 4
	}

	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 30 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
