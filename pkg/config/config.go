package config

import "time"

// AppConfig holds the global application configuration
type AppConfig struct {
	UserAgent         string        `yaml:"user_agent,omitempty"`
	OutputRoot        string        `yaml:"output_root"`
	ReportFile        string        `yaml:"report_file,omitempty"`
	StateDir          string        `yaml:"state_dir,omitempty"`
	EnableStateStore  bool          `yaml:"enable_state_store,omitempty"`  // Persist per-URL outcomes in BadgerDB
	RespectRobots     *bool         `yaml:"respect_robots,omitempty"`      // nil = default (true)
	SkipCompleted     *bool         `yaml:"skip_completed,omitempty"`      // nil = default (true)
	RateLimit         time.Duration `yaml:"rate_limit,omitempty"`          // Minimum delay between any two network operations
	BatchSize         int           `yaml:"batch_size,omitempty"`          // Products per chunk
	BatchCooldown     time.Duration `yaml:"batch_cooldown,omitempty"`      // Pause between chunks, larger than rate_limit
	MaxImages         int           `yaml:"max_images,omitempty"`          // Hard cap per product
	MaxVideos         int           `yaml:"max_videos,omitempty"`          // Hard cap per product
	MaxRetries        int           `yaml:"max_retries,omitempty"`
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay,omitempty"`
	MinAssetBytes     int64         `yaml:"min_asset_bytes,omitempty"`     // Responses smaller than this are treated as error pages
	ProximityWindow   int           `yaml:"proximity_window,omitempty"`    // Bytes of context around the product id for proximity extraction
	MaxNetworkOps     int           `yaml:"max_network_ops,omitempty"`     // Global in-flight network operation limit (MCP path)

	ExtraExcludedPatterns []string `yaml:"extra_excluded_patterns,omitempty"` // Additional regexes rejected during extraction

	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// GetRespectRobots returns the effective robots.txt setting (default true).
func (c *AppConfig) GetRespectRobots() bool {
	if c.RespectRobots != nil {
		return *c.RespectRobots
	}
	return true
}

// GetSkipCompleted returns the effective skip-completed setting (default true).
func (c *AppConfig) GetSkipCompleted() bool {
	if c.SkipCompleted != nil {
		return *c.SkipCompleted
	}
	return true
}
