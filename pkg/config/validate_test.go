package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AppliesDefaults(t *testing.T) {
	cfg := AppConfig{}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)

	assert.Equal(t, "./product_media", cfg.OutputRoot)
	assert.Equal(t, "scrape_report.json", cfg.ReportFile)
	assert.Equal(t, "./scraper_state", cfg.StateDir)
	assert.Equal(t, 2*time.Second, cfg.RateLimit)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.BatchCooldown)
	assert.Equal(t, 3, cfg.MaxImages)
	assert.Equal(t, 1, cfg.MaxVideos)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1*time.Second, cfg.InitialRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxRetryDelay)
	assert.Equal(t, int64(1024), cfg.MinAssetBytes)
	assert.Equal(t, 5000, cfg.ProximityWindow)
	assert.NotEmpty(t, cfg.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientSettings.Timeout)
}

func TestValidate_KeepsExplicitValues(t *testing.T) {
	cfg := AppConfig{
		OutputRoot:    "./custom",
		RateLimit:     500 * time.Millisecond,
		BatchSize:     10,
		BatchCooldown: time.Minute,
		MaxImages:     7,
		MaxVideos:     2,
		MaxRetries:    5,
	}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "./custom", cfg.OutputRoot)
	assert.Equal(t, 500*time.Millisecond, cfg.RateLimit)
	assert.Equal(t, 7, cfg.MaxImages)
	assert.Equal(t, 2, cfg.MaxVideos)
	assert.Equal(t, 5, cfg.MaxRetries)
}

func TestValidate_NegativeMaxVideosDisablesVideos(t *testing.T) {
	cfg := AppConfig{MaxVideos: -3}
	warnings, err := cfg.Validate()
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.MaxVideos)
	var warned bool
	for _, w := range warnings {
		if strings.Contains(w, "max_videos") {
			warned = true
		}
	}
	assert.True(t, warned, "negative max_videos should warn")
}

func TestValidate_CooldownAtLeastRateLimit(t *testing.T) {
	cfg := AppConfig{RateLimit: 10 * time.Second, BatchCooldown: 2 * time.Second}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Equal(t, 10*time.Second, cfg.BatchCooldown)
}

func TestValidate_NegativeRetriesReset(t *testing.T) {
	cfg := AppConfig{MaxRetries: -2, InitialRetryDelay: time.Second}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Equal(t, 0, cfg.MaxRetries)
}

func TestValidate_InitialDelayCappedByMax(t *testing.T) {
	cfg := AppConfig{MaxRetries: 2, InitialRetryDelay: time.Minute, MaxRetryDelay: 5 * time.Second}
	_, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.InitialRetryDelay)
}
