package mcp

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-scraper/pkg/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.AppConfig{OutputRoot: t.TempDir()}
	_, err := cfg.Validate()
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s, err := NewServer(&ServerConfig{
		AppConfig: cfg,
		Transport: "stdio",
		Logger:    logger,
	})
	require.NoError(t, err)
	return s
}

func TestNewServer(t *testing.T) {
	t.Run("requires app config", func(t *testing.T) {
		_, err := NewServer(&ServerConfig{Transport: "stdio"})
		assert.Error(t, err)
	})

	t.Run("without state store", func(t *testing.T) {
		s := newTestServer(t)
		assert.Nil(t, s.store)
		assert.NotNil(t, s.jobManager)
		assert.NotNil(t, s.netOps)
		assert.NotNil(t, s.httpClient)
		assert.NotNil(t, s.fetcher)
		assert.NotNil(t, s.rateLimiter)
		assert.NotNil(t, s.robots)
	})

	t.Run("with state store", func(t *testing.T) {
		stateDir := t.TempDir()
		cfg := &config.AppConfig{
			OutputRoot:       t.TempDir(),
			StateDir:         stateDir,
			EnableStateStore: true,
		}
		_, err := cfg.Validate()
		require.NoError(t, err)

		logger := logrus.New()
		logger.SetOutput(io.Discard)

		s, err := NewServer(&ServerConfig{
			AppConfig: cfg,
			Transport: "stdio",
			Logger:    logger,
		})
		require.NoError(t, err)
		defer s.Shutdown(context.Background())

		require.NotNil(t, s.store)
		assert.DirExists(t, filepath.Join(stateDir, "asset_db"))
	})
}

func TestBuildPipeline(t *testing.T) {
	s := newTestServer(t)

	t.Run("default config", func(t *testing.T) {
		p := s.buildPipeline(nil)
		require.NotNil(t, p)
		assert.NotNil(t, p.processor)
		assert.NotNil(t, p.runner)
		assert.Equal(t, s.cfg.AppConfig, p.cfg)
	})

	t.Run("override config", func(t *testing.T) {
		override := *s.cfg.AppConfig
		override.MaxImages = 1
		p := s.buildPipeline(&override)
		require.NotNil(t, p)
		assert.Equal(t, 1, p.cfg.MaxImages)
	})
}

func TestBuildPipelineSharesRateLimiter(t *testing.T) {
	s := newTestServer(t)

	// Concurrent jobs must count against one host-spacing budget, so every
	// pipeline wires in the server's limiter rather than a fresh one.
	p1 := s.buildPipeline(nil)
	override := *s.cfg.AppConfig
	override.MaxVideos = 2
	p2 := s.buildPipeline(&override)

	assert.Same(t, s.rateLimiter, p1.rateLimiter)
	assert.Same(t, s.rateLimiter, p2.rateLimiter)
}

func TestShutdownCancelsJobs(t *testing.T) {
	s := newTestServer(t)
	job, err := s.jobManager.CreateJob("catalog.json", 1)
	require.NoError(t, err)

	require.NoError(t, s.Shutdown(context.Background()))
	got, found := s.jobManager.GetJob(job.ID)
	require.True(t, found)
	assert.Equal(t, JobStatusCancelled, got.Status)
}

func TestFormatJSON(t *testing.T) {
	out := formatJSON(map[string]interface{}{"job_id": "abc", "status": "running"})
	assert.Contains(t, out, `"job_id": "abc"`)
	assert.Contains(t, out, `"status": "running"`)
}
