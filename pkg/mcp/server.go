package mcp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"media-scraper/pkg/config"
	"media-scraper/pkg/fetch"
	"media-scraper/pkg/storage"
)

const (
	serverName    = "media-scraper"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
}

// Server exposes the scraping pipeline as MCP tools. Batch scrapes run as
// background jobs; single-product scrapes run synchronously within the tool
// call. All jobs share one network-operation semaphore, one HTTP client and
// one per-host rate limiter, so concurrent tool calls cannot multiply the
// request rate or break inter-request spacing against the same host.
type Server struct {
	mcpServer   *server.MCPServer
	cfg         *ServerConfig
	log         *logrus.Entry
	baseLog     *logrus.Logger
	jobManager  *JobManager
	netOps      *semaphore.Weighted
	httpClient  *http.Client
	fetcher     *fetch.Fetcher
	rateLimiter *fetch.RateLimiter
	robots      *fetch.RobotsChecker
	store       storage.Store // nil unless the state store is enabled
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		baseLog:    cfg.Logger,
		jobManager: NewJobManager(),
		netOps:     semaphore.NewWeighted(int64(cfg.AppConfig.MaxNetworkOps)),
	}

	s.httpClient = fetch.NewClient(cfg.AppConfig.HTTPClientSettings, s.baseLog)
	s.fetcher = fetch.NewFetcher(s.httpClient, cfg.AppConfig, s.baseLog)
	s.rateLimiter = fetch.NewRateLimiter(cfg.AppConfig.RateLimit, s.baseLog)
	s.robots = fetch.NewRobotsChecker(s.fetcher, s.rateLimiter, cfg.AppConfig, s.baseLog)

	if cfg.AppConfig.EnableStateStore {
		store, err := storage.NewBadgerStore(cfg.AppConfig.StateDir, true, s.log)
		if err != nil {
			return nil, fmt.Errorf("failed to open asset state store: %w", err)
		}
		s.store = store
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	scrapeProductTool := mcp.NewTool("scrape_product",
		mcp.WithDescription("Scrape images and videos for a single product synchronously and return the result"),
		mcp.WithString("url",
			mcp.Description("Product page URL (identifier is derived from it when asin is omitted)"),
		),
		mcp.WithString("asin",
			mcp.Description("Explicit product identifier (optional when derivable from url)"),
		),
		mcp.WithString("name",
			mcp.Description("Product display name stored in metadata (optional)"),
		),
		mcp.WithString("image_url",
			mcp.Description("Known-good fallback image URL used when page scraping finds nothing (optional)"),
		),
		mcp.WithNumber("max_images",
			mcp.Description("Per-product image cap (defaults to configured max_images)"),
		),
		mcp.WithNumber("max_videos",
			mcp.Description("Per-product video cap (defaults to configured max_videos)"),
		),
	)
	s.mcpServer.AddTool(scrapeProductTool, s.handleScrapeProduct)

	startBatchTool := mcp.NewTool("start_batch",
		mcp.WithDescription("Start a background batch scrape over a product catalog file. Returns immediately with a job ID."),
		mcp.WithString("catalog_path",
			mcp.Required(),
			mcp.Description("Path to the JSON catalog file of product descriptors"),
		),
		mcp.WithNumber("resume_from",
			mcp.Description("1-based chunk index to resume from (earlier chunks are skipped by position)"),
		),
	)
	s.mcpServer.AddTool(startBatchTool, s.handleStartBatch)

	jobStatusTool := mcp.NewTool("job_status",
		mcp.WithDescription("Get the status and progress of a batch scrape job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by start_batch"),
		),
	)
	s.mcpServer.AddTool(jobStatusTool, s.handleJobStatus)

	cancelJobTool := mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a pending or running batch scrape job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID to cancel"),
		),
	)
	s.mcpServer.AddTool(cancelJobTool, s.handleCancelJob)

	listJobsTool := mcp.NewTool("list_jobs",
		mcp.WithDescription("List all batch scrape jobs known to this server"),
	)
	s.mcpServer.AddTool(listJobsTool, s.handleListJobs)

	getReportTool := mcp.NewTool("get_report",
		mcp.WithDescription("Read a batch report file and return its aggregate and per-product results"),
		mcp.WithString("report_path",
			mcp.Description("Path to the report file (defaults to the configured report_file)"),
		),
	)
	s.mcpServer.AddTool(getReportTool, s.handleGetReport)

	s.log.Infof("Registered %d MCP tools", 6)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
