package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"media-scraper/pkg/batch"
	"media-scraper/pkg/catalog"
	"media-scraper/pkg/config"
	"media-scraper/pkg/download"
	"media-scraper/pkg/extract"
	"media-scraper/pkg/fetch"
	"media-scraper/pkg/models"
	"media-scraper/pkg/scrape"
	"media-scraper/pkg/utils"
)

// pipeline bundles the per-invocation components built around the server's
// shared HTTP client, rate limiter, semaphore and (optional) state store.
type pipeline struct {
	processor   *scrape.Processor
	runner      *batch.Runner
	cfg         *config.AppConfig
	rateLimiter *fetch.RateLimiter
}

// buildPipeline assembles the scraping stack for one tool call or job.
// cfgOverride lets a tool call adjust caps without mutating the server
// config. Network-facing components are the server's shared instances, so
// host spacing holds across concurrent jobs.
func (s *Server) buildPipeline(cfgOverride *config.AppConfig) *pipeline {
	cfg := cfgOverride
	if cfg == nil {
		cfg = s.cfg.AppConfig
	}

	pages := fetch.NewHTTPPageFetcher(s.fetcher, s.rateLimiter, s.robots, s.netOps, cfg, s.baseLog)

	downloader := download.NewDownloader(s.fetcher, s.rateLimiter, s.netOps, s.store, cfg, s.baseLog)

	extraExcluded, err := utils.CompileRegexPatterns(cfg.ExtraExcludedPatterns)
	if err != nil {
		s.log.Warnf("Ignoring invalid extra_excluded_patterns: %v", err)
	}
	extractor := extract.NewExtractor(cfg.ProximityWindow, extraExcluded, s.baseLog)

	processor := scrape.NewProcessor(pages, extractor, downloader, cfg, s.baseLog)
	return &pipeline{
		processor:   processor,
		runner:      batch.NewRunner(processor, cfg, s.baseLog),
		cfg:         cfg,
		rateLimiter: s.rateLimiter,
	}
}

// handleScrapeProduct handles the scrape_product tool
func (s *Server) handleScrapeProduct(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageURL := request.GetString("url", "")
	asin := request.GetString("asin", "")
	if pageURL == "" && asin == "" {
		return mcp.NewToolResultError("either url or asin parameter is required"), nil
	}

	product := models.ProductDescriptor{
		ID:               asin,
		Name:             request.GetString("name", ""),
		SourceURL:        pageURL,
		FallbackImageURL: request.GetString("image_url", ""),
	}

	cfg := *s.cfg.AppConfig
	if maxImages := request.GetInt("max_images", 0); maxImages > 0 {
		cfg.MaxImages = maxImages
	}
	if maxVideos := request.GetInt("max_videos", 0); maxVideos > 0 {
		cfg.MaxVideos = maxVideos
	}

	p := s.buildPipeline(&cfg)
	result := p.processor.Process(ctx, product, download.NewRunState())

	resultBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(resultBytes)), nil
}

// handleStartBatch handles the start_batch tool
func (s *Server) handleStartBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalogPath := request.GetString("catalog_path", "")
	if catalogPath == "" {
		return mcp.NewToolResultError("catalog_path parameter is required"), nil
	}
	resumeFrom := request.GetInt("resume_from", 1)
	if resumeFrom < 1 {
		resumeFrom = 1
	}

	// Validate the catalog before committing to a job
	products, err := catalog.Load(catalogPath, s.baseLog)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load catalog: %v", err)), nil
	}

	if existingJob, running := s.jobManager.GetJobByCatalog(catalogPath); running &&
		(existingJob.Status == JobStatusPending || existingJob.Status == JobStatusRunning) {
		result := map[string]interface{}{
			"status":       "already_running",
			"message":      "A batch scrape is already in progress for this catalog",
			"job_id":       existingJob.ID,
			"catalog_path": catalogPath,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	job, err := s.jobManager.CreateJob(catalogPath, resumeFrom)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create job: %v", err)), nil
	}
	s.jobManager.SetTotals(job.ID, len(products))

	go s.runBatchJob(job.ID, job.ResumeFrom, products)

	result := map[string]interface{}{
		"status":         "started",
		"message":        "Batch scrape started successfully",
		"job_id":         job.ID,
		"catalog_path":   catalogPath,
		"products_total": len(products),
		"resume_from":    resumeFrom,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runBatchJob runs a batch scrape job in the background
func (s *Server) runBatchJob(jobID string, resumeFrom int, products []models.ProductDescriptor) {
	s.jobManager.UpdateStatus(jobID, JobStatusRunning, "")
	jobCtx := s.jobManager.GetContext(jobID)

	p := s.buildPipeline(nil)
	p.runner.OnResult = func(result models.ProductMediaResult) {
		s.jobManager.AddProgress(jobID, result.ImagesDownloaded, result.VideosDownloaded)
	}

	report, err := p.runner.Run(jobCtx, products, resumeFrom)
	if err != nil {
		s.jobManager.UpdateStatus(jobID, JobStatusFailed, err.Error())
		return
	}

	if s.cfg.AppConfig.ReportFile != "" {
		if err := batch.WriteReport(report, s.cfg.AppConfig.ReportFile); err != nil {
			s.log.Errorf("Failed to write report for job %s: %v", jobID, err)
		} else {
			s.jobManager.SetReportPath(jobID, s.cfg.AppConfig.ReportFile)
		}
	}

	if jobCtx.Err() != nil {
		// CancelJob already set the terminal status
		return
	}
	s.jobManager.UpdateStatus(jobID, JobStatusCompleted, "")
}

// handleJobStatus handles the job_status tool
func (s *Server) handleJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job, found := s.jobManager.GetJob(jobID)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":             job.ID,
		"catalog_path":       job.CatalogPath,
		"status":             job.Status,
		"started_at":         job.StartedAt.Format(time.RFC3339),
		"products_total":     job.ProductsTotal,
		"products_processed": job.ProductsProcessed,
		"images_downloaded":  job.ImagesDownloaded,
		"videos_downloaded":  job.VideosDownloaded,
		"resume_from":        job.ResumeFrom,
	}

	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ReportPath != "" {
		result["report_path"] = job.ReportPath
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	if !s.jobManager.CancelJob(jobID) {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found or not cancellable", jobID)), nil
	}

	result := map[string]interface{}{
		"status":  "cancelled",
		"message": "Job cancelled; in-flight product finishes, remaining products are skipped",
		"job_id":  jobID,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListJobs handles the list_jobs tool
func (s *Server) handleListJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs := s.jobManager.ListJobs()
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.Before(jobs[j].StartedAt)
	})

	jobList := make([]map[string]interface{}, 0, len(jobs))
	for _, job := range jobs {
		jobList = append(jobList, map[string]interface{}{
			"job_id":             job.ID,
			"catalog_path":       job.CatalogPath,
			"status":             job.Status,
			"started_at":         job.StartedAt.Format(time.RFC3339),
			"products_total":     job.ProductsTotal,
			"products_processed": job.ProductsProcessed,
		})
	}

	result := map[string]interface{}{
		"jobs":       jobList,
		"total_jobs": len(jobList),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetReport handles the get_report tool
func (s *Server) handleGetReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reportPath := request.GetString("report_path", "")
	if reportPath == "" {
		reportPath = s.cfg.AppConfig.ReportFile
	}
	if reportPath == "" {
		return mcp.NewToolResultError("no report_path given and no report_file configured"), nil
	}

	report, err := batch.ReadReport(reportPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read report: %v", err)), nil
	}

	reportBytes, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(reportBytes)), nil
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
