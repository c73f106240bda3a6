package batch

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"media-scraper/pkg/config"
	"media-scraper/pkg/download"
	"media-scraper/pkg/models"
	"media-scraper/pkg/scrape"
	"media-scraper/pkg/utils"
)

// Runner iterates a product catalog in fixed-size chunks, one product at a
// time, with a cool-down between chunks. The per-request rate limit lives in
// the fetch layer; the chunk cool-down is the longer pause on top of it.
type Runner struct {
	processor *scrape.Processor
	cfg       *config.AppConfig
	log       *logrus.Logger

	// OnResult, when set, observes each per-product result as it is
	// produced. Used by the MCP job manager for live progress.
	OnResult func(models.ProductMediaResult)
}

// NewRunner creates a Runner.
func NewRunner(processor *scrape.Processor, cfg *config.AppConfig, log *logrus.Logger) *Runner {
	return &Runner{
		processor: processor,
		cfg:       cfg,
		log:       log,
	}
}

// Run processes all products from resumeFrom (1-based chunk index) onward
// and returns the aggregated report. Chunks before resumeFrom are skipped by
// position, not re-validated. The only fatal error is an unusable output
// root; per-product failures are data in the report.
func (r *Runner) Run(ctx context.Context, products []models.ProductDescriptor, resumeFrom int) (*models.BatchReport, error) {
	if err := os.MkdirAll(r.cfg.OutputRoot, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create output root '%s': %w", utils.ErrFilesystem, r.cfg.OutputRoot, err)
	}

	batchSize := r.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(products)
	}
	if resumeFrom < 1 {
		resumeFrom = 1
	}

	report := &models.BatchReport{
		RunID:     uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Products:  []models.ProductMediaResult{},
	}
	state := download.NewRunState()

	chunks := chunkProducts(products, batchSize)
	runLog := r.log.WithFields(logrus.Fields{"run_id": report.RunID, "chunks": len(chunks), "batch_size": batchSize})
	runLog.Infof("Starting batch run over %d products", len(products))

	cancelled := false
	for chunkIdx, chunk := range chunks {
		chunkNum := chunkIdx + 1
		if chunkNum < resumeFrom {
			runLog.Infof("Skipping chunk %d/%d (resume from %d)", chunkNum, len(chunks), resumeFrom)
			continue
		}
		if cancelled {
			break
		}

		chunkLog := runLog.WithField("chunk", chunkNum)
		chunkLog.Infof("Processing chunk %d/%d (%d products)", chunkNum, len(chunks), len(chunk))

		for _, product := range chunk {
			if ctx.Err() != nil {
				chunkLog.Warnf("Run cancelled: %v", ctx.Err())
				cancelled = true
				break
			}
			result := r.processor.Process(ctx, product, state)
			r.accumulate(report, result)
			if r.OnResult != nil {
				r.OnResult(result)
			}
			chunkLog.WithFields(logrus.Fields{
				"product_id": result.ProductID,
				"images":     result.ImagesDownloaded,
				"videos":     result.VideosDownloaded,
				"errors":     len(result.Errors),
			}).Info("Product finished")
		}

		if cancelled || chunkNum == len(chunks) {
			continue
		}
		if !r.cooldown(ctx, chunkLog) {
			cancelled = true
		}
	}

	report.SuccessRate = successRate(report.Products)
	runLog.WithFields(logrus.Fields{
		"products":     report.TotalProducts,
		"images":       report.TotalImagesDownloaded,
		"videos":       report.TotalVideosDownloaded,
		"errors":       report.TotalErrors,
		"success_rate": report.SuccessRate,
	}).Info("Batch run complete")
	return report, nil
}

// cooldown waits the inter-chunk pause, honoring cancellation. Returns false
// when the context ended during the wait.
func (r *Runner) cooldown(ctx context.Context, chunkLog *logrus.Entry) bool {
	if r.cfg.BatchCooldown <= 0 {
		return true
	}
	chunkLog.Infof("Cooling down %s before next chunk", r.cfg.BatchCooldown)
	select {
	case <-time.After(r.cfg.BatchCooldown):
		return true
	case <-ctx.Done():
		chunkLog.Warnf("Cool-down interrupted: %v", ctx.Err())
		return false
	}
}

func (r *Runner) accumulate(report *models.BatchReport, result models.ProductMediaResult) {
	report.TotalProducts++
	report.TotalImagesDownloaded += result.ImagesDownloaded
	report.TotalVideosDownloaded += result.VideosDownloaded
	report.TotalErrors += len(result.Errors)
	report.Products = append(report.Products, result)
}

func chunkProducts(products []models.ProductDescriptor, size int) [][]models.ProductDescriptor {
	var chunks [][]models.ProductDescriptor
	for start := 0; start < len(products); start += size {
		end := start + size
		if end > len(products) {
			end = len(products)
		}
		chunks = append(chunks, products[start:end])
	}
	return chunks
}

// successRate formats the fraction of products with at least one image.
func successRate(results []models.ProductMediaResult) string {
	if len(results) == 0 {
		return "0.0%"
	}
	succeeded := 0
	for _, r := range results {
		if r.ImagesDownloaded > 0 {
			succeeded++
		}
	}
	return fmt.Sprintf("%.1f%%", float64(succeeded)/float64(len(results))*100)
}
