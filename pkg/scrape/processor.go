package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"media-scraper/pkg/catalog"
	"media-scraper/pkg/config"
	"media-scraper/pkg/download"
	"media-scraper/pkg/extract"
	"media-scraper/pkg/fetch"
	"media-scraper/pkg/models"
	"media-scraper/pkg/utils"
)

const metadataFilename = "metadata.json"

// Processor drives the per-product pipeline: identifier resolution, page
// fetch, candidate extraction, bounded ranked downloads and metadata
// persistence. Every failure short of a filesystem setup error is recorded
// on the result instead of aborting the product.
type Processor struct {
	pages      fetch.PageFetcher
	extractor  *extract.Extractor
	downloader *download.Downloader
	cfg        *config.AppConfig
	log        *logrus.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(pages fetch.PageFetcher, extractor *extract.Extractor, downloader *download.Downloader, cfg *config.AppConfig, log *logrus.Logger) *Processor {
	return &Processor{
		pages:      pages,
		extractor:  extractor,
		downloader: downloader,
		cfg:        cfg,
		log:        log,
	}
}

// Process runs the full pipeline for one product. state carries the run-wide
// content-hash set for duplicate suppression across products.
func (p *Processor) Process(ctx context.Context, product models.ProductDescriptor, state *download.RunState) models.ProductMediaResult {
	result := models.ProductMediaResult{
		ProductID: product.ID,
		Name:      product.Name,
		SourceURL: product.SourceURL,
		Errors:    []string{},
	}

	// Step 1: resolve the identifier
	id := product.ID
	if id == "" {
		id = catalog.DeriveID(product.SourceURL)
	}
	if id == "" {
		result.AddError(fmt.Sprintf("%v: no id field and none derivable from url '%s'", utils.ErrNoIdentifier, product.SourceURL))
		p.log.WithField("url", product.SourceURL).Warn("Product skipped: no usable identifier")
		return result
	}
	result.ProductID = id
	prodLog := p.log.WithField("product_id", id)

	// Step 2: product directory, idempotent
	productDir := filepath.Join(p.cfg.OutputRoot, utils.SanitizePathComponent(id))
	if err := os.MkdirAll(productDir, 0755); err != nil {
		result.AddError(fmt.Sprintf("cannot create product directory '%s': %v", productDir, err))
		prodLog.Errorf("Cannot create product directory: %v", err)
		return result
	}

	// Completed products from previous runs are not re-fetched
	if p.cfg.GetSkipCompleted() {
		if meta, ok := p.completedMetadata(productDir); ok {
			result.Skipped = true
			result.ImagesDownloaded = meta.ImagesCount
			result.VideosDownloaded = meta.VideosCount
			prodLog.WithFields(logrus.Fields{"images": meta.ImagesCount, "videos": meta.VideosCount}).Info("Product already complete, skipping")
			return result
		}
	}

	// Step 3: page fetch; failure falls through to the fallback image path
	var page string
	if product.SourceURL == "" {
		result.AddError("no source url in catalog entry")
		prodLog.Warn("No source url, relying on fallback image")
	} else {
		var err error
		page, err = p.pages.FetchPage(ctx, product.SourceURL)
		if err != nil {
			result.AddError(fmt.Sprintf("page fetch failed: %v", err))
			prodLog.Warnf("Page fetch failed, continuing with fallback path: %v", err)
			page = ""
		}
	}

	// Step 4: extraction
	var imageCandidates, videoCandidates []models.MediaCandidate
	if page != "" {
		imageCandidates = p.extractor.Extract(page, id, p.cfg.MaxImages)
		videoCandidates = p.extractor.ExtractVideos(page, p.cfg.MaxVideos)
	}

	// Step 5: fallback to the single known catalog image
	if len(imageCandidates) == 0 {
		if fb := product.FallbackImageURL; fb != "" && extract.AcceptableFallback(fb) {
			prodLog.Info("No extracted candidates, using catalog fallback image")
			imageCandidates = []models.MediaCandidate{{
				RawURL:         fb,
				CleanedURL:     extract.Upgrade(fb),
				Kind:           models.MediaKindImage,
				ResolutionTier: extract.ResolutionTier(fb),
			}}
		} else {
			result.AddError("no image candidates found")
		}
	}

	// Steps 6-7: ranked bounded downloads
	p.downloadImages(ctx, imageCandidates, productDir, id, state, &result, prodLog)
	p.downloadVideos(ctx, videoCandidates, productDir, id, state, &result, prodLog)

	// Step 8: durable metadata record marks the product complete
	meta := models.ProductMetadata{
		Name:         product.Name,
		ASIN:         id,
		URL:          product.SourceURL,
		Price:        product.Price,
		Rating:       product.Rating,
		Reviews:      product.Reviews,
		DownloadedAt: time.Now().UTC(),
		ImagesCount:  result.ImagesDownloaded,
		VideosCount:  result.VideosDownloaded,
	}
	if err := writeMetadata(filepath.Join(productDir, metadataFilename), &meta); err != nil {
		result.AddError(fmt.Sprintf("metadata write failed: %v", err))
		prodLog.Errorf("Metadata write failed: %v", err)
	}

	prodLog.WithFields(logrus.Fields{
		"images": result.ImagesDownloaded,
		"videos": result.VideosDownloaded,
		"errors": len(result.Errors),
	}).Info("Product processed")
	return result
}

// downloadImages walks the ranked candidates, assigning filenames by rank
// position. Failed slots leave gaps so the remaining names still reflect rank.
func (p *Processor) downloadImages(ctx context.Context, candidates []models.MediaCandidate, productDir, id string, state *download.RunState, result *models.ProductMediaResult, prodLog *logrus.Entry) {
	for i, cand := range candidates {
		if p.cfg.MaxImages > 0 && result.ImagesDownloaded >= p.cfg.MaxImages {
			break
		}
		if ctx.Err() != nil {
			result.AddError(fmt.Sprintf("cancelled before image %d: %v", i+1, ctx.Err()))
			return
		}

		seq := i + 1
		dest := filepath.Join(productDir, fmt.Sprintf("image_%02d.jpg", seq))
		_, err := p.downloader.Download(ctx, cand.CleanedURL, dest, seq, id, state)
		if err != nil {
			if errors.Is(err, utils.ErrDuplicateContent) {
				result.AddError(fmt.Sprintf("duplicate content suppressed: %s", cand.CleanedURL))
			} else {
				result.AddError(fmt.Sprintf("image download failed (%s): %v", cand.CleanedURL, err))
			}
			continue
		}
		result.ImagesDownloaded++
	}
	prodLog.Debugf("Downloaded %d/%d image candidates", result.ImagesDownloaded, len(candidates))
}

func (p *Processor) downloadVideos(ctx context.Context, candidates []models.MediaCandidate, productDir, id string, state *download.RunState, result *models.ProductMediaResult, prodLog *logrus.Entry) {
	for i, cand := range candidates {
		if p.cfg.MaxVideos <= 0 || result.VideosDownloaded >= p.cfg.MaxVideos {
			break
		}
		if ctx.Err() != nil {
			result.AddError(fmt.Sprintf("cancelled before video %d: %v", i+1, ctx.Err()))
			return
		}

		if err := extract.ValidateVideoURL(cand.CleanedURL); err != nil {
			result.AddError(fmt.Sprintf("video url rejected: %v", err))
			continue
		}

		seq := i + 1
		dest := filepath.Join(productDir, fmt.Sprintf("video_%02d%s", seq, extract.VideoExtension(cand.CleanedURL)))
		_, err := p.downloader.Download(ctx, cand.CleanedURL, dest, seq, id, state)
		if err != nil {
			if errors.Is(err, utils.ErrDuplicateContent) {
				result.AddError(fmt.Sprintf("duplicate content suppressed: %s", cand.CleanedURL))
			} else {
				result.AddError(fmt.Sprintf("video download failed (%s): %v", cand.CleanedURL, err))
			}
			continue
		}
		result.VideosDownloaded++
	}
	if len(candidates) > 0 {
		prodLog.Debugf("Downloaded %d/%d video candidates", result.VideosDownloaded, len(candidates))
	}
}

// completedMetadata reports whether the directory holds a finished product:
// a parseable metadata record whose counted assets are still on disk.
func (p *Processor) completedMetadata(productDir string) (*models.ProductMetadata, bool) {
	data, err := os.ReadFile(filepath.Join(productDir, metadataFilename))
	if err != nil {
		return nil, false
	}

	var meta models.ProductMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		p.log.Warnf("Unreadable metadata in '%s', reprocessing: %v", productDir, err)
		return nil, false
	}

	images, _ := filepath.Glob(filepath.Join(productDir, "image_*.jpg"))
	if len(images) < meta.ImagesCount {
		return nil, false
	}
	videos, _ := filepath.Glob(filepath.Join(productDir, "video_*"))
	if len(videos) < meta.VideosCount {
		return nil, false
	}
	return &meta, true
}

func writeMetadata(path string, meta *models.ProductMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling metadata: %w", utils.ErrParsing, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: writing '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}
