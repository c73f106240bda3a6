package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"media-scraper/pkg/config"
	"media-scraper/pkg/fetch"
	"media-scraper/pkg/models"
	"media-scraper/pkg/storage"
	"media-scraper/pkg/utils"
)

// Downloader retrieves media files to disk with retry, rate limiting,
// minimum-size validation and content-hash deduplication. The optional asset
// store persists per-URL outcomes across runs.
type Downloader struct {
	fetcher     *fetch.Fetcher
	rateLimiter *fetch.RateLimiter
	netOps      *semaphore.Weighted
	store       storage.AssetStore
	cfg         *config.AppConfig
	log         *logrus.Logger
}

// NewDownloader creates a Downloader. store and netOps may be nil.
func NewDownloader(fetcher *fetch.Fetcher, rateLimiter *fetch.RateLimiter, netOps *semaphore.Weighted, store storage.AssetStore, cfg *config.AppConfig, log *logrus.Logger) *Downloader {
	return &Downloader{
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		netOps:      netOps,
		store:       store,
		cfg:         cfg,
		log:         log,
	}
}

// Download fetches mediaURL into destPath and returns the stored asset.
// Files smaller than the minimum asset size are deleted and reported as
// utils.ErrAssetTooSmall. Bytes whose hash was already seen this run are
// deleted and reported as utils.ErrDuplicateContent; the caller decides
// whether a duplicate counts against the product.
func (d *Downloader) Download(ctx context.Context, mediaURL, destPath string, seqIndex int, productID string, state *RunState) (*models.DownloadedAsset, error) {
	dlLog := d.log.WithFields(logrus.Fields{"url": mediaURL, "product_id": productID})

	if asset := d.reuseCompleted(mediaURL, destPath, seqIndex, productID, state, dlLog); asset != nil {
		return asset, nil
	}

	if d.netOps != nil {
		if err := d.netOps.Acquire(ctx, 1); err != nil {
			return nil, utils.WrapErrorf(err, "acquiring network slot for '%s'", mediaURL)
		}
		defer d.netOps.Release(1)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: for media '%s': %w", utils.ErrRequestCreation, mediaURL, err)
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	host := req.URL.Hostname()
	d.rateLimiter.ApplyDelay(host, d.cfg.RateLimit)

	resp, fetchErr := d.fetcher.FetchWithRetry(req, ctx)
	d.rateLimiter.UpdateLastRequestTime(host)
	if fetchErr != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		d.recordFailure(mediaURL, productID, fetchErr)
		return nil, fetchErr
	}
	defer resp.Body.Close()

	asset, err := d.writeAsset(resp.Body, mediaURL, destPath, seqIndex, productID, state, dlLog)
	if err != nil {
		// A duplicate is a suppression, not a failure worth remembering
		if !errors.Is(err, utils.ErrDuplicateContent) {
			d.recordFailure(mediaURL, productID, err)
		}
		return nil, err
	}

	d.recordSuccess(mediaURL, asset)
	dlLog.WithFields(logrus.Fields{"path": destPath, "bytes": asset.ByteSize}).Debug("Downloaded media file")
	return asset, nil
}

// writeAsset streams the body to destPath while hashing it, then applies the
// size and duplicate checks. Rejected files are removed from disk.
func (d *Downloader) writeAsset(body io.Reader, mediaURL, destPath string, seqIndex int, productID string, state *RunState, dlLog *logrus.Entry) (*models.DownloadedAsset, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: creating directory for '%s': %w", utils.ErrFilesystem, destPath, err)
	}

	outFile, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("%w: creating file '%s': %w", utils.ErrFilesystem, destPath, err)
	}

	hasher := sha256.New()
	written, copyErr := io.Copy(outFile, io.TeeReader(body, hasher))
	closeErr := outFile.Close()
	if copyErr != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("%w: writing '%s': %w", utils.ErrResponseBodyRead, destPath, copyErr)
	}
	if closeErr != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, destPath, closeErr)
	}

	if d.cfg.MinAssetBytes > 0 && written < d.cfg.MinAssetBytes {
		os.Remove(destPath)
		dlLog.WithField("bytes", written).Warn("Downloaded file below minimum size, discarding")
		return nil, fmt.Errorf("%w: %d bytes from '%s'", utils.ErrAssetTooSmall, written, mediaURL)
	}

	contentHash := hex.EncodeToString(hasher.Sum(nil))
	if state != nil && !state.MarkSeen(contentHash) {
		os.Remove(destPath)
		dlLog.WithField("hash", contentHash).Debug("Duplicate content, discarding")
		return nil, fmt.Errorf("%w: hash %s from '%s'", utils.ErrDuplicateContent, contentHash, mediaURL)
	}

	return &models.DownloadedAsset{
		ProductID:     productID,
		LocalPath:     destPath,
		ContentHash:   contentHash,
		ByteSize:      written,
		SequenceIndex: seqIndex,
	}, nil
}

// reuseCompleted returns the stored asset when skip-completed is on, the URL
// succeeded in a previous run and the file is still on disk.
func (d *Downloader) reuseCompleted(mediaURL, destPath string, seqIndex int, productID string, state *RunState, dlLog *logrus.Entry) *models.DownloadedAsset {
	if d.store == nil || !d.cfg.GetSkipCompleted() {
		return nil
	}

	status, entry, err := d.store.CheckAssetStatus(mediaURL)
	if err != nil || status != models.AssetStatusSuccess || entry == nil {
		return nil
	}

	info, statErr := os.Stat(destPath)
	if statErr != nil {
		return nil
	}

	// The stored status only says a download once succeeded; the file may
	// have been truncated or replaced since. Re-verify before skipping.
	if entry.ContentHash != "" {
		diskHash, hashErr := utils.CalculateFileSHA256(destPath)
		if hashErr != nil || diskHash != entry.ContentHash {
			dlLog.Warn("On-disk content no longer matches stored hash, re-downloading")
			return nil
		}
	}

	if state != nil && entry.ContentHash != "" {
		state.MarkSeen(entry.ContentHash)
	}
	dlLog.Debug("Asset already downloaded in a previous run, skipping fetch")
	return &models.DownloadedAsset{
		ProductID:     productID,
		LocalPath:     destPath,
		ContentHash:   entry.ContentHash,
		ByteSize:      info.Size(),
		SequenceIndex: seqIndex,
	}
}

func (d *Downloader) recordSuccess(mediaURL string, asset *models.DownloadedAsset) {
	if d.store == nil {
		return
	}
	err := d.store.UpdateAssetStatus(mediaURL, &models.AssetDBEntry{
		Status:      models.AssetStatusSuccess,
		ProductID:   asset.ProductID,
		LocalPath:   asset.LocalPath,
		ContentHash: asset.ContentHash,
		LastAttempt: time.Now().UTC(),
	})
	if err != nil {
		d.log.Warnf("Failed to record asset success for '%s': %v", mediaURL, err)
	}
}

func (d *Downloader) recordFailure(mediaURL, productID string, cause error) {
	if d.store == nil {
		return
	}
	err := d.store.UpdateAssetStatus(mediaURL, &models.AssetDBEntry{
		Status:      models.AssetStatusFailure,
		ProductID:   productID,
		ErrorType:   utils.CategorizeError(cause),
		LastAttempt: time.Now().UTC(),
	})
	if err != nil {
		d.log.Warnf("Failed to record asset failure for '%s': %v", mediaURL, err)
	}
}
