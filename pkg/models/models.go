package models

import (
	"encoding/json"
	"time"
)

// MediaKind distinguishes image and video candidates
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// ProductDescriptor is one entry of the input catalog file.
// ID is the sole key for on-disk directory naming and dedupe; it may be
// empty on ingestion if it can be derived from SourceURL.
type ProductDescriptor struct {
	ID               string      `json:"asin"`
	Name             string      `json:"name,omitempty"`
	SourceURL        string      `json:"url,omitempty"`
	FallbackImageURL string      `json:"image_url,omitempty"`
	Price            json.Number `json:"price,omitempty"`
	Rating           json.Number `json:"rating,omitempty"`
	Reviews          json.Number `json:"reviews,omitempty"`
}

// MediaCandidate is an extracted URL before acceptance/download.
type MediaCandidate struct {
	RawURL         string
	CleanedURL     string // After stripping trailing JSON/quote artifacts
	Kind           MediaKind
	ResolutionTier int    // Ordinal, higher = better, derived from the URL size token
	ExcludedReason string // Non-empty when the URL matched a blocklist pattern
}

// DownloadedAsset is the result of one successful fetch.
type DownloadedAsset struct {
	ProductID     string
	LocalPath     string
	ContentHash   string // SHA-256 hex digest of the file bytes
	ByteSize      int64
	SequenceIndex int // 1-based, determines filename ordering (image_01, image_02, ...)
}

// ProductMetadata is the durable per-product record written next to the assets.
// Its presence (plus the files it counts) marks a product as complete.
type ProductMetadata struct {
	Name         string      `json:"name,omitempty"`
	ASIN         string      `json:"asin"`
	URL          string      `json:"url,omitempty"`
	Price        json.Number `json:"price,omitempty"`
	Rating       json.Number `json:"rating,omitempty"`
	Reviews      json.Number `json:"reviews,omitempty"`
	DownloadedAt time.Time   `json:"downloaded_at"`
	ImagesCount  int         `json:"images_count"`
	VideosCount  int         `json:"videos_count"`
}

// ProductMediaResult is the per-product outcome reported to the batch runner.
type ProductMediaResult struct {
	ProductID        string   `json:"asin"`
	Name             string   `json:"name,omitempty"`
	SourceURL        string   `json:"url,omitempty"`
	ImagesDownloaded int      `json:"images_downloaded"`
	VideosDownloaded int      `json:"videos_downloaded"`
	Skipped          bool     `json:"skipped,omitempty"` // True when a prior complete run was detected
	Errors           []string `json:"errors"`
}

// AddError appends a human-readable failure note, preserving order.
func (r *ProductMediaResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// BatchReport aggregates a whole run.
type BatchReport struct {
	RunID                 string               `json:"run_id,omitempty"`
	Timestamp             time.Time            `json:"timestamp"`
	TotalProducts         int                  `json:"total_products"`
	TotalImagesDownloaded int                  `json:"total_images_downloaded"`
	TotalVideosDownloaded int                  `json:"total_videos_downloaded"`
	TotalErrors           int                  `json:"total_errors"`
	SuccessRate           string               `json:"success_rate"` // Fraction of products with >=1 image, e.g. "85.0%"
	Products              []ProductMediaResult `json:"products"`
}

// AssetDBEntry stores the cross-run outcome for one media URL in the state store.
type AssetDBEntry struct {
	Status      AssetStatus `json:"status"`
	ProductID   string      `json:"product_id,omitempty"`
	LocalPath   string      `json:"local_path,omitempty"`   // Relative to output root (on success)
	ContentHash string      `json:"content_hash,omitempty"` // SHA-256 of file bytes (on success)
	ErrorType   string      `json:"error_type,omitempty"`   // Error category (on failure)
	LastAttempt time.Time   `json:"last_attempt"`
}
