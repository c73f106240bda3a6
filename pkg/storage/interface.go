package storage

import (
	"context"
	"time"

	"media-scraper/pkg/models"
)

// AssetStore records the cross-run outcome of media URL downloads so reruns
// can skip work that already succeeded.
type AssetStore interface {
	// CheckAssetStatus retrieves the stored outcome for a normalized media URL.
	// Returns AssetStatusNotFound when the URL has never been recorded.
	CheckAssetStatus(normalizedURL string) (status models.AssetStatus, entry *models.AssetDBEntry, err error)

	// UpdateAssetStatus records the outcome for a normalized media URL.
	UpdateAssetStatus(normalizedURL string, entry *models.AssetDBEntry) error
}

// StoreAdmin handles lifecycle and administrative operations.
type StoreAdmin interface {
	// AssetCount returns the number of recorded media URLs.
	AssetCount() (int, error)

	// RunGC runs periodic garbage collection. Should be run in a goroutine.
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database.
	Close() error
}

// Store combines the asset store interfaces for components needing full access.
type Store interface {
	AssetStore
	StoreAdmin
}
