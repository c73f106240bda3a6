package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"media-scraper/pkg/models"
	"media-scraper/pkg/utils"
)

// WriteReport persists the batch report as indented JSON at path.
func WriteReport(report *models.BatchReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling report: %w", utils.ErrParsing, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: creating report directory '%s': %w", utils.ErrFilesystem, dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: writing report '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}

// ReadReport loads a previously written batch report.
func ReadReport(path string) (*models.BatchReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading report '%s': %w", utils.ErrFilesystem, path, err)
	}
	var report models.BatchReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("%w: parsing report '%s': %w", utils.ErrParsing, path, err)
	}
	return &report, nil
}
