package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/sirupsen/logrus"

	"media-scraper/pkg/models"
	"media-scraper/pkg/utils"
)

// asinFromURL matches the canonical product-page URL identifier segment
var asinFromURL = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)

// DeriveID extracts a product identifier from a product page URL.
// Returns "" when the URL carries no recognizable identifier.
func DeriveID(sourceURL string) string {
	m := asinFromURL.FindStringSubmatch(sourceURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// Load reads a catalog JSON file into validated product descriptors.
// Records missing an identifier that cannot be derived from their URL, or
// carrying neither a page URL nor a fallback image URL, fail validation.
func Load(path string, log *logrus.Logger) ([]models.ProductDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading catalog '%s': %w", utils.ErrFilesystem, path, err)
	}

	var products []models.ProductDescriptor
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("%w: JSON decode of catalog '%s': %w", utils.ErrParsing, path, err)
	}

	for i := range products {
		p := &products[i]
		if p.ID == "" {
			p.ID = DeriveID(p.SourceURL)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%w: record %d ('%s') has no identifier and none derivable from url",
				utils.ErrCatalogValidation, i+1, p.Name)
		}
		if p.SourceURL == "" && p.FallbackImageURL == "" {
			return nil, fmt.Errorf("%w: record %d ('%s') needs url or image_url",
				utils.ErrCatalogValidation, i+1, p.ID)
		}
	}

	log.Infof("Loaded %d products from catalog %s", len(products), path)
	return products, nil
}
