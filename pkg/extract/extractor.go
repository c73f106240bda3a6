package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"media-scraper/pkg/models"
)

// trailingArtifactRe strips quote/JSON residue left behind when a URL was
// captured together with surrounding script text.
var trailingArtifactRe = regexp.MustCompile(`["',].*$`)

// Extractor turns raw page content into a ranked, deduplicated set of
// same-product media candidates. Strategies are dispatched in tier order;
// an empty result, not an error, drives fallthrough to the next tier.
type Extractor struct {
	scoped    ProductScopedStrategy
	broad     BroadStrategy
	dom       DomScopedStrategy
	proximity ProximityStrategy
	fallback  FallbackStrategy

	extraExcluded []*regexp.Regexp
	log           *logrus.Logger
}

// NewExtractor creates an Extractor. proximityWindow bounds the tier-4 text
// window; extraExcluded extends the built-in exclusion vocabulary.
func NewExtractor(proximityWindow int, extraExcluded []*regexp.Regexp, log *logrus.Logger) *Extractor {
	return &Extractor{
		proximity:     ProximityStrategy{Window: proximityWindow},
		extraExcluded: extraExcluded,
		log:           log,
	}
}

// Extract produces the ranked image candidates for one product, truncated to
// maxResults (<=0 means unbounded). Output is deterministic for identical
// page content and has no side effects.
func (e *Extractor) Extract(page, productID string, maxResults int) []models.MediaCandidate {
	extractLog := e.log.WithField("product_id", productID)

	// Tier 1: product-scoped script/data blocks
	raw := e.scoped.Propose(page, productID)

	// Tier 2: broad gallery keys, only when the scoped tier found nothing
	if len(raw) == 0 {
		raw = append(raw, e.broad.Propose(page, productID)...)
	}

	// Tier 3: main image block subtree
	raw = append(raw, e.dom.Propose(page, productID)...)

	// Tier 4: window around the identifier's first occurrence
	raw = append(raw, e.proximity.Propose(page, productID)...)

	accepted := e.filter(raw)

	// Tier 5: last resort, canonical photo pattern inside the image block only
	if len(accepted) == 0 {
		extractLog.Debug("No accepted candidates from tiers 1-4, trying fallback strategy")
		accepted = e.filter(e.fallback.Propose(page, productID))
	}

	// Rank: resolution tier descending, discovery order as tiebreak
	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].ResolutionTier > accepted[j].ResolutionTier
	})

	if maxResults > 0 && len(accepted) > maxResults {
		accepted = accepted[:maxResults]
	}

	extractLog.Infof("Extraction found %d accepted image candidates", len(accepted))
	return accepted
}

// filter applies cleaning, the exclusion vocabulary and the structural
// acceptance rules to raw proposals, normalizes survivors to the maximum
// size token and deduplicates on the normalized URL (first seen wins).
func (e *Extractor) filter(raw []string) []models.MediaCandidate {
	seen := make(map[string]struct{}, len(raw))
	var accepted []models.MediaCandidate

	for _, rawURL := range raw {
		cleaned := cleanImageURL(rawURL)
		if cleaned == "" {
			continue
		}

		if reason := excludedReason(cleaned, e.extraExcluded); reason != "" {
			e.log.WithFields(logrus.Fields{"url": cleaned, "reason": reason}).Debug("Candidate excluded")
			continue
		}

		// Structural acceptance: product-image CDN path + standard size suffix
		if !cdnImagePathRe.MatchString(cleaned) || !standardSizeRe.MatchString(cleaned) {
			continue
		}
		if !strings.HasPrefix(cleaned, "https://") {
			continue
		}
		// Reject anything still carrying script artifacts
		if strings.ContainsAny(cleaned, `"{}`) {
			continue
		}

		tier := ResolutionTier(cleaned)
		normalized := Upgrade(cleaned)
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}

		accepted = append(accepted, models.MediaCandidate{
			RawURL:         rawURL,
			CleanedURL:     normalized,
			Kind:           models.MediaKindImage,
			ResolutionTier: tier,
		})
	}
	return accepted
}

// cleanImageURL extracts the actual URL from a capture that may carry
// trailing JSON continuation, quotes or whitespace.
func cleanImageURL(raw string) string {
	if m := cleanImageURLRe.FindString(raw); m != "" {
		return m
	}
	cleaned := strings.TrimSpace(strings.Trim(raw, `"' `))
	cleaned = trailingArtifactRe.ReplaceAllString(cleaned, "")
	if !strings.HasPrefix(cleaned, "https://") || !strings.Contains(strings.ToLower(cleaned), ".jpg") {
		return ""
	}
	return cleaned
}
