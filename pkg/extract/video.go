package extract

import (
	"fmt"
	"regexp"
	"strings"

	"media-scraper/pkg/models"
	"media-scraper/pkg/utils"
)

// Video extraction is single-tier: pages do not expose per-product video
// association as reliably as images, so the whole document is scanned for
// direct video-file URLs and player-data URL fields.

var (
	videoSourceRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<video[^>]*src="([^"]*\.(?:mp4|webm|mov)[^"]*)"`),
		regexp.MustCompile(`(?i)<source[^>]*src="([^"]*\.(?:mp4|webm|mov)[^"]*)"`),
		regexp.MustCompile(`"videoUrl"\s*:\s*"([^"]*)"`),
		regexp.MustCompile(`(?i)https://[^"\s]*\.(?:mp4|webm|mov)[^"\s]*`),
	}
	cleanVideoURLRe     = regexp.MustCompile(`(?i)https://[^",\s}]+\.(?:mp4|webm|mov)`)
	videoTrailingJunkRe = regexp.MustCompile(`["',}\s].*$`)
)

const minVideoURLLength = 20

// ExtractVideos scans page content for video candidates, deduplicated in
// discovery order and truncated to maxResults. maxResults <= 0 means video
// downloads are disabled and nothing is extracted.
func (e *Extractor) ExtractVideos(page string, maxResults int) []models.MediaCandidate {
	if maxResults <= 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var accepted []models.MediaCandidate

	collect := func(rawURL string) {
		cleaned := cleanVideoURL(rawURL)
		if cleaned == "" {
			return
		}
		if _, dup := seen[cleaned]; dup {
			return
		}
		seen[cleaned] = struct{}{}
		accepted = append(accepted, models.MediaCandidate{
			RawURL:     rawURL,
			CleanedURL: cleaned,
			Kind:       models.MediaKindVideo,
		})
	}

	for _, re := range videoSourceRes {
		if re.NumSubexp() > 0 {
			for _, m := range re.FindAllStringSubmatch(page, -1) {
				collect(m[1])
			}
			continue
		}
		for _, m := range re.FindAllString(page, -1) {
			collect(m)
		}
	}

	if len(accepted) > maxResults {
		accepted = accepted[:maxResults]
	}
	if len(accepted) > 0 {
		e.log.Infof("Extraction found %d video candidates", len(accepted))
	}
	return accepted
}

// cleanVideoURL pulls the actual video file URL out of a capture, dropping
// any trailing script artifacts. Returns "" when nothing usable remains.
func cleanVideoURL(raw string) string {
	cleaned := cleanVideoURLRe.FindString(raw)
	if cleaned == "" {
		cleaned = strings.TrimSpace(strings.Trim(raw, `"' `))
		cleaned = videoTrailingJunkRe.ReplaceAllString(cleaned, "")
		lower := strings.ToLower(cleaned)
		if !strings.Contains(lower, ".mp4") && !strings.Contains(lower, ".webm") && !strings.Contains(lower, ".mov") {
			return ""
		}
	}
	if !strings.HasPrefix(cleaned, "https://") || len(cleaned) < minVideoURLLength {
		return ""
	}
	return cleaned
}

// ValidateVideoURL re-checks a candidate immediately before download: minimum
// length, expected scheme, recognized container extension.
func ValidateVideoURL(url string) error {
	if len(url) < minVideoURLLength || !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("%w: '%.100s'", utils.ErrInvalidMediaURL, url)
	}
	lower := strings.ToLower(url)
	if !strings.Contains(lower, ".mp4") && !strings.Contains(lower, ".webm") && !strings.Contains(lower, ".mov") {
		return fmt.Errorf("%w: unrecognized container in '%.100s'", utils.ErrInvalidMediaURL, url)
	}
	return nil
}

// VideoExtension maps a video URL to the on-disk extension.
// .mov is stored as .mp4 for consistency; unknown containers default to .mp4.
func VideoExtension(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, ".webm"):
		return ".webm"
	default:
		return ".mp4"
	}
}
