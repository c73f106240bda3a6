package extract

import "regexp"

// Consolidated acceptance/exclusion rule set for product media URLs.
// A URL is accepted only when it lives on the product-image CDN path and
// carries one of the standard main-photo size suffixes; everything matching
// the exclusion vocabulary (related/sponsored/review/customer media and
// thumbnail-style suffixes) is rejected regardless of which strategy found it.

const maxSizeToken = "_AC_SL1500_"

// sizeTokenTiers ranks the standard main-product size suffixes, higher = better.
var sizeTokenTiers = []struct {
	Token string
	Tier  int
}{
	{"_AC_SL1500_", 4},
	{"_AC_SL1000_", 3},
	{"_AC_SL750_", 2},
	{"_AC_SL500_", 1},
}

// excludedPatterns marks URLs from related/recommended/sponsored/review and
// other non-main-product sections of the page.
var excludedPatterns = compileExclusions([]string{
	`/related/`,
	`/recommended/`,
	`/sponsored/`,
	`/similar/`,
	`/frequently/`,
	`/customer/`,
	`/review/`,
	`community-reviews`,
	`aplus-media-library`,
	`community-customer-media`,
	`_UC\d+`,
	`__CR\d+`,
	`__PT\d+`,
	`__AC_UC`,
	`__AC_SR\d+`,
	`__AC_UF\d+`,
	`related-products`,
	`recommended-products`,
	`sponsored-products`,
	`also-viewed`,
	`frequently-bought`,
	`__AC_SY\d+`,
	`__AC_SX\d+`,
	`__AC_SZ\d+`,
	`__AC_SS\d+`,
})

var (
	cdnImagePathRe  = regexp.MustCompile(`(?i)\.media-amazon\.com/images/I/`)
	standardSizeRe  = regexp.MustCompile(`(?i)\._AC_SL(?:1500|1000|750|500)_\.jpg`)
	anySizeJpgRe    = regexp.MustCompile(`(?i)\._AC_SL\d+_\.jpg`)
	sizeTokenRe     = regexp.MustCompile(`_AC_SL\d+_`)
	cleanImageURLRe = regexp.MustCompile(`https://[^",\s}]+\.jpg`)
	jsonURLFieldRe  = regexp.MustCompile(`"url"\s*:\s*"([^"]+\.jpg[^"]*)"`)
	httpsJpgRe      = regexp.MustCompile(`https://[^"]+\.jpg`)
)

type exclusionRule struct {
	re     *regexp.Regexp
	reason string
}

func compileExclusions(patterns []string) []exclusionRule {
	rules := make([]exclusionRule, 0, len(patterns))
	for _, p := range patterns {
		rules = append(rules, exclusionRule{re: regexp.MustCompile(`(?i)` + p), reason: p})
	}
	return rules
}

// excludedReason returns the first matching exclusion pattern, or "".
func excludedReason(url string, extra []*regexp.Regexp) string {
	for _, rule := range excludedPatterns {
		if rule.re.MatchString(url) {
			return rule.reason
		}
	}
	for _, re := range extra {
		if re.MatchString(url) {
			return re.String()
		}
	}
	return ""
}

// AcceptableFallback reports whether a catalog-provided fallback image URL
// matches the accepted main-product-photo structural pattern.
func AcceptableFallback(url string) bool {
	return anySizeJpgRe.MatchString(url)
}
