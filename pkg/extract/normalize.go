package extract

import "strings"

// Upgrade rewrites a recognized image size token to the maximum standard size.
// Pure and idempotent: Upgrade(Upgrade(u)) == Upgrade(u); URLs without a
// size token are returned unchanged.
func Upgrade(url string) string {
	if !strings.Contains(url, "._AC_SL") {
		return url
	}
	return sizeTokenRe.ReplaceAllString(url, maxSizeToken)
}

// ResolutionTier returns the ordinal rank of the URL's size token,
// higher = better. URLs without a recognized token rank 0.
func ResolutionTier(url string) int {
	for _, st := range sizeTokenTiers {
		if strings.Contains(url, st.Token) {
			return st.Tier
		}
	}
	return 0
}
