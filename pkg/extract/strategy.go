package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy proposes raw image URL candidates from page content.
// Implementations are pure: same page content, same proposals.
// Proposals are unfiltered; the Extractor applies the acceptance rules.
type Strategy interface {
	Name() string
	Propose(page, productID string) []string
}

// harvestBlock pulls image URLs out of a matched JSON-ish script blob.
func harvestBlock(block string) []string {
	var urls []string
	for _, m := range jsonURLFieldRe.FindAllStringSubmatch(block, -1) {
		urls = append(urls, m[1])
	}
	urls = append(urls, httpsJpgRe.FindAllString(block, -1)...)
	return urls
}

// ProductScopedStrategy searches script/data blocks that associate the exact
// product identifier with an image collection key (gallery and color-to-item
// mappings). The most reliable tier: it ties media to the target product,
// not to anything else on the page.
type ProductScopedStrategy struct{}

func (ProductScopedStrategy) Name() string { return "product-scoped" }

func (ProductScopedStrategy) Propose(page, productID string) []string {
	if productID == "" {
		return nil
	}
	id := regexp.QuoteMeta(productID)

	blockPatterns := []string{
		`(?s)"` + id + `"\s*:\s*\{[^}]*"colorImages"\s*:\s*\{[^}]*"initial"\s*:\s*\[(.*?)\]`,
		`(?s)"colorToAsin"\s*:\s*\{[^}]*"` + id + `"\s*:\s*[^}]*"colorImages"[^}]*"initial"\s*:\s*\[(.*?)\]`,
		`(?s)"imageBlockData"\s*:\s*\[[^\]]*"` + id + `"[^\]]*\](.*?)"`,
	}
	directPatterns := []string{
		`(?s)"` + id + `"[^}]*"landingImageUrl"\s*:\s*"(https://[^"]*)"`,
		`(?s)"` + id + `"[^}]*"mainImageUrl"\s*:\s*"(https://[^"]*)"`,
		`(?s)"` + id + `"[^}]*"hiRes"\s*:\s*"(https://[^"]*)"`,
	}

	var urls []string
	for _, p := range blockPatterns {
		re := regexp.MustCompile(p)
		for _, m := range re.FindAllStringSubmatch(page, -1) {
			urls = append(urls, harvestBlock(m[1])...)
		}
	}
	for _, p := range directPatterns {
		re := regexp.MustCompile(p)
		for _, m := range re.FindAllStringSubmatch(page, -1) {
			urls = append(urls, m[1])
		}
	}
	return urls
}

// BroadStrategy searches the whole page for generic gallery/main-image keys
// without the product-id anchor. Higher false-positive risk (may pick up
// related products); used only when the scoped tier yields nothing.
type BroadStrategy struct{}

func (BroadStrategy) Name() string { return "broad" }

var (
	broadBlockRes = []*regexp.Regexp{
		regexp.MustCompile(`(?s)"colorImages"\s*:\s*\{\s*"initial"\s*:\s*\[(.*?)\]`),
		regexp.MustCompile(`(?s)"imageBlockData"[^\]]*\[(.*?)\]`),
	}
	broadDirectRes = []*regexp.Regexp{
		regexp.MustCompile(`"mainImageUrl"\s*:\s*"(https://[^"]+\.jpg[^"]*)"`),
		regexp.MustCompile(`"hiResImage"\s*:\s*"(https://[^"]+\.jpg[^"]*)"`),
		regexp.MustCompile(`"(https://m\.media-amazon\.com/images/I/[^"]+\._AC_SL\d+_\.jpg)"`),
	}
)

func (BroadStrategy) Propose(page, _ string) []string {
	var urls []string
	for _, re := range broadBlockRes {
		for _, m := range re.FindAllStringSubmatch(page, -1) {
			urls = append(urls, harvestBlock(m[1])...)
		}
	}
	for _, re := range broadDirectRes {
		for _, m := range re.FindAllStringSubmatch(page, -1) {
			urls = append(urls, m[1])
		}
	}
	return urls
}

// imageBlockSelection parses the page and returns the main-image-block
// container subtree, or an empty selection.
func imageBlockSelection(page string) *goquery.Selection {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}
	sel := doc.Find("#imageBlock")
	if sel.Length() == 0 {
		sel = doc.Find(`div[class*="imageBlock"]`)
	}
	return sel
}

// DomScopedStrategy restricts extraction to the main image block container,
// reading src and lazy-load attributes from img tags within that subtree only.
type DomScopedStrategy struct{}

func (DomScopedStrategy) Name() string { return "dom-scoped" }

func (DomScopedStrategy) Propose(page, _ string) []string {
	sel := imageBlockSelection(page)
	if sel == nil || sel.Length() == 0 {
		return nil
	}

	var urls []string
	sel.Find("img").Each(func(_ int, img *goquery.Selection) {
		for _, attr := range []string{"src", "data-src", "data-old-hires"} {
			if v, ok := img.Attr(attr); ok && strings.HasPrefix(v, "https://") {
				urls = append(urls, v)
			}
		}
	})
	return urls
}

// ProximityStrategy takes a fixed-size window of text around the first
// occurrence of the product identifier and searches gallery-variation URLs
// inside that window only, bounding false positives from unrelated sections
// far away in the document.
type ProximityStrategy struct {
	Window int // Bytes of context on each side of the identifier
}

func (ProximityStrategy) Name() string { return "proximity" }

var variationURLRe = regexp.MustCompile(`(?s)imageBlockVariations.*?"url"\s*:\s*"(https://[^"]*\.jpg[^"]*)"`)

func (s ProximityStrategy) Propose(page, productID string) []string {
	if productID == "" {
		return nil
	}
	idx := strings.Index(page, productID)
	if idx < 0 {
		return nil
	}

	window := s.Window
	if window <= 0 {
		window = 5000
	}
	lo := idx - window
	if lo < 0 {
		lo = 0
	}
	hi := idx + window
	if hi > len(page) {
		hi = len(page)
	}

	var urls []string
	for _, m := range variationURLRe.FindAllStringSubmatch(page[lo:hi], -1) {
		urls = append(urls, m[1])
	}
	return urls
}

// FallbackStrategy is the last resort: strictly within the main-image-block
// subtree, accept any URL matching the canonical product-photo naming pattern.
type FallbackStrategy struct{}

func (FallbackStrategy) Name() string { return "fallback" }

var canonicalPhotoRe = regexp.MustCompile(`https://m\.media-amazon\.com/images/I/[A-Za-z0-9+/=_.-]+\._AC_SL\d+_\.jpg`)

func (FallbackStrategy) Propose(page, _ string) []string {
	sel := imageBlockSelection(page)
	if sel == nil || sel.Length() == 0 {
		return nil
	}
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return nil
	}
	return canonicalPhotoRe.FindAllString(html, -1)
}
