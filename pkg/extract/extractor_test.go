package extract

import (
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-scraper/pkg/models"
)

func newTestExtractor(extra []*regexp.Regexp) *Extractor {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewExtractor(5000, extra, log)
}

const galleryPage = `<html><head><script>
var obj = {"B0TESTASIN":{"colorImages":{"initial":[
{"url":"https://m.media-amazon.com/images/I/img1._AC_SL1500_.jpg"},
{"url":"https://m.media-amazon.com/images/I/img2._AC_SL1000_.jpg"},
{"url":"https://m.media-amazon.com/images/I/img3._AC_SL750_.jpg"},
{"url":"https://m.media-amazon.com/images/I/img4._AC_SL500_.jpg"},
{"url":"https://m.media-amazon.com/images/I/img5._AC_SL500_.jpg"}
]}}};
</script></head><body></body></html>`

func TestExtract_ScopedGalleryRankedAndCapped(t *testing.T) {
	e := newTestExtractor(nil)

	got := e.Extract(galleryPage, "B0TESTASIN", 3)
	require.Len(t, got, 3)

	wantURLs := []string{
		"https://m.media-amazon.com/images/I/img1._AC_SL1500_.jpg",
		"https://m.media-amazon.com/images/I/img2._AC_SL1500_.jpg",
		"https://m.media-amazon.com/images/I/img3._AC_SL1500_.jpg",
	}
	wantTiers := []int{4, 3, 2}
	for i, c := range got {
		assert.Equal(t, wantURLs[i], c.CleanedURL)
		assert.Equal(t, wantTiers[i], c.ResolutionTier)
		assert.Equal(t, models.MediaKindImage, c.Kind)
	}
}

func TestExtract_UnboundedReturnsAll(t *testing.T) {
	e := newTestExtractor(nil)
	got := e.Extract(galleryPage, "B0TESTASIN", 0)
	assert.Len(t, got, 5)
}

func TestExtract_Deterministic(t *testing.T) {
	e := newTestExtractor(nil)
	first := e.Extract(galleryPage, "B0TESTASIN", 0)
	second := e.Extract(galleryPage, "B0TESTASIN", 0)
	assert.Equal(t, first, second)
}

func TestExtract_DedupeAcrossResolutions(t *testing.T) {
	page := `{"B0TESTASIN":{"colorImages":{"initial":[
{"url":"https://m.media-amazon.com/images/I/same._AC_SL500_.jpg"},
{"url":"https://m.media-amazon.com/images/I/same._AC_SL1500_.jpg"}
]}}}`
	e := newTestExtractor(nil)

	got := e.Extract(page, "B0TESTASIN", 0)
	require.Len(t, got, 1)
	assert.Equal(t, "https://m.media-amazon.com/images/I/same._AC_SL1500_.jpg", got[0].CleanedURL)
	// First sighting wins, so the raw URL and tier come from the SL500 form.
	assert.Contains(t, got[0].RawURL, "_AC_SL500_")
	assert.Equal(t, 1, got[0].ResolutionTier)
}

func TestExtract_BroadTierUsedWhenScopedMisses(t *testing.T) {
	e := newTestExtractor(nil)
	got := e.Extract(galleryPage, "B0DIFFERENT", 0)
	assert.Len(t, got, 5, "broad gallery parse should recover the candidates without the identifier anchor")
}

func TestExtract_BroadTierSkippedWhenScopedHits(t *testing.T) {
	page := galleryPage + `
<script>var other = {"mainImageUrl":"https://m.media-amazon.com/images/I/other._AC_SL1500_.jpg"};</script>`
	e := newTestExtractor(nil)

	got := e.Extract(page, "B0TESTASIN", 0)
	require.Len(t, got, 5)
	for _, c := range got {
		assert.NotContains(t, c.CleanedURL, "other")
	}
}

func TestExtract_ExcludesRelatedProductMedia(t *testing.T) {
	page := `<script>var x = {
"mainImageUrl":"https://m.media-amazon.com/images/I/main1._AC_SL1000_.jpg",
"hiResImage":"https://m.media-amazon.com/images/I/spons__CR42._AC_SL1500_.jpg"
};</script>`
	e := newTestExtractor(nil)

	got := e.Extract(page, "B0TESTASIN", 0)
	require.Len(t, got, 1)
	assert.Equal(t, "https://m.media-amazon.com/images/I/main1._AC_SL1500_.jpg", got[0].CleanedURL)
}

func TestExtract_ExclusionVocabulary(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"customer review crop", "https://m.media-amazon.com/images/I/a__CR12._AC_SL1500_.jpg"},
		{"search result size", "https://m.media-amazon.com/images/I/b__AC_SR200._AC_SL1500_.jpg"},
		{"user content", "https://m.media-amazon.com/images/I/c_UC100._AC_SL1000_.jpg"},
		{"sidebar thumbnail", "https://m.media-amazon.com/images/I/d__AC_SY300._AC_SL1500_.jpg"},
		{"aplus media", "https://m.media-amazon.com/images/I/aplus-media-library/e._AC_SL1500_.jpg"},
		{"related path", "https://m.media-amazon.com/images/I/related-products/f._AC_SL1500_.jpg"},
	}

	e := newTestExtractor(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := `{"mainImageUrl":"` + tt.url + `"}`
			assert.Empty(t, e.Extract(page, "", 0))
		})
	}
}

func TestExtract_ExtraExcludedPatterns(t *testing.T) {
	extra := []*regexp.Regexp{regexp.MustCompile(`badseller`)}
	e := newTestExtractor(extra)

	page := `{"mainImageUrl":"https://m.media-amazon.com/images/I/badseller1._AC_SL1500_.jpg"}`
	assert.Empty(t, e.Extract(page, "", 0))
}

func TestExtract_RejectsNonStandardURLs(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{"off-CDN host", `{"mainImageUrl":"https://cdn.example.com/images/I/a._AC_SL1500_.jpg"}`},
		{"no size token", `{"mainImageUrl":"https://m.media-amazon.com/images/I/a.jpg"}`},
		{"non-standard size", `{"mainImageUrl":"https://m.media-amazon.com/images/I/a._AC_SL300_.jpg"}`},
	}

	e := newTestExtractor(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, e.Extract(tt.page, "", 0))
		})
	}
}

func TestExtract_DomScopedImageBlock(t *testing.T) {
	page := `<html><body>
<div id="imageBlock"><img src="https://m.media-amazon.com/images/I/dom1._AC_SL500_.jpg" data-old-hires="https://m.media-amazon.com/images/I/dom2._AC_SL1500_.jpg"/></div>
<img src='https://m.media-amazon.com/images/I/outside._AC_SL1500_.jpg'/>
</body></html>`
	e := newTestExtractor(nil)

	got := e.Extract(page, "", 0)
	require.Len(t, got, 2)
	// Ranked by resolution tier, so the hi-res attribute comes first.
	assert.Equal(t, "https://m.media-amazon.com/images/I/dom2._AC_SL1500_.jpg", got[0].CleanedURL)
	assert.Equal(t, "https://m.media-amazon.com/images/I/dom1._AC_SL1500_.jpg", got[1].CleanedURL)
	for _, c := range got {
		assert.NotContains(t, c.CleanedURL, "outside")
	}
}

func TestExtract_ProximityWindow(t *testing.T) {
	near := `{"B0PROXTEST9":{"colorImages":{"initial":[
{"url":"https://m.media-amazon.com/images/I/scoped1._AC_SL500_.jpg"}
]}}}
"imageBlockVariations":{"url":"https://m.media-amazon.com/images/I/prox1._AC_SL1000_.jpg"}`
	far := strings.Repeat("x", 6000) +
		`"imageBlockVariations":{"url":"https://m.media-amazon.com/images/I/far1._AC_SL1000_.jpg"}`
	e := newTestExtractor(nil)

	got := e.Extract(near+far, "B0PROXTEST9", 0)
	require.Len(t, got, 2)
	urls := []string{got[0].CleanedURL, got[1].CleanedURL}
	assert.Contains(t, urls, "https://m.media-amazon.com/images/I/scoped1._AC_SL1500_.jpg")
	assert.Contains(t, urls, "https://m.media-amazon.com/images/I/prox1._AC_SL1500_.jpg")
}

func TestExtract_FallbackTier(t *testing.T) {
	page := `<html><body><div id="imageBlock"><a href='https://m.media-amazon.com/images/I/fb1._AC_SL500_.jpg'>photo</a></div></body></html>`
	e := newTestExtractor(nil)

	got := e.Extract(page, "B0TESTASIN", 0)
	require.Len(t, got, 1)
	assert.Equal(t, "https://m.media-amazon.com/images/I/fb1._AC_SL1500_.jpg", got[0].CleanedURL)
}

func TestExtract_EmptyPage(t *testing.T) {
	e := newTestExtractor(nil)
	assert.Empty(t, e.Extract("", "B0TESTASIN", 10))
}
