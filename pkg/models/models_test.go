package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductDescriptor_CatalogFields(t *testing.T) {
	// Optional fields should survive a decode from typical catalog JSON,
	// where price may be numeric and reviews integral.
	raw := `{
		"asin": "B0TESTASIN",
		"name": "Travel Mug",
		"url": "https://www.amazon.com/dp/B0TESTASIN",
		"image_url": "https://m.media-amazon.com/images/I/abc._AC_SL500_.jpg",
		"price": 19.99,
		"rating": 4.5,
		"reviews": 1234
	}`

	var p ProductDescriptor
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	assert.Equal(t, "B0TESTASIN", p.ID)
	assert.Equal(t, "Travel Mug", p.Name)
	assert.Equal(t, json.Number("19.99"), p.Price)
	assert.Equal(t, json.Number("1234"), p.Reviews)
}

func TestProductMetadata_JSONRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second).UTC()
	meta := ProductMetadata{
		Name:         "Travel Mug",
		ASIN:         "B0TESTASIN",
		URL:          "https://www.amazon.com/dp/B0TESTASIN",
		Price:        json.Number("19.99"),
		DownloadedAt: now,
		ImagesCount:  3,
		VideosCount:  1,
	}

	data, err := json.Marshal(meta)
	require.NoError(t, err)

	var got ProductMetadata
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, meta, got)

	// downloaded_at must serialize as ISO-8601 / RFC 3339
	assert.Contains(t, string(data), now.Format(time.RFC3339))
}

func TestAssetDBEntry_OmitEmpty(t *testing.T) {
	entry := AssetDBEntry{
		Status:      AssetStatusFailure,
		ErrorType:   "HTTP_404",
		LastAttempt: time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	require.NoError(t, err)

	raw := string(data)
	assert.NotContains(t, raw, "local_path")
	assert.NotContains(t, raw, "content_hash")
	assert.Contains(t, raw, "error_type")
}

func TestProductMediaResult_AddError(t *testing.T) {
	var r ProductMediaResult
	r.AddError("first")
	r.AddError("second")
	assert.Equal(t, []string{"first", "second"}, r.Errors)
}

func TestAssetStatus(t *testing.T) {
	assert.Equal(t, "unset", AssetStatusUnset.String())
	assert.Equal(t, "success", AssetStatusSuccess.String())
	assert.True(t, AssetStatusSuccess.IsValid())
	assert.True(t, AssetStatusFailure.IsValid())
	assert.False(t, AssetStatusNotFound.IsValid())
	assert.False(t, AssetStatusDBError.IsValid())
}
