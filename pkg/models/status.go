package models

// AssetStatus represents the download status of a media URL in the state store
type AssetStatus string

const (
	AssetStatusUnset    AssetStatus = ""          // Zero value = unset/unknown
	AssetStatusSuccess  AssetStatus = "success"   // Asset downloaded successfully
	AssetStatusFailure  AssetStatus = "failure"   // Asset download failed
	AssetStatusNotFound AssetStatus = "not_found" // Asset not in store
	AssetStatusDBError  AssetStatus = "db_error"  // Store error occurred
)

// String implements fmt.Stringer for logging
func (s AssetStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known stored value
func (s AssetStatus) IsValid() bool {
	switch s {
	case AssetStatusSuccess, AssetStatusFailure:
		return true
	}
	return false
}
