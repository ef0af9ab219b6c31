package timeline

// AssetKind identifies the media kind of an asset. The set is closed:
// the compositor and export renderer switch over it exhaustively.
type AssetKind string

// AssetKind constants
const (
	AssetKindVideo AssetKind = "video"
	AssetKindAudio AssetKind = "audio"
	AssetKindImage AssetKind = "image"
)

// Valid reports whether the kind is one of the known media kinds.
func (k AssetKind) Valid() bool {
	switch k {
	case AssetKindVideo, AssetKindAudio, AssetKindImage:
		return true
	}
	return false
}

// Asset represents an imported media source, independent of its placement
// on the timeline. Assets are immutable once created; removing an asset
// cascades to delete all clips referencing it.
type Asset struct {
	ID   string    `json:"id"`
	Kind AssetKind `json:"kind"`
	Name string    `json:"name"`
	// ContentPath is an opaque storage path supplied by the ingestion
	// collaborator. The engine never resolves it to bytes itself.
	ContentPath string `json:"content_path"`
	// Duration is the asset's own content duration in seconds, when known.
	// Images and not-yet-probed sources leave it nil.
	Duration  *float64 `json:"duration,omitempty"`
	Thumbnail string   `json:"thumbnail,omitempty"`
}

// HasKnownDuration reports whether the asset's content duration is known.
func (a *Asset) HasKnownDuration() bool {
	return a.Duration != nil && *a.Duration > 0
}
