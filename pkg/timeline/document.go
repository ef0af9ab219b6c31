package timeline

import (
	"encoding/json"
	"fmt"
)

// DocumentVersion is the serialization format version written into every
// exported document.
const DocumentVersion = 1

// Document is the plain structured form of an EditorState used at the
// persistence boundary. Asset content is addressed by opaque storage
// paths; the storage collaborator resolves them back to bytes.
type Document struct {
	Version     int                   `json:"version"`
	Assets      []Asset               `json:"assets"`
	Clips       []Clip                `json:"clips"`
	Tracks      map[int]TrackSettings `json:"tracks"`
	ZoomLevel   float64               `json:"zoom_level"`
	AspectRatio string                `json:"aspect_ratio"`
	// MasterVolume is a pointer so an absent field defaults to full
	// gain while an explicit 0 (muted master) survives the round trip.
	MasterVolume *float64 `json:"master_volume,omitempty"`
}

// ToDocument serializes the structural state. Playhead, playback flag and
// selection are view state and intentionally not persisted.
func (s *EditorState) ToDocument() *Document {
	cp := s.Clone()
	mv := cp.MasterVolume
	return &Document{
		Version:      DocumentVersion,
		Assets:       cp.Assets,
		Clips:        cp.Clips,
		Tracks:       cp.Tracks,
		ZoomLevel:    cp.ZoomLevel,
		AspectRatio:  cp.AspectRatio,
		MasterVolume: &mv,
	}
}

// FromDocument rebuilds an EditorState from a persisted document. Clips
// referencing missing assets are retained; their ids come back in the
// warning list so the caller can surface the orphan condition.
func FromDocument(doc *Document) (*EditorState, []string, error) {
	if doc == nil {
		return nil, nil, fmt.Errorf("document is nil")
	}
	if doc.Version > DocumentVersion {
		return nil, nil, fmt.Errorf("unsupported document version %d", doc.Version)
	}

	s := NewEditorState()
	s.Assets = make([]Asset, len(doc.Assets))
	copy(s.Assets, doc.Assets)
	s.Clips = make([]Clip, 0, len(doc.Clips))
	for _, c := range doc.Clips {
		if !c.Validate(s.AssetByID(c.AssetID)) {
			return nil, nil, fmt.Errorf("clip %s violates timeline invariants", c.ID)
		}
		s.Clips = append(s.Clips, c)
	}
	if doc.Tracks != nil {
		s.Tracks = make(map[int]TrackSettings, len(doc.Tracks))
		for k, v := range doc.Tracks {
			s.Tracks[k] = v
		}
	}
	if doc.ZoomLevel != 0 {
		s.ZoomLevel = ClampZoom(doc.ZoomLevel)
	}
	if doc.AspectRatio != "" {
		s.AspectRatio = doc.AspectRatio
	}
	if doc.MasterVolume != nil {
		mv := *doc.MasterVolume
		if mv < 0 {
			mv = 0
		}
		if mv > 1 {
			mv = 1
		}
		s.MasterVolume = mv
	}
	s.RecomputeDuration()

	return s, s.OrphanClipIDs(), nil
}

// MarshalDocument encodes a document as JSON.
func MarshalDocument(doc *Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}

// UnmarshalDocument decodes a document from JSON.
func UnmarshalDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &doc, nil
}
