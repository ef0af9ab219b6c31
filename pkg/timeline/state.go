package timeline

import "sort"

// Zoom limits in view pixels per second.
const (
	MinZoom = 10.0
	MaxZoom = 500.0
)

// MinTrackCount is the user-independent minimum number of display lanes.
const MinTrackCount = 3

// EditorState is the aggregate root of a project's timeline. It is plain
// data: all mutation goes through the edit engine, which recomputes
// Duration after every structural change.
type EditorState struct {
	Assets          []Asset               `json:"assets"`
	Clips           []Clip                `json:"clips"`
	Playhead        float64               `json:"playhead"`
	IsPlaying       bool                  `json:"is_playing"`
	SelectedClipIDs []string              `json:"selected_clip_ids"`
	ZoomLevel       float64               `json:"zoom_level"`
	AspectRatio     string                `json:"aspect_ratio"`
	MasterVolume    float64               `json:"master_volume"`
	Tracks          map[int]TrackSettings `json:"tracks"`
	// Duration is derived: max over clips of StartTime+Duration.
	Duration float64 `json:"duration"`
}

// NewEditorState returns an empty state with defaults applied.
func NewEditorState() *EditorState {
	return &EditorState{
		Assets:       []Asset{},
		Clips:        []Clip{},
		ZoomLevel:    50,
		AspectRatio:  "16:9",
		MasterVolume: 1,
		Tracks:       map[int]TrackSettings{},
	}
}

// AssetByID looks up an asset by id. Returns nil when the id is unknown,
// which is the explicit orphan state for clips whose asset was removed.
func (s *EditorState) AssetByID(id string) *Asset {
	for i := range s.Assets {
		if s.Assets[i].ID == id {
			return &s.Assets[i]
		}
	}
	return nil
}

// ClipByID looks up a clip by id.
func (s *EditorState) ClipByID(id string) *Clip {
	for i := range s.Clips {
		if s.Clips[i].ID == id {
			return &s.Clips[i]
		}
	}
	return nil
}

// ClipsAtTime returns the clips whose half-open span contains t, ordered
// by ascending track index so compositing order is deterministic.
func (s *EditorState) ClipsAtTime(t float64) []Clip {
	var active []Clip
	for i := range s.Clips {
		if s.Clips[i].ContainsTime(t) {
			active = append(active, s.Clips[i])
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].TrackIndex < active[j].TrackIndex
	})
	return active
}

// RecomputeDuration recalculates the derived timeline duration from the
// current clips. Must be called after every structural mutation.
func (s *EditorState) RecomputeDuration() {
	max := 0.0
	for i := range s.Clips {
		if end := s.Clips[i].EndTime(); end > max {
			max = end
		}
	}
	s.Duration = max
	if s.Playhead > s.Duration {
		s.Playhead = s.Duration
	}
	if s.Playhead < 0 {
		s.Playhead = 0
	}
}

// TrackSettingsFor returns the settings for a lane, falling back to the
// defaults for untouched lanes.
func (s *EditorState) TrackSettingsFor(index int) TrackSettings {
	if ts, ok := s.Tracks[index]; ok {
		return ts
	}
	return DefaultTrackSettings()
}

// TrackCount returns the number of display lanes: at least the requested
// minimum, and always one empty landing lane below the lowest used one.
func (s *EditorState) TrackCount(requestedMinimum int) int {
	min := requestedMinimum
	if min < MinTrackCount {
		min = MinTrackCount
	}
	highest := -1
	for i := range s.Clips {
		if s.Clips[i].TrackIndex > highest {
			highest = s.Clips[i].TrackIndex
		}
	}
	if highest+2 > min {
		return highest + 2
	}
	return min
}

// EffectiveVolume composes the gain for a clip at any instant:
// master * track * clip. A muted track composes to 0.
func (s *EditorState) EffectiveVolume(c *Clip) float64 {
	ts := s.TrackSettingsFor(c.TrackIndex)
	if ts.Muted {
		return 0
	}
	return s.MasterVolume * ts.Volume * c.EffectiveVolume()
}

// IsSelected reports whether a clip id is part of the current selection.
func (s *EditorState) IsSelected(id string) bool {
	for _, sid := range s.SelectedClipIDs {
		if sid == id {
			return true
		}
	}
	return false
}

// ClampZoom bounds a zoom level to the allowed pixels-per-second range.
func ClampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// ClampPlayhead bounds a playhead position to [0, duration].
func ClampPlayhead(pos, duration float64) float64 {
	if pos < 0 {
		return 0
	}
	if pos > duration {
		return duration
	}
	return pos
}

// Clone returns a deep copy of the state. History snapshots rely on the
// copy sharing nothing mutable with the original.
func (s *EditorState) Clone() *EditorState {
	cp := *s
	cp.Assets = make([]Asset, len(s.Assets))
	copy(cp.Assets, s.Assets)
	cp.Clips = make([]Clip, len(s.Clips))
	copy(cp.Clips, s.Clips)
	cp.SelectedClipIDs = make([]string, len(s.SelectedClipIDs))
	copy(cp.SelectedClipIDs, s.SelectedClipIDs)
	cp.Tracks = make(map[int]TrackSettings, len(s.Tracks))
	for k, v := range s.Tracks {
		cp.Tracks[k] = v
	}
	return &cp
}

// OrphanClipIDs returns the ids of clips whose asset id no longer
// resolves. Orphan clips are retained and rendered as placeholders; the
// caller surfaces this list as warnings.
func (s *EditorState) OrphanClipIDs() []string {
	var orphans []string
	for i := range s.Clips {
		if s.AssetByID(s.Clips[i].AssetID) == nil {
			orphans = append(orphans, s.Clips[i].ID)
		}
	}
	return orphans
}
