package timeline

// TrackSettings holds per-lane playback settings. Tracks themselves are
// implicit from clip.TrackIndex; settings exist only for lanes the user
// has touched, everything else gets DefaultTrackSettings.
type TrackSettings struct {
	Volume  float64 `json:"volume"`
	Speed   float64 `json:"speed"`
	Visible bool    `json:"visible"`
	Muted   bool    `json:"muted"`
}

// DefaultTrackSettings returns the settings applied to an untouched lane.
func DefaultTrackSettings() TrackSettings {
	return TrackSettings{Volume: 1, Speed: 1, Visible: true, Muted: false}
}

// EffectiveSpeed returns the track speed clamped to the allowed range.
func (t TrackSettings) EffectiveSpeed() float64 {
	if t.Speed == 0 {
		return 1
	}
	if t.Speed < MinSpeed {
		return MinSpeed
	}
	if t.Speed > MaxSpeed {
		return MaxSpeed
	}
	return t.Speed
}
