package timeline

// Clip limits
const (
	// MinClipDuration is the floor below which a resize is rejected.
	MinClipDuration = 0.1

	MinSpeed = 0.25
	MaxSpeed = 4.0
)

// Clip is a placement of one asset on the timeline. It references its
// asset by id only (weak reference, lookup via AssetByID), never by
// pointer, so asset removal cannot dangle.
type Clip struct {
	ID         string `json:"id"`
	AssetID    string `json:"asset_id"`
	TrackIndex int    `json:"track_index"`
	// StartTime and Duration are timeline seconds; Duration is the span
	// visible on the timeline, not the asset content length.
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
	// TrimStart and TrimEnd are seconds trimmed from the asset's own
	// content at either end.
	TrimStart float64 `json:"trim_start"`
	TrimEnd   float64 `json:"trim_end"`
	// Volume is per-clip gain in [0,1], default 1.
	Volume float64 `json:"volume"`
	// Speed is the playback rate multiplier in [0.25,4], default 1.
	Speed              float64 `json:"speed"`
	TransitionIn       string  `json:"transition_in,omitempty"`
	TransitionDuration float64 `json:"transition_duration,omitempty"`
}

// EndTime returns the timeline time at which the clip ends.
func (c *Clip) EndTime() float64 {
	return c.StartTime + c.Duration
}

// ContainsTime reports whether timeline time t falls inside the clip's
// half-open span [StartTime, StartTime+Duration).
func (c *Clip) ContainsTime(t float64) bool {
	return t >= c.StartTime && t < c.EndTime()
}

// LocalTime maps timeline time t to the clip's asset-local playback time:
// t - StartTime + TrimStart. Valid while the clip is active at t.
func (c *Clip) LocalTime(t float64) float64 {
	return t - c.StartTime + c.TrimStart
}

// EffectiveVolume returns the clip volume with the default applied.
func (c *Clip) EffectiveVolume() float64 {
	if c.Volume < 0 {
		return 0
	}
	if c.Volume > 1 {
		return 1
	}
	return c.Volume
}

// EffectiveSpeed returns the clip speed clamped to the allowed range,
// with the default of 1 applied when unset.
func (c *Clip) EffectiveSpeed() float64 {
	if c.Speed == 0 {
		return 1
	}
	if c.Speed < MinSpeed {
		return MinSpeed
	}
	if c.Speed > MaxSpeed {
		return MaxSpeed
	}
	return c.Speed
}

// Validate checks the clip's own invariants against its asset (which may
// be nil when the asset is unknown). It returns false when the clip
// would violate them.
func (c *Clip) Validate(asset *Asset) bool {
	if c.Duration <= 0 || c.TrackIndex < 0 || c.StartTime < 0 {
		return false
	}
	if c.TrimStart < 0 || c.TrimEnd < 0 {
		return false
	}
	if asset != nil && asset.HasKnownDuration() {
		if c.TrimStart+c.TrimEnd > *asset.Duration {
			return false
		}
	}
	return true
}
