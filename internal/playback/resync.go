package playback

import "math"

// Drift tolerances. Resyncing an element is itself a visible stutter, so
// during playback we accept up to 300ms of drift before correcting;
// while paused or scrubbing the frame on screen must match the playhead,
// so the tolerance tightens to roughly one frame at 30fps.
const (
	PlayingResyncTolerance = 0.3
	PausedResyncTolerance  = 1.0 / 30.0
)

// ResyncTolerance returns the drift tolerance for the playback state.
func ResyncTolerance(playing bool) float64 {
	if playing {
		return PlayingResyncTolerance
	}
	return PausedResyncTolerance
}

// NeedsResync reports whether an element whose own clock reads actual
// must be corrected to the expected media-local time. Pure so it can be
// tested without real media elements.
func NeedsResync(expected, actual, tolerance float64) bool {
	return math.Abs(expected-actual) > tolerance
}
