package edit

import (
	"math"

	"github.com/cutlinehq/cutline/pkg/timeline"
)

// DefaultSnapThresholdPx is the snap capture radius in screen pixels.
// The radius is constant on screen, so the equivalent time-space
// tolerance shrinks as the zoom level (pixels per second) grows.
const DefaultSnapThresholdPx = 10.0

// SnapCandidates collects the snap points for a move or resize: timeline
// zero, the playhead, and every edge of clips not being moved.
func SnapCandidates(s *timeline.EditorState, movingIDs map[string]bool) []float64 {
	candidates := []float64{0, s.Playhead}
	for i := range s.Clips {
		c := &s.Clips[i]
		if movingIDs[c.ID] {
			continue
		}
		candidates = append(candidates, c.StartTime, c.EndTime())
	}
	return candidates
}

// SnapTime snaps t to the nearest candidate within the pixel-space
// threshold at the given zoom. The second return reports whether a snap
// occurred. A zero or negative zoom disables snapping outright.
func SnapTime(t float64, candidates []float64, zoom, thresholdPx float64) (float64, bool) {
	if zoom <= 0 {
		return t, false
	}
	tolerance := thresholdPx / zoom

	best := t
	bestDist := math.Inf(1)
	for _, cand := range candidates {
		if d := math.Abs(cand - t); d <= tolerance && d < bestDist {
			best = cand
			bestDist = d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}
