package edit

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cutlinehq/cutline/pkg/timeline"
)

// SplitAtPlayhead splits every selected clip whose span contains the
// playhead into two clips. The left clip keeps its id and is shortened
// to playhead-start; the right clip gets a new id starting at the
// playhead with trimStart advanced by the left duration. Clips fully
// before or after the playhead, or touched exactly at an edge, are left
// alone. Returns the ids of the newly created right-hand clips.
func (e *Engine) SplitAtPlayhead() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	playhead := e.state.Playhead
	var created []string
	for _, id := range e.state.SelectedClipIDs {
		clip := e.state.ClipByID(id)
		if clip == nil {
			continue
		}
		// Edge hits are no-ops: a split there would mint a zero-length clip.
		if playhead <= clip.StartTime || playhead >= clip.EndTime() {
			continue
		}

		leftDuration := playhead - clip.StartTime
		right := *clip
		right.ID = uuid.New().String()
		right.StartTime = playhead
		right.Duration = clip.Duration - leftDuration
		right.TrimStart = clip.TrimStart + leftDuration

		clip.Duration = leftDuration

		e.state.Clips = append(e.state.Clips, right)
		created = append(created, right.ID)
	}

	if len(created) > 0 {
		e.commit("split_at_playhead")
	}
	return created
}

// DuplicateClip appends a copy of a clip immediately after the
// original's end on the same track and returns the new id.
func (e *Engine) DuplicateClip(id string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clip := e.state.ClipByID(id)
	if clip == nil {
		return "", ErrClipNotFound
	}

	dup := *clip
	dup.ID = uuid.New().String()
	dup.StartTime = clip.EndTime()
	e.state.Clips = append(e.state.Clips, dup)

	e.commit("duplicate_clip")
	return dup.ID, nil
}

// SplitAudioFromVideo detaches the audio of a video clip: it registers a
// derived audio-only asset pointing at the same source, places a new
// audio clip one track below the original, and zeroes the original
// clip's volume. The original is muted rather than deleted so the video
// remains intact. Returns the new audio clip id.
func (e *Engine) SplitAudioFromVideo(id string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clip := e.state.ClipByID(id)
	if clip == nil {
		return "", ErrClipNotFound
	}
	asset := e.state.AssetByID(clip.AssetID)
	if asset == nil {
		return "", ErrAssetNotFound
	}
	if asset.Kind != timeline.AssetKindVideo {
		return "", ErrNotVideoClip
	}

	audioAsset := timeline.Asset{
		ID:          uuid.New().String(),
		Kind:        timeline.AssetKindAudio,
		Name:        fmt.Sprintf("%s (audio)", asset.Name),
		ContentPath: asset.ContentPath,
		Duration:    asset.Duration,
	}
	e.state.Assets = append(e.state.Assets, audioAsset)

	audioClip := *clip
	audioClip.ID = uuid.New().String()
	audioClip.AssetID = audioAsset.ID
	audioClip.TrackIndex = clip.TrackIndex + 1
	audioClip.Volume = clip.EffectiveVolume()

	// Mute through the pointer before the append below can reallocate
	// the clip slice out from under it.
	clip.Volume = 0
	e.state.Clips = append(e.state.Clips, audioClip)

	e.commit("split_audio_from_video")
	return audioClip.ID, nil
}

// MoveSelected performs a multi-clip drag. The deltas are computed by
// the caller from the dragged clip's displacement from its drag-start
// position; every selected clip moves by the same time and track delta,
// with start times and destination tracks clamped at zero. When the
// dragged clip is not part of the selection it moves alone. The dragged
// clip's landing start is snapped (unless bypassSnap, the held-modifier
// path) and the snap adjustment is folded into the shared delta.
func (e *Engine) MoveSelected(draggedID string, deltaTime float64, deltaTrack int, bypassSnap bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	dragged := e.state.ClipByID(draggedID)
	if dragged == nil {
		return ErrClipNotFound
	}

	moving := map[string]bool{draggedID: true}
	if e.state.IsSelected(draggedID) {
		for _, id := range e.state.SelectedClipIDs {
			moving[id] = true
		}
	}

	if e.snapEnabled && !bypassSnap {
		candidates := SnapCandidates(e.state, moving)
		target := dragged.StartTime + deltaTime
		if snapped, ok := SnapTime(target, candidates, e.state.ZoomLevel, e.cfg.SnapThresholdPx); ok {
			deltaTime = snapped - dragged.StartTime
		}
		// Clip ends snap too: the nearer capture wins.
		endTarget := dragged.EndTime() + deltaTime
		if snapped, ok := SnapTime(endTarget, candidates, e.state.ZoomLevel, e.cfg.SnapThresholdPx); ok {
			deltaTime = snapped - dragged.EndTime()
		}
	}

	for id := range moving {
		clip := e.state.ClipByID(id)
		if clip == nil {
			return ErrClipNotFound
		}
		newStart := clip.StartTime + deltaTime
		if newStart < 0 {
			newStart = 0
		}
		newTrack := clip.TrackIndex + deltaTrack
		if newTrack < 0 {
			newTrack = 0
		}
		clip.StartTime = newStart
		clip.TrackIndex = newTrack
	}

	e.commit("move_selected")
	return nil
}

// ResizeEdge names which clip edge a resize drags.
type ResizeEdge int

// Resize edges
const (
	ResizeLeft ResizeEdge = iota
	ResizeRight
)

// ResizeClip drags one edge of a clip to a new timeline time. Resizing
// the left edge moves start time and trimStart together and shrinks the
// duration; the right edge adjusts duration and trimEnd. The duration
// never drops below the configured floor, trims never go negative, and
// the edge time snaps to nearby candidates unless bypassSnap.
func (e *Engine) ResizeClip(id string, edge ResizeEdge, newTime float64, bypassSnap bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	clip := e.state.ClipByID(id)
	if clip == nil {
		return ErrClipNotFound
	}

	if e.snapEnabled && !bypassSnap {
		candidates := SnapCandidates(e.state, map[string]bool{id: true})
		if snapped, ok := SnapTime(newTime, candidates, e.state.ZoomLevel, e.cfg.SnapThresholdPx); ok {
			newTime = snapped
		}
	}

	next := *clip
	switch edge {
	case ResizeLeft:
		delta := newTime - clip.StartTime
		// Clamp so duration keeps its floor and trimStart stays >= 0.
		if clip.Duration-delta < e.cfg.MinClipDuration {
			delta = clip.Duration - e.cfg.MinClipDuration
		}
		if clip.TrimStart+delta < 0 {
			delta = -clip.TrimStart
		}
		if clip.StartTime+delta < 0 {
			delta = -clip.StartTime
		}
		next.StartTime = clip.StartTime + delta
		next.TrimStart = clip.TrimStart + delta
		next.Duration = clip.Duration - delta
	case ResizeRight:
		newDuration := newTime - clip.StartTime
		if newDuration < e.cfg.MinClipDuration {
			newDuration = e.cfg.MinClipDuration
		}
		delta := newDuration - clip.Duration
		if clip.TrimEnd-delta < 0 {
			delta = clip.TrimEnd
			newDuration = clip.Duration + delta
		}
		next.Duration = newDuration
		next.TrimEnd = clip.TrimEnd - delta
	default:
		return fmt.Errorf("unknown resize edge %d", edge)
	}

	if !next.Validate(e.state.AssetByID(next.AssetID)) {
		return ErrInvalidClip
	}
	*clip = next
	e.commit("resize_clip")
	return nil
}

// NudgeSelected moves every selected clip by a fixed time delta, skipping
// the snap pass. Used by the keyboard nudge commands.
func (e *Engine) NudgeSelected(deltaTime float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.state.SelectedClipIDs) == 0 {
		return nil
	}
	for _, id := range e.state.SelectedClipIDs {
		clip := e.state.ClipByID(id)
		if clip == nil {
			continue
		}
		newStart := clip.StartTime + deltaTime
		if newStart < 0 {
			newStart = 0
		}
		clip.StartTime = newStart
	}
	e.commit("nudge_selected")
	return nil
}

// MoveSelectedToStart aligns the earliest selected clip with timeline
// zero, shifting the rest of the selection by the same amount.
func (e *Engine) MoveSelectedToStart() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	earliest := e.earliestSelectedStart()
	if earliest <= 0 {
		return nil
	}
	for _, id := range e.state.SelectedClipIDs {
		if clip := e.state.ClipByID(id); clip != nil {
			clip.StartTime -= earliest
		}
	}
	e.commit("move_selected_to_start")
	return nil
}

// MoveSelectedToEnd aligns the latest selected clip end with the end of
// the timeline, shifting the selection as a block.
func (e *Engine) MoveSelectedToEnd() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	latest := 0.0
	any := false
	for _, id := range e.state.SelectedClipIDs {
		if clip := e.state.ClipByID(id); clip != nil {
			any = true
			if clip.EndTime() > latest {
				latest = clip.EndTime()
			}
		}
	}
	if !any || latest >= e.state.Duration {
		return nil
	}
	shift := e.state.Duration - latest
	for _, id := range e.state.SelectedClipIDs {
		if clip := e.state.ClipByID(id); clip != nil {
			clip.StartTime += shift
		}
	}
	e.commit("move_selected_to_end")
	return nil
}

func (e *Engine) earliestSelectedStart() float64 {
	earliest := -1.0
	for _, id := range e.state.SelectedClipIDs {
		if clip := e.state.ClipByID(id); clip != nil {
			if earliest < 0 || clip.StartTime < earliest {
				earliest = clip.StartTime
			}
		}
	}
	return earliest
}
