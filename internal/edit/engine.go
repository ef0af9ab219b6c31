// Package edit implements the editing-operation engine: every mutation
// of the timeline model goes through an Engine, which validates
// invariants, recomputes the derived duration and records a history
// snapshot before the call returns. Invariant-violating operations are
// rejected as no-ops with no history entry.
package edit

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cutlinehq/cutline/internal/history"
	"github.com/cutlinehq/cutline/internal/logging"
	"github.com/cutlinehq/cutline/internal/metrics"
	"github.com/cutlinehq/cutline/pkg/timeline"
)

// Engine errors
var (
	ErrAssetNotFound  = errors.New("asset not found")
	ErrClipNotFound   = errors.New("clip not found")
	ErrInvalidAsset   = errors.New("asset violates timeline invariants")
	ErrInvalidClip    = errors.New("clip violates timeline invariants")
	ErrNothingToPaste = errors.New("clipboard is empty")
	ErrNotVideoClip   = errors.New("clip does not reference a video asset")
)

// Config holds editing tunables.
type Config struct {
	SnapThresholdPx float64
	MinClipDuration float64
	HistoryCapacity int
}

// DefaultConfig returns the standard editing tunables.
func DefaultConfig() Config {
	return Config{
		SnapThresholdPx: DefaultSnapThresholdPx,
		MinClipDuration: timeline.MinClipDuration,
		HistoryCapacity: history.DefaultCapacity,
	}
}

// Engine owns an EditorState and serializes all mutation. Readers use
// Snapshot to observe a consistent copy: a tick never sees a
// half-applied edit.
type Engine struct {
	mu    sync.Mutex
	state *timeline.EditorState
	hist  *history.Manager
	// clipboard holds detached clip copies outside the undo history so
	// they survive across undo/redo.
	clipboard   []timeline.Clip
	snapEnabled bool
	cfg         Config
	log         *logging.Logger
}

// NewEngine creates an engine around an initial state.
func NewEngine(initial *timeline.EditorState, cfg Config, log *logging.Logger) *Engine {
	if initial == nil {
		initial = timeline.NewEditorState()
	}
	if cfg.SnapThresholdPx == 0 {
		cfg.SnapThresholdPx = DefaultSnapThresholdPx
	}
	if cfg.MinClipDuration == 0 {
		cfg.MinClipDuration = timeline.MinClipDuration
	}
	initial.RecomputeDuration()
	return &Engine{
		state:       initial,
		hist:        history.NewManager(initial, cfg.HistoryCapacity),
		snapEnabled: true,
		cfg:         cfg,
		log:         log,
	}
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() *timeline.EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// commit recomputes the derived duration and records a history entry.
// Callers hold e.mu and have already applied the mutation.
func (e *Engine) commit(op string) {
	e.state.RecomputeDuration()
	e.hist.Push(e.state)
	metrics.EditOperationsTotal.WithLabelValues(op).Inc()
	if e.log != nil {
		e.log.LogEditOperation(op, len(e.state.Clips), e.state.Duration)
	}
}

// AddAsset registers an imported media source and returns its id. The
// content itself has already been ingested by the asset boundary; the
// engine only records the reference.
func (e *Engine) AddAsset(asset timeline.Asset) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !asset.Kind.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidAsset, asset.Kind)
	}
	if asset.ID == "" {
		asset.ID = uuid.New().String()
	}
	e.state.Assets = append(e.state.Assets, asset)
	e.commit("add_asset")
	return asset.ID, nil
}

// RemoveAsset deletes an asset and cascades to every clip referencing
// it. Selection entries for cascaded clips are pruned.
func (e *Engine) RemoveAsset(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.AssetByID(id) == nil {
		return ErrAssetNotFound
	}

	assets := e.state.Assets[:0]
	for _, a := range e.state.Assets {
		if a.ID != id {
			assets = append(assets, a)
		}
	}
	e.state.Assets = assets

	removed := map[string]bool{}
	clips := e.state.Clips[:0]
	for _, c := range e.state.Clips {
		if c.AssetID == id {
			removed[c.ID] = true
			continue
		}
		clips = append(clips, c)
	}
	e.state.Clips = clips
	e.pruneSelection(removed)

	e.commit("remove_asset")
	return nil
}

// AddClipRequest describes a clip to place on the timeline. Volume is a
// pointer so an explicit 0 (a clip added already muted) is
// distinguishable from the field being absent, which defaults to full
// gain. Speed 0 means the default rate; 0 is never a valid speed.
type AddClipRequest struct {
	AssetID    string
	TrackIndex int
	StartTime  float64
	Duration   float64
	TrimStart  float64
	TrimEnd    float64
	Volume     *float64
	Speed      float64
}

// AddClip places an asset on the timeline and returns the clip id.
func (e *Engine) AddClip(req AddClipRequest) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	asset := e.state.AssetByID(req.AssetID)
	if asset == nil {
		return "", ErrAssetNotFound
	}
	clip := timeline.Clip{
		ID:         uuid.New().String(),
		AssetID:    req.AssetID,
		TrackIndex: req.TrackIndex,
		StartTime:  req.StartTime,
		Duration:   req.Duration,
		TrimStart:  req.TrimStart,
		TrimEnd:    req.TrimEnd,
		Volume:     1,
		Speed:      req.Speed,
	}
	if req.Volume != nil {
		clip.Volume = *req.Volume
	}
	if clip.Speed == 0 {
		clip.Speed = 1
	}
	if !clip.Validate(asset) {
		return "", ErrInvalidClip
	}
	e.state.Clips = append(e.state.Clips, clip)
	e.commit("add_clip")
	return clip.ID, nil
}

// RemoveClip deletes a single clip.
func (e *Engine) RemoveClip(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.ClipByID(id) == nil {
		return ErrClipNotFound
	}
	e.removeClipsLocked(map[string]bool{id: true})
	e.commit("remove_clip")
	return nil
}

// ClipPatch carries the fields an UpdateClip call may change. Nil fields
// are left untouched.
type ClipPatch struct {
	StartTime  *float64
	Duration   *float64
	TrimStart  *float64
	TrimEnd    *float64
	TrackIndex *int
	Volume     *float64
	Speed      *float64
}

func applyPatch(c timeline.Clip, p ClipPatch) timeline.Clip {
	if p.StartTime != nil {
		c.StartTime = *p.StartTime
	}
	if p.Duration != nil {
		c.Duration = *p.Duration
	}
	if p.TrimStart != nil {
		c.TrimStart = *p.TrimStart
	}
	if p.TrimEnd != nil {
		c.TrimEnd = *p.TrimEnd
	}
	if p.TrackIndex != nil {
		c.TrackIndex = *p.TrackIndex
	}
	if p.Volume != nil {
		c.Volume = *p.Volume
	}
	if p.Speed != nil {
		c.Speed = *p.Speed
	}
	return c
}

// UpdateClip applies a partial patch to one clip. The patched clip must
// still satisfy all invariants or the call is rejected without effect.
func (e *Engine) UpdateClip(id string, patch ClipPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	clip := e.state.ClipByID(id)
	if clip == nil {
		return ErrClipNotFound
	}
	updated := applyPatch(*clip, patch)
	if !updated.Validate(e.state.AssetByID(updated.AssetID)) {
		return ErrInvalidClip
	}
	*clip = updated
	e.commit("update_clip")
	return nil
}

// UpdateClips applies a computed patch per clip in a single committed
// edit. Every patched clip must validate or the whole call is rejected;
// a coherent multi-clip drag needs all-or-nothing semantics.
func (e *Engine) UpdateClips(ids []string, fn func(timeline.Clip) ClipPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	updated := make([]timeline.Clip, 0, len(ids))
	for _, id := range ids {
		clip := e.state.ClipByID(id)
		if clip == nil {
			return ErrClipNotFound
		}
		next := applyPatch(*clip, fn(*clip))
		if !next.Validate(e.state.AssetByID(next.AssetID)) {
			return ErrInvalidClip
		}
		updated = append(updated, next)
	}
	for _, next := range updated {
		*e.state.ClipByID(next.ID) = next
	}
	e.commit("update_clips")
	return nil
}

// SelectClip selects a clip, either replacing the selection or, with
// multiSelect, toggling membership. Selection is view state: no history
// entry is recorded.
func (e *Engine) SelectClip(id string, multiSelect bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.ClipByID(id) == nil {
		return ErrClipNotFound
	}
	if !multiSelect {
		e.state.SelectedClipIDs = []string{id}
		return nil
	}
	for i, sid := range e.state.SelectedClipIDs {
		if sid == id {
			e.state.SelectedClipIDs = append(e.state.SelectedClipIDs[:i], e.state.SelectedClipIDs[i+1:]...)
			return nil
		}
	}
	e.state.SelectedClipIDs = append(e.state.SelectedClipIDs, id)
	return nil
}

// DeselectAll clears the selection.
func (e *Engine) DeselectAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.SelectedClipIDs = nil
}

// DeleteSelected removes every selected clip in one committed edit.
func (e *Engine) DeleteSelected() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.state.SelectedClipIDs) == 0 {
		return 0
	}
	doomed := map[string]bool{}
	for _, id := range e.state.SelectedClipIDs {
		doomed[id] = true
	}
	removed := e.removeClipsLocked(doomed)
	if removed > 0 {
		e.commit("delete_selected")
	}
	return removed
}

// SetTrackSettings replaces the settings for a lane.
func (e *Engine) SetTrackSettings(index int, ts timeline.TrackSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 {
		return fmt.Errorf("%w: negative track index", ErrInvalidClip)
	}
	e.state.Tracks[index] = ts
	e.commit("set_track_settings")
	return nil
}

// SetZoom sets the view pixels-per-second, clamped to the allowed range.
// Zoom is view state and not recorded in history.
func (e *Engine) SetZoom(z float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.ZoomLevel = timeline.ClampZoom(z)
}

// SetAspectRatio sets the output aspect ratio.
func (e *Engine) SetAspectRatio(ratio string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.AspectRatio = ratio
}

// SetMasterVolume sets the master gain in [0,1].
func (e *Engine) SetMasterVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.state.MasterVolume = v
}

// SetPlayhead moves the playhead, clamped to [0, duration]. View state.
func (e *Engine) SetPlayhead(pos float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Playhead = timeline.ClampPlayhead(pos, e.state.Duration)
	return e.state.Playhead
}

// ToggleSnap flips snap-to-edge behavior and returns the new value.
func (e *Engine) ToggleSnap() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapEnabled = !e.snapEnabled
	return e.snapEnabled
}

// SnapEnabled reports whether snapping is currently active.
func (e *Engine) SnapEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapEnabled
}

// Undo restores the previous structural snapshot. Returns false at the
// bottom of the stack.
func (e *Engine) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok := e.hist.Undo(e.state)
	if ok {
		metrics.UndoOperationsTotal.Inc()
	}
	return ok
}

// Redo reapplies the next structural snapshot. Returns false at the top
// of the stack.
func (e *Engine) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok := e.hist.Redo(e.state)
	if ok {
		metrics.RedoOperationsTotal.Inc()
	}
	return ok
}

// removeClipsLocked deletes the given clips and prunes selection.
// Callers hold e.mu.
func (e *Engine) removeClipsLocked(ids map[string]bool) int {
	removed := 0
	clips := e.state.Clips[:0]
	for _, c := range e.state.Clips {
		if ids[c.ID] {
			removed++
			continue
		}
		clips = append(clips, c)
	}
	e.state.Clips = clips
	e.pruneSelection(ids)
	return removed
}

func (e *Engine) pruneSelection(removed map[string]bool) {
	kept := e.state.SelectedClipIDs[:0]
	for _, id := range e.state.SelectedClipIDs {
		if !removed[id] {
			kept = append(kept, id)
		}
	}
	e.state.SelectedClipIDs = kept
}
