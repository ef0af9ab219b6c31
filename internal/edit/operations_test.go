package edit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutlinehq/cutline/pkg/timeline"
)

func TestMultiClipDragMovesSelectionByDelta(t *testing.T) {
	e, assetID := newTestEngine(t)
	a := addClip(t, e, assetID, 0, 1, 2)
	b := addClip(t, e, assetID, 1, 4, 2)
	c := addClip(t, e, assetID, 2, 8, 2)
	untouched := addClip(t, e, assetID, 3, 20, 2)

	require.NoError(t, e.SelectClip(a, false))
	require.NoError(t, e.SelectClip(b, true))
	require.NoError(t, e.SelectClip(c, true))

	require.NoError(t, e.MoveSelected(b, 2.5, 1, true))

	s := e.Snapshot()
	assert.Equal(t, 3.5, s.ClipByID(a).StartTime)
	assert.Equal(t, 6.5, s.ClipByID(b).StartTime)
	assert.Equal(t, 10.5, s.ClipByID(c).StartTime)
	assert.Equal(t, 1, s.ClipByID(a).TrackIndex)
	assert.Equal(t, 2, s.ClipByID(b).TrackIndex)
	assert.Equal(t, 3, s.ClipByID(c).TrackIndex)
	assert.Equal(t, 20.0, s.ClipByID(untouched).StartTime, "non-selected clips are untouched")
	assert.Equal(t, 3, s.ClipByID(untouched).TrackIndex)
}

func TestMultiClipDragClampsAtZero(t *testing.T) {
	e, assetID := newTestEngine(t)
	a := addClip(t, e, assetID, 0, 1, 2)
	b := addClip(t, e, assetID, 1, 5, 2)
	require.NoError(t, e.SelectClip(a, false))
	require.NoError(t, e.SelectClip(b, true))

	require.NoError(t, e.MoveSelected(a, -3, -2, true))

	s := e.Snapshot()
	assert.Equal(t, 0.0, s.ClipByID(a).StartTime, "start time clamps at 0")
	assert.Equal(t, 2.0, s.ClipByID(b).StartTime)
	assert.Equal(t, 0, s.ClipByID(a).TrackIndex, "track index clamps at 0")
	assert.Equal(t, 0, s.ClipByID(b).TrackIndex)
}

func TestDragUnselectedClipMovesAlone(t *testing.T) {
	e, assetID := newTestEngine(t)
	selected := addClip(t, e, assetID, 0, 0, 2)
	dragged := addClip(t, e, assetID, 1, 5, 2)
	require.NoError(t, e.SelectClip(selected, false))

	require.NoError(t, e.MoveSelected(dragged, 3, 0, true))

	s := e.Snapshot()
	assert.Equal(t, 0.0, s.ClipByID(selected).StartTime)
	assert.Equal(t, 8.0, s.ClipByID(dragged).StartTime)
}

func TestSnapToNeighborEdge(t *testing.T) {
	e, assetID := newTestEngine(t)
	// Anchor clip ends at 5.0; zoom 50 px/s and 10px threshold give a
	// 0.2s capture radius.
	addClip(t, e, assetID, 0, 0, 5)
	moving := addClip(t, e, assetID, 1, 10, 2)
	e.SetZoom(50)

	// Lands at 5.15, inside the radius, so it snaps to 5.0 exactly.
	require.NoError(t, e.MoveSelected(moving, -4.85, 0, false))
	assert.Equal(t, 5.0, e.Snapshot().ClipByID(moving).StartTime)
}

func TestNoSnapOutsideThreshold(t *testing.T) {
	e, assetID := newTestEngine(t)
	addClip(t, e, assetID, 0, 0, 5)
	moving := addClip(t, e, assetID, 1, 10, 2)
	e.SetZoom(50)

	// Lands at 5.35, outside the 0.2s radius (and the end at 7.35 is
	// nowhere near a candidate), so no snap.
	require.NoError(t, e.MoveSelected(moving, -4.65, 0, false))
	assert.Equal(t, 5.35, e.Snapshot().ClipByID(moving).StartTime)
}

func TestSnapTightensWithZoom(t *testing.T) {
	e, assetID := newTestEngine(t)
	addClip(t, e, assetID, 0, 0, 5)
	moving := addClip(t, e, assetID, 1, 10, 2)

	// At zoom 200 the radius is 0.05s, so a 0.15s miss stays put.
	e.SetZoom(200)
	require.NoError(t, e.MoveSelected(moving, -4.85, 0, false))
	assert.Equal(t, 5.15, e.Snapshot().ClipByID(moving).StartTime)
}

func TestModifierBypassesSnap(t *testing.T) {
	e, assetID := newTestEngine(t)
	addClip(t, e, assetID, 0, 0, 5)
	moving := addClip(t, e, assetID, 1, 10, 2)
	e.SetZoom(50)

	require.NoError(t, e.MoveSelected(moving, -4.85, 0, true))
	assert.Equal(t, 5.15, e.Snapshot().ClipByID(moving).StartTime)
}

func TestSnapCandidatesExcludeMovingClips(t *testing.T) {
	s := timeline.NewEditorState()
	s.Playhead = 3
	s.Clips = []timeline.Clip{
		{ID: "moving", StartTime: 10, Duration: 2},
		{ID: "anchor", StartTime: 0, Duration: 5},
	}

	candidates := SnapCandidates(s, map[string]bool{"moving": true})

	assert.ElementsMatch(t, []float64{0, 3, 0, 5}, candidates)
}

func TestResizeLeftMovesTrimWithStart(t *testing.T) {
	e, assetID := newTestEngine(t)
	id := addClip(t, e, assetID, 0, 4, 10)
	require.NoError(t, e.UpdateClip(id, ClipPatch{TrimStart: floatPtr(2)}))

	require.NoError(t, e.ResizeClip(id, ResizeLeft, 6, true))

	clip := e.Snapshot().ClipByID(id)
	assert.Equal(t, 6.0, clip.StartTime)
	assert.Equal(t, 4.0, clip.TrimStart, "trimStart moves with the left edge")
	assert.Equal(t, 8.0, clip.Duration)
}

func TestResizeLeftFloorsTrimStart(t *testing.T) {
	e, assetID := newTestEngine(t)
	id := addClip(t, e, assetID, 0, 4, 10)
	require.NoError(t, e.UpdateClip(id, ClipPatch{TrimStart: floatPtr(1)}))

	// Dragging left past the available trim stops at trimStart == 0.
	require.NoError(t, e.ResizeClip(id, ResizeLeft, 0, true))

	clip := e.Snapshot().ClipByID(id)
	assert.Equal(t, 3.0, clip.StartTime)
	assert.Equal(t, 0.0, clip.TrimStart)
	assert.Equal(t, 11.0, clip.Duration)
}

func TestResizeRespectsMinimumDuration(t *testing.T) {
	e, assetID := newTestEngine(t)
	id := addClip(t, e, assetID, 0, 4, 10)

	// Dragging the left edge past the right edge floors the duration.
	require.NoError(t, e.ResizeClip(id, ResizeLeft, 20, true))
	clip := e.Snapshot().ClipByID(id)
	assert.InDelta(t, timeline.MinClipDuration, clip.Duration, 1e-9)

	// Same for the right edge.
	id2 := addClip(t, e, assetID, 1, 4, 10)
	require.NoError(t, e.ResizeClip(id2, ResizeRight, 4.01, true))
	clip2 := e.Snapshot().ClipByID(id2)
	assert.InDelta(t, timeline.MinClipDuration, clip2.Duration, 1e-9)
}

func TestResizeRightConsumesTrimEnd(t *testing.T) {
	e, assetID := newTestEngine(t)
	id := addClip(t, e, assetID, 0, 0, 10)
	require.NoError(t, e.UpdateClip(id, ClipPatch{TrimEnd: floatPtr(3)}))

	// Extending the right edge by 2s takes 2s back from trimEnd.
	require.NoError(t, e.ResizeClip(id, ResizeRight, 12, true))
	clip := e.Snapshot().ClipByID(id)
	assert.Equal(t, 12.0, clip.Duration)
	assert.Equal(t, 1.0, clip.TrimEnd)

	// Extending past the available trim stops when trimEnd hits 0.
	require.NoError(t, e.ResizeClip(id, ResizeRight, 20, true))
	clip = e.Snapshot().ClipByID(id)
	assert.Equal(t, 13.0, clip.Duration)
	assert.Equal(t, 0.0, clip.TrimEnd)
}

func TestNudgeSelected(t *testing.T) {
	e, assetID := newTestEngine(t)
	a := addClip(t, e, assetID, 0, 1, 2)
	require.NoError(t, e.SelectClip(a, false))

	require.NoError(t, e.NudgeSelected(0.5))
	assert.Equal(t, 1.5, e.Snapshot().ClipByID(a).StartTime)

	require.NoError(t, e.NudgeSelected(-5))
	assert.Equal(t, 0.0, e.Snapshot().ClipByID(a).StartTime, "nudge clamps at 0")
}

func TestMoveSelectedToStartAndEnd(t *testing.T) {
	e, assetID := newTestEngine(t)
	a := addClip(t, e, assetID, 0, 2, 2)
	b := addClip(t, e, assetID, 1, 5, 2)
	addClip(t, e, assetID, 2, 0, 20) // fixes timeline duration at 20
	require.NoError(t, e.SelectClip(a, false))
	require.NoError(t, e.SelectClip(b, true))

	require.NoError(t, e.MoveSelectedToStart())
	s := e.Snapshot()
	assert.Equal(t, 0.0, s.ClipByID(a).StartTime)
	assert.Equal(t, 3.0, s.ClipByID(b).StartTime, "selection moves as a block")

	require.NoError(t, e.MoveSelectedToEnd())
	s = e.Snapshot()
	assert.Equal(t, 20.0, s.ClipByID(b).EndTime(), "latest selected end aligns with timeline end")
	assert.Equal(t, 15.0, s.ClipByID(a).StartTime)
}

func TestUndoRedoAcrossOperations(t *testing.T) {
	e, assetID := newTestEngine(t)
	id := addClip(t, e, assetID, 0, 0, 10)
	require.NoError(t, e.SelectClip(id, false))
	e.SetPlayhead(4)

	type step struct {
		name string
		run  func()
	}
	steps := []step{
		{"split", func() { e.SplitAtPlayhead() }},
		{"duplicate", func() { _, _ = e.DuplicateClip(id) }},
		{"move", func() { _ = e.MoveSelected(id, 1, 0, true) }},
		{"resize", func() { _ = e.ResizeClip(id, ResizeRight, 3, true) }},
		{"delete", func() { e.DeleteSelected() }},
	}

	for _, st := range steps {
		before := e.Snapshot()
		st.run()
		after := e.Snapshot()

		require.True(t, e.Undo(), "%s: undo must apply", st.name)
		undone := e.Snapshot()
		assert.Equal(t, before.Clips, undone.Clips, "%s: undo(do(edit)) == state", st.name)
		assert.Equal(t, before.Duration, undone.Duration, st.name)

		require.True(t, e.Redo(), "%s: redo must apply", st.name)
		redone := e.Snapshot()
		assert.Equal(t, after.Clips, redone.Clips, "%s: redo(undo(do(edit))) == do(edit)", st.name)
		assert.Equal(t, after.Duration, redone.Duration, st.name)
	}
}

func TestToggleSnap(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.True(t, e.SnapEnabled())
	assert.False(t, e.ToggleSnap())
	assert.True(t, e.ToggleSnap())
}
