package edit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutlinehq/cutline/pkg/timeline"
)

func floatPtr(v float64) *float64 { return &v }

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	e := NewEngine(timeline.NewEditorState(), DefaultConfig(), nil)
	assetID, err := e.AddAsset(timeline.Asset{
		Kind:     timeline.AssetKindVideo,
		Name:     "source.mp4",
		Duration: floatPtr(60),
	})
	require.NoError(t, err)
	return e, assetID
}

func addClip(t *testing.T, e *Engine, assetID string, track int, start, duration float64) string {
	t.Helper()
	id, err := e.AddClip(AddClipRequest{
		AssetID:    assetID,
		TrackIndex: track,
		StartTime:  start,
		Duration:   duration,
	})
	require.NoError(t, err)
	return id
}

func TestAddClipDerivesDuration(t *testing.T) {
	e, assetID := newTestEngine(t)

	addClip(t, e, assetID, 0, 0, 5)
	addClip(t, e, assetID, 1, 2, 6)

	assert.Equal(t, 8.0, e.Snapshot().Duration)
}

func TestAddClipVolumeDefaultsAndMuted(t *testing.T) {
	e, assetID := newTestEngine(t)

	defaulted, err := e.AddClip(AddClipRequest{AssetID: assetID, Duration: 5})
	require.NoError(t, err)
	muted, err := e.AddClip(AddClipRequest{AssetID: assetID, TrackIndex: 1, Duration: 5, Volume: floatPtr(0)})
	require.NoError(t, err)

	s := e.Snapshot()
	assert.Equal(t, 1.0, s.ClipByID(defaulted).Volume, "absent volume defaults to full gain")
	assert.Equal(t, 0.0, s.ClipByID(muted).Volume, "an explicitly muted clip stays muted")
}

func TestAddClipRejectsUnknownAsset(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.AddClip(AddClipRequest{AssetID: "nope", Duration: 5})
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestAddClipRejectsInvalidTrim(t *testing.T) {
	e, assetID := newTestEngine(t)
	before := e.Snapshot()

	_, err := e.AddClip(AddClipRequest{
		AssetID:   assetID,
		Duration:  5,
		TrimStart: 40,
		TrimEnd:   30, // trimStart+trimEnd > 60s asset
	})

	assert.ErrorIs(t, err, ErrInvalidClip)
	assert.Equal(t, len(before.Clips), len(e.Snapshot().Clips), "rejected edit must be a no-op")
	assert.False(t, e.Undo(), "rejected edit must not push history")
}

func TestRemoveAssetCascades(t *testing.T) {
	e, assetID := newTestEngine(t)
	other, err := e.AddAsset(timeline.Asset{Kind: timeline.AssetKindAudio, Name: "music.mp3", Duration: floatPtr(120)})
	require.NoError(t, err)

	doomed := addClip(t, e, assetID, 0, 0, 5)
	kept, err := e.AddClip(AddClipRequest{AssetID: other, TrackIndex: 1, StartTime: 0, Duration: 3})
	require.NoError(t, err)
	require.NoError(t, e.SelectClip(doomed, false))

	require.NoError(t, e.RemoveAsset(assetID))

	s := e.Snapshot()
	require.Len(t, s.Clips, 1)
	assert.Equal(t, kept, s.Clips[0].ID)
	assert.Empty(t, s.SelectedClipIDs, "selection of cascaded clips is pruned")
	assert.Equal(t, 3.0, s.Duration)
}

func TestSplitAtPlayhead(t *testing.T) {
	e, assetID := newTestEngine(t)
	id := addClip(t, e, assetID, 0, 0, 10)
	require.NoError(t, e.UpdateClip(id, ClipPatch{TrimStart: floatPtr(1)}))
	require.NoError(t, e.SelectClip(id, false))
	e.SetPlayhead(4)

	created := e.SplitAtPlayhead()
	require.Len(t, created, 1)

	s := e.Snapshot()
	left := s.ClipByID(id)
	right := s.ClipByID(created[0])
	require.NotNil(t, left)
	require.NotNil(t, right)

	assert.Equal(t, 4.0, left.Duration)
	assert.Equal(t, 1.0, left.TrimStart)
	assert.Equal(t, 4.0, right.StartTime)
	assert.Equal(t, 6.0, right.Duration)
	assert.Equal(t, 5.0, right.TrimStart, "right trimStart = original trimStart + left duration")
	assert.Equal(t, left.TrackIndex, right.TrackIndex)
}

func TestSplitAtPlayheadEdgeIsNoOp(t *testing.T) {
	e, assetID := newTestEngine(t)
	id := addClip(t, e, assetID, 0, 2, 10)
	require.NoError(t, e.SelectClip(id, false))

	for _, playhead := range []float64{2, 12, 1, 12.0001} {
		e.SetPlayhead(playhead)
		created := e.SplitAtPlayhead()
		assert.Empty(t, created, "playhead at %v must not split", playhead)
	}
	assert.Len(t, e.Snapshot().Clips, 1)
}

func TestSplitOnlyTouchesSelectedClips(t *testing.T) {
	e, assetID := newTestEngine(t)
	selected := addClip(t, e, assetID, 0, 0, 10)
	addClip(t, e, assetID, 1, 0, 10)
	require.NoError(t, e.SelectClip(selected, false))
	e.SetPlayhead(5)

	created := e.SplitAtPlayhead()

	assert.Len(t, created, 1)
	assert.Len(t, e.Snapshot().Clips, 3)
}

func TestDuplicateClip(t *testing.T) {
	e, assetID := newTestEngine(t)
	id := addClip(t, e, assetID, 2, 3, 4)

	dupID, err := e.DuplicateClip(id)
	require.NoError(t, err)

	dup := e.Snapshot().ClipByID(dupID)
	require.NotNil(t, dup)
	assert.Equal(t, 7.0, dup.StartTime, "duplicate lands immediately after the original")
	assert.Equal(t, 2, dup.TrackIndex)
	assert.Equal(t, 4.0, dup.Duration)
}

func TestSplitAudioFromVideo(t *testing.T) {
	e, assetID := newTestEngine(t)
	id := addClip(t, e, assetID, 1, 2, 5)

	audioClipID, err := e.SplitAudioFromVideo(id)
	require.NoError(t, err)

	s := e.Snapshot()
	original := s.ClipByID(id)
	audioClip := s.ClipByID(audioClipID)
	require.NotNil(t, audioClip)

	assert.Equal(t, 0.0, original.Volume, "original video clip is muted, not deleted")
	assert.Equal(t, 2, audioClip.TrackIndex, "audio clip lands one track below")
	assert.Equal(t, original.StartTime, audioClip.StartTime)

	audioAsset := s.AssetByID(audioClip.AssetID)
	require.NotNil(t, audioAsset)
	assert.Equal(t, timeline.AssetKindAudio, audioAsset.Kind)
	assert.Equal(t, s.AssetByID(assetID).ContentPath, audioAsset.ContentPath, "derived asset references the same source")
}

func TestSplitAudioFromAudioClipRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	audioAsset, err := e.AddAsset(timeline.Asset{Kind: timeline.AssetKindAudio, Name: "m.mp3", Duration: floatPtr(30)})
	require.NoError(t, err)
	id, err := e.AddClip(AddClipRequest{AssetID: audioAsset, Duration: 5})
	require.NoError(t, err)

	_, err = e.SplitAudioFromVideo(id)
	assert.ErrorIs(t, err, ErrNotVideoClip)
}

func TestCopyPasteAtPlayhead(t *testing.T) {
	e, assetID := newTestEngine(t)
	a := addClip(t, e, assetID, 0, 2, 3)
	b := addClip(t, e, assetID, 1, 4, 2)
	require.NoError(t, e.SelectClip(a, false))
	require.NoError(t, e.SelectClip(b, true))

	assert.Equal(t, 2, e.CopySelected())
	e.SetPlayhead(6)

	ids, err := e.Paste()
	require.NoError(t, err)
	require.Len(t, ids, 2)

	s := e.Snapshot()
	first := s.ClipByID(ids[0])
	second := s.ClipByID(ids[1])
	assert.Equal(t, 6.0, first.StartTime, "earliest copied clip lands on the playhead")
	assert.Equal(t, 8.0, second.StartTime, "relative offsets are kept")
	assert.NotEqual(t, a, first.ID)
	assert.NotEqual(t, b, second.ID)
	assert.ElementsMatch(t, ids, s.SelectedClipIDs, "pasted clips become the selection")
}

func TestClipboardSurvivesUndo(t *testing.T) {
	e, assetID := newTestEngine(t)
	id := addClip(t, e, assetID, 0, 0, 3)
	require.NoError(t, e.SelectClip(id, false))
	e.CopySelected()

	require.True(t, e.Undo()) // removes the clip
	assert.Equal(t, 1, e.ClipboardLen())

	e.SetPlayhead(0)
	ids, err := e.Paste()
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestPasteEmptyClipboard(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Paste()
	assert.ErrorIs(t, err, ErrNothingToPaste)
}
