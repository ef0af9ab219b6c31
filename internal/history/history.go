// Package history provides bounded linear undo/redo over timeline
// snapshots. Only structural state (assets, clips, track settings) is
// snapshotted; selection and playhead stay untouched by undo so the
// user's view position never jumps.
package history

import (
	"sync"

	"github.com/cutlinehq/cutline/pkg/timeline"
)

// DefaultCapacity bounds the number of retained snapshots.
const DefaultCapacity = 50

// Snapshot is the structural subset of an EditorState captured after a
// committed edit.
type Snapshot struct {
	Assets []timeline.Asset
	Clips  []timeline.Clip
	Tracks map[int]timeline.TrackSettings
}

// Manager is a finite undo/redo stack. The entry at cursor is the
// current state; undo moves the cursor back, redo forward. A new push
// after an undo discards the forward branch.
type Manager struct {
	mu       sync.Mutex
	entries  []Snapshot
	cursor   int
	capacity int
}

// NewManager creates a history manager seeded with the initial state.
func NewManager(initial *timeline.EditorState, capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{
		entries:  []Snapshot{Capture(initial)},
		cursor:   0,
		capacity: capacity,
	}
}

// Capture copies the structural state out of an EditorState.
func Capture(s *timeline.EditorState) Snapshot {
	cp := s.Clone()
	return Snapshot{Assets: cp.Assets, Clips: cp.Clips, Tracks: cp.Tracks}
}

// Apply restores a snapshot's structural state into the target state and
// recomputes the derived duration. Selection entries referencing clips
// that no longer exist are pruned.
func Apply(snap Snapshot, target *timeline.EditorState) {
	target.Assets = make([]timeline.Asset, len(snap.Assets))
	copy(target.Assets, snap.Assets)
	target.Clips = make([]timeline.Clip, len(snap.Clips))
	copy(target.Clips, snap.Clips)
	target.Tracks = make(map[int]timeline.TrackSettings, len(snap.Tracks))
	for k, v := range snap.Tracks {
		target.Tracks[k] = v
	}

	kept := target.SelectedClipIDs[:0]
	for _, id := range target.SelectedClipIDs {
		if target.ClipByID(id) != nil {
			kept = append(kept, id)
		}
	}
	target.SelectedClipIDs = kept

	target.RecomputeDuration()
}

// Push records the state after a committed edit, truncating any redo
// branch and evicting the oldest entry past capacity.
func (m *Manager) Push(s *timeline.EditorState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries[:m.cursor+1], Capture(s))
	m.cursor++

	if len(m.entries) > m.capacity {
		overflow := len(m.entries) - m.capacity
		m.entries = m.entries[overflow:]
		m.cursor -= overflow
	}
}

// Undo restores the previous snapshot into target. It is a no-op at the
// bottom of the stack; the return value reports whether anything changed.
func (m *Manager) Undo(target *timeline.EditorState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cursor == 0 {
		return false
	}
	m.cursor--
	Apply(m.entries[m.cursor], target)
	return true
}

// Redo restores the next snapshot into target. It is a no-op at the top
// of the stack.
func (m *Manager) Redo(target *timeline.EditorState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cursor >= len(m.entries)-1 {
		return false
	}
	m.cursor++
	Apply(m.entries[m.cursor], target)
	return true
}

// CanUndo reports whether an undo would change state.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor > 0
}

// CanRedo reports whether a redo would change state.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor < len(m.entries)-1
}

// Depth returns the number of retained snapshots.
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
