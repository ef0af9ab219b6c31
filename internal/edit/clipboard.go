package edit

import (
	"github.com/google/uuid"

	"github.com/cutlinehq/cutline/pkg/timeline"
)

// CopySelected detaches a copy of the selected clips into the engine's
// clipboard. The clipboard lives outside the undo history and survives
// across undo/redo. Returns the number of clips copied.
func (e *Engine) CopySelected() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	var copied []timeline.Clip
	for _, id := range e.state.SelectedClipIDs {
		if clip := e.state.ClipByID(id); clip != nil {
			copied = append(copied, *clip)
		}
	}
	if len(copied) > 0 {
		e.clipboard = copied
	}
	return len(copied)
}

// Paste inserts the clipboard contents anchored at the current playhead:
// the earliest copied clip lands on the playhead and the rest keep their
// relative offsets and tracks. Pasted clips always get fresh ids. The
// pasted clips become the new selection. Returns the new ids.
func (e *Engine) Paste() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.clipboard) == 0 {
		return nil, ErrNothingToPaste
	}

	earliest := e.clipboard[0].StartTime
	for _, c := range e.clipboard[1:] {
		if c.StartTime < earliest {
			earliest = c.StartTime
		}
	}

	offset := e.state.Playhead - earliest
	ids := make([]string, 0, len(e.clipboard))
	for _, c := range e.clipboard {
		pasted := c
		pasted.ID = uuid.New().String()
		pasted.StartTime = c.StartTime + offset
		if pasted.StartTime < 0 {
			pasted.StartTime = 0
		}
		e.state.Clips = append(e.state.Clips, pasted)
		ids = append(ids, pasted.ID)
	}
	e.state.SelectedClipIDs = append([]string{}, ids...)

	e.commit("paste")
	return ids, nil
}

// ClipboardLen reports how many clips are currently on the clipboard.
func (e *Engine) ClipboardLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clipboard)
}
