package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cutlinehq/cutline/internal/edit"
	"github.com/cutlinehq/cutline/internal/logging"
)

// Command names accepted by the dispatcher. The UI layer sends these
// verbatim; anything else is rejected.
const (
	CmdPlay             = "play"
	CmdPause            = "pause"
	CmdSeekFrameForward = "seek-frame-forward"
	CmdSeekFrameBack    = "seek-frame-back"
	CmdSeekStart        = "seek-start"
	CmdSeekEnd          = "seek-end"
	CmdSplit            = "split"
	CmdCopy             = "copy"
	CmdPaste            = "paste"
	CmdDuplicate        = "duplicate"
	CmdDelete           = "delete"
	CmdUndo             = "undo"
	CmdRedo             = "redo"
	CmdNudgeLeft        = "nudge-left"
	CmdNudgeRight       = "nudge-right"
	CmdMoveToStart      = "move-to-start"
	CmdMoveToEnd        = "move-to-end"
	CmdToggleSnap       = "toggle-snap"
	CmdSplitAudio       = "split-audio"
)

// Player is the playback control surface commands drive. Seek returns
// the clamped position actually applied.
type Player interface {
	Play()
	Pause()
	Seek(pos float64) float64
}

// Command is a named operation from the UI layer, optionally carrying
// arguments.
type Command struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// clipArgs carries the target clip for commands that act on one clip
// rather than the selection.
type clipArgs struct {
	ClipID string `json:"clip_id"`
}

// Result reports what a command changed. Applied is false when the
// command was valid but had nothing to do (empty selection, bottom of
// the undo stack).
type Result struct {
	Applied     bool     `json:"applied"`
	Playhead    *float64 `json:"playhead,omitempty"`
	ClipIDs     []string `json:"clip_ids,omitempty"`
	Count       int      `json:"count,omitempty"`
	SnapEnabled *bool    `json:"snap_enabled,omitempty"`
}

// Dispatcher maps named commands onto the edit engine and the playback
// controller. It holds no UI state of its own.
type Dispatcher struct {
	engine    *edit.Engine
	player    Player
	frameRate float64
	log       *logging.Logger
}

// NewDispatcher creates a dispatcher. player may be nil for headless
// (save-only) sessions; playback commands then only move the playhead.
func NewDispatcher(engine *edit.Engine, player Player, frameRate float64, log *logging.Logger) *Dispatcher {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &Dispatcher{engine: engine, player: player, frameRate: frameRate, log: log}
}

// Dispatch executes one named command. Unknown names are an error;
// commands that legitimately do nothing return Applied=false.
func (d *Dispatcher) Dispatch(cmd Command) (*Result, error) {
	if d.log != nil {
		d.log.WithField("command", cmd.Name).Debug("dispatching command")
	}
	switch cmd.Name {
	case CmdPlay:
		if d.player != nil {
			d.player.Play()
		}
		return &Result{Applied: true}, nil

	case CmdPause:
		if d.player != nil {
			d.player.Pause()
		}
		return &Result{Applied: true}, nil

	case CmdSeekFrameForward:
		return d.seekBy(1.0 / d.frameRate), nil

	case CmdSeekFrameBack:
		return d.seekBy(-1.0 / d.frameRate), nil

	case CmdSeekStart:
		return d.seekTo(0), nil

	case CmdSeekEnd:
		return d.seekTo(d.engine.Snapshot().Duration), nil

	case CmdSplit:
		ids := d.engine.SplitAtPlayhead()
		return &Result{Applied: len(ids) > 0, ClipIDs: ids, Count: len(ids)}, nil

	case CmdCopy:
		n := d.engine.CopySelected()
		return &Result{Applied: n > 0, Count: n}, nil

	case CmdPaste:
		ids, err := d.engine.Paste()
		if err != nil {
			// An empty clipboard is a no-op, not a failure.
			if errors.Is(err, edit.ErrNothingToPaste) {
				return &Result{Applied: false}, nil
			}
			return nil, err
		}
		return &Result{Applied: len(ids) > 0, ClipIDs: ids, Count: len(ids)}, nil

	case CmdDuplicate:
		args, err := decodeClipArgs(cmd)
		if err != nil {
			return nil, err
		}
		id, err := d.engine.DuplicateClip(args.ClipID)
		if err != nil {
			return nil, err
		}
		return &Result{Applied: true, ClipIDs: []string{id}, Count: 1}, nil

	case CmdDelete:
		n := d.engine.DeleteSelected()
		return &Result{Applied: n > 0, Count: n}, nil

	case CmdUndo:
		return &Result{Applied: d.engine.Undo()}, nil

	case CmdRedo:
		return &Result{Applied: d.engine.Redo()}, nil

	case CmdNudgeLeft:
		return d.nudge(-1.0 / d.frameRate)

	case CmdNudgeRight:
		return d.nudge(1.0 / d.frameRate)

	case CmdMoveToStart:
		if err := d.engine.MoveSelectedToStart(); err != nil {
			return nil, err
		}
		return &Result{Applied: true}, nil

	case CmdMoveToEnd:
		if err := d.engine.MoveSelectedToEnd(); err != nil {
			return nil, err
		}
		return &Result{Applied: true}, nil

	case CmdToggleSnap:
		enabled := d.engine.ToggleSnap()
		return &Result{Applied: true, SnapEnabled: &enabled}, nil

	case CmdSplitAudio:
		args, err := decodeClipArgs(cmd)
		if err != nil {
			return nil, err
		}
		id, err := d.engine.SplitAudioFromVideo(args.ClipID)
		if err != nil {
			return nil, err
		}
		return &Result{Applied: true, ClipIDs: []string{id}, Count: 1}, nil

	default:
		return nil, fmt.Errorf("unknown command %q", cmd.Name)
	}
}

// seekBy moves the playhead relative to its current position.
func (d *Dispatcher) seekBy(delta float64) *Result {
	pos := d.engine.Snapshot().Playhead + delta
	return d.seekTo(pos)
}

// seekTo moves the playhead and, when a player is attached, invalidates
// in-flight ticks through its seek path.
func (d *Dispatcher) seekTo(pos float64) *Result {
	applied := d.engine.SetPlayhead(pos)
	if d.player != nil {
		applied = d.player.Seek(applied)
	}
	return &Result{Applied: true, Playhead: &applied}
}

func (d *Dispatcher) nudge(delta float64) (*Result, error) {
	if err := d.engine.NudgeSelected(delta); err != nil {
		return nil, err
	}
	return &Result{Applied: true}, nil
}

func decodeClipArgs(cmd Command) (*clipArgs, error) {
	var args clipArgs
	if len(cmd.Args) > 0 {
		if err := json.Unmarshal(cmd.Args, &args); err != nil {
			return nil, fmt.Errorf("failed to decode %s args: %w", cmd.Name, err)
		}
	}
	if args.ClipID == "" {
		return nil, fmt.Errorf("%s requires a clip_id", cmd.Name)
	}
	return &args, nil
}
