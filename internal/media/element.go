// Package media abstracts the playable media surfaces the synchronizer,
// compositor and export renderer drive. Elements expose the readiness
// and timing model of a decoder-backed player without tying the engine
// to a concrete decoder: loads and seeks are asynchronous and observed
// on a later tick, never awaited inline.
package media

import "context"

// ReadyState mirrors a decoder element's load progress.
type ReadyState int

// Ready states
const (
	ReadyNothing ReadyState = iota
	ReadyMetadata
	ReadyEnoughData
)

// PlayState is the per-playable state machine driven by the synchronizer.
type PlayState int

// Play states
const (
	StateIdle PlayState = iota
	StateSeeking
	StatePlaying
	StatePaused
)

func (s PlayState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSeeking:
		return "seeking"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// Element is a single reusable media surface. Implementations own their
// decoder resources exclusively and must release them in Close; the
// preview synchronizer and the export renderer never share instances.
type Element interface {
	// Load points the element at a new source. Readiness is reported
	// asynchronously through Ready; callers poll it on later ticks.
	Load(ctx context.Context, src string) error
	// Src returns the currently loaded source, or "" when idle.
	Src() string

	Play()
	Pause()
	// Seek requests an asynchronous jump to the given media-local time.
	Seek(t float64)
	// CurrentTime reports the element's own playback position.
	CurrentTime() float64

	SetRate(rate float64)
	SetVolume(v float64)
	// SetMuted hard-mutes the element so the backend can skip decode
	// work, which plain zero gain does not guarantee.
	SetMuted(muted bool)
	Muted() bool

	Ready() ReadyState
	State() PlayState

	// Close stops playback, clears the source and releases decoder
	// resources. The element must not be reused afterwards.
	Close() error
}
