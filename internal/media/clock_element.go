package media

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts wall time so element timing is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

// Now returns the current wall time.
func (SystemClock) Now() time.Time { return time.Now() }

// ClockElement is a pure timing model of a decoder element: its position
// advances with wall clock while playing, scaled by the playback rate.
// Seeks complete asynchronously after a configurable latency, matching
// the suspension points of a real decoder. Frame pixels are fetched
// separately through a frame source; the element only answers "where is
// this surface in its media right now".
type ClockElement struct {
	mu sync.Mutex

	src      string
	position float64
	rate     float64
	volume   float64
	muted    bool
	playing  bool

	ready     ReadyState
	state     PlayState
	seekDone  time.Time
	lastTick  time.Time
	clk       Clock
	seekDelay time.Duration
}

// NewClockElement creates an idle element on the given clock. A nil
// clock falls back to the system clock.
func NewClockElement(clk Clock) *ClockElement {
	if clk == nil {
		clk = SystemClock{}
	}
	return &ClockElement{
		rate:      1,
		volume:    1,
		clk:       clk,
		state:     StateIdle,
		seekDelay: 40 * time.Millisecond,
	}
}

// SetSeekLatency overrides the simulated seek completion latency.
func (e *ClockElement) SetSeekLatency(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seekDelay = d
}

// Load points the element at a new source and resets its position.
func (e *ClockElement) Load(ctx context.Context, src string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.src = src
	e.position = 0
	e.playing = false
	e.ready = ReadyEnoughData
	e.state = StatePaused
	e.lastTick = e.clk.Now()
	return nil
}

// Src returns the currently loaded source.
func (e *ClockElement) Src() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// Play starts the element's own clock.
func (e *ClockElement) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advanceLocked()
	e.playing = true
	e.state = StatePlaying
}

// Pause halts the element's own clock.
func (e *ClockElement) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advanceLocked()
	e.playing = false
	if e.state == StatePlaying {
		e.state = StatePaused
	}
}

// Seek jumps to a media-local time. The element reports StateSeeking
// until the simulated latency elapses.
func (e *ClockElement) Seek(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t < 0 {
		t = 0
	}
	e.position = t
	e.lastTick = e.clk.Now()
	e.seekDone = e.lastTick.Add(e.seekDelay)
	e.state = StateSeeking
}

// CurrentTime reports the element's playback position.
func (e *ClockElement) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advanceLocked()
	return e.position
}

// SetRate sets the playback rate multiplier.
func (e *ClockElement) SetRate(rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advanceLocked()
	if rate <= 0 {
		rate = 1
	}
	e.rate = rate
}

// SetVolume sets the element gain.
func (e *ClockElement) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.volume = v
}

// Volume returns the element gain.
func (e *ClockElement) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// SetMuted hard-mutes the element.
func (e *ClockElement) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = muted
}

// Muted reports whether the element is hard-muted.
func (e *ClockElement) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// Ready reports load progress.
func (e *ClockElement) Ready() ReadyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// State reports the play state, resolving a completed seek.
func (e *ClockElement) State() PlayState {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advanceLocked()
	return e.state
}

// Close releases the element.
func (e *ClockElement) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.src = ""
	e.playing = false
	e.ready = ReadyNothing
	e.state = StateIdle
	return nil
}

// advanceLocked folds elapsed wall time into the position and resolves
// pending seek completion. Callers hold e.mu.
func (e *ClockElement) advanceLocked() {
	now := e.clk.Now()
	if e.state == StateSeeking && !now.Before(e.seekDone) {
		if e.playing {
			e.state = StatePlaying
		} else {
			e.state = StatePaused
		}
		e.lastTick = now
	}
	if e.playing && e.state == StatePlaying {
		e.position += now.Sub(e.lastTick).Seconds() * e.rate
	}
	e.lastTick = now
}
