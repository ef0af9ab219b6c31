// Package playback keeps independently driven media elements aligned to
// one virtual clock. The clock is the single authority on "current
// timeline time"; elements are corrected toward it only when their drift
// exceeds an explicit tolerance, and every asynchronous computation that
// reads playback state captures the clock generation so a later user
// seek invalidates it.
package playback

import (
	"sync"
	"time"

	"github.com/cutlinehq/cutline/internal/media"
	"github.com/cutlinehq/cutline/internal/metrics"
)

// VirtualClock advances in real time while playing. Every explicit seek
// bumps the generation and resets the wall-clock reference, so in-flight
// ticks that started under an older generation must discard their
// result instead of overwriting the just-seeked position.
type VirtualClock struct {
	mu sync.Mutex

	clk           media.Clock
	startWall     time.Time
	startPosition float64
	position      float64
	duration      float64
	playing       bool
	generation    uint64
}

// NewVirtualClock creates a stopped clock at position zero. A nil clock
// falls back to the system clock.
func NewVirtualClock(clk media.Clock) *VirtualClock {
	if clk == nil {
		clk = media.SystemClock{}
	}
	return &VirtualClock{clk: clk}
}

// SetDuration updates the timeline duration the clock stops at.
func (c *VirtualClock) SetDuration(d float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 {
		d = 0
	}
	c.duration = d
	if c.position > d {
		c.position = d
	}
}

// Play starts advancing from the current position.
func (c *VirtualClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.playing = true
	c.startWall = c.clk.Now()
	c.startPosition = c.position
}

// Pause freezes the clock at its current position.
func (c *VirtualClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.position = c.positionLocked()
	c.playing = false
}

// Seek jumps to a new position, clamped to [0, duration]. It bumps the
// generation and re-references the wall clock so any in-flight tick
// computed against the old reference is invalidated.
func (c *VirtualClock) Seek(pos float64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	if pos > c.duration {
		pos = c.duration
	}
	c.generation++
	c.position = pos
	c.startWall = c.clk.Now()
	c.startPosition = pos
	return c.generation
}

// Generation returns the current seek generation. Asynchronous work
// captures it before reading the position and checks it again before
// committing a result.
func (c *VirtualClock) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Position returns the current timeline position.
func (c *VirtualClock) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

// Playing reports whether the clock is advancing.
func (c *VirtualClock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Tick advances the clock for one frame callback. The caller passes the
// generation it captured when the tick was scheduled; a stale generation
// means a seek happened in between, and the tick's result is discarded
// rather than applied. When the position reaches the timeline duration
// the clock stops and clamps.
func (c *VirtualClock) Tick(gen uint64) (pos float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		metrics.StaleTicksDiscardedTotal.Inc()
		return c.position, false
	}

	c.position = c.positionLocked()
	if c.playing && c.duration > 0 && c.position >= c.duration {
		c.position = c.duration
		c.playing = false
	}
	return c.position, true
}

// positionLocked computes startPosition + elapsed real seconds while
// playing. Callers hold c.mu.
func (c *VirtualClock) positionLocked() float64 {
	if !c.playing {
		return c.position
	}
	pos := c.startPosition + c.clk.Now().Sub(c.startWall).Seconds()
	if c.duration > 0 && pos > c.duration {
		pos = c.duration
	}
	return pos
}
