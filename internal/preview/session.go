package preview

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/cutlinehq/cutline/internal/compositor"
	"github.com/cutlinehq/cutline/internal/logging"
	"github.com/cutlinehq/cutline/internal/playback"
	"github.com/cutlinehq/cutline/pkg/timeline"
)

// Session is one live preview for a project. The background loop ticks
// the synchronizer; frames are rendered on demand through Frame.
type Session struct {
	projectID string
	state     StateFunc
	sync      *playback.Synchronizer
	comp      *compositor.Compositor
	cancel    context.CancelFunc
	log       *logging.Logger
}

// Play starts the virtual clock.
func (s *Session) Play() {
	s.sync.Play()
}

// Pause freezes the virtual clock.
func (s *Session) Pause() {
	s.sync.Pause()
}

// Seek moves the clock, invalidating in-flight ticks, and returns the
// clamped position.
func (s *Session) Seek(pos float64) float64 {
	return s.sync.Seek(pos)
}

// Position reports the current clock position and whether it is
// advancing.
func (s *Session) Position() (pos float64, playing bool) {
	clock := s.sync.Clock()
	return clock.Position(), clock.Playing()
}

// Size returns the preview frame dimensions.
func (s *Session) Size() (width, height int) {
	return s.comp.Size()
}

// Frame composites the preview frame at the given position, or at the
// current clock position when at is nil.
func (s *Session) Frame(ctx context.Context, at *float64) (*image.RGBA, error) {
	state, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	pos := s.sync.Clock().Position()
	if at != nil {
		pos = timeline.ClampPlayhead(*at, state.Duration)
	}
	return s.comp.RenderFrame(ctx, state, pos)
}

func (s *Session) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Session) tick(ctx context.Context) {
	state, err := s.state(ctx)
	if err != nil {
		if s.log != nil {
			s.log.WithProjectID(s.projectID).ErrorWithErr("preview tick could not load state", err)
		}
		return
	}

	clock := s.sync.Clock()
	clock.SetDuration(state.Duration)

	if _, err := s.sync.Tick(ctx, state, clock.Generation()); err != nil {
		if errors.Is(err, playback.ErrClosed) || errors.Is(err, context.Canceled) {
			return
		}
		if s.log != nil {
			s.log.WithProjectID(s.projectID).ErrorWithErr("preview tick failed", err)
		}
	}
}

func (s *Session) close() {
	s.cancel()
	if err := s.sync.Close(); err != nil && s.log != nil {
		s.log.WithProjectID(s.projectID).ErrorWithErr("failed to close preview elements", err)
	}
}
