package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/cutlinehq/cutline/internal/logging"
	"github.com/cutlinehq/cutline/internal/media"
	"github.com/cutlinehq/cutline/internal/metrics"
	"github.com/cutlinehq/cutline/pkg/timeline"
)

// ErrClosed is returned by ticks issued after the synchronizer was torn
// down.
var ErrClosed = errors.New("synchronizer is closed")

// SourceResolver maps an asset to a playable source location. Resolution
// belongs to the storage collaborator; the synchronizer never touches
// asset bytes itself.
type SourceResolver func(asset *timeline.Asset) string

// Synchronizer drives a reusable video element and a singleton main
// audio element toward the virtual clock. It reads the editor state and
// never mutates it; advancing the playhead is the caller's business.
type Synchronizer struct {
	mu sync.Mutex

	clock   *VirtualClock
	video   media.Element
	audio   *MainAudioManager
	resolve SourceResolver
	log     *logging.Logger
	closed  bool

	// videoClipID remembers which clip the video element is serving so
	// an unchanged source is not redundantly reloaded.
	videoClipID string
}

// NewSynchronizer wires a synchronizer around its exclusively owned
// elements. The elements must not be shared with an export renderer.
func NewSynchronizer(clock *VirtualClock, video media.Element, audio media.Element, resolve SourceResolver, log *logging.Logger) *Synchronizer {
	return &Synchronizer{
		clock:   clock,
		video:   video,
		audio:   NewMainAudioManager(audio),
		resolve: resolve,
		log:     log,
	}
}

// Clock exposes the virtual clock for position queries.
func (s *Synchronizer) Clock() *VirtualClock { return s.clock }

// Play starts the virtual clock.
func (s *Synchronizer) Play() {
	s.clock.Play()
}

// Pause freezes the virtual clock and halts both elements.
func (s *Synchronizer) Pause() {
	s.clock.Pause()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video.Pause()
	s.audio.Stop()
}

// Seek is the explicit user seek: it bumps the clock generation so
// in-flight ticks are discarded, then returns the clamped position.
func (s *Synchronizer) Seek(pos float64) float64 {
	s.clock.Seek(pos)
	return s.clock.Position()
}

// Tick drives every element toward the clock for one frame callback.
// The generation must have been captured when the tick was scheduled: a
// seek in between makes the tick stale and it is dropped without
// touching any element. Returns the position the tick applied.
func (s *Synchronizer) Tick(ctx context.Context, state *timeline.EditorState, gen uint64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Liveness is checked at the top of each tick so teardown is
	// effective before the next frame.
	if s.closed {
		return 0, ErrClosed
	}

	pos, ok := s.clock.Tick(gen)
	if !ok {
		return pos, nil
	}
	playing := s.clock.Playing()

	active := state.ClipsAtTime(pos)

	if err := s.driveVideo(ctx, state, active, pos, playing); err != nil {
		return pos, err
	}
	if err := s.driveAudio(ctx, state, active, pos, playing); err != nil {
		return pos, err
	}
	return pos, nil
}

// driveVideo targets the topmost visible video clip at pos. Later tracks
// paint over earlier ones, so the highest visible track wins the single
// reusable element.
func (s *Synchronizer) driveVideo(ctx context.Context, state *timeline.EditorState, active []timeline.Clip, pos float64, playing bool) error {
	var clip *timeline.Clip
	var asset *timeline.Asset
	for i := len(active) - 1; i >= 0; i-- {
		c := active[i]
		ts := state.TrackSettingsFor(c.TrackIndex)
		if !ts.Visible {
			continue
		}
		a := state.AssetByID(c.AssetID)
		if a == nil || a.Kind != timeline.AssetKindVideo {
			continue
		}
		clip, asset = &c, a
		break
	}

	if clip == nil {
		// Orphan or empty frame: idle the element but keep it loaded so
		// re-entering the clip does not pay the load again.
		s.video.Pause()
		s.video.SetMuted(true)
		s.videoClipID = ""
		return nil
	}

	src := s.resolve(asset)
	if s.video.Src() != src {
		if err := s.video.Load(ctx, src); err != nil {
			return err
		}
	}
	s.videoClipID = clip.ID

	ts := state.TrackSettingsFor(clip.TrackIndex)
	s.video.SetRate(clip.EffectiveSpeed() * ts.EffectiveSpeed())

	volume := state.EffectiveVolume(clip)
	s.video.SetVolume(volume)
	s.video.SetMuted(volume == 0)

	expected := clip.LocalTime(pos)
	if NeedsResync(expected, s.video.CurrentTime(), ResyncTolerance(playing)) {
		s.video.Seek(expected)
		metrics.PlaybackResyncsTotal.WithLabelValues("video").Inc()
		if s.log != nil {
			s.log.LogResync(clip.ID, expected, s.video.CurrentTime())
		}
	}

	if playing {
		s.video.Play()
	} else {
		s.video.Pause()
	}
	return nil
}

// driveAudio retargets the main audio singleton at the lowest-track
// active audio clip, or stops it when none is active.
func (s *Synchronizer) driveAudio(ctx context.Context, state *timeline.EditorState, active []timeline.Clip, pos float64, playing bool) error {
	for _, c := range active {
		a := state.AssetByID(c.AssetID)
		if a == nil || a.Kind != timeline.AssetKindAudio {
			continue
		}
		ts := state.TrackSettingsFor(c.TrackIndex)
		rate := c.EffectiveSpeed() * ts.EffectiveSpeed()
		return s.audio.Retarget(ctx, s.resolve(a), c.LocalTime(pos), rate, state.EffectiveVolume(&c), playing)
	}

	if s.audio.Active() {
		s.audio.Stop()
	}
	return nil
}

// VideoClipID reports which clip the video element currently serves.
func (s *Synchronizer) VideoClipID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoClipID
}

// Close pauses and releases both elements. Ticks issued afterwards fail
// with ErrClosed.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	verr := s.video.Close()
	aerr := s.audio.Close()
	if verr != nil {
		return verr
	}
	return aerr
}
