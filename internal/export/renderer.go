// Package export re-composites a timeline into a single output file.
// The renderer owns a dedicated clock and freshly loaded elements, fully
// isolated from the interactive preview, and paces its render loop by
// wall-clock elapsed time so the output duration always equals real
// elapsed time.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cutlinehq/cutline/internal/compositor"
	"github.com/cutlinehq/cutline/internal/logging"
	"github.com/cutlinehq/cutline/internal/media"
	"github.com/cutlinehq/cutline/internal/metrics"
	"github.com/cutlinehq/cutline/internal/playback"
	"github.com/cutlinehq/cutline/pkg/timeline"
)

// ErrEmptyTimeline is returned when no clip sits on a visible track, so
// there is nothing to render.
var ErrEmptyTimeline = errors.New("timeline has no clips on visible tracks")

const (
	defaultFrameRate   = 30
	defaultGracePeriod = 250 * time.Millisecond
)

// Progress is one entry of the structured progress stream.
type Progress struct {
	PercentComplete float64 `json:"percent_complete"`
	StatusMessage   string  `json:"status_message"`
}

// Result describes a completed export.
type Result struct {
	OutputPath    string       `json:"output_path"`
	Duration      float64      `json:"duration"`
	Codec         CodecVariant `json:"codec"`
	FramesWritten int          `json:"frames_written"`
}

// SourceResolver maps an asset to the source location elements and the
// encoder read from.
type SourceResolver func(asset *timeline.Asset) string

// Options configures one render run.
type Options struct {
	// Width and Height default to the state's aspect ratio.
	Width  int
	Height int
	// FrameRate defaults to 30.
	FrameRate int
	// GracePeriod is the trailing flush before finalizing; defaults to
	// 250ms.
	GracePeriod time.Duration
	OutputPath  string
	// Variants defaults to DefaultCodecVariants.
	Variants []CodecVariant
	// OnProgress, when set, receives the progress stream.
	OnProgress func(Progress)
}

// renderSource is one preloaded element and the clip it serves.
type renderSource struct {
	clip    timeline.Clip
	element media.Element
	gain    float64
	rate    float64
}

// Renderer runs exports. One renderer handles one export at a time; the
// worker creates a renderer per job.
type Renderer struct {
	frames     compositor.FrameSource
	enc        Encoder
	probe      CodecProber
	newElement func() media.Element
	resolve    SourceResolver
	clk        media.Clock
	log        *logging.Logger

	// sleep paces the render loop; replaced in tests.
	sleep func(time.Duration)
}

// NewRenderer wires a renderer over its collaborators. A nil clock
// falls back to the system clock.
func NewRenderer(frames compositor.FrameSource, enc Encoder, probe CodecProber, newElement func() media.Element, resolve SourceResolver, clk media.Clock, log *logging.Logger) *Renderer {
	if clk == nil {
		clk = media.SystemClock{}
	}
	return &Renderer{
		frames:     frames,
		enc:        enc,
		probe:      probe,
		newElement: newElement,
		resolve:    resolve,
		clk:        clk,
		log:        log,
		sleep:      time.Sleep,
	}
}

// TotalDuration computes the export duration: the max end time over
// clips on visible tracks. Zero means there is nothing to export.
func TotalDuration(state *timeline.EditorState) float64 {
	var total float64
	for _, c := range state.Clips {
		if !state.TrackSettingsFor(c.TrackIndex).Visible {
			continue
		}
		if end := c.EndTime(); end > total {
			total = end
		}
	}
	return total
}

// Render runs the full export of the given state snapshot. The state
// must not be mutated concurrently; callers pass an Engine snapshot.
func (r *Renderer) Render(ctx context.Context, state *timeline.EditorState, opts Options) (*Result, error) {
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width, opts.Height = compositor.RenderSize(state.AspectRatio)
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = defaultFrameRate
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}
	if len(opts.Variants) == 0 {
		opts.Variants = DefaultCodecVariants()
	}

	visible := visibleClips(state)
	if len(visible) == 0 {
		return nil, ErrEmptyTimeline
	}
	total := TotalDuration(state)
	if total <= 0 {
		return nil, ErrEmptyTimeline
	}

	codec, err := SelectCodec(ctx, r.probe, opts.Variants)
	if err != nil {
		return nil, err
	}

	metrics.ExportsStartedTotal.Inc()
	started := r.clk.Now()

	sources, audioInputs, err := r.preload(ctx, state, visible)
	if err != nil {
		r.teardown(sources)
		metrics.RecordExportFinished("failed", 0)
		return nil, err
	}
	defer r.teardown(sources)

	if err := r.enc.Start(ctx, EncoderOptions{
		Width:       opts.Width,
		Height:      opts.Height,
		FrameRate:   opts.FrameRate,
		Codec:       codec,
		AudioInputs: audioInputs,
		OutputPath:  opts.OutputPath,
	}); err != nil {
		metrics.RecordExportFinished("failed", 0)
		return nil, err
	}

	frames, err := r.renderLoop(ctx, state, opts, sources, total)
	if err != nil {
		r.enc.Abort()
		status := "failed"
		if errors.Is(err, context.Canceled) {
			status = "cancelled"
		}
		metrics.RecordExportFinished(status, r.clk.Now().Sub(started).Seconds())
		return nil, err
	}

	// Trailing grace period flushes audio still in flight before the
	// container is finalized.
	for _, s := range sources {
		s.element.SetMuted(true)
		s.element.Pause()
	}
	r.report(opts, 100, "finalizing")
	r.sleep(opts.GracePeriod)

	if err := r.enc.Finish(); err != nil {
		metrics.RecordExportFinished("failed", r.clk.Now().Sub(started).Seconds())
		return nil, err
	}

	elapsed := r.clk.Now().Sub(started).Seconds()
	metrics.RecordExportFinished("completed", elapsed)
	r.report(opts, 100, "completed")
	if r.log != nil {
		r.log.LogExportProgress(opts.OutputPath, 100, "completed")
	}

	return &Result{
		OutputPath:    opts.OutputPath,
		Duration:      total,
		Codec:         codec,
		FramesWritten: frames,
	}, nil
}

// renderLoop drives the dedicated clock from zero to the total duration
// at wall-clock speed, compositing and encoding one frame per tick.
func (r *Renderer) renderLoop(ctx context.Context, state *timeline.EditorState, opts Options, sources []*renderSource, total float64) (int, error) {
	clock := playback.NewVirtualClock(r.clk)
	clock.SetDuration(total)
	gen := clock.Generation()
	clock.Play()

	comp := compositor.New(r.frames, opts.Width, opts.Height)
	interval := time.Second / time.Duration(opts.FrameRate)
	frames := 0

	for {
		// Cancellation is effective before the next frame.
		if err := ctx.Err(); err != nil {
			return frames, err
		}

		pos, _ := clock.Tick(gen)

		frame, err := comp.RenderFrame(ctx, state, pos)
		if err != nil {
			return frames, err
		}
		if err := r.enc.WriteFrame(frame); err != nil {
			return frames, err
		}
		frames++

		r.driveSources(sources, pos)

		percent := pos / total * 100
		if percent > 100 {
			percent = 100
		}
		r.report(opts, percent, "rendering")

		if pos >= total {
			return frames, nil
		}
		r.sleep(interval)
	}
}

// driveSources updates gain and timing on every preloaded element for
// the current position. Elements whose clip just became inactive are
// paused and muted rather than released, so re-entry is cheap.
func (r *Renderer) driveSources(sources []*renderSource, pos float64) {
	for _, s := range sources {
		if !s.clip.ContainsTime(pos) {
			s.element.Pause()
			s.element.SetMuted(true)
			continue
		}

		s.element.SetRate(s.rate)
		s.element.SetVolume(s.gain)
		s.element.SetMuted(s.gain == 0)

		expected := s.clip.LocalTime(pos)
		if playback.NeedsResync(expected, s.element.CurrentTime(), playback.PlayingResyncTolerance) {
			s.element.Seek(expected)
			metrics.PlaybackResyncsTotal.WithLabelValues("export").Inc()
		}
		s.element.Play()
	}
}

// preload loads one element per contributing clip. Video clips that are
// audible additionally get a second, audio-only element of the same
// source so frame rendering stays muted while audio is gain-controlled
// independently. Any load failure aborts the export naming the asset.
func (r *Renderer) preload(ctx context.Context, state *timeline.EditorState, clips []timeline.Clip) ([]*renderSource, []AudioInput, error) {
	var sources []*renderSource
	var audio []AudioInput

	for _, clip := range clips {
		asset := state.AssetByID(clip.AssetID)
		if asset == nil {
			// Orphan clips render as placeholders; they contribute no
			// element.
			continue
		}

		src := r.resolve(asset)
		gain := state.EffectiveVolume(&clip)
		rate := clip.EffectiveSpeed() * state.TrackSettingsFor(clip.TrackIndex).EffectiveSpeed()

		el := r.newElement()
		if err := el.Load(ctx, src); err != nil {
			el.Close()
			return sources, nil, fmt.Errorf("failed to load asset %s (%s): %w", asset.ID, asset.Name, err)
		}

		switch asset.Kind {
		case timeline.AssetKindVideo:
			// The frame element never voices audio.
			el.SetMuted(true)
			sources = append(sources, &renderSource{clip: clip, element: el, gain: 0, rate: rate})

			if gain > 0 {
				audioEl := r.newElement()
				if err := audioEl.Load(ctx, src); err != nil {
					audioEl.Close()
					return sources, nil, fmt.Errorf("failed to load asset %s (%s): %w", asset.ID, asset.Name, err)
				}
				sources = append(sources, &renderSource{clip: clip, element: audioEl, gain: gain, rate: rate})
				audio = append(audio, AudioInput{
					Path:      src,
					StartTime: clip.StartTime,
					TrimStart: clip.TrimStart,
					Duration:  clip.Duration,
					Volume:    gain,
					Speed:     rate,
				})
			}
		case timeline.AssetKindAudio:
			sources = append(sources, &renderSource{clip: clip, element: el, gain: gain, rate: rate})
			audio = append(audio, AudioInput{
				Path:      src,
				StartTime: clip.StartTime,
				TrimStart: clip.TrimStart,
				Duration:  clip.Duration,
				Volume:    gain,
				Speed:     rate,
			})
		case timeline.AssetKindImage:
			sources = append(sources, &renderSource{clip: clip, element: el, gain: 0, rate: rate})
		}
	}
	return sources, audio, nil
}

// teardown releases every element regardless of completion state.
func (r *Renderer) teardown(sources []*renderSource) {
	for _, s := range sources {
		s.element.Pause()
		s.element.Close()
	}
}

func (r *Renderer) report(opts Options, percent float64, status string) {
	if opts.OnProgress != nil {
		opts.OnProgress(Progress{PercentComplete: percent, StatusMessage: status})
	}
}

// visibleClips filters to clips whose track is visible.
func visibleClips(state *timeline.EditorState) []timeline.Clip {
	var out []timeline.Clip
	for _, c := range state.Clips {
		if state.TrackSettingsFor(c.TrackIndex).Visible {
			out = append(out, c)
		}
	}
	return out
}
