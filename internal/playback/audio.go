package playback

import (
	"context"

	"github.com/cutlinehq/cutline/internal/media"
	"github.com/cutlinehq/cutline/internal/metrics"
)

// MainAudioManager owns the single element backing the "main audio"
// role: however many audio clips exist on the timeline, at most one
// audio element plays at any instant. The manager is a field of its
// synchronizer, not a global, so preview and export each hold an
// independent instance with an explicit lifetime.
type MainAudioManager struct {
	element media.Element
}

// NewMainAudioManager wraps the element dedicated to main audio.
func NewMainAudioManager(element media.Element) *MainAudioManager {
	return &MainAudioManager{element: element}
}

// Retarget points the main audio at the active audio clip's source and
// drives it toward the expected media-local time. A changed source is
// reloaded; an unchanged one is only seeked when drift exceeds the
// tolerance. Volume is applied as the fully composed gain and a zero
// gain hard-mutes the element.
func (m *MainAudioManager) Retarget(ctx context.Context, src string, localTime, rate, volume float64, playing bool) error {
	if m.element.Src() != src {
		if err := m.element.Load(ctx, src); err != nil {
			return err
		}
		m.element.Seek(localTime)
	}

	m.element.SetRate(rate)
	m.element.SetVolume(volume)
	m.element.SetMuted(volume == 0)

	if NeedsResync(localTime, m.element.CurrentTime(), ResyncTolerance(playing)) {
		m.element.Seek(localTime)
		metrics.PlaybackResyncsTotal.WithLabelValues("audio").Inc()
	}

	if playing {
		m.element.Play()
	} else {
		m.element.Pause()
	}
	return nil
}

// Stop pauses and mutes the main audio without releasing the element,
// used when no audio clip is active at the current position.
func (m *MainAudioManager) Stop() {
	m.element.Pause()
	m.element.SetMuted(true)
}

// Active reports whether a source is currently loaded.
func (m *MainAudioManager) Active() bool {
	return m.element.Src() != ""
}

// Close releases the underlying element.
func (m *MainAudioManager) Close() error {
	return m.element.Close()
}
