// Package preview hosts live playback sessions for the interactive
// editor. Each session owns a virtual clock, a synchronizer with its
// media elements, and a compositor; frames are rendered on demand while
// a background loop keeps the elements aligned with the clock.
package preview

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/cutlinehq/cutline/internal/commands"
	"github.com/cutlinehq/cutline/internal/compositor"
	"github.com/cutlinehq/cutline/internal/logging"
	"github.com/cutlinehq/cutline/internal/media"
	"github.com/cutlinehq/cutline/internal/metrics"
	"github.com/cutlinehq/cutline/internal/playback"
	"github.com/cutlinehq/cutline/pkg/timeline"
)

// ErrNoSession is returned when a project has no live preview session.
var ErrNoSession = errors.New("no preview session for project")

// StateFunc supplies the current editor state for a project. The
// session calls it on every tick so edits are visible immediately.
type StateFunc func(ctx context.Context) (*timeline.EditorState, error)

// FrameDecoder decodes a single frame from a playable source.
// *media.FFmpeg satisfies it.
type FrameDecoder interface {
	FrameAt(ctx context.Context, inputPath string, t float64, width, height int) (*image.RGBA, error)
}

// Config tunes preview sessions.
type Config struct {
	Width     int
	Height    int
	FrameRate float64
}

// Manager hands out at most one preview session per project.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	decoder  FrameDecoder
	resolve  playback.SourceResolver
	cfg      Config
	log      *logging.Logger
}

// NewManager creates a preview session manager.
func NewManager(decoder FrameDecoder, resolve playback.SourceResolver, cfg Config, log *logging.Logger) *Manager {
	if cfg.Width <= 0 {
		cfg.Width = 854
	}
	if cfg.Height <= 0 {
		cfg.Height = 480
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}
	return &Manager{
		sessions: make(map[string]*Session),
		decoder:  decoder,
		resolve:  resolve,
		cfg:      cfg,
		log:      log,
	}
}

// Open returns the project's live preview session, creating one on
// first use. Opening an already open project is a no-op returning the
// existing session.
func (m *Manager) Open(projectID string, state StateFunc) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[projectID]; ok {
		return s, nil
	}

	clock := playback.NewVirtualClock(media.SystemClock{})
	synchronizer := playback.NewSynchronizer(
		clock,
		media.NewClockElement(nil),
		media.NewClockElement(nil),
		m.resolve,
		m.log,
	)
	comp := compositor.NewLenient(&assetFrameSource{decode: m.decoder, resolve: m.resolve}, m.cfg.Width, m.cfg.Height)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		projectID: projectID,
		state:     state,
		sync:      synchronizer,
		comp:      comp,
		cancel:    cancel,
		log:       m.log,
	}
	m.sessions[projectID] = s
	metrics.PlaybackSessionsActive.Inc()

	go s.run(ctx, time.Duration(float64(time.Second)/m.cfg.FrameRate))
	return s, nil
}

// Get returns the project's live session.
func (m *Manager) Get(projectID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[projectID]
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

// Close tears down the project's session and releases its elements.
func (m *Manager) Close(projectID string) error {
	m.mu.Lock()
	s, ok := m.sessions[projectID]
	if ok {
		delete(m.sessions, projectID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNoSession
	}
	s.close()
	metrics.PlaybackSessionsActive.Dec()
	return nil
}

// CloseAll tears down every live session. Used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for range sessions {
		metrics.PlaybackSessionsActive.Dec()
	}
	for _, s := range sessions {
		s.close()
	}
}

// Len reports how many sessions are live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// PlayerFor adapts the project's preview session, if any, into the
// command surface's player. Transport commands against a project with
// no open preview are position-only no-ops.
func (m *Manager) PlayerFor(projectID string) commands.Player {
	return &projectPlayer{manager: m, projectID: projectID}
}

type projectPlayer struct {
	manager   *Manager
	projectID string
}

func (p *projectPlayer) Play() {
	if s, err := p.manager.Get(p.projectID); err == nil {
		s.Play()
	}
}

func (p *projectPlayer) Pause() {
	if s, err := p.manager.Get(p.projectID); err == nil {
		s.Pause()
	}
}

func (p *projectPlayer) Seek(pos float64) float64 {
	if s, err := p.manager.Get(p.projectID); err == nil {
		return s.Seek(pos)
	}
	return pos
}

// assetFrameSource resolves assets to playable sources and decodes
// frames through the shared decoder.
type assetFrameSource struct {
	decode  FrameDecoder
	resolve playback.SourceResolver
}

func (a *assetFrameSource) FrameAt(ctx context.Context, asset *timeline.Asset, localTime float64, width, height int) (*image.RGBA, error) {
	return a.decode.FrameAt(ctx, a.resolve(asset), localTime, width, height)
}
