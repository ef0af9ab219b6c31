package session

import (
	"context"
	"sync"
	"time"

	"github.com/cutlinehq/cutline/internal/commands"
	"github.com/cutlinehq/cutline/internal/edit"
	"github.com/cutlinehq/cutline/internal/logging"
	"github.com/cutlinehq/cutline/internal/project"
	"github.com/cutlinehq/cutline/pkg/timeline"
)

// DefaultMaxIdle is how long a session may sit untouched before the
// sweeper evicts it.
const DefaultMaxIdle = 30 * time.Minute

// ProjectStore loads and saves project documents.
type ProjectStore interface {
	Load(ctx context.Context, projectID string) (*project.LoadedState, error)
	Save(ctx context.Context, projectID string, state *timeline.EditorState, expectedRevision int64) (int64, error)
}

// Session is one live editing session for a project. The engine keeps
// undo history and the clipboard across requests; the revision tracks
// the optimistic save position.
type Session struct {
	mu         sync.Mutex
	projectID  string
	engine     *edit.Engine
	dispatcher *commands.Dispatcher
	revision   int64
	warnings   []string
	lastUsed   time.Time
}

// Dispatch runs one command against the session's engine.
func (s *Session) Dispatch(cmd commands.Command) (*commands.Result, error) {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
	return s.dispatcher.Dispatch(cmd)
}

// Snapshot returns a consistent copy of the session's state.
func (s *Session) Snapshot() *timeline.EditorState {
	return s.engine.Snapshot()
}

// Revision reports the revision the session last loaded or saved.
func (s *Session) Revision() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Warnings lists orphan clip ids surfaced when the session loaded.
func (s *Session) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// Engine exposes the underlying edit engine for direct operations the
// command surface doesn't cover (drag, resize, selection).
func (s *Session) Engine() *edit.Engine {
	return s.engine
}

// Config tunes session creation.
type Config struct {
	Edit      edit.Config
	FrameRate float64
	MaxIdle   time.Duration
	// PlayerFor supplies the transport target for a project's command
	// dispatcher. Nil leaves transport commands position-only.
	PlayerFor func(projectID string) commands.Player
}

// Manager hands out at most one session per project and persists their
// state back through the project store.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	store    ProjectStore
	cfg      Config
	log      *logging.Logger
}

// NewManager creates a session manager.
func NewManager(store ProjectStore, cfg Config, log *logging.Logger) *Manager {
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = DefaultMaxIdle
	}
	return &Manager{
		sessions: make(map[string]*Session),
		store:    store,
		cfg:      cfg,
		log:      log,
	}
}

// Get returns the project's live session, loading the document and
// creating one on first use.
func (m *Manager) Get(ctx context.Context, projectID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[projectID]; ok {
		m.mu.Unlock()
		s.mu.Lock()
		s.lastUsed = time.Now()
		s.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	loaded, err := m.store.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}

	engine := edit.NewEngine(loaded.State, m.cfg.Edit, m.log)
	var player commands.Player
	if m.cfg.PlayerFor != nil {
		player = m.cfg.PlayerFor(projectID)
	}
	s := &Session{
		projectID:  projectID,
		engine:     engine,
		dispatcher: commands.NewDispatcher(engine, player, m.cfg.FrameRate, m.log),
		revision:   loaded.Revision,
		warnings:   loaded.Warnings,
		lastUsed:   time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A racing request may have created the session first; keep theirs.
	if existing, ok := m.sessions[projectID]; ok {
		return existing, nil
	}
	m.sessions[projectID] = s
	return s, nil
}

// Save persists a session's current state and advances its revision.
// A revision conflict means another writer saved through a different
// path; the session is evicted so the next request reloads fresh state.
func (m *Manager) Save(ctx context.Context, projectID string) (int64, error) {
	m.mu.Lock()
	s, ok := m.sessions[projectID]
	m.mu.Unlock()
	if !ok {
		return 0, nil
	}

	s.mu.Lock()
	revision := s.revision
	s.mu.Unlock()

	newRevision, err := m.store.Save(ctx, projectID, s.engine.Snapshot(), revision)
	if err != nil {
		m.Evict(projectID)
		return 0, err
	}

	s.mu.Lock()
	s.revision = newRevision
	s.mu.Unlock()
	return newRevision, nil
}

// Evict drops a session without saving.
func (m *Manager) Evict(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, projectID)
}

// Len reports how many sessions are live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep saves and evicts sessions idle past the configured limit. It is
// meant to run on a ticker.
func (m *Manager) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-m.cfg.MaxIdle)

	m.mu.Lock()
	var stale []string
	for id, s := range m.sessions {
		s.mu.Lock()
		if s.lastUsed.Before(cutoff) {
			stale = append(stale, id)
		}
		s.mu.Unlock()
	}
	m.mu.Unlock()

	for _, id := range stale {
		if _, err := m.Save(ctx, id); err != nil && m.log != nil {
			m.log.WithProjectID(id).ErrorWithErr("failed to save idle session", err)
		}
		m.Evict(id)
	}
}

// SaveAll persists every live session, evicting each as it goes. Used
// at shutdown.
func (m *Manager) SaveAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if _, err := m.Save(ctx, id); err != nil && m.log != nil {
			m.log.WithProjectID(id).ErrorWithErr("failed to save session at shutdown", err)
		}
		m.Evict(id)
	}
}

// Run sweeps on an interval until the context ends.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}
