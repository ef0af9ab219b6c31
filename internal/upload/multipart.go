package upload

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cutlinehq/cutline/internal/logging"
)

// Part sizing and session lifetime.
const (
	DefaultPartSize   = 5 * 1024 * 1024
	MaxPartSize       = 100 * 1024 * 1024
	SessionExpiration = 24 * time.Hour
)

// Session statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
)

// Session is one chunked media upload in progress. Large source files
// arrive in parts; Complete stitches them into a single local file the
// ingestion service can probe and store.
type Session struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"project_id"`
	Filename    string        `json:"filename"`
	TotalSize   int64         `json:"total_size"`
	PartSize    int64         `json:"part_size"`
	TotalParts  int           `json:"total_parts"`
	Parts       map[int]*Part `json:"parts"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	mu          sync.RWMutex
}

// Part is a single received chunk.
type Part struct {
	PartNumber int       `json:"part_number"`
	Size       int64     `json:"size"`
	ETag       string    `json:"etag"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Manager tracks chunked upload sessions on local disk.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	tempDir  string
	partSize int64
	log      *logging.Logger
}

// NewManager creates an upload manager spooling into tempDir.
func NewManager(tempDir string, partSize int64, log *logging.Logger) *Manager {
	if partSize <= 0 {
		partSize = DefaultPartSize
	}
	if partSize > MaxPartSize {
		partSize = MaxPartSize
	}
	return &Manager{
		sessions: make(map[string]*Session),
		tempDir:  tempDir,
		partSize: partSize,
		log:      log,
	}
}

// Initiate starts a chunked upload session for one media file.
func (m *Manager) Initiate(projectID, filename string, totalSize int64) (*Session, error) {
	if totalSize <= 0 {
		return nil, fmt.Errorf("invalid total size %d", totalSize)
	}

	s := &Session{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		Filename:   filename,
		TotalSize:  totalSize,
		PartSize:   m.partSize,
		TotalParts: int((totalSize + m.partSize - 1) / m.partSize),
		Parts:      make(map[int]*Part),
		Status:     StatusActive,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(SessionExpiration),
	}

	if err := os.MkdirAll(m.sessionDir(s.ID), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if m.log != nil {
		m.log.WithProjectID(projectID).
			WithField("upload_id", s.ID).
			WithField("parts", s.TotalParts).
			Info("chunked upload initiated")
	}
	return s, nil
}

// PutPart stores one chunk and returns its receipt.
func (m *Manager) PutPart(sessionID string, partNumber int, data io.Reader) (*Part, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusActive {
		return nil, fmt.Errorf("upload session is %s", s.Status)
	}
	if time.Now().After(s.ExpiresAt) {
		return nil, fmt.Errorf("upload session has expired")
	}
	if partNumber < 1 || partNumber > s.TotalParts {
		return nil, fmt.Errorf("invalid part number %d of %d", partNumber, s.TotalParts)
	}

	partPath := filepath.Join(m.sessionDir(sessionID), fmt.Sprintf("part_%d", partNumber))
	file, err := os.Create(partPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create part file: %w", err)
	}
	defer file.Close()

	hash := md5.New()
	size, err := io.Copy(io.MultiWriter(file, hash), data)
	if err != nil {
		return nil, fmt.Errorf("failed to write part: %w", err)
	}

	part := &Part{
		PartNumber: partNumber,
		Size:       size,
		ETag:       hex.EncodeToString(hash.Sum(nil)),
		UploadedAt: time.Now(),
	}

	s.mu.Lock()
	s.Parts[partNumber] = part
	s.mu.Unlock()

	return part, nil
}

// Complete stitches the parts into the final file and returns its local
// path. The caller ingests it and then calls Abort to reclaim the
// session directory.
func (m *Manager) Complete(sessionID string) (string, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusActive {
		return "", fmt.Errorf("upload session is %s", s.Status)
	}
	for i := 1; i <= s.TotalParts; i++ {
		if _, ok := s.Parts[i]; !ok {
			return "", fmt.Errorf("missing part %d of %d", i, s.TotalParts)
		}
	}

	dir := m.sessionDir(sessionID)
	finalPath := filepath.Join(dir, s.Filename)
	finalFile, err := os.Create(finalPath)
	if err != nil {
		return "", fmt.Errorf("failed to create final file: %w", err)
	}
	defer finalFile.Close()

	for i := 1; i <= s.TotalParts; i++ {
		partPath := filepath.Join(dir, fmt.Sprintf("part_%d", i))
		partFile, err := os.Open(partPath)
		if err != nil {
			return "", fmt.Errorf("failed to open part %d: %w", i, err)
		}
		_, err = io.Copy(finalFile, partFile)
		partFile.Close()
		if err != nil {
			return "", fmt.Errorf("failed to assemble part %d: %w", i, err)
		}
		os.Remove(partPath)
	}

	s.Status = StatusCompleted
	now := time.Now()
	s.CompletedAt = &now

	if m.log != nil {
		m.log.WithProjectID(s.ProjectID).WithField("upload_id", sessionID).Info("chunked upload assembled")
	}
	return finalPath, nil
}

// Abort drops a session and its spooled data.
func (m *Manager) Abort(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("upload session not found: %s", sessionID)
	}

	s.mu.Lock()
	s.Status = StatusAborted
	s.mu.Unlock()

	if err := os.RemoveAll(m.sessionDir(sessionID)); err != nil && m.log != nil {
		m.log.WithField("upload_id", sessionID).ErrorWithErr("failed to remove upload directory", err)
	}
	return nil
}

// Get returns a session's current status.
func (m *Manager) Get(sessionID string) (*Session, error) {
	return m.get(sessionID)
}

// SweepExpired aborts sessions past their expiration. Meant to run on a
// ticker.
func (m *Manager) SweepExpired() {
	m.mu.RLock()
	var expired []string
	now := time.Now()
	for id, s := range m.sessions {
		if s.Status == StatusActive && now.After(s.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		if err := m.Abort(id); err == nil && m.log != nil {
			m.log.WithField("upload_id", id).Info("expired upload reclaimed")
		}
	}
}

func (m *Manager) get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("upload session not found: %s", sessionID)
	}
	return s, nil
}

func (m *Manager) sessionDir(sessionID string) string {
	return filepath.Join(m.tempDir, "uploads", sessionID)
}
