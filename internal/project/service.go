package project

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cutlinehq/cutline/internal/logging"
	"github.com/cutlinehq/cutline/pkg/models"
	"github.com/cutlinehq/cutline/pkg/timeline"
)

// documentTTL bounds how long a cached document stays warm before the
// next load falls through to the database.
const documentTTL = 10 * time.Minute

// Repository is the slice of the database layer project persistence
// needs.
type Repository interface {
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context, ownerID string, limit, offset int) ([]*models.Project, error)
	DeleteProject(ctx context.Context, id string) error
	SaveDocument(ctx context.Context, projectID string, document []byte, expectedRevision int64) (int64, error)
	GetDocument(ctx context.Context, projectID string) (*models.ProjectDocument, error)
	TouchProject(ctx context.Context, id string, at time.Time) error
}

// DocumentCache keeps recently used documents out of the database's way.
type DocumentCache interface {
	SetDocument(ctx context.Context, projectID string, document []byte, ttl time.Duration) error
	GetDocument(ctx context.Context, projectID string) ([]byte, error)
	DeleteDocument(ctx context.Context, projectID string) error
}

// cachedDocument is the cache wire form; the revision travels with the
// document so a cache hit can still drive optimistic saves.
type cachedDocument struct {
	Revision int64           `json:"revision"`
	Document json.RawMessage `json:"document"`
}

// LoadedState is a project document rebuilt into editor state. Warnings
// list clips whose asset no longer exists.
type LoadedState struct {
	State    *timeline.EditorState
	Revision int64
	Warnings []string
}

// Service owns project records and their timeline documents. Saves are
// optimistic: callers pass the revision they loaded, and a concurrent
// writer surfaces as a revision conflict instead of a silent overwrite.
type Service struct {
	repo  Repository
	cache DocumentCache
	log   *logging.Logger
}

// NewService creates a project service. cache may be nil.
func NewService(repo Repository, cache DocumentCache, log *logging.Logger) *Service {
	return &Service{repo: repo, cache: cache, log: log}
}

// Create makes a new project seeded with an empty timeline document at
// revision 1.
func (s *Service) Create(ctx context.Context, ownerID, name string) (*models.Project, error) {
	now := time.Now().UTC()
	p := &models.Project{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	doc := timeline.NewEditorState().ToDocument()
	data, err := timeline.MarshalDocument(doc)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.SaveDocument(ctx, p.ID, data, 0); err != nil {
		return nil, fmt.Errorf("failed to seed project document: %w", err)
	}

	if s.log != nil {
		s.log.WithProjectID(p.ID).WithField("owner_id", ownerID).Info("project created")
	}
	return p, nil
}

// Get fetches a project record.
func (s *Service) Get(ctx context.Context, id string) (*models.Project, error) {
	return s.repo.GetProject(ctx, id)
}

// List returns a page of the owner's projects, newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]*models.Project, error) {
	return s.repo.ListProjects(ctx, ownerID, limit, offset)
}

// Delete removes a project, its document and any cached copy.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteProject(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.DeleteDocument(ctx, id); err != nil && s.log != nil {
			s.log.WithProjectID(id).ErrorWithErr("failed to evict cached document", err)
		}
	}
	return nil
}

// Load rebuilds a project's editor state from the cache or the database.
// Clips referencing deleted assets survive the load; their ids come back
// as warnings.
func (s *Service) Load(ctx context.Context, projectID string) (*LoadedState, error) {
	if s.cache != nil {
		if data, err := s.cache.GetDocument(ctx, projectID); err == nil && data != nil {
			if loaded, err := decodeCached(data); err == nil {
				return loaded, nil
			}
			// A corrupt cache entry falls through to the database.
		}
	}

	rec, err := s.repo.GetDocument(ctx, projectID)
	if err != nil {
		return nil, err
	}
	loaded, err := buildState(rec.Document, rec.Revision)
	if err != nil {
		return nil, err
	}
	s.cacheDocument(ctx, projectID, rec.Document, rec.Revision)
	return loaded, nil
}

// Save persists editor state at the given revision. On success the new
// revision is returned; a concurrent writer surfaces as
// database.ErrRevisionConflict from the repository.
func (s *Service) Save(ctx context.Context, projectID string, state *timeline.EditorState, expectedRevision int64) (int64, error) {
	data, err := timeline.MarshalDocument(state.ToDocument())
	if err != nil {
		return 0, err
	}

	revision, err := s.repo.SaveDocument(ctx, projectID, data, expectedRevision)
	if err != nil {
		return 0, err
	}

	s.cacheDocument(ctx, projectID, data, revision)
	if err := s.repo.TouchProject(ctx, projectID, time.Now().UTC()); err != nil && s.log != nil {
		s.log.WithProjectID(projectID).ErrorWithErr("failed to touch project", err)
	}
	return revision, nil
}

func (s *Service) cacheDocument(ctx context.Context, projectID string, document []byte, revision int64) {
	if s.cache == nil {
		return
	}
	wrapped, err := json.Marshal(cachedDocument{Revision: revision, Document: document})
	if err != nil {
		return
	}
	if err := s.cache.SetDocument(ctx, projectID, wrapped, documentTTL); err != nil && s.log != nil {
		s.log.WithProjectID(projectID).ErrorWithErr("failed to cache document", err)
	}
}

func decodeCached(data []byte) (*LoadedState, error) {
	var wrapped cachedDocument
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Revision == 0 || wrapped.Document == nil {
		return nil, fmt.Errorf("cached document missing revision")
	}
	return buildState(wrapped.Document, wrapped.Revision)
}

func buildState(data []byte, revision int64) (*LoadedState, error) {
	doc, err := timeline.UnmarshalDocument(data)
	if err != nil {
		return nil, err
	}
	state, warnings, err := timeline.FromDocument(doc)
	if err != nil {
		return nil, err
	}
	return &LoadedState{State: state, Revision: revision, Warnings: warnings}, nil
}
