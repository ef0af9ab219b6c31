package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cutlinehq/cutline/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// ErrRevisionConflict is returned when a document save races a newer
// revision
var ErrRevisionConflict = errors.New("document revision conflict")

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Projects

// CreateProject creates a new project record
func (r *Repository) CreateProject(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}

	query := `
		INSERT INTO projects (id, owner_id, name)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		project.ID, project.OwnerID, project.Name,
	).Scan(&project.CreatedAt, &project.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetProject retrieves a project by ID
func (r *Repository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project

	query := `
		SELECT id, owner_id, name, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&project.ID, &project.OwnerID, &project.Name,
		&project.CreatedAt, &project.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// ListProjects retrieves an owner's projects with pagination
func (r *Repository) ListProjects(ctx context.Context, ownerID string, limit, offset int) ([]*models.Project, error) {
	query := `
		SELECT id, owner_id, name, created_at, updated_at
		FROM projects
		WHERE owner_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var project models.Project
		err := rows.Scan(
			&project.ID, &project.OwnerID, &project.Name,
			&project.CreatedAt, &project.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &project)
	}

	return projects, rows.Err()
}

// DeleteProject deletes a project and its documents
func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// Project Documents

// SaveDocument upserts a project's timeline document. The expected
// revision guards against concurrent writers: the save succeeds only
// when the stored revision still matches, and the new revision is
// expected+1.
func (r *Repository) SaveDocument(ctx context.Context, projectID string, document []byte, expectedRevision int64) (int64, error) {
	if expectedRevision == 0 {
		query := `
			INSERT INTO project_documents (project_id, revision, document, updated_at)
			VALUES ($1, 1, $2, NOW())
			ON CONFLICT (project_id) DO NOTHING
			RETURNING revision
		`
		var revision int64
		err := r.db.Pool.QueryRow(ctx, query, projectID, document).Scan(&revision)
		if err == pgx.ErrNoRows {
			return 0, ErrRevisionConflict
		}
		if err != nil {
			return 0, fmt.Errorf("failed to save document: %w", err)
		}
		return revision, nil
	}

	query := `
		UPDATE project_documents
		SET revision = revision + 1, document = $2, updated_at = NOW()
		WHERE project_id = $1 AND revision = $3
		RETURNING revision
	`

	var revision int64
	err := r.db.Pool.QueryRow(ctx, query, projectID, document, expectedRevision).Scan(&revision)
	if err == pgx.ErrNoRows {
		return 0, ErrRevisionConflict
	}
	if err != nil {
		return 0, fmt.Errorf("failed to save document: %w", err)
	}

	return revision, nil
}

// GetDocument retrieves a project's current timeline document
func (r *Repository) GetDocument(ctx context.Context, projectID string) (*models.ProjectDocument, error) {
	var doc models.ProjectDocument

	query := `
		SELECT project_id, revision, document, updated_at
		FROM project_documents
		WHERE project_id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, projectID).Scan(
		&doc.ProjectID, &doc.Revision, &doc.Document, &doc.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

// Export Jobs

// CreateExportJob creates a new export job record
func (r *Repository) CreateExportJob(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = models.ExportStatusPending
	}

	query := `
		INSERT INTO export_jobs (id, project_id, status, progress, status_message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		job.ID, job.ProjectID, job.Status, job.Progress, job.StatusMessage,
	).Scan(&job.CreatedAt, &job.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create export job: %w", err)
	}

	return nil
}

// GetExportJob retrieves an export job by ID
func (r *Repository) GetExportJob(ctx context.Context, id string) (*models.ExportJob, error) {
	var job models.ExportJob

	query := `
		SELECT id, project_id, status, progress, status_message, output_path,
		       codec, duration, error_msg, worker_id, started_at, completed_at,
		       created_at, updated_at
		FROM export_jobs
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.ProjectID, &job.Status, &job.Progress, &job.StatusMessage,
		&job.OutputPath, &job.Codec, &job.Duration, &job.ErrorMsg, &job.WorkerID,
		&job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export job: %w", err)
	}

	return &job, nil
}

// UpdateExportJobStatus transitions an export job's status
func (r *Repository) UpdateExportJobStatus(ctx context.Context, id, status, errorMsg string) error {
	query := `
		UPDATE export_jobs
		SET status = $2, error_msg = $3, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, id, status, errorMsg)
	if err != nil {
		return fmt.Errorf("failed to update export job status: %w", err)
	}

	return nil
}

// MarkExportJobStarted records the worker claiming the job
func (r *Repository) MarkExportJobStarted(ctx context.Context, id, workerID string) error {
	query := `
		UPDATE export_jobs
		SET status = $2, worker_id = $3, started_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, id, models.ExportStatusProcessing, workerID)
	if err != nil {
		return fmt.Errorf("failed to mark export job started: %w", err)
	}

	return nil
}

// MarkExportJobCompleted records a finished export and its output
func (r *Repository) MarkExportJobCompleted(ctx context.Context, id, outputPath, codec string, duration float64) error {
	query := `
		UPDATE export_jobs
		SET status = $2, progress = 100, output_path = $3, codec = $4,
		    duration = $5, completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, id, models.ExportStatusCompleted, outputPath, codec, duration)
	if err != nil {
		return fmt.Errorf("failed to mark export job completed: %w", err)
	}

	return nil
}

// UpdateExportJobProgress persists the latest progress for a running job
func (r *Repository) UpdateExportJobProgress(ctx context.Context, id string, progress float64, statusMessage string) error {
	query := `
		UPDATE export_jobs
		SET progress = $2, status_message = $3, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, id, progress, statusMessage)
	if err != nil {
		return fmt.Errorf("failed to update export job progress: %w", err)
	}

	return nil
}

// ListExportJobs retrieves a project's export jobs, newest first
func (r *Repository) ListExportJobs(ctx context.Context, projectID string, limit, offset int) ([]*models.ExportJob, error) {
	query := `
		SELECT id, project_id, status, progress, status_message, output_path,
		       codec, duration, error_msg, worker_id, started_at, completed_at,
		       created_at, updated_at
		FROM export_jobs
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list export jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ExportJob
	for rows.Next() {
		var job models.ExportJob
		err := rows.Scan(
			&job.ID, &job.ProjectID, &job.Status, &job.Progress, &job.StatusMessage,
			&job.OutputPath, &job.Codec, &job.Duration, &job.ErrorMsg, &job.WorkerID,
			&job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export job: %w", err)
		}
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

// Webhooks

// CreateWebhook creates a webhook subscription
func (r *Repository) CreateWebhook(ctx context.Context, webhook *models.Webhook) error {
	if webhook.ID == "" {
		webhook.ID = uuid.New().String()
	}

	query := `
		INSERT INTO webhooks (id, owner_id, url, events, secret, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		webhook.ID, webhook.OwnerID, webhook.URL, webhook.Events,
		webhook.Secret, webhook.IsActive,
	).Scan(&webhook.CreatedAt, &webhook.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}

	return nil
}

// ListActiveWebhooks retrieves all active webhooks for an owner
func (r *Repository) ListActiveWebhooks(ctx context.Context, ownerID string) ([]*models.Webhook, error) {
	query := `
		SELECT id, owner_id, url, events, secret, is_active, created_at, updated_at
		FROM webhooks
		WHERE owner_id = $1 AND is_active = true
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*models.Webhook
	for rows.Next() {
		var webhook models.Webhook
		err := rows.Scan(
			&webhook.ID, &webhook.OwnerID, &webhook.URL, &webhook.Events,
			&webhook.Secret, &webhook.IsActive, &webhook.CreatedAt, &webhook.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, &webhook)
	}

	return webhooks, rows.Err()
}

// TouchProject bumps a project's updated_at after a document save
func (r *Repository) TouchProject(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE projects SET updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch project: %w", err)
	}
	return nil
}
