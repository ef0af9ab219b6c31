package models

import (
	"time"
)

// ExportJob represents one export run of a project's timeline
type ExportJob struct {
	ID            string     `json:"id" db:"id"`
	ProjectID     string     `json:"project_id" db:"project_id"`
	Status        string     `json:"status" db:"status"`
	Progress      float64    `json:"progress" db:"progress"`
	StatusMessage string     `json:"status_message,omitempty" db:"status_message"`
	OutputPath    string     `json:"output_path,omitempty" db:"output_path"`
	Codec         string     `json:"codec,omitempty" db:"codec"`
	Duration      float64    `json:"duration" db:"duration"`
	ErrorMsg      string     `json:"error_msg,omitempty" db:"error_msg"`
	WorkerID      string     `json:"worker_id,omitempty" db:"worker_id"`
	StartedAt     *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// ExportStatus constants
const (
	ExportStatusPending    = "pending"
	ExportStatusQueued     = "queued"
	ExportStatusProcessing = "processing"
	ExportStatusCompleted  = "completed"
	ExportStatusFailed     = "failed"
	ExportStatusCancelled  = "cancelled"
)

// ExportRequest is the payload queued for the export worker
type ExportRequest struct {
	JobID       string `json:"job_id"`
	ProjectID   string `json:"project_id"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	FrameRate   int    `json:"frame_rate,omitempty"`
}
