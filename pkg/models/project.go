package models

import (
	"time"
)

// Project represents an editing project owning one timeline document
type Project struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectDocument is a persisted timeline document revision. Document
// holds the serialized timeline as produced by the engine.
type ProjectDocument struct {
	ProjectID string    `json:"project_id" db:"project_id"`
	Revision  int64     `json:"revision" db:"revision"`
	Document  []byte    `json:"document" db:"document"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
