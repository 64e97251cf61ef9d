package models

import (
	"time"

	"github.com/google/uuid"
)

// OrphanedDocument is an uploaded object whose compensating delete failed.
type OrphanedDocument struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Bucket     string     `gorm:"not null" json:"bucket"`
	Path       string     `gorm:"not null" json:"path"`
	Reason     string     `gorm:"type:text" json:"reason"`
	Attempts   int        `gorm:"not null" json:"attempts"`
	ResolvedAt *time.Time `gorm:"index" json:"resolved_at"`
	CreatedAt  time.Time  `json:"created_at"`
}
