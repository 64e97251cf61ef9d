package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable note written when an application changes status.
type Message struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	SubmissionID uuid.UUID         `gorm:"type:uuid;not null;index" json:"submission_id"`
	Message      string            `gorm:"type:text;not null" json:"message"`
	Status       ApplicationStatus `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
}
