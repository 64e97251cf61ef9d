package models

import (
	"time"

	"github.com/google/uuid"
)

// AdminUser marks a user as admin by its presence.
type AdminUser struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
