package models

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is the review state of an application.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

// Valid reports whether s is one of the three review states.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Application is one merchant enrollment attempt.
type Application struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID         `gorm:"type:uuid;not null;index:idx_applications_user_created,priority:1" json:"user_id"`
	DBAName            string            `gorm:"column:dba_name;not null" json:"dba_name"`
	BusinessPhone      string            `gorm:"not null" json:"business_phone"`
	BusinessWebsite    string            `json:"business_website"`
	BusinessAddress    string            `gorm:"not null" json:"business_address"`
	ShippingAddress    string            `json:"shipping_address"`
	TaxID              string            `gorm:"column:tax_id;not null" json:"tax_id"`
	OwnerFirstName     string            `gorm:"not null" json:"owner_first_name"`
	OwnerLastName      string            `gorm:"not null" json:"owner_last_name"`
	PersonalPhone      string            `json:"personal_phone"`
	Email              string            `gorm:"not null" json:"email"`
	SSN                string            `gorm:"column:ssn;not null" json:"ssn"`
	DriversLicenseURL  *string           `json:"drivers_license_url"`
	BusinessLicenseURL *string           `json:"business_license_url"`
	VoidCheckURL       *string           `json:"void_check_url"`
	AdditionalDocURL   *string           `json:"additional_doc_url"`
	Status             ApplicationStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	AdminNotes         *string           `json:"admin_notes"`
	CreatedAt          time.Time         `gorm:"index:idx_applications_user_created,priority:2" json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// StatusCount is one row of a per-status aggregate.
type StatusCount struct {
	Status ApplicationStatus `json:"status"`
	Count  int64             `json:"count"`
}
