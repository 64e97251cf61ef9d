package review

import (
	"strings"

	apperr "onboard/internal/errors"
	"onboard/internal/models"
)

const adminNotesSeparator = "\n\nAdmin Notes: "

var templates = map[models.ApplicationStatus]string{
	models.StatusPending:  "Your application has been received and is under review.",
	models.StatusApproved: "Congratulations! Your application has been approved. You can now proceed.",
	models.StatusRejected: "Your application requires additional information. Please see admin notes.",
}

// ParseStatus accepts exactly pending, approved or rejected.
func ParseStatus(s string) (models.ApplicationStatus, error) {
	status := models.ApplicationStatus(strings.TrimSpace(s))
	if !status.Valid() {
		return "", apperr.ErrInvalidStatus
	}
	return status, nil
}

// MessageFor renders the notification text for status, appending note if set.
func MessageFor(status models.ApplicationStatus, note string) string {
	msg := templates[status]
	if note = strings.TrimSpace(note); note != "" {
		msg += adminNotesSeparator + note
	}
	return msg
}
