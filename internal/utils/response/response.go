// Package response writes JSON bodies and maps domain errors to HTTP statuses.
package response

import (
	apperr "onboard/internal/errors"

	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

func Unauthorized(c *fiber.Ctx) error {
	return Error(c, fiber.StatusUnauthorized, "Unauthorized")
}

// Status returns the HTTP status for a domain error code.
func Status(code apperr.Code) int {
	switch code {
	case apperr.CodeValidationFailed, apperr.CodeInvalidStatus:
		return fiber.StatusBadRequest
	case apperr.CodeNotAuthenticated, apperr.CodeInvalidCredentials:
		return fiber.StatusUnauthorized
	case apperr.CodeForbidden:
		return fiber.StatusForbidden
	case apperr.CodeNotFound:
		return fiber.StatusNotFound
	case apperr.CodeEmailTaken:
		return fiber.StatusConflict
	case apperr.CodeUploadFailed:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// FromError writes err as {"error", "code", "details", "fields"}. Errors
// without a domain code become a bare 500.
func FromError(c *fiber.Ctx, err error) error {
	de, ok := apperr.As(err)
	if !ok {
		return Error(c, fiber.StatusInternalServerError, "Internal server error")
	}
	body := fiber.Map{
		"error": de.Message,
		"code":  de.Code,
	}
	if details := PublicDetails(de); details != "" {
		body["details"] = details
	}
	if len(de.Fields) > 0 {
		body["fields"] = de.Fields
	}
	return c.Status(Status(de.Code)).JSON(body)
}

// PublicDetails is the part of de.Details a client may see. Store failures
// expose only the sanitized reason and internal errors expose nothing.
func PublicDetails(de *apperr.DomainError) string {
	switch de.Code {
	case apperr.CodeInternal:
		return ""
	case apperr.CodeRecordInsertFailed, apperr.CodeUpdateFailed:
		return de.Reason()
	}
	return de.Details
}

// ErrorHandler is the fiber fallback for errors returned by handlers.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return Error(c, fe.Code, fe.Message)
	}
	return FromError(c, err)
}
