package handlers

import (
	apperr "onboard/internal/errors"
	"onboard/internal/middleware"
	"onboard/internal/models"
	"onboard/internal/services/review"
	"onboard/internal/utils/pagination"
	"onboard/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// AdminHandler is the review surface. Every route sits behind the admin gate.
type AdminHandler struct {
	reviewService review.Service
}

func NewAdminHandler(reviewService review.Service) *AdminHandler {
	return &AdminHandler{
		reviewService: reviewService,
	}
}

// ListApplications returns all applications, newest first.
func (h *AdminHandler) ListApplications(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c)

	var status models.ApplicationStatus
	if raw := c.Query("status"); raw != "" {
		parsed, err := review.ParseStatus(raw)
		if err != nil {
			return response.FromError(c, err)
		}
		status = parsed
	}

	page, err := h.reviewService.List(c.UserContext(), review.ListInput{
		Status: status,
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	p.Page, p.Limit, p.Total = page.Page, page.Limit, page.Total
	return c.JSON(pagination.Response(p, page.Items))
}

func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	counts, err := h.reviewService.CountByStatus(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, fiber.Map{"counts": counts})
}

func (h *AdminHandler) GetApplication(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.FromError(c, apperr.ErrApplicationNotFound)
	}
	app, err := h.reviewService.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, app)
}

type setStatusInput struct {
	Status string `json:"status"`
	Note   string `json:"note"`
	Notify bool   `json:"notify"`
}

// SetStatus moves an application to any status and returns the stored copy.
func (h *AdminHandler) SetStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.FromError(c, apperr.ErrApplicationNotFound)
	}

	var input setStatusInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	status, err := review.ParseStatus(input.Status)
	if err != nil {
		return response.FromError(c, err)
	}

	in := review.SetStatusInput{
		Status: status,
		Note:   input.Note,
		Notify: input.Notify,
	}
	if sess := middleware.SessionFrom(c); sess != nil {
		in.ActorID = sess.UserID
	}

	app, err := h.reviewService.SetStatus(c.UserContext(), id, in)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, app)
}

func (h *AdminHandler) Messages(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.FromError(c, apperr.ErrApplicationNotFound)
	}
	msgs, err := h.reviewService.Messages(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, fiber.Map{"messages": msgs})
}
