package handlers

import (
	apperr "onboard/internal/errors"
	"onboard/internal/intake"
	"onboard/internal/middleware"
	"onboard/internal/services/drafts"
	"onboard/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// IntakeHandler exposes the intake wizard over the user's server-held draft.
type IntakeHandler struct {
	draftService drafts.Service
}

func NewIntakeHandler(draftService drafts.Service) *IntakeHandler {
	return &IntakeHandler{
		draftService: draftService,
	}
}

func (h *IntakeHandler) Get(c *fiber.Ctx) error {
	form, err := h.draftService.Get(c.UserContext(), middleware.SessionFrom(c))
	return formResult(c, form, err)
}

func (h *IntakeHandler) SetFields(c *fiber.Ctx) error {
	fields, err := drafts.DecodeFields(c.Body())
	if err != nil {
		return response.FromError(c, err)
	}
	form, err := h.draftService.SetFields(c.UserContext(), middleware.SessionFrom(c), fields)
	return formResult(c, form, err)
}

func (h *IntakeHandler) Attach(c *fiber.Ctx) error {
	docType := intake.DocumentType(c.Params("type"))
	if !docType.Valid() {
		return response.FromError(c, apperr.ErrApplicationNotFound)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return response.FromError(c, apperr.Validation(map[string]string{string(docType): "A file is required"}))
	}
	file, err := fh.Open()
	if err != nil {
		return response.FromError(c, apperr.Wrap(apperr.CodeUploadFailed, "Failed to read file", err))
	}
	defer file.Close()

	form, err := h.draftService.Attach(c.UserContext(), middleware.SessionFrom(c), docType, drafts.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Body:        file,
	})
	return formResult(c, form, err)
}

func (h *IntakeHandler) Detach(c *fiber.Ctx) error {
	docType := intake.DocumentType(c.Params("type"))
	if !docType.Valid() {
		return response.FromError(c, apperr.ErrApplicationNotFound)
	}
	form, err := h.draftService.Detach(c.UserContext(), middleware.SessionFrom(c), docType)
	return formResult(c, form, err)
}

func (h *IntakeHandler) SetAgreement(c *fiber.Ctx) error {
	var input struct {
		Agree bool `json:"agree"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	form, err := h.draftService.SetAgreement(c.UserContext(), middleware.SessionFrom(c), input.Agree)
	return formResult(c, form, err)
}

// Next advances the wizard; from the last step it submits the application
// and answers 201.
func (h *IntakeHandler) Next(c *fiber.Ctx) error {
	res, err := h.draftService.Next(c.UserContext(), middleware.SessionFrom(c))
	if err != nil {
		var form *intake.Form
		if res != nil {
			form = res.Form
		}
		return formResult(c, form, err)
	}
	if res.Application != nil {
		return response.Created(c, res)
	}
	return response.Success(c, res)
}

func (h *IntakeHandler) Back(c *fiber.Ctx) error {
	form, err := h.draftService.Back(c.UserContext(), middleware.SessionFrom(c))
	return formResult(c, form, err)
}

func (h *IntakeHandler) Discard(c *fiber.Ctx) error {
	if err := h.draftService.Discard(c.UserContext(), middleware.SessionFrom(c)); err != nil {
		return response.FromError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// formResult answers with the form, attaching it to error bodies as well so
// clients can render the recorded field errors.
func formResult(c *fiber.Ctx, form *intake.Form, err error) error {
	if err == nil {
		return response.Success(c, fiber.Map{"form": form})
	}
	de, ok := apperr.As(err)
	if !ok || form == nil {
		return response.FromError(c, err)
	}
	body := fiber.Map{
		"error": de.Message,
		"code":  de.Code,
		"form":  form,
	}
	if len(de.Fields) > 0 {
		body["fields"] = de.Fields
	}
	if details := response.PublicDetails(de); details != "" {
		body["details"] = details
	}
	return c.Status(response.Status(de.Code)).JSON(body)
}
