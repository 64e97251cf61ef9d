package handlers

import (
	"context"
	"time"

	apperr "onboard/internal/errors"
	"onboard/internal/middleware"
	"onboard/internal/services/dashboard"
	"onboard/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ApplicationsHandler serves the signed-in user's own applications.
type ApplicationsHandler struct {
	dashboardService dashboard.Service
	shutdown         context.Context
}

func NewApplicationsHandler(dashboardService dashboard.Service) *ApplicationsHandler {
	return &ApplicationsHandler{
		dashboardService: dashboardService,
		shutdown:         context.Background(),
	}
}

// WithShutdown ends pending watches when ctx is done. fasthttp does not
// report client disconnects, so a watch otherwise runs to its timeout.
func (h *ApplicationsHandler) WithShutdown(ctx context.Context) *ApplicationsHandler {
	h.shutdown = ctx
	return h
}

func (h *ApplicationsHandler) List(c *fiber.Ctx) error {
	apps, err := h.dashboardService.ListMine(c.UserContext(), middleware.SessionFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, fiber.Map{"applications": apps})
}

// Watch long-polls for changes after the since cursor (RFC 3339).
func (h *ApplicationsHandler) Watch(c *fiber.Ctx) error {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return response.FromError(c, apperr.Validation(map[string]string{"since": "Must be an RFC 3339 timestamp"}))
		}
		since = t
	}

	ctx, cancel := context.WithCancel(c.UserContext())
	defer cancel()
	defer context.AfterFunc(h.shutdown, cancel)()

	res, err := h.dashboardService.Watch(ctx, middleware.SessionFrom(c), since)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, res)
}

func (h *ApplicationsHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.FromError(c, apperr.ErrApplicationNotFound)
	}
	app, err := h.dashboardService.GetOwn(c.UserContext(), middleware.SessionFrom(c), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, app)
}

func (h *ApplicationsHandler) Messages(c *fiber.Ctx) error {
	msgs, err := h.dashboardService.MyMessages(c.UserContext(), middleware.SessionFrom(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, fiber.Map{"messages": msgs})
}
