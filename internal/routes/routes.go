// Package routes defines the API routing configuration.
// It sets up all HTTP routes and their corresponding handlers,
// including middleware and authentication requirements.
package routes

import (
	"onboard/internal/handlers"
	"onboard/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers bundles everything SetupRoutes mounts. Files is nil unless the
// local document store is in use.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Intake       *handlers.IntakeHandler
	Applications *handlers.ApplicationsHandler
	Admin        *handlers.AdminHandler
	Health       *handlers.HealthHandler
	Files        *handlers.FilesHandler

	AuthMiddleware *middleware.AuthMiddleware
	AdminGate      *middleware.AdminGate
	Gatherer       prometheus.Gatherer
}

// SetupRoutes configures all application routes.
// It groups routes by functionality and applies appropriate middleware.
func SetupRoutes(app *fiber.App, h Handlers) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Merchant onboarding API",
			"version": "1.0.0",
			"docs":    "/api",
		})
	})
	app.Get("/health", h.Health.Check)
	if h.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
	}

	requireAuth := h.AuthMiddleware.Handler

	api := app.Group("/api")

	setupAuthRoutes(api, h.Auth, requireAuth)
	setupIntakeRoutes(api.Group("/intake", requireAuth), h.Intake)
	setupDashboardRoutes(api, h.Applications, requireAuth)
	admin := api.Group("/admin", requireAuth, h.AdminGate.Handler)
	setupAdminRoutes(admin, h.Admin)
	admin.Get("/pool-stats", h.Health.CacheStats)

	if h.Files != nil {
		files := app.Group("/files", requireAuth, h.Files.Authorize)
		files.Use(h.Files.Serve())
	}
}

func setupAuthRoutes(api fiber.Router, h *handlers.AuthHandler, requireAuth fiber.Handler) {
	auth := api.Group("/auth")
	auth.Post("/signup", h.SignUp)
	auth.Post("/signin", h.SignIn)
	auth.Post("/refresh", h.Refresh)
	auth.Get("/google", h.GoogleRedirect)
	auth.Get("/google/callback", h.GoogleCallback)

	auth.Post("/signout", requireAuth, h.SignOut)
	auth.Get("/me", requireAuth, h.Me)
}

func setupIntakeRoutes(router fiber.Router, h *handlers.IntakeHandler) {
	router.Get("/", h.Get)
	router.Delete("/", h.Discard)
	router.Patch("/fields", h.SetFields)
	router.Put("/documents/:type", h.Attach)
	router.Delete("/documents/:type", h.Detach)
	router.Put("/agreement", h.SetAgreement)
	router.Post("/next", h.Next)
	router.Post("/back", h.Back)
}

func setupDashboardRoutes(api fiber.Router, h *handlers.ApplicationsHandler, requireAuth fiber.Handler) {
	apps := api.Group("/applications", requireAuth)
	apps.Get("/", h.List)
	apps.Get("/watch", h.Watch)
	apps.Get("/:id", h.Get)

	api.Get("/messages", requireAuth, h.Messages)
}

func setupAdminRoutes(router fiber.Router, h *handlers.AdminHandler) {
	apps := router.Group("/applications")
	apps.Get("/", h.ListApplications)
	apps.Get("/stats", h.Stats)
	apps.Get("/:id", h.GetApplication)
	apps.Patch("/:id/status", h.SetStatus)
	apps.Get("/:id/messages", h.Messages)
}
