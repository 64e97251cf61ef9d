// Package middleware provides HTTP middleware components for the application.
// It includes authentication, the admin gate and request metrics for the
// fiber web framework.
package middleware

import (
	"strings"

	apperr "onboard/internal/errors"
	"onboard/internal/logger"
	"onboard/internal/services/auth"
	"onboard/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

const (
	localSession      = "session"
	accessTokenCookie = "access_token"
)

// AuthMiddleware resolves the bearer token into an auth.Session.
type AuthMiddleware struct {
	authService auth.Service
	log         logger.Logger
}

func NewAuthMiddleware(authService auth.Service, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		log:         log,
	}
}

// Handler accepts the token from the Authorization header or, failing that,
// the access_token cookie, and stores the session in the request locals.
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	token := bearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		token = c.Cookies(accessTokenCookie)
	}
	if token == "" {
		return response.FromError(c, apperr.ErrNotAuthenticated)
	}

	sess, err := m.authService.CurrentUser(c.UserContext(), token)
	if err != nil || sess == nil {
		m.log.Debug("rejected token", map[string]interface{}{"path": c.Path(), "error": errString(err)})
		return response.FromError(c, apperr.ErrNotAuthenticated)
	}

	c.Locals(localSession, sess)
	return c.Next()
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// SessionFrom returns the session stored by AuthMiddleware, or nil.
func SessionFrom(c *fiber.Ctx) *auth.Session {
	sess, _ := c.Locals(localSession).(*auth.Session)
	return sess
}
