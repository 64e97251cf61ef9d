package handlers

import (
	"time"

	apperr "onboard/internal/errors"
	"onboard/internal/middleware"
	"onboard/internal/models"
	"onboard/internal/services/auth"
	"onboard/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService  auth.Service
	secureCookie bool
}

func NewAuthHandler(authService auth.Service, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		secureCookie: secureCookie,
	}
}

type credentialsInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp creates a password account and signs it in.
func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var input credentialsInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, tokens, err := h.authService.SignUp(c.UserContext(), input.Email, input.Password)
	if err != nil {
		return response.FromError(c, err)
	}

	h.setAuthCookies(c, tokens)
	return response.Created(c, sessionBody(user, tokens))
}

// SignIn handles user authentication and returns JWT tokens
func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var input credentialsInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, tokens, err := h.authService.SignIn(c.UserContext(), input.Email, input.Password)
	if err != nil {
		return response.FromError(c, err)
	}

	h.setAuthCookies(c, tokens)
	return response.Success(c, sessionBody(user, tokens))
}

// Refresh handles token refresh requests
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	// First try to get token from cookies
	refreshToken := c.Cookies("refresh_token")

	// If not in cookies, try request body
	if refreshToken == "" {
		var input struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.BodyParser(&input); err == nil {
			refreshToken = input.RefreshToken
		}
	}
	if refreshToken == "" {
		return response.FromError(c, apperr.ErrNotAuthenticated)
	}

	tokens, err := h.authService.Refresh(c.UserContext(), refreshToken)
	if err != nil {
		return response.FromError(c, err)
	}

	h.setAuthCookies(c, tokens)
	return response.Success(c, tokens)
}

// SignOut revokes every token of the current user.
func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	if err := h.authService.SignOut(c.UserContext(), middleware.SessionFrom(c)); err != nil {
		return response.FromError(c, err)
	}

	h.clearAuthCookies(c)
	return response.Success(c, fiber.Map{
		"message": "Successfully signed out",
	})
}

// Me returns the current session.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return response.Success(c, middleware.SessionFrom(c))
}

// GoogleRedirect starts the OAuth sign-in flow.
func (h *AuthHandler) GoogleRedirect(c *fiber.Ctx) error {
	url, err := h.authService.OAuthURL(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return c.Redirect(url, fiber.StatusTemporaryRedirect)
}

// GoogleCallback completes the OAuth sign-in flow.
func (h *AuthHandler) GoogleCallback(c *fiber.Ctx) error {
	if msg := c.Query("error"); msg != "" {
		return response.FromError(c, apperr.New(apperr.CodeNotAuthenticated, msg))
	}

	user, tokens, err := h.authService.OAuthSignIn(c.UserContext(), c.Query("state"), c.Query("code"))
	if err != nil {
		return response.FromError(c, err)
	}

	h.setAuthCookies(c, tokens)
	return response.Success(c, sessionBody(user, tokens))
}

func sessionBody(user *models.User, tokens *auth.TokenPair) fiber.Map {
	return fiber.Map{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.ExpiresAt,
		"user":          user,
	}
}

func (h *AuthHandler) setAuthCookies(c *fiber.Ctx, tokens *auth.TokenPair) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    tokens.AccessToken,
		Expires:  tokens.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
	c.Cookie(&fiber.Cookie{
		Name:     "refresh_token",
		Value:    tokens.RefreshToken,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/api/auth",
	})
}

func (h *AuthHandler) clearAuthCookies(c *fiber.Ctx) {
	expired := time.Now().Add(-time.Hour)
	for name, path := range map[string]string{"access_token": "/", "refresh_token": "/api/auth"} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Expires:  expired,
			HTTPOnly: true,
			Secure:   h.secureCookie,
			Path:     path,
		})
	}
}
