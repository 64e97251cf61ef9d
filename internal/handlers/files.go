package handlers

import (
	"strings"

	apperr "onboard/internal/errors"
	"onboard/internal/middleware"
	"onboard/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/spf13/afero"
)

// FilesHandler serves documents of the local store under prefix. Owners may
// read their own folder; anything else goes through the admin gate.
type FilesHandler struct {
	fs     afero.Fs
	bucket string
	prefix string
	gate   fiber.Handler
}

func NewFilesHandler(fs afero.Fs, bucket, prefix string, gate fiber.Handler) *FilesHandler {
	return &FilesHandler{fs: fs, bucket: bucket, prefix: prefix, gate: gate}
}

// Authorize must run after the auth middleware.
func (h *FilesHandler) Authorize(c *fiber.Ctx) error {
	sess := middleware.SessionFrom(c)
	if sess == nil {
		return response.FromError(c, apperr.ErrNotAuthenticated)
	}

	rel := strings.TrimPrefix(strings.TrimPrefix(c.Path(), h.prefix), "/")
	if strings.Contains(rel, "..") {
		return response.FromError(c, apperr.ErrApplicationNotFound)
	}
	if strings.HasPrefix(rel, h.bucket+"/"+sess.UserID.String()+"/") {
		return c.Next()
	}
	return h.gate(c)
}

// Serve returns the static file handler over the store's filesystem.
func (h *FilesHandler) Serve() fiber.Handler {
	return filesystem.New(filesystem.Config{
		Root:   afero.NewHttpFs(h.fs),
		Browse: false,
	})
}
