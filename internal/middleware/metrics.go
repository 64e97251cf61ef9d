package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type RequestRecorder interface {
	RecordRequest(method, route string, status int, d time.Duration)
}

// RequestMetrics records method, matched route, status and latency. Errors
// are rendered by the app's error handler first so the status is final.
func RequestMetrics(rec RequestRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		rec.RecordRequest(c.Method(), route, c.Response().StatusCode(), time.Since(start))
		return nil
	}
}
