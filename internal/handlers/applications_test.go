package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"onboard/internal/services/auth"
	"onboard/internal/services/dashboard"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingDashboard holds every watch open until its context ends.
type blockingDashboard struct {
	dashboard.Service
	since time.Time
}

func (b *blockingDashboard) Watch(ctx context.Context, _ *auth.Session, since time.Time) (*dashboard.WatchResult, error) {
	b.since = since
	<-ctx.Done()
	return &dashboard.WatchResult{Changed: false, Cursor: since}, nil
}

func TestWatch_EndsOnShutdown(t *testing.T) {
	shutdown, stop := context.WithCancel(context.Background())
	svc := &blockingDashboard{}
	h := NewApplicationsHandler(svc).WithShutdown(shutdown)

	app := fiber.New()
	app.Get("/watch", h.Watch)

	time.AfterFunc(50*time.Millisecond, stop)
	resp, err := app.Test(httptest.NewRequest("GET", "/watch?since=2024-06-01T12:00:00Z", nil), 2000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), svc.since)

	raw, _ := io.ReadAll(resp.Body)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, false, body["changed"])
}

func TestWatch_RejectsBadCursor(t *testing.T) {
	app := fiber.New()
	app.Get("/watch", NewApplicationsHandler(&blockingDashboard{}).Watch)

	resp, err := app.Test(httptest.NewRequest("GET", "/watch?since=yesterday", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
