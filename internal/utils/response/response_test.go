package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	apperr "onboard/internal/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   map[string]interface{}
	}{
		{
			name:   "validation carries fields",
			err:    apperr.Validation(map[string]string{"dba_name": "Required"}),
			status: fiber.StatusBadRequest,
			body: map[string]interface{}{
				"error":  "validation failed",
				"code":   "VALIDATION_FAILED",
				"fields": map[string]interface{}{"dba_name": "Required"},
			},
		},
		{
			name:   "upload failure keeps details",
			err:    apperr.Wrap(apperr.CodeUploadFailed, "Failed to upload file", errors.New("void_check: timeout")),
			status: fiber.StatusBadGateway,
			body: map[string]interface{}{
				"error":   "Failed to upload file",
				"code":    "UPLOAD_FAILED",
				"details": "void_check: timeout",
			},
		},
		{
			name:   "internal hides details",
			err:    apperr.Wrap(apperr.CodeInternal, "Failed to fetch submissions", errors.New("pq: password authentication failed")),
			status: fiber.StatusInternalServerError,
			body: map[string]interface{}{
				"error": "Failed to fetch submissions",
				"code":  "INTERNAL",
			},
		},
		{
			name: "insert failure surfaces the cleaned reason",
			err: apperr.Wrap(apperr.CodeRecordInsertFailed, "Failed to create submission",
				errors.New("ERROR: null value in column \"dba_name\" violates not-null constraint (SQLSTATE 23502)")),
			status: fiber.StatusInternalServerError,
			body: map[string]interface{}{
				"error":   "Failed to create submission",
				"code":    "RECORD_INSERT_FAILED",
				"details": `null value in column "dba_name" violates not-null constraint`,
			},
		},
		{
			name:   "update failure without a cause",
			err:    apperr.New(apperr.CodeUpdateFailed, "Failed to update submission"),
			status: fiber.StatusInternalServerError,
			body: map[string]interface{}{
				"error": "Failed to update submission",
				"code":  "UPDATE_FAILED",
			},
		},
		{
			name:   "not found",
			err:    apperr.ErrApplicationNotFound,
			status: fiber.StatusNotFound,
		},
		{
			name:   "plain error",
			err:    errors.New("boom"),
			status: fiber.StatusInternalServerError,
			body:   map[string]interface{}{"error": "Internal server error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return FromError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			if tt.body != nil {
				raw, _ := io.ReadAll(resp.Body)
				var got map[string]interface{}
				require.NoError(t, json.Unmarshal(raw, &got))
				assert.Equal(t, tt.body, got)
			}
		})
	}
}
