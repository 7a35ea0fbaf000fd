package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/farmconnect/internal/service"
	"github.com/Skotchmaster/farmconnect/internal/upstream"
)

func TestPolicyClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		reveal bool
		what   string
		err    error
		code   int
		msg    string
	}{
		{"validation", false, "", fmt.Errorf("%w: price is required", service.ErrValidation), 400, "price is required"},
		{"conflict", false, "", fmt.Errorf("%w: only 2 left in stock", service.ErrConflict), 409, "only 2 left in stock"},
		{"hidden forbidden", false, "Tool", service.ErrForbidden, 404, "Tool not found or unauthorized"},
		{"hidden not found", false, "Tool", service.ErrNotFound, 404, "Tool not found or unauthorized"},
		{"revealed forbidden", true, "Tool", service.ErrForbidden, 403, "Not authorized to access this tool"},
		{"revealed not found", true, "Tool", service.ErrNotFound, 404, "Tool not found"},
		{"plain not found", false, "", fmt.Errorf("%w: Location not found", service.ErrNotFound), 404, "Location not found"},
		{"upstream status", false, "", &upstream.StatusError{Upstream: "ml", Code: 422, Detail: "ph out of range"}, 422, "ph out of range"},
		{"no weather key", false, "", upstream.ErrNoAPIKey, 500, "Weather API key not configured"},
		{"bad gateway", false, "", fmt.Errorf("%w: timeout", service.ErrUpstream), 502, "timeout"},
		{"unavailable", false, "", fmt.Errorf("%w: search is not configured", service.ErrUnavailable), 503, "search is not configured"},
		{"unknown", false, "", errors.New("disk on fire"), 500, msgInternal},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, msg := Policy{Reveal: tt.reveal}.classify(tt.what, tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestErrorHandler(t *testing.T) {
	t.Parallel()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		dev     bool
		err     error
		code    int
		msg     string
		errText string
	}{
		{"http error in dev", true, Policy{}.Fail(quiet, "x", "", errors.New("boom")), 500, msgInternal, "boom"},
		{"http error in prod", false, Policy{}.Fail(quiet, "x", "", errors.New("boom")), 500, msgInternal, ""},
		{"plain error", false, errors.New("boom"), 500, msgInternal, ""},
		{"echo not found", false, echo.ErrNotFound, 404, "Not Found", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			ErrorHandler(tt.dev)(tt.err, c)

			require.Equal(t, tt.code, rec.Code)
			var env Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.Equal(t, tt.msg, env.Message)
			assert.Equal(t, tt.errText, env.Error)
		})
	}
}
