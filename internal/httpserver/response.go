package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/farmconnect/internal/config"
	"github.com/Skotchmaster/farmconnect/internal/service"
	"github.com/Skotchmaster/farmconnect/internal/upstream"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
)

const msgInternal = "Something went wrong!"

// Envelope wraps every response body.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

func respondList(c echo.Context, data any, n int) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Count: &n})
}

func respondMessage(c echo.Context, status int, msg string) error {
	return c.JSON(status, Envelope{Success: true, Message: msg})
}

// ErrorHandler renders errors as the failure envelope. The wrapped error is
// only exposed in development.
func ErrorHandler(dev bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := msgInternal
		var internal error = err

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok && m != "" {
				msg = m
			} else if he.Message != nil && code < http.StatusInternalServerError {
				msg = http.StatusText(code)
			}
			internal = he.Internal
		}

		env := Envelope{Message: msg}
		if dev && internal != nil {
			env.Error = internal.Error()
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, env)
		}
		if werr != nil {
			logging.FromContext(c.Request().Context()).Error("write_error_response", "error", werr)
		}
	}
}

// Policy turns service errors into HTTP errors. Hide reports records owned by
// someone else as not found.
type Policy struct {
	Reveal bool
}

func NewPolicy(name string) Policy {
	return Policy{Reveal: name == config.OwnershipReveal}
}

// detail strips the sentinel prefix that services put in front of messages.
func detail(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}

// Fail logs err under event and maps it to an echo.HTTPError. what names the
// owned resource in not-found messages; empty keeps the service message.
func (p Policy) Fail(l *slog.Logger, event, what string, err error) error {
	code, msg := p.classify(what, err)

	switch {
	case code >= http.StatusInternalServerError:
		l.Error(event, "status", code, "reason", msg, "error", err)
	default:
		l.Warn(event, "status", code, "reason", msg, "error", err)
	}
	return echo.NewHTTPError(code, msg).SetInternal(err)
}

func (p Policy) classify(what string, err error) (int, string) {
	var se *upstream.StatusError
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, detail(err, service.ErrValidation)
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, detail(err, service.ErrUnauthorized)
	case errors.Is(err, service.ErrForbidden):
		if p.Reveal {
			return http.StatusForbidden, "Not authorized to access this " + strings.ToLower(what)
		}
		return http.StatusNotFound, what + " not found or unauthorized"
	case errors.Is(err, service.ErrNotFound):
		switch {
		case what == "":
			return http.StatusNotFound, detail(err, service.ErrNotFound)
		case p.Reveal:
			return http.StatusNotFound, what + " not found"
		}
		return http.StatusNotFound, what + " not found or unauthorized"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, detail(err, service.ErrConflict)
	case errors.As(err, &se):
		msg := se.Detail
		if msg == "" {
			msg = http.StatusText(se.Code)
		}
		return se.Code, msg
	case errors.Is(err, upstream.ErrNoAPIKey):
		return http.StatusInternalServerError, "Weather API key not configured"
	case errors.Is(err, service.ErrUpstream):
		return http.StatusBadGateway, detail(err, service.ErrUpstream)
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable, detail(err, service.ErrUnavailable)
	}
	return http.StatusInternalServerError, msgInternal
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", 400, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, reason).SetInternal(err)
}
