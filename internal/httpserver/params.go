package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	middleware "github.com/Skotchmaster/farmconnect/pkg/middleware/auth"
)

func parseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}

func pathID(c echo.Context, l *slog.Logger, event string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, badRequest(l, event, "id is not a uuid", err)
	}
	return id, nil
}

func callerID(c echo.Context, l *slog.Logger, event string) (uuid.UUID, error) {
	id, err := middleware.UserID(c)
	if err != nil {
		l.Warn(event, "status", 401, "reason", "no user in context", "error", err)
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "No token, authorization denied")
	}
	return id, nil
}
