package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/farmconnect/pkg/logging"
	"github.com/Skotchmaster/farmconnect/pkg/tokens"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

var ErrUserNotFound = errors.New("user not found")

// UserFinder resolves the current role of a token subject. It returns
// ErrUserNotFound when the account no longer exists.
type UserFinder interface {
	UserRole(ctx context.Context, userID string) (string, error)
}

type Gate struct {
	Secret []byte
	Users  UserFinder
}

func NewGate(secret []byte, users UserFinder) *Gate {
	return &Gate{Secret: secret, Users: users}
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (g *Gate) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("middleware", "auth.authenticate")

		raw := bearerToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "No token, authorization denied")
		}

		claims, err := tokens.AccessClaimsFromToken(raw, g.Secret)
		if err != nil || claims == nil || claims.Subject == "" {
			l.Warn("authenticate_failed", "status", 401, "reason", "invalid token", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "Token is not valid")
		}

		role, err := g.Users.UserRole(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				l.Warn("authenticate_failed", "status", 401, "reason", "user not found", "user_id", claims.Subject)
				return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
			}
			l.Error("authenticate_failed", "status", 500, "reason", "user lookup failed", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "Something went wrong!").SetInternal(err)
		}

		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxRole, role)
		return next(c)
	}
}

func RequireRole(roles ...string) echo.MiddlewareFunc {
	msg := deniedMessage(roles)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "No token, authorization denied")
			}
			if !slices.Contains(roles, role) {
				return echo.NewHTTPError(http.StatusForbidden, msg)
			}
			return next(c)
		}
	}
}

func deniedMessage(roles []string) string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		names = append(names, strings.ToUpper(r[:1])+r[1:]+"s")
	}
	return "Access denied. " + strings.Join(names, " or ") + " only."
}

func UserID(c echo.Context) (uuid.UUID, error) {
	s, _ := c.Get(CtxUserID).(string)
	if s == "" {
		return uuid.Nil, errors.New("unauthorized")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.New("unauthorized")
	}
	return id, nil
}

func Role(c echo.Context) string {
	r, _ := c.Get(CtxRole).(string)
	return r
}
