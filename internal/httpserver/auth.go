package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/farmconnect/internal/service"
	"github.com/Skotchmaster/farmconnect/internal/transport"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
)

type AuthHTTP struct {
	Svc    *service.AuthService
	Policy Policy
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "register_error", "invalid body", err)
	}

	res, err := h.Svc.Register(ctx, req)
	if err != nil {
		return h.Policy.Fail(l, "register_error", "", err)
	}

	l.Info("register_success", "user_id", res.User.ID, "role", res.User.Role)
	return respond(c, http.StatusCreated, res)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "login_error", "invalid body", err)
	}

	res, err := h.Svc.Login(ctx, req)
	if err != nil {
		return h.Policy.Fail(l, "login_error", "", err)
	}

	l.Info("login_success", "user_id", res.User.ID)
	return respond(c, http.StatusOK, res)
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.me")

	userID, err := callerID(c, l, "me_error")
	if err != nil {
		return err
	}

	u, err := h.Svc.Me(ctx, userID)
	if err != nil {
		return h.Policy.Fail(l, "me_error", "User", err)
	}
	return respond(c, http.StatusOK, u)
}
