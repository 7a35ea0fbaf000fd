package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/farmconnect/internal/service"
	"github.com/Skotchmaster/farmconnect/internal/transport"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
)

type OrderHTTP struct {
	Svc    *service.OrderService
	Policy Policy
}

func (h *OrderHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create")

	customerID, err := callerID(c, l, "create_order_error")
	if err != nil {
		return err
	}
	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_order_error", "invalid body", err)
	}

	order, err := h.Svc.Create(ctx, customerID, req)
	if err != nil {
		return h.Policy.Fail(l, "create_order_error", "", err)
	}

	l.Info("create_order_success", "order_id", order.ID, "total", order.TotalAmount)
	return respond(c, http.StatusCreated, order)
}

func (h *OrderHTTP) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_customer")

	customerID, err := callerID(c, l, "list_orders_error")
	if err != nil {
		return err
	}
	orders, err := h.Svc.ListCustomer(ctx, customerID)
	if err != nil {
		return h.Policy.Fail(l, "list_orders_error", "", err)
	}
	return respondList(c, orders, len(orders))
}

func (h *OrderHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	userID, err := callerID(c, l, "get_order_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "get_order_error")
	if err != nil {
		return err
	}
	order, err := h.Svc.Get(ctx, userID, id)
	if err != nil {
		return h.Policy.Fail(l, "get_order_error", "Order", err)
	}
	return respond(c, http.StatusOK, order)
}

func (h *OrderHTTP) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel")

	customerID, err := callerID(c, l, "cancel_order_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "cancel_order_error")
	if err != nil {
		return err
	}
	order, err := h.Svc.Cancel(ctx, customerID, id)
	if err != nil {
		return h.Policy.Fail(l, "cancel_order_error", "Order", err)
	}

	l.Info("cancel_order_success", "order_id", order.ID)
	return respond(c, http.StatusOK, order)
}
