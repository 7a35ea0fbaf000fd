package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/farmconnect/internal/cart"
	"github.com/Skotchmaster/farmconnect/internal/service"
	"github.com/Skotchmaster/farmconnect/internal/transport"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
)

type CartHTTP struct {
	Svc    *service.CartService
	Policy Policy
}

func (h *CartHTTP) key(c echo.Context) (cart.Key, error) {
	return service.ParseKey(c.Param("kind"), c.Param("id"))
}

func (h *CartHTTP) View(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.view")

	customerID, err := callerID(c, l, "view_cart_error")
	if err != nil {
		return err
	}
	view, err := h.Svc.View(ctx, customerID)
	if err != nil {
		return h.Policy.Fail(l, "view_cart_error", "", err)
	}
	return respond(c, http.StatusOK, view)
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	customerID, err := callerID(c, l, "add_cart_item_error")
	if err != nil {
		return err
	}
	var req transport.CartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_cart_item_error", "invalid body", err)
	}

	view, err := h.Svc.Add(ctx, customerID, req)
	if err != nil {
		return h.Policy.Fail(l, "add_cart_item_error", "", err)
	}
	return respond(c, http.StatusOK, view)
}

func (h *CartHTTP) SetItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.set_item")

	customerID, err := callerID(c, l, "set_cart_item_error")
	if err != nil {
		return err
	}
	k, err := h.key(c)
	if err != nil {
		return h.Policy.Fail(l, "set_cart_item_error", "", err)
	}
	var req transport.CartQuantityRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "set_cart_item_error", "invalid body", err)
	}

	view, err := h.Svc.SetQuantity(ctx, customerID, k, req)
	if err != nil {
		return h.Policy.Fail(l, "set_cart_item_error", "", err)
	}
	return respond(c, http.StatusOK, view)
}

// RemoveItem drops one unit, or the whole line with ?all=true.
func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	customerID, err := callerID(c, l, "remove_cart_item_error")
	if err != nil {
		return err
	}
	k, err := h.key(c)
	if err != nil {
		return h.Policy.Fail(l, "remove_cart_item_error", "", err)
	}

	view, err := h.Svc.Remove(ctx, customerID, k, parseBool(c.QueryParam("all")))
	if err != nil {
		return h.Policy.Fail(l, "remove_cart_item_error", "", err)
	}
	return respond(c, http.StatusOK, view)
}

func (h *CartHTTP) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	customerID, err := callerID(c, l, "clear_cart_error")
	if err != nil {
		return err
	}
	if err := h.Svc.Clear(ctx, customerID); err != nil {
		return h.Policy.Fail(l, "clear_cart_error", "", err)
	}
	return respondMessage(c, http.StatusOK, "Cart cleared")
}

func (h *CartHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.checkout")

	customerID, err := callerID(c, l, "checkout_error")
	if err != nil {
		return err
	}
	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "checkout_error", "invalid body", err)
	}

	order, err := h.Svc.Checkout(ctx, customerID, req)
	if err != nil {
		return h.Policy.Fail(l, "checkout_error", "", err)
	}

	l.Info("checkout_success", "order_id", order.ID, "total", order.TotalAmount)
	return respond(c, http.StatusCreated, order)
}

func (h *CartHTTP) Quote(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.quote")

	var req transport.QuoteRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "quote_error", "invalid body", err)
	}
	view, err := h.Svc.Quote(ctx, req.Items)
	if err != nil {
		return h.Policy.Fail(l, "quote_error", "", err)
	}
	return respond(c, http.StatusOK, view)
}
