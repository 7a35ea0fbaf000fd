package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/farmconnect/internal/catalog"
	"github.com/Skotchmaster/farmconnect/internal/service"
	"github.com/Skotchmaster/farmconnect/internal/transport"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
)

type ProductHTTP struct {
	Svc    *service.CatalogService
	Policy Policy
}

func (h *ProductHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.list")

	f := catalog.NewFilter(c.QueryParam("category"), c.QueryParam("search"))
	items, err := h.Svc.ListProducts(ctx, f)
	if err != nil {
		return h.Policy.Fail(l, "list_products_error", "", err)
	}
	return respondList(c, items, len(items))
}

func (h *ProductHTTP) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.list_farmer")

	farmerID, err := callerID(c, l, "list_farmer_products_error")
	if err != nil {
		return err
	}
	items, err := h.Svc.ListFarmerProducts(ctx, farmerID)
	if err != nil {
		return h.Policy.Fail(l, "list_farmer_products_error", "", err)
	}
	return respondList(c, items, len(items))
}

func (h *ProductHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get")

	id, err := pathID(c, l, "get_product_error")
	if err != nil {
		return err
	}
	p, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return h.Policy.Fail(l, "get_product_error", "", err)
	}
	return respond(c, http.StatusOK, p)
}

func (h *ProductHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create")

	farmerID, err := callerID(c, l, "create_product_error")
	if err != nil {
		return err
	}
	var req transport.ProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_product_error", "invalid body", err)
	}

	p, err := h.Svc.CreateProduct(ctx, farmerID, req)
	if err != nil {
		return h.Policy.Fail(l, "create_product_error", "", err)
	}

	l.Info("create_product_success", "product_id", p.ID)
	return respond(c, http.StatusCreated, p)
}

func (h *ProductHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.update")

	farmerID, err := callerID(c, l, "update_product_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "update_product_error")
	if err != nil {
		return err
	}
	var req transport.ProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_product_error", "invalid body", err)
	}

	p, err := h.Svc.UpdateProduct(ctx, farmerID, id, req)
	if err != nil {
		return h.Policy.Fail(l, "update_product_error", "Product", err)
	}

	l.Info("update_product_success", "product_id", p.ID)
	return respond(c, http.StatusOK, p)
}

func (h *ProductHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete")

	farmerID, err := callerID(c, l, "delete_product_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "delete_product_error")
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteProduct(ctx, farmerID, id); err != nil {
		return h.Policy.Fail(l, "delete_product_error", "Product", err)
	}

	l.Info("delete_product_success", "product_id", id)
	return respondMessage(c, http.StatusOK, "Product deleted successfully")
}
