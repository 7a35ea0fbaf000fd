package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/farmconnect/internal/catalog"
	"github.com/Skotchmaster/farmconnect/internal/service"
	"github.com/Skotchmaster/farmconnect/internal/transport"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
)

type ToolHTTP struct {
	Svc    *service.CatalogService
	Policy Policy
}

// List takes the filter from category, or from type as older clients send.
func (h *ToolHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "tool.list")

	category := c.QueryParam("category")
	if category == "" {
		category = c.QueryParam("type")
	}
	items, err := h.Svc.ListTools(ctx, catalog.NewFilter(category, c.QueryParam("search")))
	if err != nil {
		return h.Policy.Fail(l, "list_tools_error", "", err)
	}
	return respondList(c, items, len(items))
}

func (h *ToolHTTP) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "tool.list_farmer")

	farmerID, err := callerID(c, l, "list_farmer_tools_error")
	if err != nil {
		return err
	}
	items, err := h.Svc.ListFarmerTools(ctx, farmerID)
	if err != nil {
		return h.Policy.Fail(l, "list_farmer_tools_error", "", err)
	}
	return respondList(c, items, len(items))
}

func (h *ToolHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "tool.create")

	farmerID, err := callerID(c, l, "create_tool_error")
	if err != nil {
		return err
	}
	var req transport.ToolRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_tool_error", "invalid body", err)
	}

	t, err := h.Svc.CreateTool(ctx, farmerID, req)
	if err != nil {
		return h.Policy.Fail(l, "create_tool_error", "", err)
	}

	l.Info("create_tool_success", "tool_id", t.ID)
	return respond(c, http.StatusCreated, t)
}

func (h *ToolHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "tool.update")

	farmerID, err := callerID(c, l, "update_tool_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "update_tool_error")
	if err != nil {
		return err
	}
	var req transport.ToolRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_tool_error", "invalid body", err)
	}

	t, err := h.Svc.UpdateTool(ctx, farmerID, id, req)
	if err != nil {
		return h.Policy.Fail(l, "update_tool_error", "Tool", err)
	}

	l.Info("update_tool_success", "tool_id", t.ID)
	return respond(c, http.StatusOK, t)
}

func (h *ToolHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "tool.delete")

	farmerID, err := callerID(c, l, "delete_tool_error")
	if err != nil {
		return err
	}
	id, err := pathID(c, l, "delete_tool_error")
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteTool(ctx, farmerID, id); err != nil {
		return h.Policy.Fail(l, "delete_tool_error", "Tool", err)
	}

	l.Info("delete_tool_success", "tool_id", id)
	return respondMessage(c, http.StatusOK, "Tool deleted successfully")
}
