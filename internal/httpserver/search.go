package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/farmconnect/internal/search"
	"github.com/Skotchmaster/farmconnect/internal/service"
	"github.com/Skotchmaster/farmconnect/internal/transport"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
)

type SearchHTTP struct {
	Svc    *service.CatalogService
	Policy Policy
}

func (h *SearchHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.search")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), search.DefaultPageSize)

	res, page, size, err := h.Svc.Search(ctx, c.QueryParam("q"), page, size)
	if err != nil {
		return h.Policy.Fail(l, "search_error", "", err)
	}

	l.Info("search_success", "total", res.Total)
	return respond(c, http.StatusOK, transport.SearchResponse{
		Total: res.Total,
		Page:  page,
		Size:  size,
		Items: res.Items,
	})
}
