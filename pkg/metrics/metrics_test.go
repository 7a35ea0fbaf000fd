package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/api/products/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "no") })
	e.GET("/panic-ish", func(c echo.Context) error { return errors.New("plain") })

	before := testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodGet, "/api/products/:id", "200"))
	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	after := testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodGet, "/api/products/:id", "200"))
	assert.Equal(t, 2.0, after-before)

	teapot := testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodGet, "/boom", "418"))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodGet, "/boom", "418"))-teapot)

	plain := testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodGet, "/panic-ish", "500"))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/panic-ish", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(RequestTotal.WithLabelValues(http.MethodGet, "/panic-ish", "500"))-plain)
}

func TestHandler_ExposesRegistry(t *testing.T) {
	OrdersCreated.WithLabelValues("product").Inc()

	e := echo.New()
	e.GET("/metrics", Handler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "farmconnect_orders_created_total"))
}
