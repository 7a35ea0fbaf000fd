package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/farmconnect/internal/models"
	"github.com/Skotchmaster/farmconnect/internal/service"
	"github.com/Skotchmaster/farmconnect/pkg/metrics"
	middleware "github.com/Skotchmaster/farmconnect/pkg/middleware/auth"
)

const apiVersion = "1.0.0"

type Services struct {
	Auth     *service.AuthService
	Catalog  *service.CatalogService
	Orders   *service.OrderService
	Cart     *service.CartService
	Advisory *service.AdvisoryService
}

type Deps struct {
	Auth     *AuthHTTP
	Products *ProductHTTP
	Tools    *ToolHTTP
	Search   *SearchHTTP
	Orders   *OrderHTTP
	Cart     *CartHTTP
	Advisory *AdvisoryHTTP

	Gate  *middleware.Gate
	Ready func(ctx context.Context) error
}

// NewDeps builds the handlers around svc. The auth service doubles as the
// gate's user lookup.
func NewDeps(svc Services, policy Policy, ready func(ctx context.Context) error) *Deps {
	return &Deps{
		Auth:     &AuthHTTP{Svc: svc.Auth, Policy: policy},
		Products: &ProductHTTP{Svc: svc.Catalog, Policy: policy},
		Tools:    &ToolHTTP{Svc: svc.Catalog, Policy: policy},
		Search:   &SearchHTTP{Svc: svc.Catalog, Policy: policy},
		Orders:   &OrderHTTP{Svc: svc.Orders, Policy: policy},
		Cart:     &CartHTTP{Svc: svc.Cart, Policy: policy},
		Advisory: &AdvisoryHTTP{Svc: svc.Advisory, Policy: policy},
		Gate:     middleware.NewGate(svc.Auth.JWTSecret, svc.Auth),
		Ready:    ready,
	}
}

// New returns an echo instance with the envelope error handler, mws in
// order, and every route registered.
func New(d *Deps, dev bool, mws ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(dev)
	e.Use(mws...)
	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/", root)
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.ready)
	e.GET("/metrics", metrics.Handler())

	auth := d.Gate.Authenticate
	farmer := middleware.RequireRole(models.RoleFarmer)
	customer := middleware.RequireRole(models.RoleCustomer)

	api := e.Group("/api")

	api.POST("/auth/register", d.Auth.Register)
	api.POST("/auth/login", d.Auth.Login)
	api.GET("/auth/me", d.Auth.Me, auth)

	products := api.Group("/products")
	products.GET("", d.Products.List)
	products.GET("/farmer", d.Products.ListMine, auth, farmer)
	products.GET("/:id", d.Products.Get)
	products.POST("", d.Products.Create, auth, farmer)
	products.PUT("/:id", d.Products.Update, auth, farmer)
	products.DELETE("/:id", d.Products.Delete, auth, farmer)

	tools := api.Group("/tools")
	tools.GET("", d.Tools.List)
	tools.GET("/farmer", d.Tools.ListMine, auth, farmer)
	tools.POST("", d.Tools.Create, auth, farmer)
	tools.PUT("/:id", d.Tools.Update, auth, farmer)
	tools.DELETE("/:id", d.Tools.Delete, auth, farmer)

	api.GET("/search", d.Search.Search)

	orders := api.Group("/orders")
	orders.POST("", d.Orders.Create, auth, customer)
	orders.GET("/customer", d.Orders.ListMine, auth, customer)
	orders.GET("/:id", d.Orders.Get, auth)
	orders.PATCH("/:id/cancel", d.Orders.Cancel, auth, customer)

	api.POST("/cart/quote", d.Cart.Quote)
	cart := api.Group("/cart")
	cart.GET("", d.Cart.View, auth, customer)
	cart.DELETE("", d.Cart.Clear, auth, customer)
	cart.POST("/items", d.Cart.AddItem, auth, customer)
	cart.PUT("/items/:kind/:id", d.Cart.SetItem, auth, customer)
	cart.DELETE("/items/:kind/:id", d.Cart.RemoveItem, auth, customer)
	cart.POST("/checkout", d.Cart.Checkout, auth, customer)

	api.POST("/ml/predict", d.Advisory.Predict, auth)
	api.GET("/ml/model-info", d.Advisory.ModelInfo, auth)
	api.GET("/ml/health", d.Advisory.MLHealth)

	api.GET("/weather/current", d.Advisory.Current, auth)
	api.GET("/weather/forecast", d.Advisory.Forecast, auth)
}

func root(c echo.Context) error {
	return c.JSON(http.StatusOK, Envelope{
		Success: true,
		Message: "FarmConnect API is running",
		Data: map[string]any{
			"version": apiVersion,
			"endpoints": map[string]string{
				"auth":     "/api/auth",
				"products": "/api/products",
				"tools":    "/api/tools",
				"search":   "/api/search",
				"orders":   "/api/orders",
				"cart":     "/api/cart",
				"ml":       "/api/ml",
				"weather":  "/api/weather",
				"health":   "/health/ready",
				"metrics":  "/metrics",
			},
		},
	})
}

func (d *Deps) ready(c echo.Context) error {
	if d.Ready == nil {
		return c.NoContent(http.StatusOK)
	}
	if err := d.Ready(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database is not reachable").SetInternal(err)
	}
	return c.NoContent(http.StatusOK)
}
