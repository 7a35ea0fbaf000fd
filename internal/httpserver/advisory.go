package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/farmconnect/internal/service"
	"github.com/Skotchmaster/farmconnect/internal/transport"
	"github.com/Skotchmaster/farmconnect/internal/upstream"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
)

type AdvisoryHTTP struct {
	Svc    *service.AdvisoryService
	Policy Policy
}

func (h *AdvisoryHTTP) Predict(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "ml.predict")

	var req transport.PredictRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "predict_error", service.MsgCropParamsRequired, err)
	}

	out, err := h.Svc.Predict(ctx, req)
	if err != nil {
		return h.Policy.Fail(l, "predict_error", "", err)
	}
	return respond(c, http.StatusOK, out)
}

func (h *AdvisoryHTTP) ModelInfo(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "ml.model_info")

	out, err := h.Svc.ModelInfo(ctx)
	if err != nil {
		return h.Policy.Fail(l, "model_info_error", "", err)
	}
	return respond(c, http.StatusOK, out)
}

func (h *AdvisoryHTTP) MLHealth(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "ml.health")

	out, err := h.Svc.MLHealth(ctx)
	if err != nil {
		return h.Policy.Fail(l, "ml_health_error", "", err)
	}
	return respond(c, http.StatusOK, out)
}

func location(c echo.Context) upstream.Location {
	return upstream.Location{
		City: c.QueryParam("city"),
		Lat:  c.QueryParam("lat"),
		Lon:  c.QueryParam("lon"),
	}
}

func (h *AdvisoryHTTP) Current(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "weather.current")

	w, err := h.Svc.CurrentWeather(ctx, location(c))
	if err != nil {
		return h.Policy.Fail(l, "current_weather_error", "", err)
	}
	return respond(c, http.StatusOK, w)
}

func (h *AdvisoryHTTP) Forecast(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "weather.forecast")

	f, err := h.Svc.Forecast(ctx, location(c))
	if err != nil {
		return h.Policy.Fail(l, "forecast_error", "", err)
	}
	return respond(c, http.StatusOK, f)
}
