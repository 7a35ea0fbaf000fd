package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/farmconnect/internal/upstream"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
)

const MsgCropParamsRequired = "All parameters are required: N, P, K, temperature, humidity, ph, rainfall"

type MLPredictor interface {
	Predict(ctx context.Context, in upstream.CropInput) (json.RawMessage, error)
	ModelInfo(ctx context.Context) (json.RawMessage, error)
	Health(ctx context.Context) (json.RawMessage, error)
	BaseURL() string
}

type WeatherProvider interface {
	Configured() bool
	Current(ctx context.Context, loc upstream.Location) (*upstream.CurrentWeather, error)
	Forecast(ctx context.Context, loc upstream.Location) (*upstream.Forecast, error)
}

// ResponseCache is satisfied by *cache.Cache, including a nil one.
type ResponseCache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type AdvisoryService struct {
	ML       MLPredictor
	Weather  WeatherProvider
	Cache    ResponseCache
	CacheTTL time.Duration
}

type cropField struct {
	name     string
	min, max float64
	set      func(*upstream.CropInput, float64)
}

// cropFields are the ranges the crop model was trained on.
var cropFields = []cropField{
	{"N", 0, 140, func(in *upstream.CropInput, v float64) { in.N = v }},
	{"P", 5, 145, func(in *upstream.CropInput, v float64) { in.P = v }},
	{"K", 5, 205, func(in *upstream.CropInput, v float64) { in.K = v }},
	{"temperature", 8, 44, func(in *upstream.CropInput, v float64) { in.Temperature = v }},
	{"humidity", 14, 100, func(in *upstream.CropInput, v float64) { in.Humidity = v }},
	{"ph", 3.5, 9.9, func(in *upstream.CropInput, v float64) { in.PH = v }},
	{"rainfall", 20, 300, func(in *upstream.CropInput, v float64) { in.Rainfall = v }},
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// ParseCropInput accepts numbers or numeric strings for every feature.
func ParseCropInput(body map[string]any) (upstream.CropInput, error) {
	var in upstream.CropInput
	for _, f := range cropFields {
		v, ok := number(body[f.name])
		if !ok {
			return upstream.CropInput{}, fmt.Errorf("%w: %s", ErrValidation, MsgCropParamsRequired)
		}
		if v < f.min || v > f.max {
			return upstream.CropInput{}, fmt.Errorf("%w: %s must be between %g and %g", ErrValidation, f.name, f.min, f.max)
		}
		f.set(&in, v)
	}
	return in, nil
}

func mlErr(err error) error {
	var se *upstream.StatusError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, upstream.ErrUnavailable) {
		return fmt.Errorf("%w: crop recommendation service unavailable: %v", ErrUpstream, err)
	}
	return err
}

func (s *AdvisoryService) Predict(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	in, err := ParseCropInput(body)
	if err != nil {
		return nil, err
	}
	out, err := s.ML.Predict(ctx, in)
	if err != nil {
		return nil, mlErr(err)
	}
	return out, nil
}

func (s *AdvisoryService) ModelInfo(ctx context.Context) (json.RawMessage, error) {
	out, err := s.ML.ModelInfo(ctx)
	if err != nil {
		return nil, mlErr(err)
	}
	return out, nil
}

func (s *AdvisoryService) MLHealth(ctx context.Context) (json.RawMessage, error) {
	out, err := s.ML.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: ML service is not available: %v", ErrUnavailable, err)
	}
	return out, nil
}

func (s *AdvisoryService) weatherErr(err error) error {
	var se *upstream.StatusError
	switch {
	case errors.Is(err, upstream.ErrNoLocation):
		return fmt.Errorf("%w: Please provide either city name or coordinates (lat, lon)", ErrValidation)
	case errors.Is(err, upstream.ErrNoAPIKey):
		return err
	case errors.As(err, &se) && se.Code == http.StatusNotFound:
		return fmt.Errorf("%w: Location not found", ErrNotFound)
	}
	return fmt.Errorf("%w: Error fetching weather data: %v", ErrUpstream, err)
}

// cached serves key from the response cache or fills it with load.
func cached[T any](ctx context.Context, s *AdvisoryService, key string, load func() (*T, error)) (*T, error) {
	var hit T
	if s.Cache != nil && s.Cache.Get(ctx, key, &hit) {
		return &hit, nil
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, v, s.CacheTTL); err != nil {
			logging.FromContext(ctx).Warn("weather_cache_set_error", "key", key, "error", err)
		}
	}
	return v, nil
}

func (s *AdvisoryService) CurrentWeather(ctx context.Context, loc upstream.Location) (*upstream.CurrentWeather, error) {
	if !s.Weather.Configured() {
		return nil, upstream.ErrNoAPIKey
	}
	if err := loc.Validate(); err != nil {
		return nil, s.weatherErr(err)
	}
	out, err := cached(ctx, s, "weather:current:"+loc.CacheKey(), func() (*upstream.CurrentWeather, error) {
		return s.Weather.Current(ctx, loc)
	})
	if err != nil {
		return nil, s.weatherErr(err)
	}
	return out, nil
}

func (s *AdvisoryService) Forecast(ctx context.Context, loc upstream.Location) (*upstream.Forecast, error) {
	if !s.Weather.Configured() {
		return nil, upstream.ErrNoAPIKey
	}
	if err := loc.Validate(); err != nil {
		return nil, s.weatherErr(err)
	}
	out, err := cached(ctx, s, "weather:forecast:"+loc.CacheKey(), func() (*upstream.Forecast, error) {
		return s.Weather.Forecast(ctx, loc)
	})
	if err != nil {
		return nil, s.weatherErr(err)
	}
	return out, nil
}
