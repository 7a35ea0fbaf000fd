package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const forecastDays = 5

var (
	ErrNoAPIKey   = errors.New("weather api key not configured")
	ErrNoLocation = errors.New("city or coordinates required")
)

// Location prefers coordinates when both lat and lon are given.
type Location struct {
	City string
	Lat  string
	Lon  string
}

func (l Location) hasCoords() bool { return l.Lat != "" && l.Lon != "" }

func (l Location) Validate() error {
	if l.hasCoords() || strings.TrimSpace(l.City) != "" {
		return nil
	}
	return ErrNoLocation
}

func (l Location) CacheKey() string {
	if l.hasCoords() {
		return "coords:" + l.Lat + "," + l.Lon
	}
	return "city:" + strings.ToLower(strings.TrimSpace(l.City))
}

func (l Location) query(apiKey string) url.Values {
	q := url.Values{}
	if l.hasCoords() {
		q.Set("lat", l.Lat)
		q.Set("lon", l.Lon)
	} else {
		q.Set("q", strings.TrimSpace(l.City))
	}
	q.Set("appid", apiKey)
	q.Set("units", "metric")
	return q
}

type WeatherClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewWeatherClient(baseURL, apiKey string, timeout time.Duration) *WeatherClient {
	return &WeatherClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: newHTTPClient(timeout),
	}
}

func (c *WeatherClient) Configured() bool { return c != nil && c.apiKey != "" }

func (c *WeatherClient) get(ctx context.Context, path string, loc Location, dst any) error {
	if !c.Configured() {
		return ErrNoAPIKey
	}
	if err := loc.Validate(); err != nil {
		return err
	}
	raw, err := doJSON(ctx, c.httpClient, "weather", http.MethodGet, c.baseURL+path+"?"+loc.query(c.apiKey).Encode(), nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: weather: decode: %v", ErrUnavailable, err)
	}
	return nil
}

type owmCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Humidity  int     `json:"humidity"`
	Pressure  int     `json:"pressure"`
}

type owmWind struct {
	Speed float64 `json:"speed"`
	Deg   int     `json:"deg"`
}

type owmCurrent struct {
	Name       string         `json:"name"`
	Weather    []owmCondition `json:"weather"`
	Main       owmMain        `json:"main"`
	Wind       owmWind        `json:"wind"`
	Visibility int            `json:"visibility"`
	Clouds     struct {
		All int `json:"all"`
	} `json:"clouds"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Timezone int   `json:"timezone"`
	Dt       int64 `json:"dt"`
}

type owmForecast struct {
	City struct {
		Name     string `json:"name"`
		Country  string `json:"country"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
	List []struct {
		Dt      int64          `json:"dt"`
		Main    owmMain        `json:"main"`
		Weather []owmCondition `json:"weather"`
		Wind    owmWind        `json:"wind"`
	} `json:"list"`
}

type CurrentWeather struct {
	Location      string  `json:"location"`
	Country       string  `json:"country"`
	Temperature   int     `json:"temperature"`
	FeelsLike     int     `json:"feelsLike"`
	Humidity      int     `json:"humidity"`
	Pressure      int     `json:"pressure"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection int     `json:"windDirection"`
	Description   string  `json:"description"`
	Main          string  `json:"main"`
	Icon          string  `json:"icon"`
	Visibility    int     `json:"visibility"`
	Cloudiness    int     `json:"cloudiness"`
	Sunrise       int64   `json:"sunrise"`
	Sunset        int64   `json:"sunset"`
	Timezone      int     `json:"timezone"`
	Timestamp     int64   `json:"timestamp"`
}

type DailyForecast struct {
	Date        int64   `json:"date"`
	Temp        float64 `json:"temp"`
	TempMin     float64 `json:"tempMin"`
	TempMax     float64 `json:"tempMax"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
}

type Forecast struct {
	Location  string          `json:"location"`
	Country   string          `json:"country"`
	Forecasts []DailyForecast `json:"forecasts"`
}

func first(conds []owmCondition) owmCondition {
	if len(conds) == 0 {
		return owmCondition{}
	}
	return conds[0]
}

func (c *WeatherClient) Current(ctx context.Context, loc Location) (*CurrentWeather, error) {
	var raw owmCurrent
	if err := c.get(ctx, "/weather", loc, &raw); err != nil {
		return nil, err
	}
	cond := first(raw.Weather)
	return &CurrentWeather{
		Location:      raw.Name,
		Country:       raw.Sys.Country,
		Temperature:   int(math.Round(raw.Main.Temp)),
		FeelsLike:     int(math.Round(raw.Main.FeelsLike)),
		Humidity:      raw.Main.Humidity,
		Pressure:      raw.Main.Pressure,
		WindSpeed:     raw.Wind.Speed,
		WindDirection: raw.Wind.Deg,
		Description:   cond.Description,
		Main:          cond.Main,
		Icon:          cond.Icon,
		Visibility:    raw.Visibility,
		Cloudiness:    raw.Clouds.All,
		Sunrise:       raw.Sys.Sunrise,
		Sunset:        raw.Sys.Sunset,
		Timezone:      raw.Timezone,
		Timestamp:     raw.Dt,
	}, nil
}

// Forecast keeps the first 3-hour slot of each local calendar day.
func (c *WeatherClient) Forecast(ctx context.Context, loc Location) (*Forecast, error) {
	var raw owmForecast
	if err := c.get(ctx, "/forecast", loc, &raw); err != nil {
		return nil, err
	}

	zone := time.FixedZone("local", raw.City.Timezone)
	out := &Forecast{
		Location:  raw.City.Name,
		Country:   raw.City.Country,
		Forecasts: []DailyForecast{},
	}
	seen := map[string]bool{}
	for _, item := range raw.List {
		day := time.Unix(item.Dt, 0).In(zone).Format(time.DateOnly)
		if seen[day] {
			continue
		}
		seen[day] = true
		cond := first(item.Weather)
		out.Forecasts = append(out.Forecasts, DailyForecast{
			Date:        item.Dt,
			Temp:        item.Main.Temp,
			TempMin:     item.Main.TempMin,
			TempMax:     item.Main.TempMax,
			Description: cond.Description,
			Icon:        cond.Icon,
			Humidity:    item.Main.Humidity,
			WindSpeed:   item.Wind.Speed,
		})
		if len(out.Forecasts) == forecastDays {
			break
		}
	}
	return out, nil
}
