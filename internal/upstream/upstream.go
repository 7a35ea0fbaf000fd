// Package upstream talks to the external crop model and weather provider.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Skotchmaster/farmconnect/pkg/metrics"
)

const maxBody = 4 << 20

// ErrUnavailable means the upstream could not be reached at all.
var ErrUnavailable = errors.New("upstream unavailable")

// StatusError is a non-2xx answer from an upstream.
type StatusError struct {
	Upstream string
	Code     int
	Detail   string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: status %d", e.Upstream, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Upstream, e.Code, e.Detail)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// detail pulls a human message out of FastAPI ({"detail": ...}) and
// OpenWeather ({"message": ...}) error bodies.
func detail(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
			return items[0].Msg
		}
	}
	return payload.Message
}

// doJSON sends body (if any) as JSON and returns the raw 2xx response body.
func doJSON(ctx context.Context, hc *http.Client, name, method, url string, body any) (json.RawMessage, error) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		metrics.ObserveUpstream(name, 0, start)
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
	}
	defer resp.Body.Close()
	metrics.ObserveUpstream(name, resp.StatusCode, start)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrUnavailable, name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Upstream: name, Code: resp.StatusCode, Detail: detail(raw)}
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: %s: response is not json", ErrUnavailable, name)
	}
	return raw, nil
}
