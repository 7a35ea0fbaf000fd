package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// CropInput is the feature vector the crop model was trained on.
type CropInput struct {
	N           float64 `json:"N"`
	P           float64 `json:"P"`
	K           float64 `json:"K"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"`
}

type MLClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewMLClient(baseURL string, timeout time.Duration) *MLClient {
	return &MLClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
	}
}

func (c *MLClient) BaseURL() string { return c.baseURL }

func (c *MLClient) Predict(ctx context.Context, in CropInput) (json.RawMessage, error) {
	return doJSON(ctx, c.httpClient, "ml", http.MethodPost, c.baseURL+"/predict", in)
}

func (c *MLClient) ModelInfo(ctx context.Context) (json.RawMessage, error) {
	return doJSON(ctx, c.httpClient, "ml", http.MethodGet, c.baseURL+"/model-info", nil)
}

func (c *MLClient) Health(ctx context.Context) (json.RawMessage, error) {
	return doJSON(ctx, c.httpClient, "ml", http.MethodGet, c.baseURL+"/health", nil)
}
