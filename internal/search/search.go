// Package search keeps an Elasticsearch index of the listable catalog.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/Skotchmaster/farmconnect/internal/models"
)

const (
	KindProduct = "product"
	KindTool    = "tool"

	DefaultPageSize = 10
	MaxPageSize     = 100
)

var ErrDisabled = errors.New("search is not configured")

type Config struct {
	URL      string
	User     string
	Password string
	Index    string
}

// Doc is one searchable catalog entry. Price is the per-day rate for tools.
type Doc struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Unit        string    `json:"unit,omitempty"`
	Image       string    `json:"image,omitempty"`
	FarmerName  string    `json:"farmerName,omitempty"`
	Location    string    `json:"location,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func docID(kind, id string) string { return kind + ":" + id }

func ProductDoc(p *models.Product) Doc {
	return Doc{
		ID:          p.ID.String(),
		Kind:        KindProduct,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Unit:        p.Unit,
		Image:       p.Image,
		FarmerName:  p.FarmerName,
		Location:    p.FarmLocation,
		UpdatedAt:   p.UpdatedAt,
	}
}

func ToolDoc(t *models.Tool) Doc {
	return Doc{
		ID:          t.ID.String(),
		Kind:        KindTool,
		Name:        t.Name,
		Description: t.Description,
		Category:    t.Category,
		Price:       t.RentalPrice.PerDay,
		Image:       t.Image,
		FarmerName:  t.FarmerName,
		Location:    t.Location,
		UpdatedAt:   t.UpdatedAt,
	}
}

type Results struct {
	Total int64 `json:"total"`
	Items []Doc `json:"items"`
}

// Calculate turns a 1-based page into offset and limit.
func Calculate(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return (page - 1) * size, size
}

// Index is nil-safe: a nil *Index reports ErrDisabled.
type Index struct {
	es   *elasticsearch.Client
	name string
}

func NewIndex(es *elasticsearch.Client, name string) *Index {
	return &Index{es: es, name: name}
}

func NewClient(cfg Config) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
}

// Connect builds a client and checks the cluster answers.
func Connect(ctx context.Context, cfg Config) (*Index, error) {
	es, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	res, err := es.Info(es.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	if err := checkResponse(res, "info"); err != nil {
		return nil, err
	}
	return NewIndex(es, cfg.Index), nil
}

func (ix *Index) Enabled() bool { return ix != nil && ix.es != nil }

func checkResponse(res *esapi.Response, op string, allow ...int) error {
	defer res.Body.Close()
	if !res.IsError() {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	for _, code := range allow {
		if res.StatusCode == code {
			return nil
		}
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("elasticsearch %s: %s: %s", op, res.Status(), bytes.TrimSpace(body))
}

var mapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":          map[string]any{"type": "keyword"},
			"kind":        map[string]any{"type": "keyword"},
			"name":        map[string]any{"type": "text"},
			"description": map[string]any{"type": "text"},
			"category":    map[string]any{"type": "keyword"},
			"price":       map[string]any{"type": "double"},
			"unit":        map[string]any{"type": "keyword"},
			"image":       map[string]any{"type": "keyword", "index": false},
			"farmerName":  map[string]any{"type": "text"},
			"location":    map[string]any{"type": "text"},
			"updatedAt":   map[string]any{"type": "date"},
		},
	},
}

func (ix *Index) EnsureIndex(ctx context.Context) error {
	if !ix.Enabled() {
		return ErrDisabled
	}
	res, err := ix.es.Indices.Exists([]string{ix.name}, ix.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	res, err = ix.es.Indices.Create(ix.name,
		ix.es.Indices.Create.WithContext(ctx),
		ix.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch create index: %w", err)
	}
	// 400 resource_already_exists when another instance won the race
	return checkResponse(res, "create index", http.StatusBadRequest)
}

func (ix *Index) put(ctx context.Context, d Doc) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	res, err := ix.es.Index(ix.name, bytes.NewReader(body),
		ix.es.Index.WithContext(ctx),
		ix.es.Index.WithDocumentID(docID(d.Kind, d.ID)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	return checkResponse(res, "index")
}

// Remove drops a document; a missing one is fine.
func (ix *Index) Remove(ctx context.Context, kind, id string) error {
	if !ix.Enabled() {
		return ErrDisabled
	}
	res, err := ix.es.Delete(ix.name, docID(kind, id), ix.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	return checkResponse(res, "delete", http.StatusNotFound)
}

// SyncProduct indexes a listable product and removes one that is not.
func (ix *Index) SyncProduct(ctx context.Context, p *models.Product) error {
	if !ix.Enabled() {
		return ErrDisabled
	}
	if !p.Listable() {
		return ix.Remove(ctx, KindProduct, p.ID.String())
	}
	return ix.put(ctx, ProductDoc(p))
}

func (ix *Index) SyncTool(ctx context.Context, t *models.Tool) error {
	if !ix.Enabled() {
		return ErrDisabled
	}
	if !t.Listable() {
		return ix.Remove(ctx, KindTool, t.ID.String())
	}
	return ix.put(ctx, ToolDoc(t))
}

func (ix *Index) Search(ctx context.Context, query string, offset, limit int) (Results, error) {
	if !ix.Enabled() {
		return Results{}, ErrDisabled
	}
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description", "category", "farmerName", "location"},
				"fuzziness": "AUTO",
			},
		},
		"from": offset,
		"size": limit,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return Results{}, err
	}

	res, err := ix.es.Search(
		ix.es.Search.WithContext(ctx),
		ix.es.Search.WithIndex(ix.name),
		ix.es.Search.WithBody(&buf),
	)
	if err != nil {
		return Results{}, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return Results{}, fmt.Errorf("elasticsearch search: %s: %s", res.Status(), bytes.TrimSpace(raw))
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Doc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return Results{}, fmt.Errorf("elasticsearch search: decode: %w", err)
	}

	out := Results{Total: r.Hits.Total.Value, Items: make([]Doc, 0, len(r.Hits.Hits))}
	for _, hit := range r.Hits.Hits {
		out.Items = append(out.Items, hit.Source)
	}
	return out, nil
}

// Reindex drops the index and bulk-loads docs into a fresh one.
func (ix *Index) Reindex(ctx context.Context, docs []Doc) (int, error) {
	if !ix.Enabled() {
		return 0, ErrDisabled
	}
	res, err := ix.es.Indices.Delete([]string{ix.name}, ix.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("elasticsearch delete index: %w", err)
	}
	if err := checkResponse(res, "delete index", http.StatusNotFound); err != nil {
		return 0, err
	}
	if err := ix.EnsureIndex(ctx); err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range docs {
		meta := map[string]any{"index": map[string]any{"_id": docID(d.Kind, d.ID)}}
		if err := enc.Encode(meta); err != nil {
			return 0, err
		}
		if err := enc.Encode(d); err != nil {
			return 0, err
		}
	}

	res, err = ix.es.Bulk(&buf,
		ix.es.Bulk.WithContext(ctx),
		ix.es.Bulk.WithIndex(ix.name),
		ix.es.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return 0, fmt.Errorf("elasticsearch bulk: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return 0, fmt.Errorf("elasticsearch bulk: %s: %s", res.Status(), bytes.TrimSpace(raw))
	}
	var br struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return 0, fmt.Errorf("elasticsearch bulk: decode: %w", err)
	}
	if br.Errors {
		return 0, fmt.Errorf("elasticsearch bulk: some documents failed")
	}
	return len(docs), nil
}
