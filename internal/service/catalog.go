package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/farmconnect/internal/catalog"
	"github.com/Skotchmaster/farmconnect/internal/models"
	"github.com/Skotchmaster/farmconnect/internal/repo"
	"github.com/Skotchmaster/farmconnect/internal/search"
	"github.com/Skotchmaster/farmconnect/internal/transport"
	"github.com/Skotchmaster/farmconnect/pkg/events"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
	"github.com/Skotchmaster/farmconnect/pkg/storage"
)

// Indexer mirrors catalog writes into the search index and queries it.
type Indexer interface {
	SyncProduct(ctx context.Context, p *models.Product) error
	SyncTool(ctx context.Context, t *models.Tool) error
	Remove(ctx context.Context, kind, id string) error
	Search(ctx context.Context, query string, offset, limit int) (search.Results, error)
}

type CatalogService struct {
	Repo   *repo.GormRepo
	Images storage.Store
	Index  Indexer
	Events events.Publisher
}

func (s *CatalogService) sync(ctx context.Context, op string, fn func(Indexer) error) {
	if s.Index == nil {
		return
	}
	if err := fn(s.Index); err != nil && !errors.Is(err, search.ErrDisabled) {
		logging.FromContext(ctx).Warn("search_sync_error", "op", op, "error", err)
	}
}

// resolveImage uploads data URLs and keeps anything else verbatim.
func (s *CatalogService) resolveImage(ctx context.Context, kind string, id uuid.UUID, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !storage.IsDataURL(raw) {
		return raw, nil
	}
	if s.Images == nil {
		return "", fmt.Errorf("%w: image uploads are not configured, send an image URL", ErrValidation)
	}
	du, err := storage.ParseDataURL(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	key := fmt.Sprintf("images/%s/%s.%s", kind, id, du.Ext)
	url, err := s.Images.Put(ctx, key, du.ContentType, du.Data)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return url, nil
}

func (s *CatalogService) farmer(ctx context.Context, farmerID uuid.UUID) (*models.User, error) {
	u, err := s.Repo.GetUserByID(ctx, farmerID)
	if err != nil {
		return nil, notFound(err, "farmer")
	}
	return u, nil
}

func validateProduct(p *models.Product) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case !models.ValidProductCategory(p.Category):
		return fmt.Errorf("%w: category must be one of %s", ErrValidation, strings.Join(models.ProductCategories, ", "))
	case p.Price < 0:
		return fmt.Errorf("%w: price cannot be negative", ErrValidation)
	case !models.ValidProductUnit(p.Unit):
		return fmt.Errorf("%w: unit must be one of %s", ErrValidation, strings.Join(models.ProductUnits, ", "))
	case p.Stock() < 0:
		return fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	}
	return nil
}

func applyProduct(p *models.Product, req transport.ProductRequest) {
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		p.Category = strings.ToLower(strings.TrimSpace(*req.Category))
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Unit != nil {
		p.Unit = strings.ToLower(strings.TrimSpace(*req.Unit))
	}
	if req.Quantity != nil {
		q := *req.Quantity
		p.Quantity = &q
	}
	if req.InStock != nil {
		p.InStock = *req.InStock
	}
}

func (s *CatalogService) ListProducts(ctx context.Context, f catalog.Filter) ([]models.Product, error) {
	return s.Repo.ListProducts(ctx, f)
}

func (s *CatalogService) ListFarmerProducts(ctx context.Context, farmerID uuid.UUID) ([]models.Product, error) {
	return s.Repo.ListProductsByFarmer(ctx, farmerID)
}

// GetProduct only returns publicly listable products.
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, notFound(err, "product")
	}
	if !p.Listable() {
		return nil, fmt.Errorf("%w: product not found", ErrNotFound)
	}
	return p, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, farmerID uuid.UUID, req transport.ProductRequest) (*models.Product, error) {
	if req.Price == nil {
		return nil, fmt.Errorf("%w: price is required", ErrValidation)
	}
	farmer, err := s.farmer(ctx, farmerID)
	if err != nil {
		return nil, err
	}

	zero := 0
	p := &models.Product{
		ID:           uuid.New(),
		Quantity:     &zero,
		InStock:      true,
		FarmerID:     farmer.ID,
		FarmerName:   farmer.Name,
		FarmLocation: farmer.FarmLocation,
	}
	applyProduct(p, req)
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if req.Image != nil {
		if p.Image, err = s.resolveImage(ctx, "products", p.ID, *req.Image); err != nil {
			return nil, err
		}
	}

	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	s.sync(ctx, "product.create", func(ix Indexer) error { return ix.SyncProduct(ctx, p) })
	events.Emit(ctx, s.Events, events.TopicProducts, p.ID.String(), events.New("product_created", p))
	return p, nil
}

func ownProduct(p *models.Product, farmerID uuid.UUID) error {
	if p.FarmerID != farmerID {
		return fmt.Errorf("%w: product belongs to another farmer", ErrForbidden)
	}
	return nil
}

// ownedProduct separates absent from not-owned.
func (s *CatalogService) ownedProduct(ctx context.Context, farmerID, id uuid.UUID) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, notFound(err, "product")
	}
	if err := ownProduct(p, farmerID); err != nil {
		return nil, err
	}
	return p, nil
}

type column struct {
	name string
	set  bool
}

func setColumns(cs []column) []string {
	var cols []string
	for _, c := range cs {
		if c.set {
			cols = append(cols, c.name)
		}
	}
	return cols
}

// productColumns lists the columns a partial update touches.
func productColumns(req transport.ProductRequest) []string {
	return setColumns([]column{
		{"name", req.Name != nil},
		{"category", req.Category != nil},
		{"description", req.Description != nil},
		{"price", req.Price != nil},
		{"unit", req.Unit != nil},
		{"quantity", req.Quantity != nil},
		{"in_stock", req.InStock != nil},
		{"image", req.Image != nil},
	})
}

// UpdateProduct applies req to the locked row and writes back only the
// fields req sets. Stock sold in the meantime is kept.
func (s *CatalogService) UpdateProduct(ctx context.Context, farmerID, id uuid.UUID, req transport.ProductRequest) (*models.Product, error) {
	pre, err := s.ownedProduct(ctx, farmerID, id)
	if err != nil {
		return nil, err
	}
	applyProduct(pre, req)
	if err := validateProduct(pre); err != nil {
		return nil, err
	}
	var image string
	if req.Image != nil {
		if image, err = s.resolveImage(ctx, "products", id, *req.Image); err != nil {
			return nil, err
		}
	}

	var p *models.Product
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		cur, err := tx.LockProduct(ctx, id)
		if err != nil {
			return notFound(err, "product")
		}
		if err := ownProduct(cur, farmerID); err != nil {
			return err
		}
		applyProduct(cur, req)
		if req.Image != nil {
			cur.Image = image
		}
		if err := validateProduct(cur); err != nil {
			return err
		}
		if err := tx.UpdateProductColumns(ctx, cur, productColumns(req)); err != nil {
			return err
		}
		p = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.Normalize()

	s.sync(ctx, "product.update", func(ix Indexer) error { return ix.SyncProduct(ctx, p) })
	events.Emit(ctx, s.Events, events.TopicProducts, p.ID.String(), events.New("product_updated", p))
	return p, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, farmerID, id uuid.UUID) error {
	if _, err := s.ownedProduct(ctx, farmerID, id); err != nil {
		return err
	}
	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		return notFound(err, "product")
	}

	s.sync(ctx, "product.delete", func(ix Indexer) error { return ix.Remove(ctx, search.KindProduct, id.String()) })
	events.Emit(ctx, s.Events, events.TopicProducts, id.String(), events.New("product_deleted", map[string]any{"id": id}))
	return nil
}

func validateTool(t *models.Tool) error {
	switch {
	case t.Name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case !models.ValidToolCategory(t.Category):
		return fmt.Errorf("%w: category must be one of %s", ErrValidation, strings.Join(models.ToolCategories, ", "))
	case t.RentalPrice.PerDay < 0 || t.RentalPrice.PerWeek < 0 || t.RentalPrice.PerMonth < 0:
		return fmt.Errorf("%w: rental prices cannot be negative", ErrValidation)
	}
	return nil
}

func applyTool(t *models.Tool, req transport.ToolRequest) {
	if req.Name != nil {
		t.Name = strings.TrimSpace(*req.Name)
	}
	switch {
	case req.Category != nil:
		t.Category = strings.ToLower(strings.TrimSpace(*req.Category))
	case req.Type != nil:
		t.Category = strings.ToLower(strings.TrimSpace(*req.Type))
	}
	if req.Description != nil {
		t.Description = strings.TrimSpace(*req.Description)
	}
	if req.RentalPrice != nil {
		t.RentalPrice = *req.RentalPrice
	}
	if req.Available != nil {
		t.Available = *req.Available
	}
	if req.Specifications != nil {
		t.Specifications = models.Specs(req.Specifications)
	}
	if req.Location != nil {
		t.Location = strings.TrimSpace(*req.Location)
	}
}

func (s *CatalogService) ListTools(ctx context.Context, f catalog.Filter) ([]models.Tool, error) {
	return s.Repo.ListTools(ctx, f)
}

func (s *CatalogService) ListFarmerTools(ctx context.Context, farmerID uuid.UUID) ([]models.Tool, error) {
	return s.Repo.ListToolsByFarmer(ctx, farmerID)
}

func (s *CatalogService) CreateTool(ctx context.Context, farmerID uuid.UUID, req transport.ToolRequest) (*models.Tool, error) {
	if req.RentalPrice == nil {
		return nil, fmt.Errorf("%w: rentalPrice is required", ErrValidation)
	}
	farmer, err := s.farmer(ctx, farmerID)
	if err != nil {
		return nil, err
	}

	t := &models.Tool{
		ID:         uuid.New(),
		Available:  true,
		FarmerID:   farmer.ID,
		FarmerName: farmer.Name,
		Location:   farmer.FarmLocation,
	}
	applyTool(t, req)
	if err := validateTool(t); err != nil {
		return nil, err
	}
	if req.Image != nil {
		if t.Image, err = s.resolveImage(ctx, "tools", t.ID, *req.Image); err != nil {
			return nil, err
		}
	}

	if err := s.Repo.CreateTool(ctx, t); err != nil {
		return nil, err
	}

	s.sync(ctx, "tool.create", func(ix Indexer) error { return ix.SyncTool(ctx, t) })
	events.Emit(ctx, s.Events, events.TopicTools, t.ID.String(), events.New("tool_created", t))
	return t, nil
}

func ownTool(t *models.Tool, farmerID uuid.UUID) error {
	if t.FarmerID != farmerID {
		return fmt.Errorf("%w: tool belongs to another farmer", ErrForbidden)
	}
	return nil
}

func (s *CatalogService) ownedTool(ctx context.Context, farmerID, id uuid.UUID) (*models.Tool, error) {
	t, err := s.Repo.GetTool(ctx, id)
	if err != nil {
		return nil, notFound(err, "tool")
	}
	if err := ownTool(t, farmerID); err != nil {
		return nil, err
	}
	return t, nil
}

func toolColumns(req transport.ToolRequest) []string {
	return setColumns([]column{
		{"name", req.Name != nil},
		{"category", req.Category != nil || req.Type != nil},
		{"description", req.Description != nil},
		{"rental_price_per_day", req.RentalPrice != nil},
		{"rental_price_per_week", req.RentalPrice != nil},
		{"rental_price_per_month", req.RentalPrice != nil},
		{"available", req.Available != nil},
		{"image", req.Image != nil},
		{"specifications", req.Specifications != nil},
		{"location", req.Location != nil},
	})
}

func (s *CatalogService) UpdateTool(ctx context.Context, farmerID, id uuid.UUID, req transport.ToolRequest) (*models.Tool, error) {
	pre, err := s.ownedTool(ctx, farmerID, id)
	if err != nil {
		return nil, err
	}
	applyTool(pre, req)
	if err := validateTool(pre); err != nil {
		return nil, err
	}
	var image string
	if req.Image != nil {
		if image, err = s.resolveImage(ctx, "tools", id, *req.Image); err != nil {
			return nil, err
		}
	}

	var t *models.Tool
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		cur, err := tx.LockTool(ctx, id)
		if err != nil {
			return notFound(err, "tool")
		}
		if err := ownTool(cur, farmerID); err != nil {
			return err
		}
		applyTool(cur, req)
		if req.Image != nil {
			cur.Image = image
		}
		if err := validateTool(cur); err != nil {
			return err
		}
		if err := tx.UpdateToolColumns(ctx, cur, toolColumns(req)); err != nil {
			return err
		}
		t = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sync(ctx, "tool.update", func(ix Indexer) error { return ix.SyncTool(ctx, t) })
	events.Emit(ctx, s.Events, events.TopicTools, t.ID.String(), events.New("tool_updated", t))
	return t, nil
}

func (s *CatalogService) DeleteTool(ctx context.Context, farmerID, id uuid.UUID) error {
	if _, err := s.ownedTool(ctx, farmerID, id); err != nil {
		return err
	}
	if err := s.Repo.DeleteTool(ctx, id); err != nil {
		return notFound(err, "tool")
	}

	s.sync(ctx, "tool.delete", func(ix Indexer) error { return ix.Remove(ctx, search.KindTool, id.String()) })
	events.Emit(ctx, s.Events, events.TopicTools, id.String(), events.New("tool_deleted", map[string]any{"id": id}))
	return nil
}

// Search pages through the full-text index.
func (s *CatalogService) Search(ctx context.Context, q string, page, size int) (search.Results, int, int, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return search.Results{}, 0, 0, fmt.Errorf("%w: q is required", ErrValidation)
	}
	if s.Index == nil {
		return search.Results{}, 0, 0, fmt.Errorf("%w: search is not configured", ErrUnavailable)
	}
	offset, limit := search.Calculate(page, size)
	res, err := s.Index.Search(ctx, q, offset, limit)
	if errors.Is(err, search.ErrDisabled) {
		return search.Results{}, 0, 0, fmt.Errorf("%w: search is not configured", ErrUnavailable)
	}
	if err != nil {
		return search.Results{}, 0, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if page < 1 {
		page = 1
	}
	return res, page, limit, nil
}

// Reindex rebuilds the search index from the listable catalog.
func (s *CatalogService) Reindex(ctx context.Context, ix *search.Index) (int, error) {
	products, err := s.Repo.ListProducts(ctx, catalog.Filter{})
	if err != nil {
		return 0, err
	}
	tools, err := s.Repo.ListTools(ctx, catalog.Filter{})
	if err != nil {
		return 0, err
	}
	docs := make([]search.Doc, 0, len(products)+len(tools))
	for i := range products {
		docs = append(docs, search.ProductDoc(&products[i]))
	}
	for i := range tools {
		docs = append(docs, search.ToolDoc(&tools[i]))
	}
	return ix.Reindex(ctx, docs)
}
