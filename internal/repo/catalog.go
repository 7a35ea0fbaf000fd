package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/farmconnect/internal/catalog"
	"github.com/Skotchmaster/farmconnect/internal/models"
)

const likeByName = `LOWER(name) LIKE ? ESCAPE '\'`

func applyFilter(q *gorm.DB, f catalog.Filter) *gorm.DB {
	if f.HasCategory() {
		q = q.Where("category = ?", f.Category)
	}
	if f.Search != "" {
		q = q.Where(likeByName, f.Pattern())
	}
	return q
}

func (r *GormRepo) CreateProduct(ctx context.Context, p *models.Product) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	out := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.Product
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for i := range items {
		out[items[i].ID] = &items[i]
	}
	return out, nil
}

// ListProducts returns publicly listable products, newest first.
func (r *GormRepo) ListProducts(ctx context.Context, f catalog.Filter) ([]models.Product, error) {
	q := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("in_stock = ? AND quantity > 0", true)
	q = applyFilter(q, f)

	items := []models.Product{}
	if err := q.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) ListProductsByFarmer(ctx context.Context, farmerID uuid.UUID) ([]models.Product, error) {
	items := []models.Product{}
	if err := r.DB.WithContext(ctx).Where("farmer_id = ?", farmerID).Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Normalize()
	}
	return items, nil
}

// LockProduct reads a product with a row lock for a read-modify-write.
func (r *GormRepo) LockProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProductColumns writes only cols, so a concurrent stock decrement is
// not overwritten by a stale quantity.
func (r *GormRepo) UpdateProductColumns(ctx context.Context, p *models.Product, cols []string) error {
	if len(cols) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(p).Select(cols).Updates(p).Error
}

func (r *GormRepo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DecrementStock takes q units only if they are all there.
func (r *GormRepo) DecrementStock(ctx context.Context, productID uuid.UUID, q int) error {
	res := r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND in_stock = ? AND quantity >= ?", productID, true, q).
		Update("quantity", gorm.Expr("quantity - ?", q))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &StockError{ProductID: productID, Requested: q}
	}
	return nil
}

// RestoreStock puts q units back; a deleted product is skipped.
func (r *GormRepo) RestoreStock(ctx context.Context, productID uuid.UUID, q int) error {
	return r.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("quantity", gorm.Expr("COALESCE(quantity, 0) + ?", q)).Error
}

func (r *GormRepo) CreateTool(ctx context.Context, t *models.Tool) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *GormRepo) GetTool(ctx context.Context, id uuid.UUID) (*models.Tool, error) {
	var t models.Tool
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormRepo) GetToolsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Tool, error) {
	out := make(map[uuid.UUID]*models.Tool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.Tool
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for i := range items {
		out[items[i].ID] = &items[i]
	}
	return out, nil
}

// ListTools returns available tools, newest first.
func (r *GormRepo) ListTools(ctx context.Context, f catalog.Filter) ([]models.Tool, error) {
	q := r.DB.WithContext(ctx).Model(&models.Tool{}).Where("available = ?", true)
	q = applyFilter(q, f)

	items := []models.Tool{}
	if err := q.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) ListToolsByFarmer(ctx context.Context, farmerID uuid.UUID) ([]models.Tool, error) {
	items := []models.Tool{}
	if err := r.DB.WithContext(ctx).Where("farmer_id = ?", farmerID).Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) LockTool(ctx context.Context, id uuid.UUID) (*models.Tool, error) {
	var t models.Tool
	if err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormRepo) UpdateToolColumns(ctx context.Context, t *models.Tool, cols []string) error {
	if len(cols) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(t).Select(cols).Updates(t).Error
}

func (r *GormRepo) DeleteTool(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Tool{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
