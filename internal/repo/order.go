package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/farmconnect/internal/models"
)

func linesByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *GormRepo) CreateOrder(ctx context.Context, o *models.Order) error {
	for i := range o.Lines {
		o.Lines[i].Position = i
	}
	return r.DB.WithContext(ctx).Create(o).Error
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).Preload("Lines", linesByPosition).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepo) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	orders := []models.Order{}
	if err := r.DB.WithContext(ctx).
		Preload("Lines", linesByPosition).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// TransitionStatus moves an order from one status to another, failing with
// ErrStatusChanged when it is no longer in the expected one.
func (r *GormRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}
