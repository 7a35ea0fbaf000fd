package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/farmconnect/internal/models"
)

var (
	ErrUserAlreadyExist  = errors.New("user already exist")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStatusChanged     = errors.New("order status changed")
)

// StockError names the product whose conditional decrement matched no row.
type StockError struct {
	ProductID uuid.UUID
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%s: product %s, requested %d", ErrInsufficientStock, e.ProductID, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

// Transaction runs fn against a repo bound to one database transaction.
// Inside fn only the given repo may be used.
func (r *GormRepo) Transaction(ctx context.Context, fn func(tx *GormRepo) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx})
	})
}

func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
