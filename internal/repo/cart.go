package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/farmconnect/internal/cart"
	"github.com/Skotchmaster/farmconnect/internal/models"
)

// CartStore keeps carts in the cart_items table.
type CartStore struct {
	DB *gorm.DB
}

func NewCartStore(db *gorm.DB) *CartStore {
	return &CartStore{DB: db}
}

func toCart(customerID uuid.UUID, rows []models.CartItem) *cart.Cart {
	c := cart.New(customerID)
	for _, row := range rows {
		c.Lines = append(c.Lines, cart.Line{
			Key:      cart.Key{Kind: cart.Kind(row.Kind), ItemID: row.ItemID},
			Quantity: row.Quantity,
		})
	}
	return c
}

func (s *CartStore) Load(ctx context.Context, customerID uuid.UUID) (*cart.Cart, error) {
	var rows []models.CartItem
	if err := s.DB.WithContext(ctx).Where("customer_id = ?", customerID).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toCart(customerID, rows), nil
}

func (s *CartStore) Update(ctx context.Context, customerID uuid.UUID, fn func(*cart.Cart) error) (*cart.Cart, error) {
	var out *cart.Cart
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the owner row serializes updates even while the cart is still empty
		var owner []models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").Where("id = ?", customerID).Find(&owner).Error; err != nil {
			return err
		}

		var rows []models.CartItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("customer_id = ?", customerID).
			Order("position ASC").
			Find(&rows).Error; err != nil {
			return err
		}

		c := toCart(customerID, rows)
		if err := fn(c); err != nil {
			return err
		}

		if err := tx.Where("customer_id = ?", customerID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if !c.Empty() {
			next := make([]models.CartItem, 0, c.Len())
			for i, l := range c.Lines {
				next = append(next, models.CartItem{
					CustomerID: customerID,
					Kind:       string(l.Kind),
					ItemID:     l.ItemID,
					Quantity:   l.Quantity,
					Position:   i,
				})
			}
			if err := tx.Create(&next).Error; err != nil {
				return err
			}
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CartStore) Delete(ctx context.Context, customerID uuid.UUID) error {
	return s.DB.WithContext(ctx).Where("customer_id = ?", customerID).Delete(&models.CartItem{}).Error
}

var _ cart.Store = (*CartStore)(nil)
