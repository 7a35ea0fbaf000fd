package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	OrderTypeProduct    = "product"
	OrderTypeToolRental = "tool_rental"
	OrderTypeMixed      = "mixed"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

const (
	LinePurchase = "purchase"
	LineRental   = "rental"
)

type Order struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey"                                json:"id"`
	CustomerID      uuid.UUID   `gorm:"type:uuid;not null;index"                            json:"customerId"`
	OrderType       string      `gorm:"not null"                                            json:"orderType"`
	Lines           []OrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"      json:"lines"`
	Subtotal        float64     `gorm:"not null"                                            json:"subtotal"`
	DeliveryFee     float64     `gorm:"not null"                                            json:"deliveryFee"`
	Tax             float64     `gorm:"not null"                                            json:"tax"`
	TotalAmount     float64     `gorm:"not null"                                            json:"totalAmount"`
	Status          string      `gorm:"not null;index"                                      json:"status"`
	PaymentStatus   string      `gorm:"not null"                                            json:"paymentStatus"`
	DeliveryAddress Address     `gorm:"embedded;embeddedPrefix:delivery_"                   json:"deliveryAddress"`
	CreatedAt       time.Time   `gorm:"index"                                               json:"createdAt"`
	UpdatedAt       time.Time   `                                                           json:"updatedAt"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// DeriveType sets OrderType from the kinds of its lines.
func (o *Order) DeriveType() {
	var purchases, rentals int
	for i := range o.Lines {
		if o.Lines[i].Kind == LineRental {
			rentals++
		} else {
			purchases++
		}
	}
	switch {
	case rentals > 0 && purchases > 0:
		o.OrderType = OrderTypeMixed
	case rentals > 0:
		o.OrderType = OrderTypeToolRental
	default:
		o.OrderType = OrderTypeProduct
	}
}

// OrderLine is stored flat and rendered as a tagged variant keyed by Kind.
// For rentals Quantity holds the number of days.
type OrderLine struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Position  int       `gorm:"not null"`
	Kind      string    `gorm:"not null"`
	ItemID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"not null"`
	Unit      string
	UnitPrice float64 `gorm:"not null"`
	Quantity  int     `gorm:"not null"`
	StartDate *time.Time
	EndDate   *time.Time
	LineTotal float64 `gorm:"not null"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func NewPurchaseLine(p *Product, quantity int) OrderLine {
	return OrderLine{
		Kind:      LinePurchase,
		ItemID:    p.ID,
		Name:      p.Name,
		Unit:      p.Unit,
		UnitPrice: p.Price,
		Quantity:  quantity,
		LineTotal: p.Price * float64(quantity),
	}
}

func NewRentalLine(t *Tool, days int, start time.Time) OrderLine {
	start = start.UTC().Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, days)
	return OrderLine{
		Kind:      LineRental,
		ItemID:    t.ID,
		Name:      t.Name,
		UnitPrice: t.RentalPrice.PerDay,
		Quantity:  days,
		StartDate: &start,
		EndDate:   &end,
		LineTotal: t.RentalPrice.PerDay * float64(days),
	}
}

type purchaseLineJSON struct {
	Kind      string    `json:"kind"`
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit,omitempty"`
	UnitPrice float64   `json:"unitPrice"`
	Quantity  int       `json:"quantity"`
	LineTotal float64   `json:"lineTotal"`
}

type rentalLineJSON struct {
	Kind      string     `json:"kind"`
	ToolID    uuid.UUID  `json:"toolId"`
	Name      string     `json:"name"`
	UnitPrice float64    `json:"unitPrice"`
	Days      int        `json:"days"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	LineTotal float64    `json:"lineTotal"`
}

func (l OrderLine) MarshalJSON() ([]byte, error) {
	if l.Kind == LineRental {
		return json.Marshal(rentalLineJSON{
			Kind:      l.Kind,
			ToolID:    l.ItemID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Days:      l.Quantity,
			StartDate: l.StartDate,
			EndDate:   l.EndDate,
			LineTotal: l.LineTotal,
		})
	}
	return json.Marshal(purchaseLineJSON{
		Kind:      l.Kind,
		ProductID: l.ItemID,
		Name:      l.Name,
		Unit:      l.Unit,
		UnitPrice: l.UnitPrice,
		Quantity:  l.Quantity,
		LineTotal: l.LineTotal,
	})
}

// CartItem is one persisted cart line; (CustomerID, Kind, ItemID) is the key.
type CartItem struct {
	CustomerID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind       string    `gorm:"primaryKey"`
	ItemID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Quantity   int       `gorm:"not null;check:quantity > 0"`
	Position   int       `gorm:"not null"`
	UpdatedAt  time.Time
}

// All lists every persisted model for AutoMigrate.
func All() []any {
	return []any{&User{}, &Product{}, &Tool{}, &Order{}, &OrderLine{}, &CartItem{}}
}
