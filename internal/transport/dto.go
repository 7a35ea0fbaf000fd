package transport

import (
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/farmconnect/internal/models"
	"github.com/Skotchmaster/farmconnect/internal/pricing"
)

type RegisterRequest struct {
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Password     string          `json:"password"`
	Phone        string          `json:"phone"`
	Role         string          `json:"role"`
	FarmLocation string          `json:"farmLocation"`
	FarmSize     string          `json:"farmSize"`
	Address      *models.Address `json:"address"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// ProductRequest is used for create and for partial update; nil means unset.
type ProductRequest struct {
	Name        *string  `json:"name"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Unit        *string  `json:"unit"`
	Quantity    *int     `json:"quantity"`
	InStock     *bool    `json:"inStock"`
	Image       *string  `json:"image"`
}

type ToolRequest struct {
	Name           *string             `json:"name"`
	Category       *string             `json:"category"`
	Type           *string             `json:"type"`
	Description    *string             `json:"description"`
	RentalPrice    *models.RentalPrice `json:"rentalPrice"`
	Available      *bool               `json:"available"`
	Image          *string             `json:"image"`
	Specifications map[string]string   `json:"specifications"`
	Location       *string             `json:"location"`
}

type RentalDuration struct {
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

// OrderItemRequest accepts both {kind, itemId, quantity|days, startDate} and
// the older {itemId, itemType: Product|Tool, quantity, rentalDuration} shape.
type OrderItemRequest struct {
	Kind      string     `json:"kind"`
	ItemID    uuid.UUID  `json:"itemId"`
	Quantity  int        `json:"quantity"`
	Days      int        `json:"days"`
	StartDate *time.Time `json:"startDate"`

	ItemType       string          `json:"itemType"`
	RentalDuration *RentalDuration `json:"rentalDuration"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items"`
	DeliveryAddress models.Address     `json:"deliveryAddress"`
	TotalAmount     *float64           `json:"totalAmount"`
}

type CartItemRequest struct {
	Kind     string    `json:"kind"`
	ItemID   uuid.UUID `json:"itemId"`
	Quantity int       `json:"quantity"`
	Days     int       `json:"days"`
}

type CartQuantityRequest struct {
	Quantity *int `json:"quantity"`
	Days     *int `json:"days"`
}

type CheckoutRequest struct {
	DeliveryAddress models.Address `json:"deliveryAddress"`
	StartDate       *time.Time     `json:"startDate"`
	TotalAmount     *float64       `json:"totalAmount"`
}

type QuoteRequest struct {
	Items []CartItemRequest `json:"items"`
}

// CartLineView is a priced cart line.
type CartLineView struct {
	Kind      string    `json:"kind"`
	ItemID    uuid.UUID `json:"itemId"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit,omitempty"`
	UnitPrice float64   `json:"unitPrice"`
	Quantity  int       `json:"quantity,omitempty"`
	Days      int       `json:"days,omitempty"`
	LineTotal float64   `json:"lineTotal"`
	Image     string    `json:"image,omitempty"`
	Available bool      `json:"available"`
}

type CartView struct {
	Lines []CartLineView `json:"lines"`
	Quote pricing.Quote  `json:"quote"`
}

type PredictRequest map[string]any

type SearchResponse struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Items any   `json:"items"`
}
