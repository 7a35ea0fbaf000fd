package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ProductCategories = []string{"fruits", "vegetables", "grains", "dairy", "other"}
	ProductUnits      = []string{"kg", "gram", "liter", "piece", "dozen", "quintal"}
	ToolCategories    = []string{"harvesting", "planting", "irrigation", "processing", "transport", "other"}
)

func ValidProductCategory(c string) bool { return slices.Contains(ProductCategories, c) }
func ValidProductUnit(u string) bool     { return slices.Contains(ProductUnits, u) }
func ValidToolCategory(c string) bool    { return slices.Contains(ToolCategories, c) }

type Product struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"          json:"id"`
	Name         string    `gorm:"not null;index"                json:"name"`
	Category     string    `gorm:"not null;index"                json:"category"`
	Description  string    `                                     json:"description"`
	Price        float64   `gorm:"not null;check:price >= 0"     json:"price"`
	Unit         string    `gorm:"not null"                      json:"unit"`
	Quantity     *int      `gorm:"check:quantity >= 0"           json:"quantity"`
	InStock      bool      `gorm:"not null"                      json:"inStock"`
	Image        string    `                                     json:"image,omitempty"`
	FarmerID     uuid.UUID `gorm:"type:uuid;not null;index"      json:"farmerId"`
	FarmerName   string    `                                     json:"farmerName"`
	FarmLocation string    `                                     json:"farmLocation"`
	CreatedAt    time.Time `gorm:"index"                         json:"createdAt"`
	UpdatedAt    time.Time `                                     json:"updatedAt"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Stock reads a missing quantity as zero.
func (p *Product) Stock() int {
	if p.Quantity == nil {
		return 0
	}
	return *p.Quantity
}

// Normalize fills a missing quantity with zero for owner-facing output.
func (p *Product) Normalize() {
	if p.Quantity == nil {
		zero := 0
		p.Quantity = &zero
	}
}

// Listable is the public catalog visibility rule.
func (p *Product) Listable() bool {
	return p.InStock && p.Stock() > 0
}

type RentalPrice struct {
	PerDay   float64 `json:"perDay"`
	PerWeek  float64 `json:"perWeek,omitempty"`
	PerMonth float64 `json:"perMonth,omitempty"`
}

// Specs is stored as a JSON text column.
type Specs map[string]string

func (s Specs) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Specs) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("specs: unsupported type %T", src)
	}
	m := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("specs: %w", err)
		}
	}
	*s = m
	return nil
}

type Tool struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey"     json:"id"`
	Name           string      `gorm:"not null;index"           json:"name"`
	Category       string      `gorm:"not null;index"           json:"category"`
	Description    string      `                                json:"description"`
	RentalPrice    RentalPrice `gorm:"embedded;embeddedPrefix:rental_price_" json:"rentalPrice"`
	Available      bool        `gorm:"not null"                 json:"available"`
	Image          string      `                                json:"image,omitempty"`
	Specifications Specs       `gorm:"type:text"                json:"specifications,omitempty"`
	FarmerID       uuid.UUID   `gorm:"type:uuid;not null;index" json:"farmerId"`
	FarmerName     string      `                                json:"farmerName"`
	Location       string      `                                json:"location"`
	CreatedAt      time.Time   `gorm:"index"                    json:"createdAt"`
	UpdatedAt      time.Time   `                                json:"updatedAt"`
}

func (t *Tool) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (t *Tool) Listable() bool { return t.Available }
