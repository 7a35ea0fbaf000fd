package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleFarmer   = "farmer"
	RoleCustomer = "customer"
)

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Pincode string `json:"pincode,omitempty"`
}

func (a Address) IsZero() bool {
	return a == Address{}
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	Name         string    `gorm:"not null"              json:"name"`
	Email        string    `gorm:"uniqueIndex;not null"  json:"email"`
	PasswordHash string    `gorm:"not null"              json:"-"`
	Phone        string    `gorm:"not null"              json:"phone"`
	Role         string    `gorm:"not null;index"        json:"role"`
	FarmLocation string    `                             json:"farmLocation,omitempty"`
	FarmSize     string    `                             json:"farmSize,omitempty"`
	Address      Address   `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) IsFarmer() bool { return u.Role == RoleFarmer }
