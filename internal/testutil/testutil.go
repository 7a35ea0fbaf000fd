// Package testutil builds throwaway databases and fixtures for package tests.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/farmconnect/internal/models"
	"github.com/Skotchmaster/farmconnect/internal/repo"
	"github.com/Skotchmaster/farmconnect/pkg/db"
	"github.com/Skotchmaster/farmconnect/pkg/hash"
)

// InitTestDB opens a migrated database. It uses FARM_TEST_DATABASE_URL when
// set and a private in-memory sqlite database otherwise.
func InitTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("FARM_TEST_DATABASE_URL")
	if dsn == "" {
		dsn = "sqlite://file:" + uuid.NewString() + "?mode=memory&cache=shared"
	}

	ctx := context.Background()
	gdb, err := db.Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(ctx, gdb))

	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

const Password = "secret123"

func CreateUser(t testing.TB, gdb *gorm.DB, role string) *models.User {
	t.Helper()

	pw, err := hash.HashPassword(Password)
	require.NoError(t, err)

	u := &models.User{
		Name:         role + " " + uuid.NewString()[:8],
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: pw,
		Phone:        "9999999999",
		Role:         role,
	}
	if role == models.RoleFarmer {
		u.FarmLocation = "Nashik"
		u.FarmSize = "5 acres"
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

func CreateProduct(t testing.TB, gdb *gorm.DB, farmer *models.User, name, category string, price float64, quantity int) *models.Product {
	t.Helper()

	p := &models.Product{
		Name:         name,
		Category:     category,
		Price:        price,
		Unit:         "kg",
		Quantity:     &quantity,
		InStock:      true,
		FarmerID:     farmer.ID,
		FarmerName:   farmer.Name,
		FarmLocation: farmer.FarmLocation,
	}
	require.NoError(t, gdb.Create(p).Error)
	return p
}

func CreateTool(t testing.TB, gdb *gorm.DB, farmer *models.User, name, category string, perDay float64) *models.Tool {
	t.Helper()

	tool := &models.Tool{
		Name:        name,
		Category:    category,
		RentalPrice: models.RentalPrice{PerDay: perDay},
		Available:   true,
		FarmerID:    farmer.ID,
		FarmerName:  farmer.Name,
		Location:    farmer.FarmLocation,
	}
	require.NoError(t, gdb.Create(tool).Error)
	return tool
}
