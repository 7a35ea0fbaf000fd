package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skotchmaster/farmconnect/internal/models"
)

func qty(v int) *int { return &v }

func TestFilterMatchProduct(t *testing.T) {
	t.Parallel()

	veg := func(name string) *models.Product {
		return &models.Product{Name: name, Category: "vegetables", InStock: true, Quantity: qty(5)}
	}

	tests := []struct {
		name   string
		filter Filter
		p      *models.Product
		want   bool
	}{
		{"category and substring", NewFilter("vegetables", "tom"), veg("Cherry Tomato"), true},
		{"case insensitive", NewFilter("vegetables", "TOM"), veg("tomatillo"), true},
		{"substring miss", NewFilter("vegetables", "tom"), veg("Potato"), false},
		{"category miss", NewFilter("fruits", "tom"), veg("Tomato"), false},
		{"all disables category", NewFilter("all", ""), veg("Okra"), true},
		{"empty category", NewFilter("", ""), veg("Okra"), true},
		{"not listable", NewFilter("", ""), &models.Product{Name: "Okra", InStock: true, Quantity: qty(0)}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.filter.MatchProduct(tt.p))
		})
	}
}

func TestFilterMatchTool(t *testing.T) {
	f := NewFilter("harvesting", "comb")
	assert.True(t, f.MatchTool(&models.Tool{Name: "Mini Combine", Category: "harvesting", Available: true}))
	assert.False(t, f.MatchTool(&models.Tool{Name: "Mini Combine", Category: "harvesting", Available: false}))
}

func TestFilterPatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\%\_off%`, NewFilter("", "50%_OFF").Pattern())
	assert.Equal(t, "%%", NewFilter("", "").Pattern())
}
