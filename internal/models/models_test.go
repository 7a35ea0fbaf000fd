package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestProductListable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    Product
		want bool
	}{
		{"in stock with quantity", Product{InStock: true, Quantity: intPtr(3)}, true},
		{"in stock zero quantity", Product{InStock: true, Quantity: intPtr(0)}, false},
		{"legacy nil quantity", Product{InStock: true}, false},
		{"flagged out of stock", Product{InStock: false, Quantity: intPtr(4)}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.p.Listable())
		})
	}
}

func TestProductNormalize(t *testing.T) {
	p := Product{}
	p.Normalize()
	require.NotNil(t, p.Quantity)
	assert.Equal(t, 0, *p.Quantity)
}

func TestSpecsRoundTrip(t *testing.T) {
	s := Specs{"power": "35hp"}
	v, err := s.Value()
	require.NoError(t, err)

	var back Specs
	require.NoError(t, back.Scan(v))
	assert.Equal(t, "35hp", back["power"])

	var empty Specs
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)
}

func TestDeriveType(t *testing.T) {
	o := Order{Lines: []OrderLine{{Kind: LinePurchase}}}
	o.DeriveType()
	assert.Equal(t, OrderTypeProduct, o.OrderType)

	o.Lines = append(o.Lines, OrderLine{Kind: LineRental})
	o.DeriveType()
	assert.Equal(t, OrderTypeMixed, o.OrderType)

	o.Lines = o.Lines[1:]
	o.DeriveType()
	assert.Equal(t, OrderTypeToolRental, o.OrderType)
}

func TestOrderLineJSONIsTagged(t *testing.T) {
	tool := &Tool{ID: uuid.New(), Name: "Tractor", RentalPrice: RentalPrice{PerDay: 1200}}
	start := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	line := NewRentalLine(tool, 3, start)

	raw, err := json.Marshal(line)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "rental", got["kind"])
	assert.Equal(t, tool.ID.String(), got["toolId"])
	assert.EqualValues(t, 3, got["days"])
	assert.EqualValues(t, 3600, got["lineTotal"])
	assert.Equal(t, "2026-03-04T00:00:00Z", got["endDate"])
	assert.NotContains(t, got, "productId")

	p := &Product{ID: uuid.New(), Name: "Tomato", Unit: "kg", Price: 40}
	raw, err = json.Marshal(NewPurchaseLine(p, 2))
	require.NoError(t, err)
	got = map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "purchase", got["kind"])
	assert.Equal(t, p.ID.String(), got["productId"])
	assert.EqualValues(t, 80, got["lineTotal"])
	assert.NotContains(t, got, "toolId")
}
