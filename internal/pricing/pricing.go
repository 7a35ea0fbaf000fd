// Package pricing computes checkout totals. Everything here is pure.
package pricing

import "math"

const (
	FreeDeliveryThreshold = 500.0
	DeliveryFee           = 50.0
	TaxRate               = 0.05
)

type Kind string

const (
	Purchase Kind = "purchase"
	Rental   Kind = "rental"
)

// Line is either price × quantity (purchase) or per-day rate × days (rental).
type Line struct {
	Kind      Kind
	UnitPrice float64
	Quantity  int
}

func (l Line) Total() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

type Quote struct {
	Subtotal        float64 `json:"subtotal"`
	DeliveryFee     float64 `json:"deliveryFee"`
	Tax             float64 `json:"tax"`
	Total           float64 `json:"total"`
	FreeDeliveryGap float64 `json:"freeDeliveryGap"`
}

// QuoteLines sums the lines and prices the result.
func QuoteLines(lines []Line) Quote {
	var subtotal float64
	for _, l := range lines {
		subtotal += l.Total()
	}
	return ForSubtotal(subtotal)
}

// ForSubtotal rounds only the reported figures, never intermediate ones.
func ForSubtotal(subtotal float64) Quote {
	fee := DeliveryFee
	if subtotal > FreeDeliveryThreshold {
		fee = 0
	}
	tax := subtotal * TaxRate
	total := subtotal + fee + tax

	var gap float64
	if fee > 0 {
		// smallest cent amount that pushes the subtotal strictly above the threshold
		gap = Round2(FreeDeliveryThreshold-subtotal) + 0.01
	}

	return Quote{
		Subtotal:        Round2(subtotal),
		DeliveryFee:     Round2(fee),
		Tax:             Round2(tax),
		Total:           Round2(total),
		FreeDeliveryGap: Round2(gap),
	}
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
