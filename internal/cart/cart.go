// Package cart holds the customer cart aggregate and the stores that persist it.
package cart

import (
	"errors"

	"github.com/google/uuid"
)

type Kind string

const (
	KindPurchase Kind = "purchase"
	KindRental   Kind = "rental"
)

func (k Kind) Valid() bool { return k == KindPurchase || k == KindRental }

var (
	ErrInvalidKind     = errors.New("cart: invalid item kind")
	ErrInvalidItem     = errors.New("cart: item id required")
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
	ErrLineNotFound    = errors.New("cart: line not found")
)

type Key struct {
	Kind   Kind      `json:"kind"`
	ItemID uuid.UUID `json:"itemId"`
}

// Line is one cart entry. For rentals Quantity is the number of days.
type Line struct {
	Key
	Quantity int `json:"quantity"`
}

// Cart keeps lines in insertion order; a stored line always has Quantity >= 1.
type Cart struct {
	CustomerID uuid.UUID `json:"customerId"`
	Lines      []Line    `json:"lines"`
}

func New(customerID uuid.UUID) *Cart {
	return &Cart{CustomerID: customerID}
}

func (c *Cart) index(k Key) int {
	for i := range c.Lines {
		if c.Lines[i].Key == k {
			return i
		}
	}
	return -1
}

// Add increments an existing line or appends a new one. q == 0 means 1.
func (c *Cart) Add(k Key, q int) (Line, error) {
	if !k.Kind.Valid() {
		return Line{}, ErrInvalidKind
	}
	if k.ItemID == uuid.Nil {
		return Line{}, ErrInvalidItem
	}
	if q < 0 {
		return Line{}, ErrInvalidQuantity
	}
	if q == 0 {
		q = 1
	}
	if i := c.index(k); i >= 0 {
		c.Lines[i].Quantity += q
		return c.Lines[i], nil
	}
	c.Lines = append(c.Lines, Line{Key: k, Quantity: q})
	return c.Lines[len(c.Lines)-1], nil
}

// SetQuantity overwrites a line; n <= 0 removes it.
func (c *Cart) SetQuantity(k Key, n int) (removed bool, err error) {
	i := c.index(k)
	if i < 0 {
		return false, ErrLineNotFound
	}
	if n <= 0 {
		c.removeAt(i)
		return true, nil
	}
	c.Lines[i].Quantity = n
	return false, nil
}

// RemoveOne decrements a line and drops it when it reaches zero.
func (c *Cart) RemoveOne(k Key) (removed bool, err error) {
	i := c.index(k)
	if i < 0 {
		return false, ErrLineNotFound
	}
	if c.Lines[i].Quantity <= 1 {
		c.removeAt(i)
		return true, nil
	}
	c.Lines[i].Quantity--
	return false, nil
}

func (c *Cart) Remove(k Key) error {
	i := c.index(k)
	if i < 0 {
		return ErrLineNotFound
	}
	c.removeAt(i)
	return nil
}

func (c *Cart) removeAt(i int) {
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
}

func (c *Cart) Clear() { c.Lines = nil }

// Subtract takes the given lines' quantities off the cart and drops lines
// that reach zero. Keys missing from the cart are ignored.
func (c *Cart) Subtract(lines []Line) {
	for _, l := range lines {
		i := c.index(l.Key)
		if i < 0 {
			continue
		}
		if c.Lines[i].Quantity <= l.Quantity {
			c.removeAt(i)
			continue
		}
		c.Lines[i].Quantity -= l.Quantity
	}
}

func (c *Cart) Find(k Key) (Line, bool) {
	if i := c.index(k); i >= 0 {
		return c.Lines[i], true
	}
	return Line{}, false
}

func (c *Cart) Len() int { return len(c.Lines) }

func (c *Cart) Empty() bool { return len(c.Lines) == 0 }

func (c *Cart) clone() *Cart {
	out := &Cart{CustomerID: c.CustomerID}
	if len(c.Lines) > 0 {
		out.Lines = append([]Line(nil), c.Lines...)
	}
	return out
}
