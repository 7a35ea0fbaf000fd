package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/farmconnect/internal/cart"
	"github.com/Skotchmaster/farmconnect/internal/models"
	"github.com/Skotchmaster/farmconnect/internal/pricing"
	"github.com/Skotchmaster/farmconnect/internal/repo"
	"github.com/Skotchmaster/farmconnect/internal/transport"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
)

type CartService struct {
	Store  cart.Store
	Repo   *repo.GormRepo
	Orders *OrderService
}

func cartErr(err error) error {
	switch {
	case errors.Is(err, cart.ErrLineNotFound):
		return fmt.Errorf("%w: item is not in the cart", ErrNotFound)
	case errors.Is(err, cart.ErrInvalidKind),
		errors.Is(err, cart.ErrInvalidItem),
		errors.Is(err, cart.ErrInvalidQuantity):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	case errors.Is(err, cart.ErrContention):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func ParseKey(kind, id string) (cart.Key, error) {
	k := cart.Key{Kind: cart.Kind(strings.ToLower(strings.TrimSpace(kind)))}
	if !k.Kind.Valid() {
		return cart.Key{}, fmt.Errorf("%w: kind must be purchase or rental", ErrValidation)
	}
	itemID, err := uuid.Parse(id)
	if err != nil {
		return cart.Key{}, fmt.Errorf("%w: invalid item id", ErrValidation)
	}
	k.ItemID = itemID
	return k, nil
}

// amount reads quantity for purchases and days for rentals.
func amount(kind cart.Kind, quantity, days int) int {
	if kind == cart.KindRental && days != 0 {
		return days
	}
	return quantity
}

// price builds the priced view of c. Lines whose item vanished or is no longer
// listable stay visible but are left out of the quote.
func (s *CartService) price(ctx context.Context, c *cart.Cart) (*transport.CartView, error) {
	var productIDs, toolIDs []uuid.UUID
	for _, l := range c.Lines {
		if l.Kind == cart.KindRental {
			toolIDs = append(toolIDs, l.ItemID)
		} else {
			productIDs = append(productIDs, l.ItemID)
		}
	}
	products, err := s.Repo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	tools, err := s.Repo.GetToolsByIDs(ctx, toolIDs)
	if err != nil {
		return nil, err
	}

	view := &transport.CartView{Lines: make([]transport.CartLineView, 0, c.Len())}
	var priced []pricing.Line
	for _, l := range c.Lines {
		lv := transport.CartLineView{Kind: string(l.Kind), ItemID: l.ItemID}
		switch l.Kind {
		case cart.KindRental:
			lv.Days = l.Quantity
			if t, ok := tools[l.ItemID]; ok {
				lv.Name, lv.Image, lv.UnitPrice = t.Name, t.Image, t.RentalPrice.PerDay
				lv.Available = t.Listable()
			}
		default:
			lv.Quantity = l.Quantity
			if p, ok := products[l.ItemID]; ok {
				lv.Name, lv.Image, lv.Unit, lv.UnitPrice = p.Name, p.Image, p.Unit, p.Price
				lv.Available = p.Listable() && p.Stock() >= l.Quantity
			}
		}
		if lv.Available {
			pl := pricing.Line{Kind: pricing.Kind(l.Kind), UnitPrice: lv.UnitPrice, Quantity: l.Quantity}
			lv.LineTotal = pricing.Round2(pl.Total())
			priced = append(priced, pl)
		}
		view.Lines = append(view.Lines, lv)
	}
	view.Quote = pricing.QuoteLines(priced)
	return view, nil
}

func (s *CartService) View(ctx context.Context, customerID uuid.UUID) (*transport.CartView, error) {
	c, err := s.Store.Load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, c)
}

// itemLimit checks the item can go into a cart and returns how many units
// the cart may hold; -1 means unbounded. It must run outside Store.Update,
// whose callback may hold the only database connection.
func (s *CartService) itemLimit(ctx context.Context, k cart.Key) (int, error) {
	if k.Kind == cart.KindRental {
		t, err := s.Repo.GetTool(ctx, k.ItemID)
		if err != nil {
			return 0, notFound(err, "tool")
		}
		if !t.Listable() {
			return 0, fmt.Errorf("%w: %s is not available for rent", ErrConflict, t.Name)
		}
		return -1, nil
	}
	p, err := s.Repo.GetProduct(ctx, k.ItemID)
	if err != nil {
		return 0, notFound(err, "product")
	}
	if !p.Listable() {
		return 0, fmt.Errorf("%w: product not found", ErrNotFound)
	}
	return p.Stock(), nil
}

func overLimit(n, limit int) error {
	if limit >= 0 && n > limit {
		return fmt.Errorf("%w: only %d left in stock", ErrConflict, limit)
	}
	return nil
}

func (s *CartService) Add(ctx context.Context, customerID uuid.UUID, req transport.CartItemRequest) (*transport.CartView, error) {
	k := cart.Key{Kind: cart.Kind(strings.ToLower(strings.TrimSpace(req.Kind))), ItemID: req.ItemID}
	if !k.Kind.Valid() || k.ItemID == uuid.Nil {
		return nil, fmt.Errorf("%w: kind (purchase|rental) and itemId are required", ErrValidation)
	}
	q := amount(k.Kind, req.Quantity, req.Days)

	limit, err := s.itemLimit(ctx, k)
	if err != nil {
		return nil, err
	}
	c, err := s.Store.Update(ctx, customerID, func(c *cart.Cart) error {
		line, err := c.Add(k, q)
		if err != nil {
			return err
		}
		return overLimit(line.Quantity, limit)
	})
	if err != nil {
		return nil, cartErr(err)
	}
	return s.price(ctx, c)
}

func (s *CartService) SetQuantity(ctx context.Context, customerID uuid.UUID, k cart.Key, req transport.CartQuantityRequest) (*transport.CartView, error) {
	var n *int
	if k.Kind == cart.KindRental && req.Days != nil {
		n = req.Days
	} else {
		n = req.Quantity
	}
	if n == nil {
		return nil, fmt.Errorf("%w: quantity required", ErrValidation)
	}

	limit := -1
	if *n > 0 {
		var err error
		if limit, err = s.itemLimit(ctx, k); err != nil {
			return nil, err
		}
	}
	c, err := s.Store.Update(ctx, customerID, func(c *cart.Cart) error {
		removed, err := c.SetQuantity(k, *n)
		if err != nil || removed {
			return err
		}
		return overLimit(*n, limit)
	})
	if err != nil {
		return nil, cartErr(err)
	}
	return s.price(ctx, c)
}

// Remove drops one unit, or the whole line when all is set.
func (s *CartService) Remove(ctx context.Context, customerID uuid.UUID, k cart.Key, all bool) (*transport.CartView, error) {
	c, err := s.Store.Update(ctx, customerID, func(c *cart.Cart) error {
		if all {
			return c.Remove(k)
		}
		_, err := c.RemoveOne(k)
		return err
	})
	if err != nil {
		return nil, cartErr(err)
	}
	return s.price(ctx, c)
}

func (s *CartService) Clear(ctx context.Context, customerID uuid.UUID) error {
	return s.Store.Delete(ctx, customerID)
}

// Checkout turns the cart into one order and takes the ordered lines out of
// it. Lines added while the order was placed stay in the cart.
func (s *CartService) Checkout(ctx context.Context, customerID uuid.UUID, req transport.CheckoutRequest) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "cart.checkout", "customer_id", customerID)

	c, err := s.Store.Load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if c.Empty() {
		return nil, fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	lines := make([]LineRequest, 0, c.Len())
	for _, cl := range c.Lines {
		lr := LineRequest{ItemID: cl.ItemID, Quantity: cl.Quantity, Kind: models.LinePurchase}
		if cl.Kind == cart.KindRental {
			lr.Kind = models.LineRental
			lr.StartDate = req.StartDate
		}
		lines = append(lines, lr)
	}

	order, err := s.Orders.Place(ctx, customerID, lines, req.DeliveryAddress, req.TotalAmount)
	if err != nil {
		return nil, err
	}
	ordered := c.Lines
	if _, err := s.Store.Update(ctx, customerID, func(cur *cart.Cart) error {
		cur.Subtract(ordered)
		return nil
	}); err != nil {
		l.Warn("checkout_clear_cart_error", "order_id", order.ID, "error", err)
	}
	return order, nil
}

// Quote prices arbitrary lines through the cart merge rules without storing
// anything.
func (s *CartService) Quote(ctx context.Context, items []transport.CartItemRequest) (*transport.CartView, error) {
	c := cart.New(uuid.Nil)
	for _, it := range items {
		k := cart.Key{Kind: cart.Kind(strings.ToLower(strings.TrimSpace(it.Kind))), ItemID: it.ItemID}
		if _, err := c.Add(k, amount(k.Kind, it.Quantity, it.Days)); err != nil {
			return nil, cartErr(err)
		}
	}
	return s.price(ctx, c)
}
