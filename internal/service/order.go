package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/farmconnect/internal/models"
	"github.com/Skotchmaster/farmconnect/internal/pricing"
	"github.com/Skotchmaster/farmconnect/internal/repo"
	"github.com/Skotchmaster/farmconnect/internal/search"
	"github.com/Skotchmaster/farmconnect/internal/transport"
	"github.com/Skotchmaster/farmconnect/pkg/events"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
	"github.com/Skotchmaster/farmconnect/pkg/metrics"
)

// totalTolerance is how far a client total may drift before it is logged.
const totalTolerance = 0.01

// LineRequest is one order line before it is priced. Quantity is days for
// rentals.
type LineRequest struct {
	Kind      string
	ItemID    uuid.UUID
	Quantity  int
	StartDate *time.Time
}

type OrderService struct {
	Repo   *repo.GormRepo
	Index  Indexer
	Events events.Publisher
	Now    func() time.Time
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func rentalDays(d *transport.RentalDuration) int {
	if d == nil || d.StartDate == nil || d.EndDate == nil || !d.EndDate.After(*d.StartDate) {
		return 0
	}
	return int(math.Ceil(d.EndDate.Sub(*d.StartDate).Hours() / 24))
}

// NormalizeItems folds both request shapes into LineRequests.
func NormalizeItems(items []transport.OrderItemRequest) ([]LineRequest, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}

	out := make([]LineRequest, 0, len(items))
	for i, it := range items {
		kind := strings.ToLower(strings.TrimSpace(it.Kind))
		if kind == "" {
			switch strings.ToLower(strings.TrimSpace(it.ItemType)) {
			case "product":
				kind = models.LinePurchase
			case "tool":
				kind = models.LineRental
			}
		}
		if it.ItemID == uuid.Nil {
			return nil, fmt.Errorf("%w: items[%d].itemId required", ErrValidation, i)
		}

		line := LineRequest{Kind: kind, ItemID: it.ItemID, StartDate: it.StartDate}
		switch kind {
		case models.LinePurchase:
			line.Quantity = it.Quantity
			if line.Quantity <= 0 {
				return nil, fmt.Errorf("%w: items[%d].quantity must be > 0", ErrValidation, i)
			}
		case models.LineRental:
			line.Quantity = it.Days
			if line.Quantity == 0 && it.RentalDuration != nil {
				line.Quantity = rentalDays(it.RentalDuration)
				if line.StartDate == nil {
					line.StartDate = it.RentalDuration.StartDate
				}
			}
			if line.Quantity == 0 {
				line.Quantity = it.Quantity
			}
			if line.Quantity < 1 {
				return nil, fmt.Errorf("%w: items[%d].days must be >= 1", ErrValidation, i)
			}
		default:
			return nil, fmt.Errorf("%w: items[%d].kind must be purchase or rental", ErrValidation, i)
		}
		out = append(out, line)
	}
	return out, nil
}

func pricingLines(lines []models.OrderLine) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		kind := pricing.Purchase
		if l.Kind == models.LineRental {
			kind = pricing.Rental
		}
		out = append(out, pricing.Line{Kind: kind, UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	return out
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, repo.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrConflict):
		return "unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "error"
	}
}

// syncStock pushes the committed state of every purchased product to the
// search index, so sold-out products leave search results and restocked ones
// return.
func (s *OrderService) syncStock(ctx context.Context, op string, lines []models.OrderLine) {
	if s.Index == nil {
		return
	}
	l := logging.FromContext(ctx)
	seen := make(map[uuid.UUID]bool, len(lines))
	for _, line := range lines {
		if line.Kind != models.LinePurchase || seen[line.ItemID] {
			continue
		}
		seen[line.ItemID] = true

		p, err := s.Repo.GetProduct(ctx, line.ItemID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err == nil {
			err = s.Index.SyncProduct(ctx, p)
		}
		if err != nil && !errors.Is(err, search.ErrDisabled) {
			l.Warn("search_sync_error", "op", op, "product_id", line.ItemID, "error", err)
		}
	}
}

// Place re-reads every item, checks and decrements stock and stores the order
// in one transaction. Prices always come from the store.
func (s *OrderService) Place(ctx context.Context, customerID uuid.UUID, lines []LineRequest, addr models.Address, clientTotal *float64) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.place", "customer_id", customerID)

	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}

	order := &models.Order{
		CustomerID:      customerID,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentPending,
		DeliveryAddress: addr,
	}
	today := s.now()

	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		order.Lines = order.Lines[:0]
		for _, lr := range lines {
			switch lr.Kind {
			case models.LinePurchase:
				p, err := tx.GetProduct(ctx, lr.ItemID)
				if err != nil {
					return notFound(err, "product "+lr.ItemID.String())
				}
				if !p.Listable() {
					return fmt.Errorf("%w: %s is out of stock", ErrConflict, p.Name)
				}
				if err := tx.DecrementStock(ctx, p.ID, lr.Quantity); err != nil {
					if errors.Is(err, repo.ErrInsufficientStock) {
						return fmt.Errorf("%w: only %d %s of %s left: %w", ErrConflict, p.Stock(), p.Unit, p.Name, err)
					}
					return err
				}
				order.Lines = append(order.Lines, models.NewPurchaseLine(p, lr.Quantity))
			case models.LineRental:
				t, err := tx.GetTool(ctx, lr.ItemID)
				if err != nil {
					return notFound(err, "tool "+lr.ItemID.String())
				}
				if !t.Listable() {
					return fmt.Errorf("%w: %s is not available for rent", ErrConflict, t.Name)
				}
				start := today
				if lr.StartDate != nil {
					start = *lr.StartDate
				}
				order.Lines = append(order.Lines, models.NewRentalLine(t, lr.Quantity, start))
			default:
				return fmt.Errorf("%w: unknown line kind %q", ErrValidation, lr.Kind)
			}
		}

		q := pricing.QuoteLines(pricingLines(order.Lines))
		order.Subtotal = q.Subtotal
		order.DeliveryFee = q.DeliveryFee
		order.Tax = q.Tax
		order.TotalAmount = q.Total
		order.DeriveType()

		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		metrics.OrdersRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	if clientTotal != nil && math.Abs(*clientTotal-order.TotalAmount) > totalTolerance {
		l.Warn("order_total_mismatch", "order_id", order.ID, "client_total", *clientTotal, "server_total", order.TotalAmount)
	}

	metrics.OrdersCreated.WithLabelValues(order.OrderType).Inc()
	s.syncStock(ctx, "order.place", order.Lines)
	events.Emit(ctx, s.Events, events.TopicOrders, order.ID.String(), events.New("order_created", order))
	return order, nil
}

func (s *OrderService) Create(ctx context.Context, customerID uuid.UUID, req transport.CreateOrderRequest) (*models.Order, error) {
	lines, err := NormalizeItems(req.Items)
	if err != nil {
		metrics.OrdersRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}
	return s.Place(ctx, customerID, lines, req.DeliveryAddress, req.TotalAmount)
}

func (s *OrderService) ListCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	return s.Repo.ListOrdersByCustomer(ctx, customerID)
}

// Get separates an absent order from one owned by someone else.
func (s *OrderService) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	o, err := s.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order")
	}
	if o.CustomerID != userID {
		return nil, fmt.Errorf("%w: order belongs to another customer", ErrForbidden)
	}
	return o, nil
}

// Cancel moves a pending order to cancelled and puts purchased stock back.
func (s *OrderService) Cancel(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		o, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order")
		}
		if o.CustomerID != customerID {
			return fmt.Errorf("%w: order belongs to another customer", ErrForbidden)
		}
		if o.Status != models.OrderStatusPending {
			return fmt.Errorf("%w: only pending orders can be cancelled, order is %s", ErrConflict, o.Status)
		}
		if err := tx.TransitionStatus(ctx, o.ID, models.OrderStatusPending, models.OrderStatusCancelled); err != nil {
			if errors.Is(err, repo.ErrStatusChanged) {
				return fmt.Errorf("%w: order status changed", ErrConflict)
			}
			return err
		}
		for _, line := range o.Lines {
			if line.Kind != models.LinePurchase {
				continue
			}
			if err := tx.RestoreStock(ctx, line.ItemID, line.Quantity); err != nil {
				return err
			}
		}
		o.Status = models.OrderStatusCancelled
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.syncStock(ctx, "order.cancel", order.Lines)
	events.Emit(ctx, s.Events, events.TopicOrders, order.ID.String(), events.New("order_cancelled", map[string]any{
		"id": order.ID, "customer_id": order.CustomerID,
	}))
	return order, nil
}
