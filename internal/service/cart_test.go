package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/farmconnect/internal/cart"
	"github.com/Skotchmaster/farmconnect/internal/models"
	"github.com/Skotchmaster/farmconnect/internal/repo"
	"github.com/Skotchmaster/farmconnect/internal/testutil"
	"github.com/Skotchmaster/farmconnect/internal/transport"
	"github.com/Skotchmaster/farmconnect/pkg/events"
)

type cartFixture struct {
	svc      *CartService
	customer *models.User
	farmer   *models.User
}

func newCartFixture(t *testing.T, gormStore bool) cartFixture {
	t.Helper()
	r := repo.New(testutil.InitTestDB(t))
	var store cart.Store = cart.NewMemoryStore()
	if gormStore {
		store = repo.NewCartStore(r.DB)
	}
	return cartFixture{
		svc: &CartService{
			Store:  store,
			Repo:   r,
			Orders: &OrderService{Repo: r, Events: &events.Recorder{}},
		},
		customer: testutil.CreateUser(t, r.DB, models.RoleCustomer),
		farmer:   testutil.CreateUser(t, r.DB, models.RoleFarmer),
	}
}

func TestCartAdd_MergesSameItem(t *testing.T) {
	t.Parallel()

	for _, gormStore := range []bool{false, true} {
		gormStore := gormStore
		name := "memory"
		if gormStore {
			name = "gorm"
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			f := newCartFixture(t, gormStore)
			ctx := context.Background()
			p := testutil.CreateProduct(t, f.svc.Repo.DB, f.farmer, "Tomato", "vegetables", 20, 50)

			_, err := f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "purchase", ItemID: p.ID, Quantity: 2})
			require.NoError(t, err)
			view, err := f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "purchase", ItemID: p.ID, Quantity: 3})
			require.NoError(t, err)

			require.Len(t, view.Lines, 1)
			assert.Equal(t, 5, view.Lines[0].Quantity)
			assert.Equal(t, 100.0, view.Lines[0].LineTotal)
			assert.Equal(t, 100.0, view.Quote.Subtotal)
			assert.Equal(t, 155.0, view.Quote.Total)
		})
	}
}

func TestCartAdd_Rules(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t, false)
	ctx := context.Background()
	p := testutil.CreateProduct(t, f.svc.Repo.DB, f.farmer, "Onion", "vegetables", 30, 3)
	tool := testutil.CreateTool(t, f.svc.Repo.DB, f.farmer, "Plough", "planting", 200)

	view, err := f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "purchase", ItemID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, view.Lines[0].Quantity)

	_, err = f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "purchase", ItemID: p.ID, Quantity: 3})
	require.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "purchase", ItemID: p.ID, Quantity: -1})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "gift", ItemID: p.ID})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "purchase", ItemID: uuid.New()})
	require.ErrorIs(t, err, ErrNotFound)

	view, err = f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "rental", ItemID: tool.ID, Days: 4})
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, 4, view.Lines[1].Days)
	assert.Equal(t, 800.0, view.Lines[1].LineTotal)
	assert.Equal(t, 830.0, view.Quote.Subtotal)
	assert.Equal(t, 0.0, view.Quote.DeliveryFee)
}

func TestCartRemove_LastUnitDeletesLine(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t, true)
	ctx := context.Background()
	a := testutil.CreateProduct(t, f.svc.Repo.DB, f.farmer, "Garlic", "vegetables", 10, 10)
	b := testutil.CreateProduct(t, f.svc.Repo.DB, f.farmer, "Ginger", "vegetables", 10, 10)

	_, err := f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "purchase", ItemID: a.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "purchase", ItemID: b.ID, Quantity: 2})
	require.NoError(t, err)

	keyA := cart.Key{Kind: cart.KindPurchase, ItemID: a.ID}
	view, err := f.svc.Remove(ctx, f.customer.ID, keyA, false)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, b.ID, view.Lines[0].ItemID)

	_, err = f.svc.Remove(ctx, f.customer.ID, keyA, false)
	require.ErrorIs(t, err, ErrNotFound)

	keyB := cart.Key{Kind: cart.KindPurchase, ItemID: b.ID}
	view, err = f.svc.SetQuantity(ctx, f.customer.ID, keyB, transport.CartQuantityRequest{Quantity: ptr(7)})
	require.NoError(t, err)
	assert.Equal(t, 7, view.Lines[0].Quantity)

	_, err = f.svc.SetQuantity(ctx, f.customer.ID, keyB, transport.CartQuantityRequest{Quantity: ptr(11)})
	require.ErrorIs(t, err, ErrConflict)

	view, err = f.svc.SetQuantity(ctx, f.customer.ID, keyB, transport.CartQuantityRequest{Quantity: ptr(0)})
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestCartView_UnavailableLinesNotPriced(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t, false)
	ctx := context.Background()
	p := testutil.CreateProduct(t, f.svc.Repo.DB, f.farmer, "Mango", "fruits", 100, 5)
	q := testutil.CreateProduct(t, f.svc.Repo.DB, f.farmer, "Guava", "fruits", 50, 5)

	_, err := f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "purchase", ItemID: p.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "purchase", ItemID: q.ID, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, f.svc.Repo.DB.Model(q).Update("in_stock", false).Error)

	view, err := f.svc.View(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	assert.True(t, view.Lines[0].Available)
	assert.False(t, view.Lines[1].Available)
	assert.Equal(t, 200.0, view.Quote.Subtotal)
}

func TestCheckout(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t, true)
	ctx := context.Background()
	p := testutil.CreateProduct(t, f.svc.Repo.DB, f.farmer, "Paddy", "grains", 300, 10)
	tool := testutil.CreateTool(t, f.svc.Repo.DB, f.farmer, "Pump", "irrigation", 100)

	_, err := f.svc.Checkout(ctx, f.customer.ID, transport.CheckoutRequest{})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "purchase", ItemID: p.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "rental", ItemID: tool.ID, Days: 1})
	require.NoError(t, err)

	o, err := f.svc.Checkout(ctx, f.customer.ID, transport.CheckoutRequest{DeliveryAddress: models.Address{City: "Nagpur"}})
	require.NoError(t, err)
	assert.Equal(t, models.OrderTypeMixed, o.OrderType)
	assert.Equal(t, 700.0, o.Subtotal)
	assert.Equal(t, 0.0, o.DeliveryFee)
	assert.Equal(t, 735.0, o.TotalAmount)
	assert.Equal(t, "Nagpur", o.DeliveryAddress.City)

	view, err := f.svc.View(ctx, f.customer.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)

	stored, err := f.svc.Repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, stored.Stock())
}

func TestCheckout_KeepsLinesAddedMeanwhile(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t, false)
	ctx := context.Background()
	p := testutil.CreateProduct(t, f.svc.Repo.DB, f.farmer, "Tomato", "vegetables", 20, 50)
	onion := testutil.CreateProduct(t, f.svc.Repo.DB, f.farmer, "Onion", "vegetables", 15, 50)

	_, err := f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "purchase", ItemID: p.ID, Quantity: 2})
	require.NoError(t, err)

	// a second tab adds to the cart while the order row is written
	var once sync.Once
	err = f.svc.Repo.DB.Callback().Create().After("gorm:create").Register("test:second_tab", func(d *gorm.DB) {
		if d.Statement.Table != "orders" {
			return
		}
		once.Do(func() {
			_, err := f.svc.Store.Update(ctx, f.customer.ID, func(c *cart.Cart) error {
				if _, err := c.Add(cart.Key{Kind: cart.KindPurchase, ItemID: onion.ID}, 1); err != nil {
					return err
				}
				_, err := c.Add(cart.Key{Kind: cart.KindPurchase, ItemID: p.ID}, 1)
				return err
			})
			require.NoError(t, err)
		})
	})
	require.NoError(t, err)

	o, err := f.svc.Checkout(ctx, f.customer.ID, transport.CheckoutRequest{})
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 2, o.Lines[0].Quantity)

	c, err := f.svc.Store.Load(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	line, ok := c.Find(cart.Key{Kind: cart.KindPurchase, ItemID: p.ID})
	require.True(t, ok)
	assert.Equal(t, 1, line.Quantity)
	line, ok = c.Find(cart.Key{Kind: cart.KindPurchase, ItemID: onion.ID})
	require.True(t, ok)
	assert.Equal(t, 1, line.Quantity)
}

func TestCheckout_FailureKeepsCart(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t, false)
	ctx := context.Background()
	p := testutil.CreateProduct(t, f.svc.Repo.DB, f.farmer, "Corn", "grains", 10, 5)

	_, err := f.svc.Add(ctx, f.customer.ID, transport.CartItemRequest{Kind: "purchase", ItemID: p.ID, Quantity: 5})
	require.NoError(t, err)
	require.NoError(t, f.svc.Repo.DB.Model(p).Update("quantity", 2).Error)

	_, err = f.svc.Checkout(ctx, f.customer.ID, transport.CheckoutRequest{})
	require.ErrorIs(t, err, ErrConflict)

	view, err := f.svc.View(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 5, view.Lines[0].Quantity)
}

func TestCartQuote(t *testing.T) {
	t.Parallel()
	f := newCartFixture(t, false)
	ctx := context.Background()
	p := testutil.CreateProduct(t, f.svc.Repo.DB, f.farmer, "Peas", "vegetables", 100, 20)

	view, err := f.svc.Quote(ctx, []transport.CartItemRequest{
		{Kind: "purchase", ItemID: p.ID, Quantity: 2},
		{Kind: "purchase", ItemID: p.ID, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 400.0, view.Quote.Subtotal)
	assert.Equal(t, 470.0, view.Quote.Total)
	assert.Equal(t, 100.01, view.Quote.FreeDeliveryGap)

	_, err = f.svc.Quote(ctx, []transport.CartItemRequest{{Kind: "rental"}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestParseKey(t *testing.T) {
	t.Parallel()
	id := uuid.New()

	k, err := ParseKey("Rental", id.String())
	require.NoError(t, err)
	assert.Equal(t, cart.Key{Kind: cart.KindRental, ItemID: id}, k)

	_, err = ParseKey("gift", id.String())
	require.ErrorIs(t, err, ErrValidation)
	_, err = ParseKey("purchase", "nope")
	require.ErrorIs(t, err, ErrValidation)
}
