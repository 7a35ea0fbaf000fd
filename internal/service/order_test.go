package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/farmconnect/internal/models"
	"github.com/Skotchmaster/farmconnect/internal/repo"
	"github.com/Skotchmaster/farmconnect/internal/testutil"
	"github.com/Skotchmaster/farmconnect/internal/transport"
	"github.com/Skotchmaster/farmconnect/pkg/events"
)

var orderNow = time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC)

func newOrderService(t *testing.T) (*OrderService, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	return &OrderService{
		Repo:   repo.New(testutil.InitTestDB(t)),
		Events: rec,
		Now:    func() time.Time { return orderNow },
	}, rec
}

func stockOf(t *testing.T, r *repo.GormRepo, id uuid.UUID) int {
	t.Helper()
	p, err := r.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock()
}

func TestNormalizeItems(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(52 * time.Hour)

	tests := []struct {
		name    string
		items   []transport.OrderItemRequest
		want    []LineRequest
		wantErr bool
	}{
		{name: "empty", wantErr: true},
		{
			name:  "tagged purchase",
			items: []transport.OrderItemRequest{{Kind: "purchase", ItemID: id, Quantity: 3}},
			want:  []LineRequest{{Kind: models.LinePurchase, ItemID: id, Quantity: 3}},
		},
		{
			name:  "tagged rental",
			items: []transport.OrderItemRequest{{Kind: "Rental", ItemID: id, Days: 2}},
			want:  []LineRequest{{Kind: models.LineRental, ItemID: id, Quantity: 2}},
		},
		{
			name:  "legacy product",
			items: []transport.OrderItemRequest{{ItemType: "Product", ItemID: id, Quantity: 1}},
			want:  []LineRequest{{Kind: models.LinePurchase, ItemID: id, Quantity: 1}},
		},
		{
			name: "legacy tool rounds days up",
			items: []transport.OrderItemRequest{{ItemType: "Tool", ItemID: id,
				RentalDuration: &transport.RentalDuration{StartDate: &start, EndDate: &end}}},
			want: []LineRequest{{Kind: models.LineRental, ItemID: id, Quantity: 3, StartDate: &start}},
		},
		{name: "zero quantity", items: []transport.OrderItemRequest{{Kind: "purchase", ItemID: id}}, wantErr: true},
		{name: "rental without days", items: []transport.OrderItemRequest{{Kind: "rental", ItemID: id}}, wantErr: true},
		{name: "missing item", items: []transport.OrderItemRequest{{Kind: "purchase", Quantity: 1}}, wantErr: true},
		{name: "unknown kind", items: []transport.OrderItemRequest{{Kind: "gift", ItemID: id, Quantity: 1}}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeItems(tt.items)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateOrder_ServerPricing(t *testing.T) {
	t.Parallel()
	svc, rec := newOrderService(t)
	ctx := context.Background()
	farmer := testutil.CreateUser(t, svc.Repo.DB, models.RoleFarmer)
	customer := testutil.CreateUser(t, svc.Repo.DB, models.RoleCustomer)
	p := testutil.CreateProduct(t, svc.Repo.DB, farmer, "Rice", "grains", 40, 10)
	tool := testutil.CreateTool(t, svc.Repo.DB, farmer, "Tiller", "planting", 100)

	clientTotal := 1.0
	o, err := svc.Create(ctx, customer.ID, transport.CreateOrderRequest{
		Items: []transport.OrderItemRequest{
			{Kind: "purchase", ItemID: p.ID, Quantity: 5},
			{Kind: "rental", ItemID: tool.ID, Days: 2},
		},
		DeliveryAddress: models.Address{City: "Pune"},
		TotalAmount:     &clientTotal,
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderTypeMixed, o.OrderType)
	assert.Equal(t, 400.0, o.Subtotal)
	assert.Equal(t, 50.0, o.DeliveryFee)
	assert.Equal(t, 20.0, o.Tax)
	assert.Equal(t, 470.0, o.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.Equal(t, 5, stockOf(t, svc.Repo, p.ID))

	require.Len(t, o.Lines, 2)
	rental := o.Lines[1]
	assert.Equal(t, models.LineRental, rental.Kind)
	require.NotNil(t, rental.StartDate)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *rental.StartDate)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), *rental.EndDate)

	stored, err := svc.Get(ctx, customer.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 470.0, stored.TotalAmount)
	assert.Equal(t, []string{"order_created"}, rec.Types(events.TopicOrders))
}

func TestCreateOrder_InsufficientStockRollsBack(t *testing.T) {
	t.Parallel()
	svc, rec := newOrderService(t)
	ctx := context.Background()
	farmer := testutil.CreateUser(t, svc.Repo.DB, models.RoleFarmer)
	customer := testutil.CreateUser(t, svc.Repo.DB, models.RoleCustomer)
	apples := testutil.CreateProduct(t, svc.Repo.DB, farmer, "Apple", "fruits", 10, 10)
	pears := testutil.CreateProduct(t, svc.Repo.DB, farmer, "Pear", "fruits", 10, 2)

	_, err := svc.Place(ctx, customer.ID, []LineRequest{
		{Kind: models.LinePurchase, ItemID: apples.ID, Quantity: 4},
		{Kind: models.LinePurchase, ItemID: pears.ID, Quantity: 3},
	}, models.Address{}, nil)
	require.ErrorIs(t, err, ErrConflict)
	require.ErrorIs(t, err, repo.ErrInsufficientStock)

	assert.Equal(t, 10, stockOf(t, svc.Repo, apples.ID))
	assert.Equal(t, 2, stockOf(t, svc.Repo, pears.ID))

	orders, err := svc.ListCustomer(ctx, customer.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, rec.Events())
}

func TestCreateOrder_UnavailableItems(t *testing.T) {
	t.Parallel()
	svc, _ := newOrderService(t)
	ctx := context.Background()
	farmer := testutil.CreateUser(t, svc.Repo.DB, models.RoleFarmer)
	customer := testutil.CreateUser(t, svc.Repo.DB, models.RoleCustomer)
	tool := testutil.CreateTool(t, svc.Repo.DB, farmer, "Harvester", "harvesting", 900)
	require.NoError(t, svc.Repo.DB.Model(tool).Update("available", false).Error)

	_, err := svc.Place(ctx, customer.ID, []LineRequest{{Kind: models.LineRental, ItemID: tool.ID, Quantity: 1}}, models.Address{}, nil)
	require.ErrorIs(t, err, ErrConflict)

	_, err = svc.Place(ctx, customer.ID, []LineRequest{{Kind: models.LinePurchase, ItemID: uuid.New(), Quantity: 1}}, models.Address{}, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateOrder_LastUnitRace(t *testing.T) {
	t.Parallel()
	svc, _ := newOrderService(t)
	ctx := context.Background()
	farmer := testutil.CreateUser(t, svc.Repo.DB, models.RoleFarmer)
	p := testutil.CreateProduct(t, svc.Repo.DB, farmer, "Honey", "other", 300, 1)

	const buyers = 8
	customers := make([]*models.User, buyers)
	for i := range customers {
		customers[i] = testutil.CreateUser(t, svc.Repo.DB, models.RoleCustomer)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for _, c := range customers {
		wg.Add(1)
		go func(customerID uuid.UUID) {
			defer wg.Done()
			_, err := svc.Place(ctx, customerID, []LineRequest{{Kind: models.LinePurchase, ItemID: p.ID, Quantity: 1}}, models.Address{}, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, ErrConflict):
				conflicts++
			}
		}(c.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, buyers-1, conflicts)
	assert.Equal(t, 0, stockOf(t, svc.Repo, p.ID))
}

func TestGetOrder_Ownership(t *testing.T) {
	t.Parallel()
	svc, _ := newOrderService(t)
	ctx := context.Background()
	farmer := testutil.CreateUser(t, svc.Repo.DB, models.RoleFarmer)
	owner := testutil.CreateUser(t, svc.Repo.DB, models.RoleCustomer)
	other := testutil.CreateUser(t, svc.Repo.DB, models.RoleCustomer)
	p := testutil.CreateProduct(t, svc.Repo.DB, farmer, "Milk", "dairy", 60, 10)

	o, err := svc.Place(ctx, owner.ID, []LineRequest{{Kind: models.LinePurchase, ItemID: p.ID, Quantity: 1}}, models.Address{}, nil)
	require.NoError(t, err)

	_, err = svc.Get(ctx, other.ID, o.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Get(ctx, owner.ID, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)

	mine, err := svc.ListCustomer(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	theirs, err := svc.ListCustomer(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestCancelOrder_RestoresStock(t *testing.T) {
	t.Parallel()
	svc, rec := newOrderService(t)
	ctx := context.Background()
	farmer := testutil.CreateUser(t, svc.Repo.DB, models.RoleFarmer)
	customer := testutil.CreateUser(t, svc.Repo.DB, models.RoleCustomer)
	other := testutil.CreateUser(t, svc.Repo.DB, models.RoleCustomer)
	p := testutil.CreateProduct(t, svc.Repo.DB, farmer, "Wheat", "grains", 25, 10)
	tool := testutil.CreateTool(t, svc.Repo.DB, farmer, "Seeder", "planting", 80)

	o, err := svc.Place(ctx, customer.ID, []LineRequest{
		{Kind: models.LinePurchase, ItemID: p.ID, Quantity: 6},
		{Kind: models.LineRental, ItemID: tool.ID, Quantity: 3},
	}, models.Address{}, nil)
	require.NoError(t, err)
	require.Equal(t, 4, stockOf(t, svc.Repo, p.ID))

	_, err = svc.Cancel(ctx, other.ID, o.ID)
	require.ErrorIs(t, err, ErrForbidden)
	require.Equal(t, 4, stockOf(t, svc.Repo, p.ID))

	cancelled, err := svc.Cancel(ctx, customer.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, stockOf(t, svc.Repo, p.ID))

	_, err = svc.Cancel(ctx, customer.ID, o.ID)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 10, stockOf(t, svc.Repo, p.ID))
	assert.Equal(t, []string{"order_created", "order_cancelled"}, rec.Types(events.TopicOrders))
}

// listingIndex keeps, per product, whether the last sync left it searchable.
type listingIndex struct {
	fakeIndex
	listed map[uuid.UUID]bool
}

func (ix *listingIndex) SyncProduct(ctx context.Context, p *models.Product) error {
	ix.mu.Lock()
	ix.listed[p.ID] = p.Listable()
	ix.mu.Unlock()
	return ix.fakeIndex.SyncProduct(ctx, p)
}

func TestOrderStockReachesSearchIndex(t *testing.T) {
	t.Parallel()
	svc, _ := newOrderService(t)
	ix := &listingIndex{listed: map[uuid.UUID]bool{}}
	svc.Index = ix
	ctx := context.Background()
	farmer := testutil.CreateUser(t, svc.Repo.DB, models.RoleFarmer)
	customer := testutil.CreateUser(t, svc.Repo.DB, models.RoleCustomer)
	last := testutil.CreateProduct(t, svc.Repo.DB, farmer, "Saffron", "other", 900, 1)
	plenty := testutil.CreateProduct(t, svc.Repo.DB, farmer, "Rice", "grains", 40, 20)
	tool := testutil.CreateTool(t, svc.Repo.DB, farmer, "Sprayer", "irrigation", 60)

	o, err := svc.Place(ctx, customer.ID, []LineRequest{
		{Kind: models.LinePurchase, ItemID: last.ID, Quantity: 1},
		{Kind: models.LinePurchase, ItemID: plenty.ID, Quantity: 2},
		{Kind: models.LineRental, ItemID: tool.ID, Quantity: 2},
	}, models.Address{}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[uuid.UUID]bool{last.ID: false, plenty.ID: true}, ix.listed)

	_, err = svc.Cancel(ctx, customer.ID, o.ID)
	require.NoError(t, err)
	assert.True(t, ix.listed[last.ID])
	assert.Len(t, ix.synced, 4)
}

func TestOrderStockSync_FailedOrderTouchesNothing(t *testing.T) {
	t.Parallel()
	svc, _ := newOrderService(t)
	ix := &listingIndex{listed: map[uuid.UUID]bool{}}
	svc.Index = ix
	ctx := context.Background()
	farmer := testutil.CreateUser(t, svc.Repo.DB, models.RoleFarmer)
	customer := testutil.CreateUser(t, svc.Repo.DB, models.RoleCustomer)
	p := testutil.CreateProduct(t, svc.Repo.DB, farmer, "Saffron", "other", 900, 1)

	_, err := svc.Place(ctx, customer.ID, []LineRequest{{Kind: models.LinePurchase, ItemID: p.ID, Quantity: 2}}, models.Address{}, nil)
	require.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, ix.listed)
}
