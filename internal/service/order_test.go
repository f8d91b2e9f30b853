package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmtrade/marketplace-api/internal/dto"
	"github.com/farmtrade/marketplace-api/internal/model"
	"github.com/farmtrade/marketplace-api/internal/repository"
)

// mockStore backs the user, product, and order repositories with maps.
// BeginTx snapshots product stock and orders so a rollback restores the
// exact pre-transaction state, which is what the atomicity tests rely on.
type mockStore struct {
	users    map[uuid.UUID]*model.User
	products map[uuid.UUID]*model.Product
	orders   map[uuid.UUID]*model.Order
}

func newMockStore() *mockStore {
	return &mockStore{
		users:    make(map[uuid.UUID]*model.User),
		products: make(map[uuid.UUID]*model.Product),
		orders:   make(map[uuid.UUID]*model.Order),
	}
}

type fakeTx struct {
	pgx.Tx
	store      *mockStore
	quantities map[uuid.UUID]int
	orders     map[uuid.UUID]*model.Order
	done       bool
}

func (s *mockStore) BeginTx(_ context.Context) (pgx.Tx, error) {
	tx := &fakeTx{
		store:      s,
		quantities: make(map[uuid.UUID]int, len(s.products)),
		orders:     make(map[uuid.UUID]*model.Order, len(s.orders)),
	}
	for id, p := range s.products {
		tx.quantities[id] = p.Quantity
	}
	for id, o := range s.orders {
		tx.orders[id] = copyOrder(o)
	}
	return tx, nil
}

func (t *fakeTx) Commit(_ context.Context) error {
	t.done = true
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	for id, q := range t.quantities {
		if p, ok := t.store.products[id]; ok {
			p.Quantity = q
		}
	}
	t.store.orders = t.orders
	return nil
}

func copyOrder(o *model.Order) *model.Order {
	cp := *o
	cp.Items = append([]model.OrderItem(nil), o.Items...)
	return &cp
}

// --- UserRepository ---

func (s *mockStore) Create(_ context.Context, user *model.User) error {
	user.ID = uuid.New()
	s.users[user.ID] = user
	return nil
}

func (s *mockStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return s.users[id], nil
}

func (s *mockStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s *mockStore) List(_ context.Context) ([]model.User, error) {
	var users []model.User
	for _, u := range s.users {
		users = append(users, *u)
	}
	return users, nil
}

func (s *mockStore) Update(_ context.Context, user *model.User) error {
	s.users[user.ID] = user
	return nil
}

func (s *mockStore) UpdateStatus(_ context.Context, id uuid.UUID, status model.UserStatus) error {
	if u, ok := s.users[id]; ok {
		u.Status = status
	}
	return nil
}

func (s *mockStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.users, id)
	return nil
}

func (s *mockStore) Count(_ context.Context) (int64, error) {
	return int64(len(s.users)), nil
}

// userRepo/productRepo/orderRepo views disambiguate the overlapping
// method sets of the three repository interfaces.

type userRepoView struct{ *mockStore }

type productRepoView struct{ *mockStore }

func (v productRepoView) Create(_ context.Context, product *model.Product) error {
	product.ID = uuid.New()
	v.products[product.ID] = product
	return nil
}

func (v productRepoView) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := v.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (v productRepoView) List(_ context.Context) ([]model.Product, error) {
	var products []model.Product
	for _, p := range v.products {
		products = append(products, *p)
	}
	return products, nil
}

func (v productRepoView) ListByFarmer(_ context.Context, farmerID uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	for _, p := range v.products {
		if p.FarmerID == farmerID {
			products = append(products, *p)
		}
	}
	return products, nil
}

func (v productRepoView) Update(_ context.Context, product *model.Product) error {
	v.products[product.ID] = product
	return nil
}

func (v productRepoView) Delete(_ context.Context, id uuid.UUID) error {
	delete(v.products, id)
	return nil
}

func (v productRepoView) Count(_ context.Context) (int64, error) {
	return int64(len(v.products)), nil
}

func (v productRepoView) GetForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*model.Product, error) {
	p, ok := v.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (v productRepoView) DecrementStock(_ context.Context, _ pgx.Tx, id uuid.UUID, quantity int) error {
	p, ok := v.products[id]
	if !ok || p.Quantity < quantity {
		return repository.ErrInsufficientStock
	}
	p.Quantity -= quantity
	return nil
}

func (v productRepoView) IncrementStock(_ context.Context, _ pgx.Tx, id uuid.UUID, quantity int) error {
	p, ok := v.products[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.Quantity += quantity
	return nil
}

type orderRepoView struct{ *mockStore }

func (v orderRepoView) CreateTx(_ context.Context, _ pgx.Tx, order *model.Order) error {
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}
	v.orders[order.ID] = copyOrder(order)
	return nil
}

func (v orderRepoView) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	o, ok := v.orders[id]
	if !ok {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (v orderRepoView) ListByRetailer(_ context.Context, retailerID uuid.UUID) ([]model.Order, error) {
	var orders []model.Order
	for _, o := range v.orders {
		if o.RetailerID == retailerID {
			orders = append(orders, *copyOrder(o))
		}
	}
	return orders, nil
}

func (v orderRepoView) ListByFarmer(_ context.Context, farmerID uuid.UUID) ([]model.Order, error) {
	var orders []model.Order
	for _, o := range v.orders {
		for _, item := range o.Items {
			p, ok := v.products[item.ProductID]
			if ok && p.FarmerID == farmerID {
				orders = append(orders, *copyOrder(o))
				break
			}
		}
	}
	return orders, nil
}

func (v orderRepoView) ListAll(_ context.Context) ([]model.Order, error) {
	var orders []model.Order
	for _, o := range v.orders {
		orders = append(orders, *copyOrder(o))
	}
	return orders, nil
}

func (v orderRepoView) UpdateStatus(_ context.Context, id uuid.UUID, status model.OrderStatus) error {
	o, ok := v.orders[id]
	if !ok {
		return pgx.ErrNoRows
	}
	o.Status = status
	return nil
}

func (v orderRepoView) UpdateStatusTx(ctx context.Context, _ pgx.Tx, id uuid.UUID, status model.OrderStatus) error {
	return v.UpdateStatus(ctx, id, status)
}

func (v orderRepoView) ContainsFarmerProduct(_ context.Context, orderID, farmerID uuid.UUID) (bool, error) {
	o, ok := v.orders[orderID]
	if !ok {
		return false, nil
	}
	for _, item := range o.Items {
		if p, ok := v.products[item.ProductID]; ok && p.FarmerID == farmerID {
			return true, nil
		}
	}
	return false, nil
}

func (v orderRepoView) Count(_ context.Context) (int64, error) {
	return int64(len(v.orders)), nil
}

func (v orderRepoView) SumTotalAmount(_ context.Context) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, o := range v.orders {
		if o.Status != model.OrderStatusCancelled {
			sum = sum.Add(o.TotalAmount)
		}
	}
	return sum, nil
}

func (v orderRepoView) RevenueByDay(_ context.Context, _ time.Time) ([]model.DailyRevenue, error) {
	return nil, nil
}

// --- fixtures ---

func newOrderFixture() (*OrderService, *mockStore) {
	store := newMockStore()
	svc := NewOrderService(orderRepoView{store}, productRepoView{store}, userRepoView{store}, nil, nil)
	return svc, store
}

func (s *mockStore) addUser(role model.Role) uuid.UUID {
	id := uuid.New()
	s.users[id] = &model.User{
		ID: id, Email: id.String() + "@example.com",
		Role: role, Status: model.UserStatusApproved,
	}
	return id
}

func (s *mockStore) addProduct(farmerID uuid.UUID, price float64, quantity int) uuid.UUID {
	id := uuid.New()
	s.products[id] = &model.Product{
		ID: id, FarmerID: farmerID, Name: "Product " + id.String()[:8],
		Price: decimal.NewFromFloat(price), Quantity: quantity,
	}
	return id
}

// --- tests ---

func TestOrderService_PlaceOrder(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	retailerID := store.addUser(model.RoleRetailer)
	productID := store.addProduct(farmerID, 5.00, 10)

	order, err := svc.PlaceOrder(ctx, retailerID, []dto.OrderItemRequest{
		{ProductID: productID, Quantity: 3},
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromFloat(15.00)), "total = %s", order.TotalAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.True(t, order.Items[0].PricePerUnit.Equal(decimal.NewFromFloat(5.00)))
	assert.Equal(t, 7, store.products[productID].Quantity)
}

func TestOrderService_PlaceOrder_InsufficientStock(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	retailerID := store.addUser(model.RoleRetailer)
	productID := store.addProduct(farmerID, 5.00, 2)

	_, err := svc.PlaceOrder(ctx, retailerID, []dto.OrderItemRequest{
		{ProductID: productID, Quantity: 3},
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, store.products[productID].Quantity)
	assert.Empty(t, store.orders)
}

func TestOrderService_PlaceOrder_RollsBackEarlierDecrements(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	retailerID := store.addUser(model.RoleRetailer)
	firstID := store.addProduct(farmerID, 2.00, 10)

	_, err := svc.PlaceOrder(ctx, retailerID, []dto.OrderItemRequest{
		{ProductID: firstID, Quantity: 4},
		{ProductID: uuid.New(), Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrProductNotFound)

	// the decrement for the first item must not survive the rollback
	assert.Equal(t, 10, store.products[firstID].Quantity)
	assert.Empty(t, store.orders)
}

func TestOrderService_PlaceOrder_NonRetailer(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	productID := store.addProduct(farmerID, 5.00, 10)

	_, err := svc.PlaceOrder(ctx, farmerID, []dto.OrderItemRequest{
		{ProductID: productID, Quantity: 1},
	})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 10, store.products[productID].Quantity)
}

func TestOrderService_PlaceOrder_UnknownUser(t *testing.T) {
	svc, _ := newOrderFixture()
	_, err := svc.PlaceOrder(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestOrderService_PlaceOrder_EmptyItems(t *testing.T) {
	svc, store := newOrderFixture()
	retailerID := store.addUser(model.RoleRetailer)

	order, err := svc.PlaceOrder(context.Background(), retailerID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.IsZero())
	assert.Empty(t, order.Items)
}

func TestOrderService_PriceSnapshotSurvivesPriceChange(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	retailerID := store.addUser(model.RoleRetailer)
	productID := store.addProduct(farmerID, 5.00, 10)

	order, err := svc.PlaceOrder(ctx, retailerID, []dto.OrderItemRequest{
		{ProductID: productID, Quantity: 3},
	})
	require.NoError(t, err)

	// raise the price after placement
	store.products[productID].Price = decimal.NewFromFloat(9.99)

	persisted, err := orderRepoView{store}.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, persisted.TotalAmount.Equal(decimal.NewFromFloat(15.00)))
	assert.True(t, persisted.Items[0].PricePerUnit.Equal(decimal.NewFromFloat(5.00)))

	// cancellation restores the reserved quantity, not a price-derived one
	cancelled, err := svc.CancelOrder(ctx, retailerID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, store.products[productID].Quantity)
}

func TestOrderService_CancelOrder(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	retailerID := store.addUser(model.RoleRetailer)
	productID := store.addProduct(farmerID, 5.00, 10)

	order, err := svc.PlaceOrder(ctx, retailerID, []dto.OrderItemRequest{
		{ProductID: productID, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, store.products[productID].Quantity)

	cancelled, err := svc.CancelOrder(ctx, retailerID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, store.products[productID].Quantity)

	// second cancel must not replenish stock again
	_, err = svc.CancelOrder(ctx, retailerID, order.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Equal(t, 10, store.products[productID].Quantity)
}

func TestOrderService_CancelOrder_WrongRetailer(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	retailerID := store.addUser(model.RoleRetailer)
	otherRetailerID := store.addUser(model.RoleRetailer)
	productID := store.addProduct(farmerID, 5.00, 10)

	order, err := svc.PlaceOrder(ctx, retailerID, []dto.OrderItemRequest{
		{ProductID: productID, Quantity: 3},
	})
	require.NoError(t, err)

	_, err = svc.CancelOrder(ctx, otherRetailerID, order.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 7, store.products[productID].Quantity)
	assert.Equal(t, model.OrderStatusPending, store.orders[order.ID].Status)
}

func TestOrderService_CancelOrder_NotFound(t *testing.T) {
	svc, store := newOrderFixture()
	retailerID := store.addUser(model.RoleRetailer)

	_, err := svc.CancelOrder(context.Background(), retailerID, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	retailerID := store.addUser(model.RoleRetailer)
	productID := store.addProduct(farmerID, 5.00, 10)

	order, err := svc.PlaceOrder(ctx, retailerID, []dto.OrderItemRequest{
		{ProductID: productID, Quantity: 2},
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, farmerID, order.ID, "SHIPPED")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, updated.Status)
	assert.Equal(t, model.OrderStatusShipped, store.orders[order.ID].Status)

	// no stock side effects
	assert.Equal(t, 8, store.products[productID].Quantity)
}

func TestOrderService_UpdateStatus_UnrelatedFarmer(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	otherFarmerID := store.addUser(model.RoleFarmer)
	retailerID := store.addUser(model.RoleRetailer)
	productID := store.addProduct(farmerID, 5.00, 10)

	order, err := svc.PlaceOrder(ctx, retailerID, []dto.OrderItemRequest{
		{ProductID: productID, Quantity: 2},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, otherFarmerID, order.ID, "SHIPPED")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, model.OrderStatusPending, store.orders[order.ID].Status)
}

func TestOrderService_UpdateStatus_RetailerCaller(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	retailerID := store.addUser(model.RoleRetailer)
	productID := store.addProduct(farmerID, 5.00, 10)

	order, err := svc.PlaceOrder(ctx, retailerID, []dto.OrderItemRequest{
		{ProductID: productID, Quantity: 2},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, retailerID, order.ID, "CONFIRMED")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestOrderService_UpdateStatus_InvalidValue(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	retailerID := store.addUser(model.RoleRetailer)
	productID := store.addProduct(farmerID, 5.00, 10)

	order, err := svc.PlaceOrder(ctx, retailerID, []dto.OrderItemRequest{
		{ProductID: productID, Quantity: 2},
	})
	require.NoError(t, err)

	for _, bad := range []string{"shipped", "Shipped", "RETURNED", ""} {
		_, err = svc.UpdateStatus(ctx, farmerID, order.ID, bad)
		assert.ErrorIs(t, err, ErrInvalidStatus, "status %q", bad)
	}
	assert.Equal(t, model.OrderStatusPending, store.orders[order.ID].Status)
}

func TestOrderService_UpdateStatus_NoOrderingConstraint(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	retailerID := store.addUser(model.RoleRetailer)
	productID := store.addProduct(farmerID, 5.00, 10)

	order, err := svc.PlaceOrder(ctx, retailerID, []dto.OrderItemRequest{
		{ProductID: productID, Quantity: 2},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, farmerID, order.ID, "SHIPPED")
	require.NoError(t, err)

	// moving backwards is allowed
	updated, err := svc.UpdateStatus(ctx, farmerID, order.ID, "PENDING")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, updated.Status)
}

func TestOrderService_ListByFarmer_Deduplicates(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	retailerID := store.addUser(model.RoleRetailer)
	firstID := store.addProduct(farmerID, 1.00, 10)
	secondID := store.addProduct(farmerID, 2.00, 10)

	order, err := svc.PlaceOrder(ctx, retailerID, []dto.OrderItemRequest{
		{ProductID: firstID, Quantity: 1},
		{ProductID: secondID, Quantity: 1},
	})
	require.NoError(t, err)

	orders, err := svc.ListByFarmer(ctx, farmerID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestOrderService_ListAll_AdminOnly(t *testing.T) {
	svc, store := newOrderFixture()
	ctx := context.Background()

	retailerID := store.addUser(model.RoleRetailer)
	adminID := store.addUser(model.RoleAdmin)

	_, err := svc.ListAll(ctx, retailerID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.ListAll(ctx, adminID)
	assert.NoError(t, err)
}
