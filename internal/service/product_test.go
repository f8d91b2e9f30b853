package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmtrade/marketplace-api/internal/dto"
	"github.com/farmtrade/marketplace-api/internal/model"
)

func newProductFixture() (*ProductService, *mockStore) {
	store := newMockStore()
	svc := NewProductService(productRepoView{store}, userRepoView{store}, nil)
	return svc, store
}

func TestProductService_Create(t *testing.T) {
	svc, store := newProductFixture()
	farmerID := store.addUser(model.RoleFarmer)

	resp, err := svc.Create(context.Background(), farmerID, dto.CreateProductRequest{
		Name:        "Organic Tomatoes",
		Description: "Fresh farm tomatoes",
		Price:       decimal.NewFromFloat(2.50),
		Quantity:    200,
	})
	require.NoError(t, err)

	assert.Equal(t, farmerID, resp.FarmerID)
	assert.Equal(t, 200, resp.Quantity)
	assert.True(t, resp.Price.Equal(decimal.NewFromFloat(2.50)))
	assert.Contains(t, store.products, resp.ID)
}

func TestProductService_Create_NonFarmer(t *testing.T) {
	svc, store := newProductFixture()
	retailerID := store.addUser(model.RoleRetailer)

	_, err := svc.Create(context.Background(), retailerID, dto.CreateProductRequest{
		Name: "Tomatoes", Price: decimal.NewFromFloat(1.00),
	})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, store.products)
}

func TestProductService_GetByID_NotFound(t *testing.T) {
	svc, _ := newProductFixture()

	_, err := svc.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_Update(t *testing.T) {
	svc, store := newProductFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	productID := store.addProduct(farmerID, 2.50, 100)

	newPrice := decimal.NewFromFloat(3.00)
	newQuantity := 50
	resp, err := svc.Update(ctx, farmerID, productID, dto.UpdateProductRequest{
		Price:    &newPrice,
		Quantity: &newQuantity,
	})
	require.NoError(t, err)

	assert.True(t, resp.Price.Equal(newPrice))
	assert.Equal(t, 50, resp.Quantity)

	stored := store.products[productID]
	assert.True(t, stored.Price.Equal(newPrice))
	assert.Equal(t, 50, stored.Quantity)
	// untouched fields keep their values
	assert.NotEmpty(t, stored.Name)
}

func TestProductService_Update_WrongFarmer(t *testing.T) {
	svc, store := newProductFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	otherFarmerID := store.addUser(model.RoleFarmer)
	productID := store.addProduct(farmerID, 2.50, 100)

	name := "Hijacked"
	_, err := svc.Update(ctx, otherFarmerID, productID, dto.UpdateProductRequest{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotEqual(t, "Hijacked", store.products[productID].Name)
}

func TestProductService_Delete(t *testing.T) {
	svc, store := newProductFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	otherFarmerID := store.addUser(model.RoleFarmer)
	productID := store.addProduct(farmerID, 2.50, 100)

	err := svc.Delete(ctx, otherFarmerID, productID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, store.products, productID)

	require.NoError(t, svc.Delete(ctx, farmerID, productID))
	assert.NotContains(t, store.products, productID)

	err = svc.Delete(ctx, farmerID, productID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_ListByFarmer(t *testing.T) {
	svc, store := newProductFixture()
	ctx := context.Background()

	farmerID := store.addUser(model.RoleFarmer)
	otherFarmerID := store.addUser(model.RoleFarmer)
	store.addProduct(farmerID, 1.00, 10)
	store.addProduct(farmerID, 2.00, 10)
	store.addProduct(otherFarmerID, 3.00, 10)

	resp, err := svc.ListByFarmer(ctx, farmerID)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	for _, p := range resp.Products {
		assert.Equal(t, farmerID, p.FarmerID)
	}
}
