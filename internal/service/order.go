package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/farmtrade/marketplace-api/internal/dto"
	"github.com/farmtrade/marketplace-api/internal/model"
	"github.com/farmtrade/marketplace-api/internal/repository"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrOrderNotFound          = errors.New("order not found")
	ErrForbidden              = errors.New("not authorized")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidStatus          = errors.New("invalid order status")
	ErrInvalidStateTransition = errors.New("only pending orders can be cancelled")
)

type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	amqpCh      *amqp.Channel
	redisClient *redis.Client
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	amqpCh *amqp.Channel,
	redisClient *redis.Client,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		amqpCh:      amqpCh,
		redisClient: redisClient,
	}
}

// PlaceOrder reserves stock for every requested item and persists the
// order with a price snapshot per line, all in one transaction. Any
// failure rolls back every prior decrement.
func (s *OrderService) PlaceOrder(ctx context.Context, retailerID uuid.UUID, items []dto.OrderItemRequest) (*model.Order, error) {
	retailer, err := s.resolveUser(ctx, retailerID)
	if err != nil {
		return nil, err
	}
	if retailer.Role != model.RoleRetailer {
		return nil, fmt.Errorf("only retailers can place orders: %w", ErrForbidden)
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	total := decimal.Zero
	orderItems := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		product, err := s.productRepo.GetForUpdate(ctx, tx, it.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			return nil, fmt.Errorf("product %s: %w", it.ProductID, ErrProductNotFound)
		}
		if product.Quantity < it.Quantity {
			return nil, fmt.Errorf("product %s: %w", product.Name, ErrInsufficientStock)
		}

		if err := s.productRepo.DecrementStock(ctx, tx, product.ID, it.Quantity); err != nil {
			if errors.Is(err, repository.ErrInsufficientStock) {
				return nil, fmt.Errorf("product %s: %w", product.Name, ErrInsufficientStock)
			}
			return nil, fmt.Errorf("reserve stock: %w", err)
		}

		orderItems = append(orderItems, model.OrderItem{
			ProductID:    product.ID,
			Quantity:     it.Quantity,
			PricePerUnit: product.Price,
		})
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	order := &model.Order{
		RetailerID:  retailerID,
		Status:      model.OrderStatusPending,
		TotalAmount: total,
		Items:       orderItems,
	}
	if err := s.orderRepo.CreateTx(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}

	s.invalidateProductCache(ctx, order.Items)
	s.publishEvent(ctx, model.EventOrderPlaced, order)
	return order, nil
}

// CancelOrder restores the exact quantities reserved at placement,
// whatever the product's price is now. Only the retailer who placed the
// order may cancel it, and only while it is still pending, which makes a
// second cancel fail instead of replenishing stock twice.
func (s *OrderService) CancelOrder(ctx context.Context, retailerID, orderID uuid.UUID) (*model.Order, error) {
	if _, err := s.resolveUser(ctx, retailerID); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
	}
	if order.RetailerID != retailerID {
		return nil, fmt.Errorf("cancel order: %w", ErrForbidden)
	}
	if order.Status != model.OrderStatusPending {
		return nil, ErrInvalidStateTransition
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range order.Items {
		if err := s.productRepo.IncrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("product %s: %w", item.ProductID, ErrProductNotFound)
			}
			return nil, fmt.Errorf("release stock: %w", err)
		}
	}
	if err := s.orderRepo.UpdateStatusTx(ctx, tx, order.ID, model.OrderStatusCancelled); err != nil {
		return nil, fmt.Errorf("set cancelled: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancellation: %w", err)
	}

	order.Status = model.OrderStatusCancelled
	s.invalidateProductCache(ctx, order.Items)
	s.publishEvent(ctx, model.EventOrderCancelled, order)
	return order, nil
}

// UpdateStatus lets a farmer who supplies at least one line item set the
// order status. The new value only has to be a known status; no ordering
// is enforced between statuses.
func (s *OrderService) UpdateStatus(ctx context.Context, farmerID, orderID uuid.UUID, statusName string) (*model.Order, error) {
	farmer, err := s.resolveUser(ctx, farmerID)
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
	}

	if farmer.Role != model.RoleFarmer {
		return nil, fmt.Errorf("update order status: %w", ErrForbidden)
	}
	owns, err := s.orderRepo.ContainsFarmerProduct(ctx, orderID, farmerID)
	if err != nil {
		return nil, fmt.Errorf("check farmer products: %w", err)
	}
	if !owns {
		return nil, fmt.Errorf("update order status: %w", ErrForbidden)
	}

	status, ok := model.ParseOrderStatus(statusName)
	if !ok {
		return nil, fmt.Errorf("%q: %w", statusName, ErrInvalidStatus)
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, status); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = status
	return order, nil
}

func (s *OrderService) ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]model.Order, error) {
	if _, err := s.resolveUser(ctx, retailerID); err != nil {
		return nil, err
	}
	return s.orderRepo.ListByRetailer(ctx, retailerID)
}

func (s *OrderService) ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]model.Order, error) {
	if _, err := s.resolveUser(ctx, farmerID); err != nil {
		return nil, err
	}
	return s.orderRepo.ListByFarmer(ctx, farmerID)
}

func (s *OrderService) ListAll(ctx context.Context, callerID uuid.UUID) ([]model.Order, error) {
	caller, err := s.resolveUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if caller.Role != model.RoleAdmin {
		return nil, fmt.Errorf("list all orders: %w", ErrForbidden)
	}
	return s.orderRepo.ListAll(ctx)
}

// resolveUser treats a missing user as an upstream consistency bug: the
// identity comes from an authenticated token, so the row should exist.
func (s *OrderService) resolveUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", id, ErrUserNotFound)
	}
	return user, nil
}

func (s *OrderService) invalidateProductCache(ctx context.Context, items []model.OrderItem) {
	if s.redisClient == nil {
		return
	}
	for _, item := range items {
		s.redisClient.Del(ctx, "product:"+item.ProductID.String())
	}
}

// ToOrderResponse maps an order to its transport shape, preserving item
// insertion order.
func ToOrderResponse(order *model.Order) dto.OrderResponse {
	var items []dto.OrderItemResponse
	for _, item := range order.Items {
		items = append(items, dto.OrderItemResponse{
			ID:           item.ID,
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			PricePerUnit: item.PricePerUnit,
		})
	}
	return dto.OrderResponse{
		ID:          order.ID,
		RetailerID:  order.RetailerID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Items:       items,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

func (s *OrderService) publishEvent(ctx context.Context, eventType string, order *model.Order) {
	if s.amqpCh == nil {
		return
	}
	msg, _ := json.Marshal(model.OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		RetailerID: order.RetailerID,
	})
	_ = s.amqpCh.PublishWithContext(ctx, "", "orders", false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg,
		DeliveryMode: amqp.Persistent,
	})
}
