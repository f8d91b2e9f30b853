package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/farmtrade/marketplace-api/internal/model"
)

type OrderRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, order *model.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]model.Order, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]model.Order, error)
	ListAll(ctx context.Context) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.OrderStatus) error
	ContainsFarmerProduct(ctx context.Context, orderID, farmerID uuid.UUID) (bool, error)
	Count(ctx context.Context) (int64, error)
	SumTotalAmount(ctx context.Context) (decimal.Decimal, error)
	RevenueByDay(ctx context.Context, since time.Time) ([]model.DailyRevenue, error)
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

func (r *pgOrderRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// CreateTx inserts the order row and all its items inside tx. The caller
// owns commit/rollback, so stock decrements made in the same transaction
// vanish together with the order on failure.
func (r *pgOrderRepo) CreateTx(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	order.ID = uuid.New()
	err := tx.QueryRow(ctx,
		`INSERT INTO orders (id, retailer_id, status, total_amount, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING created_at, updated_at`,
		order.ID, order.RetailerID, order.Status, order.TotalAmount,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity, price_per_unit)
			 VALUES ($1, $2, $3, $4, $5)`,
			order.Items[i].ID, order.ID, order.Items[i].ProductID,
			order.Items[i].Quantity, order.Items[i].PricePerUnit,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order := &model.Order{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, retailer_id, status, total_amount, created_at, updated_at FROM orders WHERE id = $1`, id,
	).Scan(&order.ID, &order.RetailerID, &order.Status, &order.TotalAmount, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *pgOrderRepo) loadItems(ctx context.Context, order *model.Order) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, quantity, price_per_unit FROM order_items WHERE order_id = $1 ORDER BY id`,
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.PricePerUnit); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		item.OrderID = order.ID
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

func (r *pgOrderRepo) ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT id, retailer_id, status, total_amount, created_at, updated_at
		 FROM orders WHERE retailer_id = $1 ORDER BY created_at DESC`, retailerID)
}

// ListByFarmer returns orders containing at least one item whose product
// belongs to the farmer, de-duplicated by order id.
func (r *pgOrderRepo) ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT DISTINCT o.id, o.retailer_id, o.status, o.total_amount, o.created_at, o.updated_at
		 FROM orders o
		 JOIN order_items oi ON oi.order_id = o.id
		 JOIN products p ON p.id = oi.product_id
		 WHERE p.farmer_id = $1
		 ORDER BY o.created_at DESC`, farmerID)
}

func (r *pgOrderRepo) ListAll(ctx context.Context) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT id, retailer_id, status, total_amount, created_at, updated_at
		 FROM orders ORDER BY created_at DESC`)
}

func (r *pgOrderRepo) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.RetailerID, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *pgOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgOrderRepo) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status model.OrderStatus) error {
	ct, err := tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgOrderRepo) ContainsFarmerProduct(ctx context.Context, orderID, farmerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = $1 AND p.farmer_id = $2
		)`, orderID, farmerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check farmer products: %w", err)
	}
	return exists, nil
}

func (r *pgOrderRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (r *pgOrderRepo) SumTotalAmount(ctx context.Context) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status <> $1`,
		model.OrderStatusCancelled,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum revenue: %w", err)
	}
	return sum, nil
}

func (r *pgOrderRepo) RevenueByDay(ctx context.Context, since time.Time) ([]model.DailyRevenue, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT date_trunc('day', created_at) AS day, COALESCE(SUM(total_amount), 0)
		 FROM orders
		 WHERE created_at >= $1 AND status <> $2
		 GROUP BY day ORDER BY day`,
		since, model.OrderStatusCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("revenue by day: %w", err)
	}
	defer rows.Close()

	var out []model.DailyRevenue
	for rows.Next() {
		var d model.DailyRevenue
		if err := rows.Scan(&d.Day, &d.Revenue); err != nil {
			return nil, fmt.Errorf("scan revenue row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
