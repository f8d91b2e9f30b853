package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID           uuid.UUID
	Email        string
	Password     string
	FullName     string
	MobileNumber string
	Address      string
	ProfilePhoto string
	Role         Role
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Product struct {
	ID          uuid.UUID
	FarmerID    uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	Quantity    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID          uuid.UUID
	RetailerID  uuid.UUID
	Status      OrderStatus
	TotalAmount decimal.Decimal
	Items       []OrderItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderItem captures the unit price at placement time. PricePerUnit is
// never touched again, so later product price changes leave past orders
// intact.
type OrderItem struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	ProductID    uuid.UUID
	Quantity     int
	PricePerUnit decimal.Decimal
}

// DailyRevenue is a projection row for the admin revenue trend.
type DailyRevenue struct {
	Day     time.Time
	Revenue decimal.Decimal
}

type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    uuid.UUID `json:"order_id"`
	RetailerID uuid.UUID `json:"retailer_id"`
}

const (
	EventOrderPlaced    = "order.placed"
	EventOrderCancelled = "order.cancelled"
)
