package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmtrade/marketplace-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	FullName     string `json:"full_name" binding:"required"`
	MobileNumber string `json:"mobile_number"`
	Address      string `json:"address"`
	Role         string `json:"role" binding:"required,oneof=FARMER RETAILER"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID           uuid.UUID        `json:"id"`
	Email        string           `json:"email"`
	FullName     string           `json:"full_name"`
	MobileNumber string           `json:"mobile_number"`
	Address      string           `json:"address"`
	ProfilePhoto string           `json:"profile_photo,omitempty"`
	Role         model.Role       `json:"role"`
	Status       model.UserStatus `json:"status"`
}

type UpdateProfileRequest struct {
	FullName     *string `json:"full_name"`
	MobileNumber *string `json:"mobile_number"`
	Address      *string `json:"address"`
}

// --- Product ---

type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" binding:"required"`
	Quantity    int             `json:"quantity" binding:"min=0"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity"`
}

type ProductResponse struct {
	ID          uuid.UUID       `json:"id"`
	FarmerID    uuid.UUID       `json:"farmer_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
}

// --- Order ---

type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

type PlaceOrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type OrderResponse struct {
	ID          uuid.UUID           `json:"id"`
	RetailerID  uuid.UUID           `json:"retailer_id"`
	Status      model.OrderStatus   `json:"status"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Items       []OrderItemResponse `json:"items"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type OrderItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"product_id"`
	Quantity     int             `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}

// --- Admin / dashboards ---

type AdminStatsResponse struct {
	Users          int64           `json:"users"`
	Products       int64           `json:"products"`
	Orders         int64           `json:"orders"`
	Revenue        decimal.Decimal `json:"revenue"`
	RevenueTrend   []RevenuePoint  `json:"revenue_trend"`
	RecentActivity []ActivityEntry `json:"recent_activity"`
}

type RevenuePoint struct {
	Name    string          `json:"name"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ActivityEntry struct {
	User   string `json:"user"`
	Action string `json:"action"`
	Type   string `json:"type"`
}

type UpdateUserStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PENDING_APPROVAL APPROVED REJECTED"`
}

type FarmerDashboardResponse struct {
	OrderCount     int             `json:"order_count"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	ActiveListings int             `json:"active_listings"`
	RecentOrders   []OrderResponse `json:"recent_orders"`
}

type RetailerDashboardResponse struct {
	OrderCount   int             `json:"order_count"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
	RecentOrders []OrderResponse `json:"recent_orders"`
}
