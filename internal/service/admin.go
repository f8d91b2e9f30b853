package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmtrade/marketplace-api/internal/dto"
	"github.com/farmtrade/marketplace-api/internal/model"
	"github.com/farmtrade/marketplace-api/internal/repository"
)

const (
	revenueTrendDays = 7
	recentLimit      = 5
)

type AdminService struct {
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
}

func NewAdminService(userRepo repository.UserRepository, productRepo repository.ProductRepository, orderRepo repository.OrderRepository) *AdminService {
	return &AdminService{userRepo: userRepo, productRepo: productRepo, orderRepo: orderRepo}
}

// Stats builds the admin dashboard: entity counts, total revenue, a
// zero-filled 7-day revenue trend and a short activity feed.
func (s *AdminService) Stats(ctx context.Context) (*dto.AdminStatsResponse, error) {
	users, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.productRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.orderRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	revenue, err := s.orderRepo.SumTotalAmount(ctx)
	if err != nil {
		return nil, err
	}

	trend, err := s.revenueTrend(ctx)
	if err != nil {
		return nil, err
	}
	activity, err := s.recentActivity(ctx)
	if err != nil {
		return nil, err
	}

	return &dto.AdminStatsResponse{
		Users:          users,
		Products:       products,
		Orders:         orders,
		Revenue:        revenue,
		RevenueTrend:   trend,
		RecentActivity: activity,
	}, nil
}

func (s *AdminService) revenueTrend(ctx context.Context) ([]dto.RevenuePoint, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -(revenueTrendDays - 1)).Truncate(24 * time.Hour)

	rows, err := s.orderRepo.RevenueByDay(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("revenue trend: %w", err)
	}

	byDay := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		byDay[r.Day.Format("2006-01-02")] = r.Revenue
	}

	trend := make([]dto.RevenuePoint, 0, revenueTrendDays)
	for i := revenueTrendDays - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		revenue, ok := byDay[day.Format("2006-01-02")]
		if !ok {
			revenue = decimal.Zero
		}
		trend = append(trend, dto.RevenuePoint{Name: day.Format("Mon"), Revenue: revenue})
	}
	return trend, nil
}

func (s *AdminService) recentActivity(ctx context.Context) ([]dto.ActivityEntry, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	orders, err := s.orderRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	userByID := make(map[uuid.UUID]model.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	var activity []dto.ActivityEntry
	for i, u := range users {
		if i == 3 {
			break
		}
		activity = append(activity, dto.ActivityEntry{
			User:   displayName(u),
			Action: "Joined the platform",
			Type:   string(u.Role),
		})
	}
	for i, o := range orders {
		if i == 2 {
			break
		}
		name := "Unknown"
		if u, ok := userByID[o.RetailerID]; ok {
			name = displayName(u)
		}
		activity = append(activity, dto.ActivityEntry{
			User:   name,
			Action: fmt.Sprintf("Placed order %s", o.ID),
			Type:   string(model.RoleRetailer),
		})
	}
	return activity, nil
}

func displayName(u model.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

func (s *AdminService) ListUsers(ctx context.Context) ([]dto.UserResponse, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	return out, nil
}

// SetUserStatus approves or rejects an account; APPROVED unlocks login.
func (s *AdminService) SetUserStatus(ctx context.Context, id uuid.UUID, status model.UserStatus) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %s: %w", id, ErrUserNotFound)
	}
	return s.userRepo.UpdateStatus(ctx, id, status)
}

func (s *AdminService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %s: %w", id, ErrUserNotFound)
	}
	return s.userRepo.Delete(ctx, id)
}

// FarmerDashboard aggregates over the farmer's order view; recent orders
// are capped like the original dashboard.
func (s *AdminService) FarmerDashboard(ctx context.Context, farmerID uuid.UUID) (*dto.FarmerDashboardResponse, error) {
	orders, err := s.orderRepo.ListByFarmer(ctx, farmerID)
	if err != nil {
		return nil, fmt.Errorf("list farmer orders: %w", err)
	}
	listings, err := s.productRepo.ListByFarmer(ctx, farmerID)
	if err != nil {
		return nil, fmt.Errorf("list farmer products: %w", err)
	}

	revenue := decimal.Zero
	for _, o := range orders {
		if o.Status != model.OrderStatusCancelled {
			revenue = revenue.Add(o.TotalAmount)
		}
	}

	return &dto.FarmerDashboardResponse{
		OrderCount:     len(orders),
		TotalRevenue:   revenue,
		ActiveListings: len(listings),
		RecentOrders:   recentOrders(orders),
	}, nil
}

func (s *AdminService) RetailerDashboard(ctx context.Context, retailerID uuid.UUID) (*dto.RetailerDashboardResponse, error) {
	orders, err := s.orderRepo.ListByRetailer(ctx, retailerID)
	if err != nil {
		return nil, fmt.Errorf("list retailer orders: %w", err)
	}

	spent := decimal.Zero
	for _, o := range orders {
		if o.Status != model.OrderStatusCancelled {
			spent = spent.Add(o.TotalAmount)
		}
	}

	return &dto.RetailerDashboardResponse{
		OrderCount:   len(orders),
		TotalSpent:   spent,
		RecentOrders: recentOrders(orders),
	}, nil
}

func recentOrders(orders []model.Order) []dto.OrderResponse {
	if len(orders) > recentLimit {
		orders = orders[:recentLimit]
	}
	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, ToOrderResponse(&orders[i]))
	}
	return out
}
