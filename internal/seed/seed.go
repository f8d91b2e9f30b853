package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/farmtrade/marketplace-api/internal/model"
	"github.com/farmtrade/marketplace-api/internal/repository"
)

// Run inserts a demo admin, farmer, and retailer plus a few produce
// listings. Existing accounts are left alone, so it is safe to run on
// every start.
func Run(ctx context.Context, log *slog.Logger, userRepo repository.UserRepository, productRepo repository.ProductRepository) error {
	admin := demoUser("admin@farmtrade.local", "admin123", "Super Admin", model.RoleAdmin)
	if err := ensureUser(ctx, log, userRepo, admin); err != nil {
		return err
	}

	farmer := demoUser("farmer@farmtrade.local", "farmer123", "Ramesh Kumar", model.RoleFarmer)
	farmerCreated, err := ensureUserCreated(ctx, log, userRepo, farmer)
	if err != nil {
		return err
	}

	retailer := demoUser("retailer@farmtrade.local", "retailer123", "Pranav Stores", model.RoleRetailer)
	if err := ensureUser(ctx, log, userRepo, retailer); err != nil {
		return err
	}

	if farmerCreated {
		products := []model.Product{
			{Name: "Organic Tomatoes", Description: "Fresh farm tomatoes, 1kg", Price: decimal.NewFromFloat(2.50), Quantity: 200},
			{Name: "Basmati Rice", Description: "Long-grain rice, 5kg bag", Price: decimal.NewFromFloat(12.00), Quantity: 80},
			{Name: "Raw Honey", Description: "Unfiltered wildflower honey, 500g", Price: decimal.NewFromFloat(7.25), Quantity: 40},
		}
		for i := range products {
			products[i].FarmerID = farmer.ID
			if err := productRepo.Create(ctx, &products[i]); err != nil {
				return fmt.Errorf("seed product %q: %w", products[i].Name, err)
			}
		}
		log.Info("demo products seeded", "count", len(products))
	}

	return nil
}

func demoUser(email, password, fullName string, role model.Role) *model.User {
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return &model.User{
		Email:    email,
		Password: string(hashed),
		FullName: fullName,
		Role:     role,
		Status:   model.UserStatusApproved,
	}
}

func ensureUser(ctx context.Context, log *slog.Logger, userRepo repository.UserRepository, user *model.User) error {
	_, err := ensureUserCreated(ctx, log, userRepo, user)
	return err
}

func ensureUserCreated(ctx context.Context, log *slog.Logger, userRepo repository.UserRepository, user *model.User) (bool, error) {
	existing, err := userRepo.GetByEmail(ctx, user.Email)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", user.Email, err)
	}
	if existing != nil {
		user.ID = existing.ID
		return false, nil
	}
	if err := userRepo.Create(ctx, user); err != nil {
		return false, fmt.Errorf("seed %s: %w", user.Email, err)
	}
	log.Info("demo user seeded", "email", user.Email, "role", user.Role)
	return true, nil
}
