package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/farmtrade/marketplace-api/internal/dto"
	"github.com/farmtrade/marketplace-api/internal/model"
	"github.com/farmtrade/marketplace-api/internal/repository"
)

var ErrProductNotFound = errors.New("product not found")

const productCacheTTL = 60 * time.Second

type ProductService struct {
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	redisClient *redis.Client
}

func NewProductService(productRepo repository.ProductRepository, userRepo repository.UserRepository, redisClient *redis.Client) *ProductService {
	return &ProductService{productRepo: productRepo, userRepo: userRepo, redisClient: redisClient}
}

func (s *ProductService) Create(ctx context.Context, farmerID uuid.UUID, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	farmer, err := s.userRepo.GetByID(ctx, farmerID)
	if err != nil {
		return nil, fmt.Errorf("get farmer: %w", err)
	}
	if farmer == nil {
		return nil, fmt.Errorf("farmer %s: %w", farmerID, ErrUserNotFound)
	}
	if farmer.Role != model.RoleFarmer {
		return nil, fmt.Errorf("only farmers can list products: %w", ErrForbidden)
	}

	product := &model.Product{
		FarmerID:    farmerID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	cacheKey := "product:" + id.String()

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.ProductResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return &resp, nil
			}
		}
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	resp := toProductResponse(product)

	if s.redisClient != nil {
		if data, err := json.Marshal(resp); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, productCacheTTL)
		}
	}

	return &resp, nil
}

func (s *ProductService) List(ctx context.Context) (*dto.ProductListResponse, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return toProductListResponse(products), nil
}

func (s *ProductService) ListByFarmer(ctx context.Context, farmerID uuid.UUID) (*dto.ProductListResponse, error) {
	products, err := s.productRepo.ListByFarmer(ctx, farmerID)
	if err != nil {
		return nil, fmt.Errorf("list farmer products: %w", err)
	}
	return toProductListResponse(products), nil
}

func (s *ProductService) Update(ctx context.Context, farmerID, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	product, err := s.ownedProduct(ctx, farmerID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Quantity != nil {
		product.Quantity = *req.Quantity
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.invalidateCache(ctx, id)
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) Delete(ctx context.Context, farmerID, id uuid.UUID) error {
	if _, err := s.ownedProduct(ctx, farmerID, id); err != nil {
		return err
	}
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidateCache(ctx, id)
	return nil
}

// ownedProduct loads the product and rejects callers other than the
// owning farmer.
func (s *ProductService) ownedProduct(ctx context.Context, farmerID, id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if product.FarmerID != farmerID {
		return nil, fmt.Errorf("product %s: %w", id, ErrForbidden)
	}
	return product, nil
}

func (s *ProductService) invalidateCache(ctx context.Context, id uuid.UUID) {
	if s.redisClient != nil {
		s.redisClient.Del(ctx, "product:"+id.String())
	}
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:          p.ID,
		FarmerID:    p.FarmerID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toProductListResponse(products []model.Product) *dto.ProductListResponse {
	var items []dto.ProductResponse
	for _, p := range products {
		items = append(items, toProductResponse(&p))
	}
	return &dto.ProductListResponse{Products: items, Total: len(items)}
}
