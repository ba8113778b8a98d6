package services

import (
	"context"
	"errors"

	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProductService interface {
	ListProducts(ctx context.Context, page, limit int, category string) (*models.ProductList, *ServiceError)
	GetProduct(ctx context.Context, id string) (*models.Product, *ServiceError)
}

type productService struct {
	repo   repository.ProductRepository
	logger *zap.Logger
}

func NewProductService(repo repository.ProductRepository, logger *zap.Logger) ProductService {
	return &productService{repo: repo, logger: logger}
}

func (s *productService) ListProducts(ctx context.Context, page, limit int, category string) (*models.ProductList, *ServiceError) {
	products, total, err := s.repo.FindAll(ctx, page, limit, category)
	if err != nil {
		s.logger.Error("Failed to list products", zap.Error(err))
		return nil, errInternal("Failed to list products")
	}
	return &models.ProductList{Products: products, Meta: models.NewListMeta(page, limit, total)}, nil
}

func (s *productService) GetProduct(ctx context.Context, id string) (*models.Product, *ServiceError) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid product ID"}
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Product not found"}
		}
		s.logger.Error("Failed to get product", zap.String("product_id", id), zap.Error(err))
		return nil, errInternal("Failed to get product")
	}
	return product, nil
}
