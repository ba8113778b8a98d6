package services

import (
	"context"
	"errors"

	"github.com/bloomsisters/storefront/backend/services/storefront-service/cart"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CartService puts the product catalog in front of cart.Store so cart lines
// always carry server prices and current stock.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, *ServiceError)
	Count(ctx context.Context, userID string) (*models.CartCount, *ServiceError)
	AddItem(ctx context.Context, userID string, req *models.AddCartItemRequest) (*cart.Cart, *ServiceError)
	UpdateItem(ctx context.Context, userID, productID string, qty int) (*cart.Cart, *ServiceError)
	RemoveItem(ctx context.Context, userID, productID string) (*cart.Cart, *ServiceError)
	Clear(ctx context.Context, userID string) *ServiceError
	Total(ctx context.Context, userID string, selectedIDs []string) (*models.CartTotal, *ServiceError)
	StageCheckout(ctx context.Context, userID string, selectedIDs []string) ([]cart.Item, *ServiceError)
	TakeCheckout(ctx context.Context, userID string) ([]cart.Item, *ServiceError)
}

type cartService struct {
	store    cart.Store
	products repository.ProductRepository
	logger   *zap.Logger
}

func NewCartService(store cart.Store, products repository.ProductRepository, logger *zap.Logger) CartService {
	return &cartService{store: store, products: products, logger: logger}
}

func (s *cartService) GetCart(ctx context.Context, userID string) (*cart.Cart, *ServiceError) {
	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, s.storeError("get cart", err)
	}
	return c, nil
}

func (s *cartService) Count(ctx context.Context, userID string) (*models.CartCount, *ServiceError) {
	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, s.storeError("count cart", err)
	}
	return &models.CartCount{ItemCount: len(c.Items), Quantity: c.Quantity()}, nil
}

func (s *cartService) AddItem(ctx context.Context, userID string, req *models.AddCartItemRequest) (*cart.Cart, *ServiceError) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid product ID"}
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Product not found"}
		}
		s.logger.Error("Failed to load product for cart", zap.String("product_id", req.ProductID), zap.Error(err))
		return nil, errInternal("Failed to add item to cart")
	}

	c, err := s.store.Add(ctx, userID, cart.Item{
		ProductID: product.ID.String(),
		Name:      product.Name,
		Price:     product.Price,
		Image:     product.Image,
		Category:  product.Category,
		Stock:     product.Stock,
	}, req.Quantity)
	if err != nil {
		return nil, s.storeError("add item", err)
	}
	return c, nil
}

func (s *cartService) UpdateItem(ctx context.Context, userID, productID string, qty int) (*cart.Cart, *ServiceError) {
	c, err := s.store.Update(ctx, userID, productID, qty)
	if err != nil {
		return nil, s.storeError("update item", err)
	}
	return c, nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID, productID string) (*cart.Cart, *ServiceError) {
	c, err := s.store.Remove(ctx, userID, productID)
	if err != nil {
		return nil, s.storeError("remove item", err)
	}
	return c, nil
}

func (s *cartService) Clear(ctx context.Context, userID string) *ServiceError {
	if err := s.store.Clear(ctx, userID); err != nil {
		return s.storeError("clear cart", err)
	}
	return nil
}

func (s *cartService) Total(ctx context.Context, userID string, selectedIDs []string) (*models.CartTotal, *ServiceError) {
	total, err := s.store.Total(ctx, userID, selectedIDs)
	if err != nil {
		return nil, s.storeError("total cart", err)
	}
	return &models.CartTotal{SelectedIDs: selectedIDs, Total: total}, nil
}

func (s *cartService) StageCheckout(ctx context.Context, userID string, selectedIDs []string) ([]cart.Item, *ServiceError) {
	items, err := s.store.StageCheckout(ctx, userID, selectedIDs)
	if err != nil {
		return nil, s.storeError("stage checkout", err)
	}
	return items, nil
}

func (s *cartService) TakeCheckout(ctx context.Context, userID string) ([]cart.Item, *ServiceError) {
	items, err := s.store.TakeCheckout(ctx, userID)
	if err != nil {
		return nil, s.storeError("take checkout", err)
	}
	return items, nil
}

func (s *cartService) storeError(op string, err error) *ServiceError {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		return &ServiceError{StatusCode: 400, Message: "Quantity must be at least 1"}
	case errors.Is(err, cart.ErrOutOfStock):
		return &ServiceError{StatusCode: 400, Message: "Product is out of stock"}
	case errors.Is(err, cart.ErrEmptySelection):
		return &ServiceError{StatusCode: 400, Message: "No cart items selected"}
	case errors.Is(err, cart.ErrItemNotFound):
		return &ServiceError{StatusCode: 404, Message: "Item not in cart"}
	case errors.Is(err, cart.ErrNothingStaged):
		return &ServiceError{StatusCode: 404, Message: "No checkout in progress"}
	case errors.Is(err, cart.ErrConflict):
		return &ServiceError{StatusCode: 409, Message: "Cart was modified, please retry"}
	}
	s.logger.Error("Cart store failed", zap.String("op", op), zap.Error(err))
	return errInternal("Cart is unavailable")
}
