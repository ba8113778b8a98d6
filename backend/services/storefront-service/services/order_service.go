package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	aws_pkg "github.com/bloomsisters/storefront/backend/pkg/aws"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/cart"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/events"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	FreeShippingThreshold int64 = 500000
	FlatShippingFee       int64 = 15000
)

// ShippingFee is flat below the free-shipping threshold.
func ShippingFee(subtotal int64) int64 {
	if subtotal < FreeShippingThreshold {
		return FlatShippingFee
	}
	return 0
}

// OrderNumber renders the human-facing order reference, e.g. BS-20240131-1A2B3C4D.
func OrderNumber(id uuid.UUID, at time.Time) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return fmt.Sprintf("BS-%s-%s", at.Format("20060102"), strings.ToUpper(hex[:8]))
}

type OrderService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, req *models.CreateOrderRequest) (*models.Order, *ServiceError)
	GetOrder(ctx context.Context, orderID string, userID uuid.UUID, isAdmin bool) (*models.Order, *ServiceError)
	ListUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*models.OrderList, *ServiceError)
	ListAllOrders(ctx context.Context, page, limit int, status string) (*models.OrderList, *ServiceError)
	UpdateStatus(ctx context.Context, orderID string, next models.OrderStatus) (*models.Order, *ServiceError)
}

type orderService struct {
	tx      repository.TxManager
	orders  repository.OrderRepository
	cart    cart.Store
	events  events.Publisher
	metrics aws_pkg.MetricsRecorder
	logger  *zap.Logger
	now     func() time.Time
}

func NewOrderService(
	tx repository.TxManager,
	orders repository.OrderRepository,
	cartStore cart.Store,
	publisher events.Publisher,
	metrics aws_pkg.MetricsRecorder,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		tx:      tx,
		orders:  orders,
		cart:    cartStore,
		events:  publisher,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// mergeLines folds duplicate product lines, keeping first-seen order.
func mergeLines(items []models.OrderItemRequest) ([]uuid.UUID, map[uuid.UUID]int) {
	ids := make([]uuid.UUID, 0, len(items))
	qty := make(map[uuid.UUID]int, len(items))
	for _, it := range items {
		if _, seen := qty[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		qty[it.ProductID] += it.Quantity
	}
	return ids, qty
}

// CreateOrder locks the ordered products, prices the order from server data
// and persists it together with the stock and voucher usage changes. Any
// failure leaves no order and no stock change behind.
func (s *orderService) CreateOrder(ctx context.Context, userID uuid.UUID, req *models.CreateOrderRequest) (*models.Order, *ServiceError) {
	ids, quantities := mergeLines(req.Items)
	now := s.now()

	var order *models.Order
	err := s.tx.WithTx(ctx, func(repos repository.Repositories) error {
		products, err := repos.Products.LockByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		byID := make(map[uuid.UUID]models.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		var shortages []models.InsufficientStockItem
		for _, id := range ids {
			p, ok := byID[id]
			if !ok {
				return &ServiceError{StatusCode: 404, Message: "Product not found", Details: map[string]string{"productId": id.String()}}
			}
			if quantities[id] > p.Stock {
				shortages = append(shortages, models.InsufficientStockItem{
					ProductID: id.String(),
					Name:      p.Name,
					Requested: quantities[id],
					Available: p.Stock,
				})
			}
		}
		if len(shortages) > 0 {
			return &ServiceError{StatusCode: 400, Message: "Insufficient stock", Details: shortages}
		}

		orderID := uuid.New()
		items := make([]models.OrderItem, 0, len(ids))
		var subtotal int64
		for _, id := range ids {
			p := byID[id]
			subtotal += p.Price * int64(quantities[id])
			items = append(items, models.OrderItem{
				ID:        uuid.New(),
				OrderID:   orderID,
				ProductID: id,
				Name:      p.Name,
				Price:     p.Price,
				Quantity:  quantities[id],
			})
		}
		shipping := ShippingFee(subtotal)

		voucher, discount, verr := s.applyVoucher(ctx, repos.Vouchers, req, subtotal, now)
		if verr != nil {
			return verr
		}

		total := subtotal + shipping - discount
		if total < 0 {
			total = 0
		}

		order = &models.Order{
			ID:              orderID,
			OrderNumber:     OrderNumber(orderID, now),
			UserID:          userID,
			Items:           items,
			Subtotal:        subtotal,
			ShippingFee:     shipping,
			VoucherDiscount: discount,
			Total:           total,
			Status:          models.OrderStatusPending,
			PaymentStatus:   models.PaymentStatusPending,
			CustomerName:    strings.TrimSpace(req.CustomerName),
			CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
			CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
			ShippingAddress: strings.TrimSpace(req.ShippingAddress),
			City:            strings.TrimSpace(req.City),
			PostalCode:      strings.TrimSpace(req.PostalCode),
			Notes:           req.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if voucher != nil {
			order.VoucherID = &voucher.ID
			order.VoucherCode = voucher.Code
		}

		if err := repos.Orders.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, it := range items {
			if err := repos.Products.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return &ServiceError{StatusCode: 400, Message: "Insufficient stock", Details: []models.InsufficientStockItem{{
						ProductID: it.ProductID.String(),
						Name:      it.Name,
						Requested: it.Quantity,
						Available: byID[it.ProductID].Stock,
					}}}
				}
				return fmt.Errorf("decrement stock: %w", err)
			}
		}

		if voucher != nil {
			if err := repos.Vouchers.IncrementUsedCount(ctx, voucher.ID); err != nil {
				if errors.Is(err, repository.ErrVoucherExhausted) {
					return voucherRejection(ErrVoucherUsage)
				}
				return fmt.Errorf("increment voucher usage: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		var serr *ServiceError
		if errors.As(err, &serr) {
			if _, stock := serr.Details.([]models.InsufficientStockItem); stock {
				recordCount(s.metrics, aws_pkg.MetricOrdersRejected, nil)
			}
			s.logger.Info("Order rejected", zap.String("user_id", userID.String()), zap.String("reason", serr.Message))
			return nil, serr
		}
		s.logger.Error("Failed to create order", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, errInternal("Failed to create order")
	}

	if req.Total != 0 && req.Total != order.Total {
		s.logger.Debug("Client total differs from server total",
			zap.String("order_id", order.ID.String()),
			zap.Int64("client_total", req.Total),
			zap.Int64("server_total", order.Total))
	}

	s.afterCreate(ctx, order, ids)
	return order, nil
}

// applyVoucher resolves the voucher by id or code and prices it against the
// server subtotal. It returns a nil voucher when none was requested.
func (s *orderService) applyVoucher(ctx context.Context, vouchers repository.VoucherRepository, req *models.CreateOrderRequest, subtotal int64, now time.Time) (*models.Voucher, int64, *ServiceError) {
	var (
		voucher *models.Voucher
		err     error
	)
	switch {
	case req.VoucherID != nil:
		voucher, err = vouchers.FindByID(ctx, *req.VoucherID)
	case strings.TrimSpace(req.VoucherCode) != "":
		code, ferr := NormalizeVoucherCode(req.VoucherCode)
		if ferr != nil {
			return nil, 0, voucherRejection(ferr)
		}
		voucher, err = vouchers.FindByCode(ctx, code)
	default:
		return nil, 0, nil
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, voucherRejection(ErrVoucherNotFound)
		}
		s.logger.Error("Failed to load voucher", zap.Error(err))
		return nil, 0, errInternal("Failed to create order")
	}

	discount, err := EvaluateVoucher(voucher, subtotal, now)
	if err != nil {
		return nil, 0, voucherRejection(err)
	}
	return voucher, discount, nil
}

func (s *orderService) afterCreate(ctx context.Context, order *models.Order, productIDs []uuid.UUID) {
	ids := make([]string, len(productIDs))
	for i, id := range productIDs {
		ids[i] = id.String()
	}
	if _, err := s.cart.Remove(ctx, order.UserID.String(), ids...); err != nil {
		s.logger.Warn("Failed to remove ordered items from cart",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", order.UserID.String()),
		zap.Int64("total", order.Total))

	s.events.Publish(ctx, models.EventOrderCreated, order.ID.String(), models.OrderCreatedEvent{
		EventType:   models.EventOrderCreated,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID.String(),
		Total:       order.Total,
		ItemCount:   len(order.Items),
		VoucherCode: order.VoucherCode,
		Timestamp:   order.CreatedAt,
	})
	if order.VoucherID != nil {
		s.events.Publish(ctx, models.EventVoucherRedeemed, order.VoucherID.String(), models.VoucherRedeemedEvent{
			EventType:      models.EventVoucherRedeemed,
			VoucherID:      order.VoucherID.String(),
			VoucherCode:    order.VoucherCode,
			OrderID:        order.ID.String(),
			DiscountAmount: order.VoucherDiscount,
			Timestamp:      s.now(),
		})
	}
	recordCount(s.metrics, aws_pkg.MetricOrdersCreated, nil)
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, userID uuid.UUID, isAdmin bool) (*models.Order, *ServiceError) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid order ID"}
	}

	var order *models.Order
	if isAdmin {
		order, err = s.orders.FindByID(ctx, id)
	} else {
		order, err = s.orders.FindByIDAndUserID(ctx, id, userID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to get order", zap.String("order_id", orderID), zap.Error(err))
		return nil, errInternal("Failed to get order")
	}
	return order, nil
}

func (s *orderService) ListUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*models.OrderList, *ServiceError) {
	orders, total, err := s.orders.FindByUserID(ctx, userID, page, limit)
	if err != nil {
		s.logger.Error("Failed to list user orders", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, errInternal("Failed to list orders")
	}
	return &models.OrderList{Orders: orders, Meta: models.NewListMeta(page, limit, total)}, nil
}

func (s *orderService) ListAllOrders(ctx context.Context, page, limit int, status string) (*models.OrderList, *ServiceError) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && !models.OrderStatus(status).Valid() {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid order status", Details: map[string]string{"status": status}}
	}
	orders, total, err := s.orders.FindAll(ctx, page, limit, status)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		return nil, errInternal("Failed to list orders")
	}
	return &models.OrderList{Orders: orders, Meta: models.NewListMeta(page, limit, total)}, nil
}

// UpdateStatus moves an order along the fulfilment transition table.
// Cancelling restores the stock of every line in the same transaction.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, next models.OrderStatus) (*models.Order, *ServiceError) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid order ID"}
	}

	err = s.tx.WithTx(ctx, func(repos repository.Repositories) error {
		order, err := repos.Orders.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return &ServiceError{
				StatusCode: 400,
				Message:    fmt.Sprintf("Cannot change order status from %s to %s", order.Status, next),
			}
		}

		now := s.now()
		fields := map[string]interface{}{"status": next, "updated_at": now}
		if next == models.OrderStatusCancelled {
			fields["cancelled_at"] = now
			if err := restock(ctx, repos.Products, order); err != nil {
				return err
			}
		}
		return repos.Orders.UpdateFields(ctx, id, fields)
	})
	if err != nil {
		var serr *ServiceError
		if errors.As(err, &serr) {
			return nil, serr
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to update order status", zap.String("order_id", orderID), zap.Error(err))
		return nil, errInternal("Failed to update order status")
	}

	s.logger.Info("Order status updated", zap.String("order_id", orderID), zap.String("status", string(next)))

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to reload order", zap.String("order_id", orderID), zap.Error(err))
		return nil, errInternal("Failed to update order status")
	}
	return order, nil
}

// restock returns every line's quantity to its product.
func restock(ctx context.Context, products repository.ProductRepository, order *models.Order) error {
	for _, it := range order.Items {
		if err := products.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			return fmt.Errorf("restock %s: %w", it.ProductID, err)
		}
	}
	return nil
}
