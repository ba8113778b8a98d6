package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	aws_pkg "github.com/bloomsisters/storefront/backend/pkg/aws"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/cart"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/checkout"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/events"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/gateway"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sources recorded on payment_status_changed events.
const (
	SourceManualSync   = "manual_sync"
	SourceBackground   = "background_sync"
	SourceNotification = "notification"
	SourceQueue        = "queue"
)

const itemNameLimit = 50

type PaymentConfig struct {
	ServerKey string
	FinishURL string
	BatchSize int
	Delay     time.Duration
}

type PaymentService interface {
	CreatePayment(ctx context.Context, orderID string, userID uuid.UUID) (*models.PaymentTokenResponse, *ServiceError)
	SyncOrder(ctx context.Context, orderID string, userID uuid.UUID, isAdmin bool) (*models.Order, *ServiceError)
	HandleNotification(ctx context.Context, n *gateway.TransactionStatus, source string) *ServiceError
	SyncPending(ctx context.Context) int
	ReportWidgetResult(ctx context.Context, userID uuid.UUID, req *models.PaymentResultRequest) (*checkout.Resolution, *ServiceError)
	GetWidgetStatus(ctx context.Context, orderID string, userID uuid.UUID) (*checkout.Attempt, *ServiceError)
}

type paymentService struct {
	tx      repository.TxManager
	orders  repository.OrderRepository
	gateway gateway.Client
	tracker *checkout.Tracker
	cart    cart.Store
	events  events.Publisher
	metrics aws_pkg.MetricsRecorder
	cfg     PaymentConfig
	logger  *zap.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration)
}

func NewPaymentService(
	tx repository.TxManager,
	orders repository.OrderRepository,
	client gateway.Client,
	tracker *checkout.Tracker,
	cartStore cart.Store,
	publisher events.Publisher,
	metrics aws_pkg.MetricsRecorder,
	cfg PaymentConfig,
	logger *zap.Logger,
) PaymentService {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &paymentService{
		tx:      tx,
		orders:  orders,
		gateway: client,
		tracker: tracker,
		cart:    cartStore,
		events:  publisher,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// CreatePayment mints a Snap token for the caller's PENDING order, or returns
// the token minted earlier.
func (s *paymentService) CreatePayment(ctx context.Context, orderID string, userID uuid.UUID) (*models.PaymentTokenResponse, *ServiceError) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid order ID"}
	}

	var (
		order    *models.Order
		minted   bool
		rejected *ServiceError
	)
	// The order row stays locked across the gateway call so concurrent
	// requests for one order mint a single token.
	err = s.tx.WithTx(ctx, func(repos repository.Repositories) error {
		o, err := repos.Orders.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return gorm.ErrRecordNotFound
		}
		order = o

		if o.Status != models.OrderStatusPending || o.PaymentStatus != models.PaymentStatusPending {
			rejected = &ServiceError{StatusCode: 400, Message: "Order is not awaiting payment"}
			return nil
		}
		if o.Total <= 0 {
			rejected = &ServiceError{StatusCode: 400, Message: "Order has nothing to pay"}
			return nil
		}
		if o.PaymentToken != "" {
			return nil
		}

		snap, err := s.gateway.CreateTransaction(ctx, buildSnapRequest(o, s.cfg.FinishURL))
		if err != nil {
			s.logger.Error("Payment gateway rejected transaction", zap.String("order_id", orderID), zap.Error(err))
			recordCount(s.metrics, aws_pkg.MetricGatewayErrors, map[string]string{"Operation": "CreateTransaction"})
			rejected = &ServiceError{StatusCode: 502, Message: "Payment gateway is unavailable, please try again"}
			return nil
		}
		o.PaymentToken = snap.Token
		o.PaymentURL = snap.RedirectURL
		minted = true
		return repos.Orders.UpdateFields(ctx, o.ID, map[string]interface{}{
			"payment_token": snap.Token,
			"payment_url":   snap.RedirectURL,
			"updated_at":    s.now(),
		})
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to create payment", zap.String("order_id", orderID), zap.Error(err))
		return nil, errInternal("Failed to create payment")
	}
	if rejected != nil {
		return nil, rejected
	}

	s.openAttempt(order, userID)
	if minted {
		recordCount(s.metrics, aws_pkg.MetricPaymentTokensIssued, nil)
		s.logger.Info("Payment token issued", zap.String("order_id", orderID), zap.Int64("gross_amount", order.Total))
	}
	return &models.PaymentTokenResponse{OrderID: order.ID, Token: order.PaymentToken, RedirectURL: order.PaymentURL}, nil
}

func (s *paymentService) openAttempt(order *models.Order, userID uuid.UUID) {
	if _, err := s.tracker.Open(order.ID.String(), userID.String(), order.PaymentToken); err != nil {
		s.logger.Debug("Payment widget not reopened", zap.String("order_id", order.ID.String()), zap.Error(err))
	}
}

// buildSnapRequest itemizes the order so the line items add up to
// gross_amount, which the gateway requires.
func buildSnapRequest(order *models.Order, finishURL string) *gateway.SnapRequest {
	items := make([]gateway.ItemDetail, 0, len(order.Items)+3)
	var sum int64
	for _, it := range order.Items {
		items = append(items, gateway.ItemDetail{
			ID:       it.ProductID.String(),
			Name:     truncate(it.Name, itemNameLimit),
			Price:    it.Price,
			Quantity: it.Quantity,
		})
		sum += it.Price * int64(it.Quantity)
	}
	if order.ShippingFee > 0 {
		items = append(items, gateway.ItemDetail{ID: "SHIPPING", Name: "Shipping Fee", Price: order.ShippingFee, Quantity: 1})
		sum += order.ShippingFee
	}
	if order.VoucherDiscount > 0 {
		items = append(items, gateway.ItemDetail{
			ID:       "DISCOUNT",
			Name:     truncate("Voucher "+order.VoucherCode, itemNameLimit),
			Price:    -order.VoucherDiscount,
			Quantity: 1,
		})
		sum -= order.VoucherDiscount
	}
	if diff := order.Total - sum; diff != 0 {
		items = append(items, gateway.ItemDetail{ID: "ADJUSTMENT", Name: "Adjustment", Price: diff, Quantity: 1})
	}

	req := &gateway.SnapRequest{
		TransactionDetails: gateway.TransactionDetails{OrderID: order.ID.String(), GrossAmount: order.Total},
		ItemDetails:        items,
		CustomerDetails: &gateway.CustomerDetails{
			FirstName: order.CustomerName,
			Email:     order.CustomerEmail,
			Phone:     order.CustomerPhone,
			ShippingAddress: &gateway.Address{
				FirstName:   order.CustomerName,
				Phone:       order.CustomerPhone,
				Address:     order.ShippingAddress,
				City:        order.City,
				PostalCode:  order.PostalCode,
				CountryCode: "IDN",
			},
		},
	}
	if finishURL != "" {
		req.Callbacks = &gateway.Callbacks{Finish: finishURL}
	}
	return req
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// SyncOrder re-queries the gateway for one order and applies the answer.
func (s *paymentService) SyncOrder(ctx context.Context, orderID string, userID uuid.UUID, isAdmin bool) (*models.Order, *ServiceError) {
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
		s.logger.Error("Failed to load order for sync", zap.String("order_id", orderID), zap.Error(err))
		return nil, errInternal("Failed to sync payment status")
	}
	if order.PaymentToken == "" {
		return order, nil
	}

	if err := s.syncOne(ctx, order.ID, SourceManualSync); err != nil {
		if errors.Is(err, errApply) {
			return nil, errInternal("Failed to sync payment status")
		}
		return nil, &ServiceError{StatusCode: 502, Message: "Payment gateway is unavailable, please try again"}
	}

	updated, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, errInternal("Failed to sync payment status")
	}
	return updated, nil
}

var errApply = errors.New("apply payment status")

// syncOne fetches the gateway status and applies it. A transaction the
// gateway does not know yet only refreshes last_synced_at.
func (s *paymentService) syncOne(ctx context.Context, orderID uuid.UUID, source string) error {
	status, err := s.gateway.GetStatus(ctx, orderID.String())
	if errors.Is(err, gateway.ErrTransactionNotFound) {
		if uerr := s.orders.UpdateFields(ctx, orderID, map[string]interface{}{"last_synced_at": s.now()}); uerr != nil {
			return fmt.Errorf("%w: %v", errApply, uerr)
		}
		return nil
	}
	if err != nil {
		recordCount(s.metrics, aws_pkg.MetricGatewayErrors, map[string]string{"Operation": "GetStatus"})
		s.logger.Warn("Payment status query failed", zap.String("order_id", orderID.String()), zap.Error(err))
		return err
	}

	if err := s.applyStatus(ctx, orderID, status, source); err != nil {
		s.logger.Error("Failed to apply payment status", zap.String("order_id", orderID.String()), zap.Error(err))
		return fmt.Errorf("%w: %v", errApply, err)
	}
	return nil
}

// HandleNotification verifies and applies a gateway notification.
func (s *paymentService) HandleNotification(ctx context.Context, n *gateway.TransactionStatus, source string) *ServiceError {
	if !gateway.VerifySignature(n, s.cfg.ServerKey) {
		s.logger.Warn("Rejected payment notification with invalid signature", zap.String("order_id", n.OrderID), zap.String("source", source))
		return &ServiceError{StatusCode: 401, Message: "Invalid signature"}
	}

	id, err := uuid.Parse(n.OrderID)
	if err != nil {
		return &ServiceError{StatusCode: 404, Message: "Order not found"}
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to load order for notification", zap.String("order_id", n.OrderID), zap.Error(err))
		return errInternal("Failed to process notification")
	}

	gross, err := gateway.ParseGrossAmount(n.GrossAmount)
	if err != nil {
		return &ServiceError{StatusCode: 400, Message: "Invalid gross amount"}
	}
	if gross != order.Total {
		s.logger.Warn("Payment notification amount mismatch",
			zap.String("order_id", n.OrderID),
			zap.Int64("gross_amount", gross),
			zap.Int64("order_total", order.Total))
		return &ServiceError{StatusCode: 400, Message: "Gross amount does not match order total"}
	}

	if err := s.applyStatus(ctx, id, n, source); err != nil {
		s.logger.Error("Failed to apply payment notification", zap.String("order_id", n.OrderID), zap.Error(err))
		return errInternal("Failed to process notification")
	}
	return nil
}

// applyStatus locks the order and applies the gateway state. Terminal
// orders and repeated states only refresh last_synced_at. Cancellation
// restores stock in the same transaction.
func (s *paymentService) applyStatus(ctx context.Context, orderID uuid.UUID, st *gateway.TransactionStatus, source string) error {
	effect := resolveGatewayStatus(st.TransactionStatus, st.FraudStatus)

	var (
		changed bool
		result  models.Order
	)
	err := s.tx.WithTx(ctx, func(repos repository.Repositories) error {
		order, err := repos.Orders.LockByID(ctx, orderID)
		if err != nil {
			return err
		}

		now := s.now()
		fields := map[string]interface{}{"last_synced_at": now, "updated_at": now}
		if order.Status.IsTerminal() {
			return repos.Orders.UpdateFields(ctx, orderID, fields)
		}

		if effect.PaymentStatus != "" && effect.PaymentStatus != order.PaymentStatus {
			fields["payment_status"] = effect.PaymentStatus
			order.PaymentStatus = effect.PaymentStatus
			changed = true
		}
		if st.PaymentType != "" && st.PaymentType != order.PaymentType {
			fields["payment_type"] = st.PaymentType
			order.PaymentType = st.PaymentType
		}

		switch {
		case effect.Paid:
			if order.Status == models.OrderStatusPending {
				fields["status"] = models.OrderStatusProcessing
				order.Status = models.OrderStatusProcessing
				changed = true
			}
			if order.PaidAt == nil {
				fields["paid_at"] = now
			}
		case effect.Cancel:
			if order.Status == models.OrderStatusPending {
				fields["status"] = models.OrderStatusCancelled
				fields["cancelled_at"] = now
				order.Status = models.OrderStatusCancelled
				changed = true
				if err := restock(ctx, repos.Products, order); err != nil {
					return err
				}
			}
		}

		if err := repos.Orders.UpdateFields(ctx, orderID, fields); err != nil {
			return err
		}
		result = *order
		return nil
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.logger.Info("Payment status applied",
		zap.String("order_id", orderID.String()),
		zap.String("status", string(result.Status)),
		zap.String("payment_status", result.PaymentStatus),
		zap.String("source", source))

	switch {
	case effect.Paid:
		recordCount(s.metrics, aws_pkg.MetricPaymentSettled, map[string]string{"Source": source})
	case effect.Cancel:
		recordCount(s.metrics, aws_pkg.MetricPaymentCancelled, map[string]string{"Source": source})
	}

	s.events.Publish(ctx, models.EventPaymentStatusChanged, orderID.String(), models.PaymentStatusChangedEvent{
		EventType:     models.EventPaymentStatusChanged,
		OrderID:       orderID.String(),
		Status:        string(result.Status),
		PaymentStatus: result.PaymentStatus,
		PaymentType:   result.PaymentType,
		Source:        source,
		Timestamp:     s.now(),
	})
	return nil
}

// SyncPending polls the gateway for unsettled orders. Each batch runs
// concurrently, with the configured delay between batches. It returns the
// number of orders synced without error.
func (s *paymentService) SyncPending(ctx context.Context) int {
	orders, err := s.orders.FindPendingPayments(ctx, s.cfg.BatchSize*20)
	if err != nil {
		s.logger.Error("Failed to load pending payments", zap.Error(err))
		return 0
	}
	if len(orders) == 0 {
		return 0
	}

	var (
		mu     sync.Mutex
		synced int
	)
	for start := 0; start < len(orders); start += s.cfg.BatchSize {
		if ctx.Err() != nil {
			break
		}
		if start > 0 {
			s.sleep(ctx, s.cfg.Delay)
		}

		end := start + s.cfg.BatchSize
		if end > len(orders) {
			end = len(orders)
		}

		var wg sync.WaitGroup
		for _, o := range orders[start:end] {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				if err := s.syncOne(ctx, id, SourceBackground); err != nil {
					return
				}
				mu.Lock()
				synced++
				mu.Unlock()
			}(o.ID)
		}
		wg.Wait()
	}

	s.logger.Info("Background payment sync finished", zap.Int("pending", len(orders)), zap.Int("synced", synced))
	return synced
}

// ReportWidgetResult resolves the caller's widget attempt. An order that
// already has a token but no tracked attempt (e.g. after a restart) gets one
// opened first.
func (s *paymentService) ReportWidgetResult(ctx context.Context, userID uuid.UUID, req *models.PaymentResultRequest) (*checkout.Resolution, *ServiceError) {
	orderID := req.OrderID.String()
	outcome := checkout.Outcome(req.Outcome)

	res, err := s.tracker.Resolve(orderID, userID.String(), outcome)
	if errors.Is(err, checkout.ErrNoAttempt) {
		order, lerr := s.orders.FindByIDAndUserID(ctx, req.OrderID, userID)
		if lerr != nil {
			if errors.Is(lerr, gorm.ErrRecordNotFound) {
				return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
			}
			return nil, errInternal("Failed to record payment result")
		}
		if order.PaymentToken == "" {
			return nil, &ServiceError{StatusCode: 409, Message: "Payment has not been started for this order"}
		}
		s.openAttempt(order, userID)
		res, err = s.tracker.Resolve(orderID, userID.String(), outcome)
	}
	if err != nil {
		return nil, widgetError(err)
	}

	if res.ClearCart {
		if cerr := s.cart.Clear(ctx, userID.String()); cerr != nil {
			s.logger.Warn("Failed to clear cart after payment", zap.String("order_id", orderID), zap.Error(cerr))
		}
	}
	s.logger.Info("Payment widget resolved", zap.String("order_id", orderID), zap.String("state", string(res.State)))
	return &res, nil
}

func (s *paymentService) GetWidgetStatus(ctx context.Context, orderID string, userID uuid.UUID) (*checkout.Attempt, *ServiceError) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: "Invalid order ID"}
	}

	attempt, err := s.tracker.Status(orderID, userID.String())
	if errors.Is(err, checkout.ErrNoAttempt) {
		if _, lerr := s.orders.FindByIDAndUserID(ctx, id, userID); lerr != nil {
			if errors.Is(lerr, gorm.ErrRecordNotFound) {
				return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
			}
			return nil, errInternal("Failed to get payment status")
		}
		return &checkout.Attempt{OrderID: orderID, State: checkout.StateIdle}, nil
	}
	if err != nil {
		return nil, widgetError(err)
	}
	return &attempt, nil
}

func widgetError(err error) *ServiceError {
	switch {
	case errors.Is(err, checkout.ErrNotOwner), errors.Is(err, checkout.ErrNoAttempt):
		return &ServiceError{StatusCode: 404, Message: "Order not found"}
	case errors.Is(err, checkout.ErrInvalidTransition):
		return &ServiceError{StatusCode: 409, Message: "Payment widget already resolved"}
	case errors.Is(err, checkout.ErrUnknownOutcome):
		return &ServiceError{StatusCode: 400, Message: "Unknown payment outcome"}
	}
	return errInternal("Failed to record payment result")
}
