package models

import "time"

// Domain event types published on the events bus.
const (
	EventOrderCreated         = "order_created"
	EventPaymentStatusChanged = "payment_status_changed"
	EventVoucherRedeemed      = "voucher_redeemed"
	EventCartUpdated          = "cart_updated"
)

type OrderCreatedEvent struct {
	EventType   string    `json:"event_type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	Total       int64     `json:"total"`
	ItemCount   int       `json:"item_count"`
	VoucherCode string    `json:"voucher_code,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type PaymentStatusChangedEvent struct {
	EventType     string    `json:"event_type"`
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PaymentType   string    `json:"payment_type,omitempty"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

type VoucherRedeemedEvent struct {
	EventType      string    `json:"event_type"`
	VoucherID      string    `json:"voucher_id"`
	VoucherCode    string    `json:"voucher_code"`
	OrderID        string    `json:"order_id"`
	DiscountAmount int64     `json:"discount_amount"`
	Timestamp      time.Time `json:"timestamp"`
}

// CartUpdatedEvent carries the header badge numbers after a cart mutation.
type CartUpdatedEvent struct {
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id"`
	ItemCount int       `json:"item_count"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}
