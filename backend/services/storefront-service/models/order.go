package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusCompleted},
}

// IsTerminal reports whether no further status change is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an admin may move an order from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Payment status values mirror the gateway transaction_status, upper-cased.
const (
	PaymentStatusPending    = "PENDING"
	PaymentStatusSettlement = "SETTLEMENT"
	PaymentStatusCapture    = "CAPTURE"
	PaymentStatusDeny       = "DENY"
	PaymentStatusCancel     = "CANCEL"
	PaymentStatusExpire     = "EXPIRE"
	PaymentStatusFailure    = "FAILURE"
	PaymentStatusRefund     = "REFUND"
)

// Order is an immutable snapshot of what was bought plus its payment and
// fulfilment state. Money is whole IDR.
type Order struct {
	ID              uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber     string      `gorm:"type:varchar(32);uniqueIndex;not null" json:"orderNumber"`
	UserID          uuid.UUID   `gorm:"type:uuid;not null;index" json:"userId"`
	Items           []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Subtotal        int64       `gorm:"not null" json:"subtotal"`
	ShippingFee     int64       `gorm:"not null;default:0" json:"shippingFee"`
	VoucherID       *uuid.UUID  `gorm:"type:uuid" json:"voucherId,omitempty"`
	VoucherCode     string      `gorm:"type:varchar(64)" json:"voucherCode,omitempty"`
	VoucherDiscount int64       `gorm:"not null;default:0" json:"voucherDiscount"`
	Total           int64       `gorm:"not null" json:"total"`
	Status          OrderStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	PaymentStatus   string      `gorm:"type:varchar(30);not null;default:'PENDING';index" json:"paymentStatus"`
	PaymentToken    string      `gorm:"type:varchar(255)" json:"paymentToken,omitempty"`
	PaymentURL      string      `gorm:"type:varchar(512)" json:"paymentUrl,omitempty"`
	PaymentType     string      `gorm:"type:varchar(50)" json:"paymentType,omitempty"`

	CustomerName    string `gorm:"type:varchar(255);not null" json:"customerName"`
	CustomerEmail   string `gorm:"type:varchar(255);not null" json:"customerEmail"`
	CustomerPhone   string `gorm:"type:varchar(32);not null" json:"customerPhone"`
	ShippingAddress string `gorm:"type:text;not null" json:"shippingAddress"`
	City            string `gorm:"type:varchar(100);not null" json:"city"`
	PostalCode      string `gorm:"type:varchar(10);not null" json:"postalCode"`
	Notes           string `gorm:"type:text" json:"notes,omitempty"`

	PaidAt       *time.Time `json:"paidAt,omitempty"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// OrderItem snapshots the product name and server price at order time.
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"orderId"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"productId"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Price     int64     `gorm:"not null" json:"price"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// OrderItemRequest is one line of a checkout. Price is what the client saw;
// the stored price always comes from the product row.
type OrderItemRequest struct {
	ProductID uuid.UUID `json:"productId" binding:"required"`
	Price     int64     `json:"price" binding:"gte=0"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest is the checkout payload. Client totals are informational.
type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	Subtotal        int64              `json:"subtotal"`
	ShippingFee     int64              `json:"shippingFee"`
	Total           int64              `json:"total"`
	VoucherID       *uuid.UUID         `json:"voucherId"`
	VoucherCode     string             `json:"voucherCode"`
	CustomerName    string             `json:"customerName" binding:"required,max=255"`
	CustomerEmail   string             `json:"customerEmail" binding:"required,email"`
	CustomerPhone   string             `json:"customerPhone" binding:"required,min=6,max=32"`
	ShippingAddress string             `json:"shippingAddress" binding:"required"`
	City            string             `json:"city" binding:"required"`
	PostalCode      string             `json:"postalCode" binding:"required,max=10"`
	Notes           string             `json:"notes"`
}

// InsufficientStockItem names one rejected line of an order.
type InsufficientStockItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required,oneof=PENDING PROCESSING SHIPPED DELIVERED COMPLETED CANCELLED"`
}

type OrderList struct {
	Orders []Order  `json:"orders"`
	Meta   ListMeta `json:"meta"`
}

type CreatePaymentRequest struct {
	OrderID uuid.UUID `json:"orderId" binding:"required"`
}

// PaymentTokenResponse is what the widget needs to open.
type PaymentTokenResponse struct {
	OrderID     uuid.UUID `json:"orderId"`
	Token       string    `json:"token"`
	RedirectURL string    `json:"redirectUrl"`
}
