package models

import "github.com/google/uuid"

// PaymentResultRequest reports a payment widget callback.
type PaymentResultRequest struct {
	OrderID uuid.UUID `json:"orderId" binding:"required"`
	Outcome string    `json:"outcome" binding:"required,oneof=success pending error closed"`
}
