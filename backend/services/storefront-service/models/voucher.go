package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoucherType selects how Discount is interpreted.
type VoucherType string

const (
	// Discount is a percentage of the cart total, optionally capped by MaxDiscount.
	VoucherTypePercentage VoucherType = "PERCENTAGE"
	// Discount is an IDR amount, capped by the cart total.
	VoucherTypeFixed VoucherType = "FIXED"
)

// Voucher is an admin-managed discount code. Nil optional fields mean "no limit".
type Voucher struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code        string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Discount    int64          `gorm:"not null" json:"discount"`
	Type        VoucherType    `gorm:"type:varchar(20);not null" json:"type"`
	MinPurchase *int64         `json:"minPurchase,omitempty"`
	MaxDiscount *int64         `json:"maxDiscount,omitempty"`
	ExpiryDate  *time.Time     `json:"expiryDate,omitempty"`
	MaxUsage    *int           `json:"maxUsage,omitempty"`
	UsedCount   int            `gorm:"not null;default:0" json:"usedCount"`
	Active      bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// CreateVoucherRequest is the admin payload for a new voucher.
type CreateVoucherRequest struct {
	Code        string      `json:"code" binding:"required,vouchercode,max=64"`
	Discount    int64       `json:"discount" binding:"required,gt=0"`
	Type        VoucherType `json:"type" binding:"required,oneof=PERCENTAGE FIXED"`
	MinPurchase *int64      `json:"minPurchase" binding:"omitempty,gte=0"`
	MaxDiscount *int64      `json:"maxDiscount" binding:"omitempty,gt=0"`
	ExpiryDate  *time.Time  `json:"expiryDate"`
	MaxUsage    *int        `json:"maxUsage" binding:"omitempty,gt=0"`
}

// ValidateVoucherRequest checks a code against a cart total. The format rule is
// applied by the service so a malformed code yields its own rejection reason.
type ValidateVoucherRequest struct {
	Code      string `json:"code" binding:"required"`
	CartTotal int64  `json:"cartTotal" binding:"required,gt=0"`
}

// VoucherValidation is the successful validation result.
type VoucherValidation struct {
	Voucher        *Voucher `json:"voucher"`
	DiscountAmount int64    `json:"discountAmount"`
	FinalTotal     int64    `json:"finalTotal"`
}

type VoucherList struct {
	Vouchers []Voucher `json:"vouchers"`
	Meta     ListMeta  `json:"meta"`
}
