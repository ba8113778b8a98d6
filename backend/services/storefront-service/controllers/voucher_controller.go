package controllers

import (
	"net/http"

	apperrors "github.com/bloomsisters/storefront/backend/services/common/errors"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/services"
	"github.com/gin-gonic/gin"
)

// VoucherController handles HTTP requests for voucher operations.
type VoucherController struct {
	voucherService services.VoucherService
}

// NewVoucherController creates a new VoucherController.
func NewVoucherController(voucherService services.VoucherService) *VoucherController {
	return &VoucherController{voucherService: voucherService}
}

// ValidateVoucher handles POST /vouchers/validate. Usage is not consumed.
func (vc *VoucherController) ValidateVoucher(ctx *gin.Context) {
	var req models.ValidateVoucherRequest
	if !bindJSON(ctx, &req) {
		return
	}
	res, svcErr := vc.voucherService.ValidateVoucher(ctx.Request.Context(), &req)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, res)
}

// CreateVoucher handles POST /vouchers (admin only).
func (vc *VoucherController) CreateVoucher(ctx *gin.Context) {
	var req models.CreateVoucherRequest
	if !bindJSON(ctx, &req) {
		return
	}
	voucher, svcErr := vc.voucherService.CreateVoucher(ctx.Request.Context(), &req)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	apperrors.OK(ctx, http.StatusCreated, voucher)
}

// GetVoucher handles GET /vouchers/:code (admin only).
func (vc *VoucherController) GetVoucher(ctx *gin.Context) {
	voucher, svcErr := vc.voucherService.GetVoucher(ctx.Request.Context(), ctx.Param("code"))
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, voucher)
}

// DeactivateVoucher handles DELETE /vouchers/:code (admin only).
func (vc *VoucherController) DeactivateVoucher(ctx *gin.Context) {
	if svcErr := vc.voucherService.DeactivateVoucher(ctx.Request.Context(), ctx.Param("code")); svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, gin.H{"message": "Voucher deactivated"})
}

// ListVouchers handles GET /vouchers (admin only).
func (vc *VoucherController) ListVouchers(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	list, svcErr := vc.voucherService.ListVouchers(ctx.Request.Context(), page, limit)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, list)
}
