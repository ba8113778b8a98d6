package controllers

import (
	"net/http"

	apperrors "github.com/bloomsisters/storefront/backend/services/common/errors"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/gateway"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/services"
	"github.com/gin-gonic/gin"
)

type PaymentController struct {
	paymentService services.PaymentService
}

func NewPaymentController(paymentService services.PaymentService) *PaymentController {
	return &PaymentController{paymentService: paymentService}
}

// CreatePayment handles POST /payment/create and returns the Snap token.
func (pc *PaymentController) CreatePayment(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	var req models.CreatePaymentRequest
	if !bindJSON(ctx, &req) {
		return
	}
	res, svcErr := pc.paymentService.CreatePayment(ctx.Request.Context(), req.OrderID.String(), userID)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, res)
}

// ReportResult handles POST /payment/result with the widget callback outcome.
func (pc *PaymentController) ReportResult(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	var req models.PaymentResultRequest
	if !bindJSON(ctx, &req) {
		return
	}
	res, svcErr := pc.paymentService.ReportWidgetResult(ctx.Request.Context(), userID, &req)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, res)
}

// WidgetStatus handles GET /payment/status/:orderId.
func (pc *PaymentController) WidgetStatus(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	attempt, svcErr := pc.paymentService.GetWidgetStatus(ctx.Request.Context(), ctx.Param("orderId"), userID)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, attempt)
}

// Notification handles POST /payment/notification from Midtrans. It is
// unauthenticated; the signature_key is the credential.
func (pc *PaymentController) Notification(ctx *gin.Context) {
	var n gateway.TransactionStatus
	if !bindJSON(ctx, &n) {
		return
	}
	if svcErr := pc.paymentService.HandleNotification(ctx.Request.Context(), &n, services.SourceNotification); svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	apperrors.OK(ctx, http.StatusOK, gin.H{"received": true})
}
