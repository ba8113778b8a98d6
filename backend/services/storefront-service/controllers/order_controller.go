package controllers

import (
	"net/http"

	apperrors "github.com/bloomsisters/storefront/backend/services/common/errors"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/middleware"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/services"
	"github.com/gin-gonic/gin"
)

type OrderController struct {
	orderService   services.OrderService
	paymentService services.PaymentService
}

func NewOrderController(orderService services.OrderService, paymentService services.PaymentService) *OrderController {
	return &OrderController{orderService: orderService, paymentService: paymentService}
}

// CreateOrder handles POST /orders.
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	var req models.CreateOrderRequest
	if !bindJSON(ctx, &req) {
		return
	}
	order, svcErr := oc.orderService.CreateOrder(ctx.Request.Context(), userID, &req)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	apperrors.OK(ctx, http.StatusCreated, gin.H{"orderId": order.ID, "order": order})
}

// GetOrder handles GET /orders/:id for the owner or an admin.
func (oc *OrderController) GetOrder(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	order, svcErr := oc.orderService.GetOrder(ctx.Request.Context(), ctx.Param("id"), userID, middleware.IsAdmin(ctx))
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, order)
}

// ListMyOrders handles GET /orders/user/my-orders.
func (oc *OrderController) ListMyOrders(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	page, limit := parsePaginationParams(ctx)
	list, svcErr := oc.orderService.ListUserOrders(ctx.Request.Context(), userID, page, limit)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, list)
}

// ListOrders handles GET /orders?status= (admin only).
func (oc *OrderController) ListOrders(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	list, svcErr := oc.orderService.ListAllOrders(ctx.Request.Context(), page, limit, ctx.Query("status"))
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, list)
}

// UpdateStatus handles PATCH /orders/:id/status (admin only).
func (oc *OrderController) UpdateStatus(ctx *gin.Context) {
	var req models.UpdateOrderStatusRequest
	if !bindJSON(ctx, &req) {
		return
	}
	order, svcErr := oc.orderService.UpdateStatus(ctx.Request.Context(), ctx.Param("id"), req.Status)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, order)
}

// SyncPayment handles GET /orders/payment/sync/:id, re-querying the gateway.
func (oc *OrderController) SyncPayment(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	order, svcErr := oc.paymentService.SyncOrder(ctx.Request.Context(), ctx.Param("id"), userID, middleware.IsAdmin(ctx))
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, order)
}
