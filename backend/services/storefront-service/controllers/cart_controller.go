package controllers

import (
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/services"
	"github.com/gin-gonic/gin"
)

// CartController exposes the caller's cart. Every route requires auth.
type CartController struct {
	cartService services.CartService
}

func NewCartController(cartService services.CartService) *CartController {
	return &CartController{cartService: cartService}
}

func (cc *CartController) GetCart(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	c, svcErr := cc.cartService.GetCart(ctx.Request.Context(), userID.String())
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, c)
}

// Count serves the header badge.
func (cc *CartController) Count(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	count, svcErr := cc.cartService.Count(ctx.Request.Context(), userID.String())
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, count)
}

func (cc *CartController) AddItem(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	var req models.AddCartItemRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c, svcErr := cc.cartService.AddItem(ctx.Request.Context(), userID.String(), &req)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, c)
}

func (cc *CartController) UpdateItem(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	var req models.UpdateCartItemRequest
	if !bindJSON(ctx, &req) {
		return
	}
	c, svcErr := cc.cartService.UpdateItem(ctx.Request.Context(), userID.String(), ctx.Param("productId"), req.Quantity)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, c)
}

func (cc *CartController) RemoveItem(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	c, svcErr := cc.cartService.RemoveItem(ctx.Request.Context(), userID.String(), ctx.Param("productId"))
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, c)
}

// Clear handles DELETE /cart (also called by the logout flow).
func (cc *CartController) Clear(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	if svcErr := cc.cartService.Clear(ctx.Request.Context(), userID.String()); svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, gin.H{"message": "Cart cleared"})
}

func (cc *CartController) Total(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	var req models.CartSelectionRequest
	if !bindJSON(ctx, &req) {
		return
	}
	total, svcErr := cc.cartService.Total(ctx.Request.Context(), userID.String(), req.SelectedIDs)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, total)
}

// StageCheckout stores the selected lines for the checkout page.
func (cc *CartController) StageCheckout(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	var req models.CartSelectionRequest
	if !bindJSON(ctx, &req) {
		return
	}
	items, svcErr := cc.cartService.StageCheckout(ctx.Request.Context(), userID.String(), req.SelectedIDs)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, gin.H{"items": items})
}

// TakeCheckout returns the staged lines once; a second call is a 404.
func (cc *CartController) TakeCheckout(ctx *gin.Context) {
	userID, okUser := currentUser(ctx)
	if !okUser {
		return
	}
	items, svcErr := cc.cartService.TakeCheckout(ctx.Request.Context(), userID.String())
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, gin.H{"items": items})
}
