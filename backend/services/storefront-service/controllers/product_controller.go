package controllers

import (
	"github.com/bloomsisters/storefront/backend/services/storefront-service/services"
	"github.com/gin-gonic/gin"
)

type ProductController struct {
	productService services.ProductService
}

func NewProductController(productService services.ProductService) *ProductController {
	return &ProductController{productService: productService}
}

// ListProducts handles GET /products?page=&limit=&category=.
func (pc *ProductController) ListProducts(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	list, svcErr := pc.productService.ListProducts(ctx.Request.Context(), page, limit, ctx.Query("category"))
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, list)
}

// GetProduct handles GET /products/:id.
func (pc *ProductController) GetProduct(ctx *gin.Context) {
	product, svcErr := pc.productService.GetProduct(ctx.Request.Context(), ctx.Param("id"))
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, product)
}
