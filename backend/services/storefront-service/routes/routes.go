package routes

import (
	apperrors "github.com/bloomsisters/storefront/backend/services/common/errors"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/controllers"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/middleware"
	"github.com/gin-gonic/gin"
)

// Controllers groups the handlers mounted by Register.
type Controllers struct {
	Auth     *controllers.AuthController
	Products *controllers.ProductController
	Cart     *controllers.CartController
	Vouchers *controllers.VoucherController
	Orders   *controllers.OrderController
	Payments *controllers.PaymentController
}

// Register sets up every storefront route behind the error envelope renderer.
// authLimit guards the credential endpoints and may be nil.
func Register(r *gin.Engine, h Controllers, tokens middleware.TokenParser, authLimit gin.HandlerFunc) {
	r.Use(apperrors.ErrorMiddleware())
	requireAuth := middleware.AuthMiddleware(tokens)

	authRoutes := r.Group("/auth")
	if authLimit != nil {
		authRoutes.Use(authLimit)
	}
	authRoutes.POST("/register", h.Auth.Register)
	authRoutes.POST("/login", h.Auth.Login)
	authRoutes.POST("/google", h.Auth.GoogleLogin)
	authRoutes.GET("/verify", requireAuth, h.Auth.Verify)

	productRoutes := r.Group("/products")
	productRoutes.GET("", h.Products.ListProducts)
	productRoutes.GET("/:id", h.Products.GetProduct)

	cartRoutes := r.Group("/cart", requireAuth)
	cartRoutes.GET("", h.Cart.GetCart)
	cartRoutes.DELETE("", h.Cart.Clear)
	cartRoutes.GET("/count", h.Cart.Count)
	cartRoutes.POST("/items", h.Cart.AddItem)
	cartRoutes.PATCH("/items/:productId", h.Cart.UpdateItem)
	cartRoutes.DELETE("/items/:productId", h.Cart.RemoveItem)
	cartRoutes.POST("/total", h.Cart.Total)
	cartRoutes.POST("/checkout", h.Cart.StageCheckout)
	cartRoutes.GET("/checkout", h.Cart.TakeCheckout)

	voucherRoutes := r.Group("/vouchers", requireAuth)
	voucherRoutes.POST("/validate", h.Vouchers.ValidateVoucher)

	voucherAdmin := voucherRoutes.Group("", middleware.AdminOnly())
	voucherAdmin.POST("", h.Vouchers.CreateVoucher)
	voucherAdmin.GET("", h.Vouchers.ListVouchers)
	voucherAdmin.GET("/:code", h.Vouchers.GetVoucher)
	voucherAdmin.DELETE("/:code", h.Vouchers.DeactivateVoucher)

	orderRoutes := r.Group("/orders", requireAuth)
	orderRoutes.POST("", h.Orders.CreateOrder)
	orderRoutes.GET("/user/my-orders", h.Orders.ListMyOrders)
	orderRoutes.GET("/payment/sync/:id", h.Orders.SyncPayment)
	orderRoutes.GET("/:id", h.Orders.GetOrder)

	orderAdmin := orderRoutes.Group("", middleware.AdminOnly())
	orderAdmin.GET("", h.Orders.ListOrders)
	orderAdmin.PATCH("/:id/status", h.Orders.UpdateStatus)

	// The gateway calls /payment/notification without a JWT.
	r.POST("/payment/notification", h.Payments.Notification)

	paymentRoutes := r.Group("/payment", requireAuth)
	paymentRoutes.POST("/create", h.Payments.CreatePayment)
	paymentRoutes.POST("/result", h.Payments.ReportResult)
	paymentRoutes.GET("/status/:orderId", h.Payments.WidgetStatus)
}
