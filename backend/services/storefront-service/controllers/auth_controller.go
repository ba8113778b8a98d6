package controllers

import (
	"net/http"

	apperrors "github.com/bloomsisters/storefront/backend/services/common/errors"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/middleware"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/services"
	"github.com/gin-gonic/gin"
)

type AuthController struct {
	authService services.AuthService
}

func NewAuthController(authService services.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// Register handles POST /auth/register.
func (ac *AuthController) Register(ctx *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(ctx, &req) {
		return
	}
	res, svcErr := ac.authService.Register(ctx.Request.Context(), &req)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	apperrors.OK(ctx, http.StatusCreated, res)
}

// Login handles POST /auth/login.
func (ac *AuthController) Login(ctx *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(ctx, &req) {
		return
	}
	res, svcErr := ac.authService.Login(ctx.Request.Context(), &req)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, res)
}

// GoogleLogin handles POST /auth/google.
func (ac *AuthController) GoogleLogin(ctx *gin.Context) {
	var req models.GoogleLoginRequest
	if !bindJSON(ctx, &req) {
		return
	}
	res, svcErr := ac.authService.GoogleLogin(ctx.Request.Context(), req.IDToken)
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, res)
}

// Verify handles GET /auth/verify and returns the token's user.
func (ac *AuthController) Verify(ctx *gin.Context) {
	user, svcErr := ac.authService.Verify(ctx.Request.Context(), ctx.GetString(middleware.UserContextKey))
	if svcErr != nil {
		fail(ctx, svcErr)
		return
	}
	ok(ctx, gin.H{"user": user})
}
