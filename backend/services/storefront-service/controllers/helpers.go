package controllers

import (
	"net/http"
	"strconv"

	apperrors "github.com/bloomsisters/storefront/backend/services/common/errors"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/middleware"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// fail renders a service error as the failure envelope.
func fail(ctx *gin.Context, svcErr *services.ServiceError) {
	apperrors.Respond(ctx, svcErr.StatusCode, svcErr.Message, svcErr.Details)
}

// abort attaches err for apperrors.ErrorMiddleware to render and stops the chain.
func abort(ctx *gin.Context, err *apperrors.Error) {
	_ = ctx.Error(err)
	ctx.Abort()
}

// bindJSON binds the body into req. On failure a 400 with field details is queued.
func bindJSON(ctx *gin.Context, req interface{}) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		abort(ctx, apperrors.FromBinding(err))
		return false
	}
	return true
}

// currentUser returns the authenticated user id or queues a 401.
func currentUser(ctx *gin.Context) (uuid.UUID, bool) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		abort(ctx, apperrors.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

// parsePaginationParams extracts and validates pagination parameters.
func parsePaginationParams(ctx *gin.Context) (int, int) {
	const MaxLimit = 100
	const DefaultPage = 1
	const DefaultLimit = 10

	pageInt := DefaultPage
	limitInt := DefaultLimit

	if p, err := strconv.Atoi(ctx.DefaultQuery("page", "1")); err == nil && p > 0 {
		pageInt = p
	}
	if l, err := strconv.Atoi(ctx.DefaultQuery("limit", "10")); err == nil && l > 0 {
		limitInt = l
		if limitInt > MaxLimit {
			limitInt = MaxLimit
		}
	}
	return pageInt, limitInt
}

func ok(ctx *gin.Context, data interface{}) {
	apperrors.OK(ctx, http.StatusOK, data)
}
