package middleware

import (
	"errors"
	"net/http"

	"github.com/bloomsisters/storefront/backend/services/common/auth"
	apperrors "github.com/bloomsisters/storefront/backend/services/common/errors"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	UserContextKey     = "userID"
	RoleContextKey     = "role"
	UsernameContextKey = "username"
	EmailContextKey    = "email"
)

// TokenParser is satisfied by auth.TokenManager.
type TokenParser interface {
	ParseAndValidateToken(token string) (*auth.Claims, error)
}

// AuthMiddleware requires a valid "Authorization: Bearer <jwt>" header and
// puts the token claims on the context.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			apperrors.Abort(c, apperrors.ErrMissingToken)
			return
		}

		claims, err := tokens.ParseAndValidateToken(raw)
		if err != nil || claims.UserID == "" {
			apperrors.Abort(c, apperrors.ErrInvalidToken)
			return
		}

		c.Set(UserContextKey, claims.UserID)
		c.Set(RoleContextKey, claims.Role)
		c.Set(UsernameContextKey, claims.Username)
		c.Set(EmailContextKey, claims.Email)
		c.Next()
	}
}

// GetUserID extracts the user ID from the Gin context.
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return uuid.Parse(id)
		}
	}
	return uuid.Nil, errors.New("user ID not found in context")
}

// IsAdmin reports whether the authenticated role is ADMIN or SUPERADMIN.
func IsAdmin(c *gin.Context) bool {
	return models.Role(c.GetString(RoleContextKey)).IsAdmin()
}

// AdminOnly restricts access to admin roles.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			apperrors.Abort(c, apperrors.New(http.StatusForbidden, "Admin access required", nil))
			return
		}
		c.Next()
	}
}
