package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bloomsisters/storefront/backend/services/common/auth"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setupRouter(t *testing.T) (*gin.Engine, *auth.TokenManager) {
	gin.SetMode(gin.TestMode)
	tokens, err := auth.NewTokenManager(testSecret, time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.Use(AuthMiddleware(tokens))
	r.GET("/me", func(c *gin.Context) {
		id, err := GetUserID(c)
		require.NoError(t, err)
		c.JSON(http.StatusOK, gin.H{"id": id.String(), "role": c.GetString(RoleContextKey)})
	})
	r.GET("/admin", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r, tokens
}

func do(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r, tokens := setupRouter(t)
	token, err := tokens.Generate(auth.Claims{UserID: "6f1c1f55-5a5e-4c39-a9d4-3a9b86a1c111", Role: "USER"})
	require.NoError(t, err)

	w := do(r, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "6f1c1f55-5a5e-4c39-a9d4-3a9b86a1c111")

	w = do(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Authorization token required"}`, w.Body.String())

	w = do(r, "/me", "not.a.jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminOnly(t *testing.T) {
	r, tokens := setupRouter(t)
	user, _ := tokens.Generate(auth.Claims{UserID: "6f1c1f55-5a5e-4c39-a9d4-3a9b86a1c111", Role: "USER"})
	admin, _ := tokens.Generate(auth.Claims{UserID: "6f1c1f55-5a5e-4c39-a9d4-3a9b86a1c112", Role: "SUPERADMIN"})

	assert.Equal(t, http.StatusForbidden, do(r, "/admin", user).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/admin", admin).Code)
}

func TestRegisterValidators(t *testing.T) {
	require.NoError(t, RegisterValidators())

	type payload struct {
		Code string `binding:"required,vouchercode"`
	}
	assert.NoError(t, binding.Validator.ValidateStruct(&payload{Code: "SPRING-10"}))
	assert.Error(t, binding.Validator.ValidateStruct(&payload{Code: "spring"}))
}
