package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type payload struct {
	Code      string `json:"code" binding:"required"`
	CartTotal int64  `json:"cartTotal" binding:"required,gt=0"`
}

func TestFromBinding_FieldDetails(t *testing.T) {
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var p payload
		if err := c.ShouldBindJSON(&p); err != nil {
			Abort(c, FromBinding(err))
			return
		}
		OK(c, http.StatusOK, p)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Body = http.NoBody
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", jsonBody(`{"cartTotal":0}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Validation failed", resp["error"])
	details := resp["details"].(map[string]interface{})
	assert.Equal(t, "required", details["code"])
	assert.Equal(t, "required", details["cartTotal"])
}

func TestErrorMiddleware_RendersEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(ErrorMiddleware())
	r.GET("/app", func(c *gin.Context) { _ = c.Error(ErrNotFound) })
	r.GET("/plain", func(c *gin.Context) { _ = c.Error(fmt.Errorf("boom")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Not found"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Internal server error"}`, w.Body.String())
}

func TestWithDetails_DoesNotMutatePreset(t *testing.T) {
	e := ErrBadRequest.WithDetails(map[string]string{"a": "b"})
	assert.Nil(t, ErrBadRequest.Details)
	assert.Equal(t, "b", e.Details["a"])
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}
