package logger

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j***@mail.com", MaskEmail("jane.doe@mail.com"))
	assert.Equal(t, "***", MaskEmail("not-an-email"))
	assert.Equal(t, "***", MaskEmail("@mail.com"))
}

func TestRequestID_FromContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Equal(t, "unknown", RequestID(context.Background()))
}

func TestRequestID_FromGinContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Set(RequestIDKey, "gin-req")
	assert.Equal(t, "gin-req", RequestID(c))
}

func TestInitializeWithWriter_TeesToWriter(t *testing.T) {
	var buf bytes.Buffer
	l := InitializeWithWriter("production", &buf)
	l.Info("hello")
	_ = l.Sync()
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"timestamp"`)
}
