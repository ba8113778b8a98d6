package services

import (
	"context"
	"time"

	aws_pkg "github.com/bloomsisters/storefront/backend/pkg/aws"
)

// ServiceError represents a typed error with an HTTP status code.
// Details, when set, is rendered as the envelope's "details" field.
type ServiceError struct {
	StatusCode int
	Message    string
	Details    interface{}
}

func (e *ServiceError) Error() string {
	return e.Message
}

func errInternal(msg string) *ServiceError {
	return &ServiceError{StatusCode: 500, Message: msg}
}

// recordCount sends a business metric without blocking the caller.
func recordCount(metrics aws_pkg.MetricsRecorder, name string, dims map[string]string) {
	if metrics == nil || !metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.RecordCount(ctx, name, dims)
	}()
}
