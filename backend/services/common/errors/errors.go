package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Error represents an application error
type Error struct {
	Code    int               `json:"-"`
	Message string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails returns a copy of e carrying field-level details.
func (e *Error) WithDetails(details map[string]string) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Common error types
var (
	ErrBadRequest         = New(http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized       = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden          = New(http.StatusForbidden, "Forbidden", nil)
	ErrNotFound           = New(http.StatusNotFound, "Not found", nil)
	ErrInternalServer     = New(http.StatusInternalServerError, "Internal server error", nil)
	ErrBadGateway         = New(http.StatusBadGateway, "Payment gateway unavailable, please try again", nil)
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "Service unavailable", nil)
)

// Authentication error types
var (
	ErrInvalidCredentials = New(http.StatusUnauthorized, "Invalid credentials", nil)
	ErrInvalidToken       = New(http.StatusUnauthorized, "Invalid or expired token", nil)
	ErrMissingToken       = New(http.StatusUnauthorized, "Authorization token required", nil)
)

// Respond writes the failure envelope {success:false, error, details?}.
// details is usually a field->rule map but may be any JSON value, such as
// the per-line list of an insufficient stock rejection.
func Respond(c *gin.Context, status int, message string, details interface{}) {
	body := gin.H{"success": false, "error": message}
	if !emptyDetails(details) {
		body["details"] = details
	}
	c.JSON(status, body)
}

func emptyDetails(details interface{}) bool {
	switch d := details.(type) {
	case nil:
		return true
	case map[string]string:
		return len(d) == 0
	}
	return false
}

// Abort writes the failure envelope for err and stops the handler chain.
func Abort(c *gin.Context, err *Error) {
	Respond(c, err.Code, err.Message, err.Details)
	c.Abort()
}

// OK writes the success envelope {success:true, data}.
func OK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// FromBinding converts a gin binding error into a 400 with field-level details.
func FromBinding(err error) *Error {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[jsonFieldName(fe)] = fe.Tag()
		}
		return New(http.StatusBadRequest, "Validation failed", err).WithDetails(details)
	}
	return New(http.StatusBadRequest, "Invalid request body", err)
}

// jsonFieldName lowercases the first letter of the struct field so the
// detail key matches the JSON payload ("CartTotal" -> "cartTotal").
func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return fe.Namespace()
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// ErrorMiddleware renders the last error attached with c.Error as an envelope.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		var appErr *Error
		if !stderrors.As(err, &appErr) {
			appErr = New(http.StatusInternalServerError, ErrInternalServer.Message, err)
		}
		Respond(c, appErr.Code, appErr.Message, appErr.Details)
	}
}
