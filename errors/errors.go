package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Kind classifies where an error came from. Handlers map kinds to dispositions,
// not to individual error values.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindProvider      Kind = "provider"
	KindGateway       Kind = "gateway"
	KindInternal      Kind = "internal"
)

// Error represents an application error
type Error struct {
	Kind    Kind   `json:"-"`
	Code    int    `json:"-"`
	Reason  string `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
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

// JSON returns the user-facing part of the error. Err is never included.
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(kind Kind, code int, reason, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

// Configuration reports a deployment problem such as a missing credential.
func Configuration(reason, message string) *Error {
	return New(KindConfiguration, http.StatusInternalServerError, reason, message, nil)
}

// Validation reports a malformed or incomplete request.
func Validation(reason, message string) *Error {
	return New(KindValidation, http.StatusBadRequest, reason, message, nil)
}

// Provider reports a failure talking to the payment provider.
func Provider(reason, message string, err error) *Error {
	return New(KindProvider, http.StatusInternalServerError, reason, message, err)
}

// Gateway reports a rejection or transport failure from the checkout gateway.
func Gateway(reason, message string, err error) *Error {
	return New(KindGateway, http.StatusInternalServerError, reason, message, err)
}

// Internal wraps anything unexpected.
func Internal(err error) *Error {
	return New(KindInternal, http.StatusInternalServerError, "internal_error", "Internal server error", err)
}

// IsKind reports whether err, or anything it wraps, is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// From returns err as an *Error, wrapping unknown errors as internal ones.
func From(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// HandleError writes err as JSON to a plain http.ResponseWriter.
func HandleError(w http.ResponseWriter, err error) {
	appErr := From(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Code)
	_, _ = w.Write([]byte(appErr.JSON()))
}

// ErrorMiddleware renders the last error attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := From(c.Errors.Last().Err)
		c.AbortWithStatusJSON(appErr.Code, appErr)
	}
}

// Recovery turns a handler panic into the same JSON body as any other internal error.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("Panic recovered",
			zap.Any("panic", recovered),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		appErr := Internal(fmt.Errorf("panic: %v", recovered))
		c.AbortWithStatusJSON(appErr.Code, appErr)
	})
}
