// Package response writes the JSON envelopes shared by every API route.
package response

import (
	"errors"
	"net/http"
	"time"

	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key the request-ID middleware sets.
const RequestIDKey = "request_id"

// SuccessResponse wraps a successful payload.
type SuccessResponse struct {
	Data      any    `json:"data"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse carries the stable error code clients switch on.
type ErrorResponse struct {
	Error      string `json:"error"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id"`
	Timestamp  string `json:"timestamp"`
}

func OK(c *gin.Context, data any)       { success(c, http.StatusOK, data) }
func Created(c *gin.Context, data any)  { success(c, http.StatusCreated, data) }
func Accepted(c *gin.Context, data any) { success(c, http.StatusAccepted, data) }

// Error writes err as an error envelope. Anything that is not an
// *apperror.AppError is reported as an opaque 500.
func Error(c *gin.Context, err error) {
	appErr := asAppError(err)
	reqID, ts := meta(c)
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		Error:      string(appErr.Kind),
		ErrorCode:  appErr.Code,
		Message:    appErr.Message,
		StatusCode: appErr.HTTPStatus,
		RequestID:  reqID,
		Timestamp:  ts,
	})
}

// Abort writes the error envelope and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

func success(c *gin.Context, status int, data any) {
	reqID, ts := meta(c)
	c.JSON(status, SuccessResponse{Data: data, RequestID: reqID, Timestamp: ts})
}

func asAppError(err error) *apperror.AppError {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.InternalError(err)
}

// meta returns the request ID (minting one for requests that bypassed the
// middleware) and the response timestamp.
func meta(c *gin.Context) (string, string) {
	reqID := c.GetString(RequestIDKey)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	return reqID, time.Now().UTC().Format(time.RFC3339)
}
