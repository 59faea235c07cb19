package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type APIResponse struct {
	Status    string      `json:"status"`
	Code      int         `json:"code"`
	ErrorCode ErrorCode   `json:"error_code,omitempty"`
	Message   string      `json:"message,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: message,
		TraceID: c.GetString("trace_id"),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: c.GetString("trace_id"),
	})
}

// RespondAppError writes e and aborts the handler chain.
func RespondAppError(c *gin.Context, e *AppError) {
	c.AbortWithStatusJSON(e.Status, APIResponse{
		Status:    "error",
		Code:      e.Status,
		ErrorCode: e.Code,
		Message:   e.Message,
		TraceID:   c.GetString("trace_id"),
	})
}

// HandleServiceError maps any service error onto the response envelope.
// Errors outside the AppError set are logged and reported as INTERNAL_ERROR.
func HandleServiceError(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = ErrInternal
	}
	if appErr.Status >= http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"trace_id":   c.GetString("trace_id"),
			"error_code": appErr.Code,
			"path":       c.FullPath(),
		}).WithError(err).Error("request failed")
	}
	RespondAppError(c, appErr)
}
