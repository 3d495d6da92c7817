// internal/api/response_helpers.go
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/90n9/talepick/internal/assets"
	"github.com/90n9/talepick/internal/editor"
	apperrors "github.com/90n9/talepick/internal/errors"
	"github.com/90n9/talepick/internal/services"
	"github.com/90n9/talepick/internal/textmode"
	"github.com/gin-gonic/gin"
)

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	rh.respond(c, http.StatusOK, data, message)
}

// Created 创建成功响应
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	rh.respond(c, http.StatusCreated, data, message)
}

func (rh *ResponseHelper) respond(c *gin.Context, status int, data interface{}, message []string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: c.GetString(requestIDKey),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(status, response)
}

// sensitiveMarkers 出现在错误信息中时整条信息被替换
var sensitiveMarkers = []string{"api_key", "apikey", "secret", "token", "authorization"}

func sanitizeErrorMessage(message string) string {
	lower := strings.ToLower(message)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(lower, marker) {
			return "An internal error occurred"
		}
	}
	return message
}

// Error 错误响应
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...interface{}) {
	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizeErrorMessage(message),
	}
	if len(details) > 0 {
		if s, ok := details[0].(string); ok {
			apiError.Details = sanitizeErrorMessage(s)
		} else {
			apiError.Details = details[0]
		}
	}

	c.JSON(statusCode, &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: c.GetString(requestIDKey),
	})
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...interface{}) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound 404错误响应
func (rh *ResponseHelper) NotFound(c *gin.Context, code, message string) {
	rh.Error(c, http.StatusNotFound, code, message)
}

// InternalError 500错误响应
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...interface{}) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// ParseErrorDetails is the position of a text-mode parse failure.
type ParseErrorDetails struct {
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Reason string `json:"reason"`
}

// FromError 将领域错误映射为HTTP状态码和错误代码
func (rh *ResponseHelper) FromError(c *gin.Context, err error) {
	var perr *textmode.ParseError
	if errors.As(err, &perr) {
		rh.Error(c, http.StatusUnprocessableEntity, ErrorTextParseFailed, "text could not be applied",
			ParseErrorDetails{Line: perr.Line, Column: perr.Column, Reason: perr.Reason})
		return
	}

	status, code := classify(err)
	rh.Error(c, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, editor.ErrSaveInFlight):
		return http.StatusConflict, ErrorSaveInProgress
	case errors.Is(err, editor.ErrTextModeActive):
		return http.StatusConflict, ErrorTextModeActive
	case errors.Is(err, editor.ErrSceneNotFound):
		return http.StatusNotFound, ErrorSceneNotFound
	case errors.Is(err, editor.ErrSegmentNotFound):
		return http.StatusNotFound, ErrorSegmentNotFound
	case errors.Is(err, editor.ErrAssetNotFound):
		return http.StatusNotFound, ErrorAssetNotFound
	case errors.Is(err, editor.ErrIncompatibleAsset):
		return http.StatusUnprocessableEntity, ErrorIncompatibleAsset
	case errors.Is(err, assets.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType, ErrorUnsupportedMedia
	case errors.Is(err, services.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge, ErrorFileTooLarge
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apperrors.ErrorTypeValidation:
			return http.StatusBadRequest, appErr.Code
		case apperrors.ErrorTypeNotFound:
			return http.StatusNotFound, appErr.Code
		case apperrors.ErrorTypeConflict:
			return http.StatusConflict, appErr.Code
		case apperrors.ErrorTypeParse:
			return http.StatusUnprocessableEntity, appErr.Code
		case apperrors.ErrorTypeCollaborator:
			return http.StatusBadGateway, appErr.Code
		}
		return http.StatusInternalServerError, appErr.Code
	}
	return http.StatusInternalServerError, ErrorInternalError
}
