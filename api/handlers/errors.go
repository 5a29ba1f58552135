package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/card-ocr/internal/models"
	"github.com/feichai0017/card-ocr/internal/service/session"
	"github.com/feichai0017/card-ocr/pkg/logger"
)

var errNoResult = errors.New("no extracted text")

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Error   string         `json:"error,omitempty"`
	Notice  *models.Notice `json:"notice,omitempty"`
}

type apiError struct {
	status int
	code   string
	notice models.Notice
}

// classify maps domain errors to an HTTP status, a stable code and the notice shown to the user.
func classify(err error, maxFileSize int64) apiError {
	destructive := func(title, description string) models.Notice {
		return models.Notice{Title: title, Description: description, Variant: models.NoticeDestructive}
	}

	switch {
	case errors.Is(err, session.ErrInvalidFileType):
		return apiError{http.StatusUnsupportedMediaType, "INVALID_FILE_TYPE",
			destructive("Invalid file type", "Please upload a JPG, PNG, or GIF image.")}
	case errors.Is(err, session.ErrFileTooLarge):
		return apiError{http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			destructive("File too large", fmt.Sprintf("Please upload an image smaller than %dMB.", maxFileSize/(1024*1024)))}
	case errors.Is(err, session.ErrMissingRequirements):
		return apiError{http.StatusUnprocessableEntity, "MISSING_REQUIREMENTS",
			destructive("Missing requirements", "Please select a file and card type before processing.")}
	case errors.Is(err, session.ErrProcessingInFlight):
		return apiError{http.StatusConflict, "PROCESSING_IN_FLIGHT",
			destructive("Already processing", "Text is already being extracted from this image.")}
	case errors.Is(err, session.ErrUnknownCardType):
		return apiError{http.StatusBadRequest, "UNKNOWN_CARD_TYPE",
			destructive("Unknown card type", "Please choose ID Card, Passport, or Credit Card.")}
	case errors.Is(err, session.ErrSessionNotFound):
		return apiError{http.StatusNotFound, "SESSION_NOT_FOUND",
			destructive("Session expired", "Please reload the page to start a new session.")}
	case errors.Is(err, errNoResult):
		return apiError{http.StatusConflict, "NO_RESULT",
			destructive("Nothing to download", "Process an image before downloading the results.")}
	default:
		return apiError{http.StatusInternalServerError, "INTERNAL_ERROR",
			destructive("Something went wrong", "Please try again.")}
	}
}

// handleError 统一错误处理
func (h *SessionHandler) handleError(c *gin.Context, message string, err error) {
	e := classify(err, h.validator.MaxFileSize())

	log := h.logger.FromContext(c.Request.Context())
	fields := []logger.Field{
		logger.String("path", c.Request.URL.Path),
		logger.String("code", e.code),
		logger.Error(err),
	}
	if e.status >= http.StatusInternalServerError {
		log.Error(message, fields...)
	} else {
		log.Warn(message, fields...)
	}

	notice := e.notice
	c.AbortWithStatusJSON(e.status, ErrorResponse{
		Code:    e.code,
		Message: message,
		Error:   err.Error(),
		Notice:  &notice,
	})
}

// badRequest reports malformed input that is not a domain error.
func (h *SessionHandler) badRequest(c *gin.Context, message string, err error) {
	h.logger.FromContext(c.Request.Context()).Warn(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{
		Code:    "BAD_REQUEST",
		Message: message,
		Notice:  &models.Notice{Title: "Invalid request", Description: message, Variant: models.NoticeDestructive},
	}
	if err != nil {
		response.Error = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, response)
}
