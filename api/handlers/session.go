package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/card-ocr/internal/models"
	"github.com/feichai0017/card-ocr/internal/service/session"
	"github.com/feichai0017/card-ocr/internal/utils/validator"
	"github.com/feichai0017/card-ocr/pkg/converters"
	"github.com/feichai0017/card-ocr/pkg/logger"
)

const (
	// ResultFilename is the name offered for downloaded results.
	ResultFilename     = "ocr-results.txt"
	ResultJSONFilename = "ocr-results.json"

	// multipartOverhead is the body allowance on top of the file limit for multipart framing.
	multipartOverhead = 1 << 20

	controllerKey = "session.controller"
)

// SessionHandler exposes a session controller over HTTP.
type SessionHandler struct {
	store     session.Store
	validator *validator.ImageValidator
	converter converters.ResultConverter
	logger    logger.ContextLogger
}

// SessionResponse carries the session view plus an optional user notice.
type SessionResponse struct {
	Session models.SessionSnapshot `json:"session"`
	Notice  *models.Notice         `json:"notice,omitempty"`
}

type selectCardTypeRequest struct {
	CardType string `json:"cardType" binding:"required"`
}

func NewSessionHandler(store session.Store, v *validator.ImageValidator, log logger.Logger) *SessionHandler {
	return &SessionHandler{
		store:     store,
		validator: v,
		converter: converters.NewJSONConverter(),
		logger:    logger.NewContextLogger(log.Named("session-handler")),
	}
}

// ListCardTypes 返回支持的卡片类型
func (h *SessionHandler) ListCardTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cardTypes": models.CardTypes()})
}

// CreateSession 创建新的会话
func (h *SessionHandler) CreateSession(c *gin.Context) {
	ctrl, err := h.store.Create()
	if err != nil {
		h.handleError(c, "Failed to create session", err)
		return
	}

	h.logger.FromContext(c.Request.Context()).Info("Session created", logger.String("session_id", ctrl.ID()))
	c.JSON(http.StatusCreated, SessionResponse{Session: ctrl.Snapshot()})
}

// LoadSession resolves the :id path parameter and stores the controller on the context.
func (h *SessionHandler) LoadSession(c *gin.Context) {
	id := c.Param("id")
	ctrl, err := h.store.Get(id)
	if err != nil {
		h.handleError(c, "Failed to load session", err)
		return
	}

	c.Request = c.Request.WithContext(logger.ContextWithSessionID(c.Request.Context(), id))
	c.Set(controllerKey, ctrl)
	c.Next()
}

func controller(c *gin.Context) *session.Controller {
	return c.MustGet(controllerKey).(*session.Controller)
}

// GetSession 获取会话状态
func (h *SessionHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, SessionResponse{Session: controller(c).Snapshot()})
}

// DeleteSession 删除会话
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		h.handleError(c, "Failed to delete session", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadFile 上传待识别的图片
func (h *SessionHandler) UploadFile(c *gin.Context) {
	ctrl := controller(c)
	maxSize := h.validator.MaxFileSize()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+multipartOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.handleError(c, "Failed to upload file", fmt.Errorf("request body exceeds %d bytes: %w", tooLarge.Limit, session.ErrFileTooLarge))
			return
		}
		h.badRequest(c, "No file uploaded", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		h.badRequest(c, "Failed to read file", err)
		return
	}

	size := header.Size
	if n := int64(len(data)); n > size {
		size = n
	}

	upload := models.UploadedFile{
		Name:     header.Filename,
		Size:     size,
		MimeType: validator.DetectMimeType(data),
		Data:     data,
	}
	if err := ctrl.Upload(upload); err != nil {
		h.handleError(c, "Failed to upload file", err)
		return
	}

	h.logger.FromContext(c.Request.Context()).Info("File uploaded",
		logger.String("filename", upload.Name),
		logger.Int64("size", upload.Size),
		logger.String("mimeType", upload.MimeType),
	)
	c.JSON(http.StatusOK, SessionResponse{Session: ctrl.Snapshot()})
}

// ClearFile 清除文件与识别结果
func (h *SessionHandler) ClearFile(c *gin.Context) {
	ctrl := controller(c)
	ctrl.Clear()
	c.JSON(http.StatusOK, SessionResponse{Session: ctrl.Snapshot()})
}

// SelectCardType 设置卡片类型
func (h *SessionHandler) SelectCardType(c *gin.Context) {
	ctrl := controller(c)

	var req selectCardTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid card type request", err)
		return
	}

	if err := ctrl.SelectCardType(models.CardType(req.CardType)); err != nil {
		h.handleError(c, "Failed to select card type", err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Session: ctrl.Snapshot()})
}

// ProcessSession starts extraction. With ?wait=true the response is held until it finishes.
func (h *SessionHandler) ProcessSession(c *gin.Context) {
	ctrl := controller(c)

	wait, _ := strconv.ParseBool(c.DefaultQuery("wait", "false"))

	done, err := ctrl.Process(c.Request.Context())
	if err != nil {
		h.handleError(c, "Failed to process session", err)
		return
	}

	if !wait {
		c.JSON(http.StatusAccepted, SessionResponse{Session: ctrl.Snapshot()})
		return
	}

	select {
	case <-done:
	case <-c.Request.Context().Done():
		return
	}

	snap := ctrl.Snapshot()
	resp := SessionResponse{Session: snap}
	if snap.Status == models.StatusCompleted {
		resp.Notice = &models.Notice{
			Title:       "OCR Complete!",
			Description: "Text has been successfully extracted from your image.",
			Variant:     models.NoticeDefault,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetResult 返回识别文本
func (h *SessionHandler) GetResult(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"text": controller(c).Text()})
}

// DownloadResult 下载识别结果. ?format=json returns the structured document instead of raw text.
func (h *SessionHandler) DownloadResult(c *gin.Context) {
	snap := controller(c).Snapshot()
	if snap.ExtractedText == "" {
		h.handleError(c, "Failed to download result", errNoResult)
		return
	}

	if c.Query("format") == "json" {
		doc, err := h.converter.Convert(snap)
		if err != nil {
			h.handleError(c, "Failed to convert result", err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ResultJSONFilename))
		c.JSON(http.StatusOK, doc)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ResultFilename))
	c.Data(http.StatusOK, "text/plain", []byte(snap.ExtractedText))
}
