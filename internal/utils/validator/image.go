package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/feichai0017/card-ocr/pkg/logger"
)

const (
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
)

// ImageValidator checks uploads before they are accepted into a session.
type ImageValidator struct {
	logger logger.Logger
	config *ValidatorConfig
	types  map[string]struct{}
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	MaxFileSize  int64    // bytes, inclusive
	AllowedTypes []string // MIME types
}

// ValidationResult collects every failed constraint for one file.
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

// ValidationError names the constraint a file failed.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// FileInfo 文件信息
type FileInfo struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// DefaultConfig accepts JPEG, PNG and GIF images up to 10MB.
func DefaultConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MaxFileSize:  10 * 1024 * 1024,
		AllowedTypes: []string{"image/jpeg", "image/jpg", "image/png", "image/gif"},
	}
}

// NewImageValidator creates a validator; a nil config means DefaultConfig.
func NewImageValidator(log logger.Logger, config *ValidatorConfig) *ImageValidator {
	if config == nil {
		config = DefaultConfig()
	}

	types := make(map[string]struct{}, len(config.AllowedTypes))
	for _, t := range config.AllowedTypes {
		types[NormalizeMimeType(t)] = struct{}{}
	}

	return &ImageValidator{
		logger: log,
		config: config,
		types:  types,
	}
}

// MaxFileSize returns the configured size limit in bytes.
func (v *ImageValidator) MaxFileSize() int64 {
	return v.config.MaxFileSize
}

// Validate checks the MIME type first, then the size.
func (v *ImageValidator) Validate(filename string, size int64, mimeType string) *ValidationResult {
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename: filename,
			Size:     size,
			MimeType: NormalizeMimeType(mimeType),
		},
	}

	if _, ok := v.types[result.FileInfo.MimeType]; !ok {
		result.Errors = append(result.Errors, ValidationError{
			Code:    CodeInvalidFileType,
			Message: fmt.Sprintf("file type %q is not allowed, upload a JPG, PNG, or GIF image", mimeType),
			Field:   "mimeType",
		})
	}

	if size > v.config.MaxFileSize {
		result.Errors = append(result.Errors, ValidationError{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("file size %d exceeds maximum limit of %d bytes", size, v.config.MaxFileSize),
			Field:   "size",
		})
	}

	if len(result.Errors) > 0 {
		result.IsValid = false
		v.logger.Debug("Upload rejected",
			logger.String("filename", filename),
			logger.String("mimeType", mimeType),
			logger.Int64("size", size),
			logger.String("code", result.Errors[0].Code),
		)
	}

	return result
}

// FirstError returns the first failed constraint, or nil for a valid file.
func (r *ValidationResult) FirstError() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// NormalizeMimeType lowercases a MIME type and drops any parameters.
func NormalizeMimeType(mimeType string) string {
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mediaType
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// DetectMimeType sniffs the content type from the file bytes.
func DetectMimeType(data []byte) string {
	return mimetype.Detect(data).String()
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
