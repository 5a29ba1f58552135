package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/card-ocr/internal/service/session"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{fmt.Errorf("upload: %w", session.ErrInvalidFileType), http.StatusUnsupportedMediaType, "INVALID_FILE_TYPE"},
		{session.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{session.ErrMissingRequirements, http.StatusUnprocessableEntity, "MISSING_REQUIREMENTS"},
		{session.ErrProcessingInFlight, http.StatusConflict, "PROCESSING_IN_FLIGHT"},
		{session.ErrUnknownCardType, http.StatusBadRequest, "UNKNOWN_CARD_TYPE"},
		{session.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
		{errNoResult, http.StatusConflict, "NO_RESULT"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			e := classify(tt.err, 10*1024*1024)
			assert.Equal(t, tt.wantStatus, e.status)
			assert.Equal(t, tt.wantCode, e.code)
			assert.NotEmpty(t, e.notice.Title)
		})
	}
}

func TestClassifyTooLargeUsesLimit(t *testing.T) {
	e := classify(session.ErrFileTooLarge, 5*1024*1024)
	assert.Equal(t, "Please upload an image smaller than 5MB.", e.notice.Description)
}
