package ocr

import (
	"context"

	"github.com/feichai0017/card-ocr/internal/models"
)

// Request is everything an extractor may use to produce text for an uploaded card.
type Request struct {
	SessionID string
	Filename  string
	Size      int64
	MimeType  string
	Hash      string
	Data      []byte
	CardType  models.CardType
}

// Extractor turns an uploaded card image into plain text.
type Extractor interface {
	// Name identifies the backend in logs.
	Name() string

	// Extract blocks until the text is available, ctx is done or the backend fails.
	Extract(ctx context.Context, req Request) (string, error)
}
