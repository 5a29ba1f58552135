package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/feichai0017/card-ocr/internal/agent/ocr"
	"github.com/feichai0017/card-ocr/internal/models"
	"github.com/feichai0017/card-ocr/internal/utils/validator"
	"github.com/feichai0017/card-ocr/pkg/logger"
)

var (
	// ErrInvalidFileType rejects uploads whose MIME type is not an accepted image type.
	ErrInvalidFileType = errors.New("invalid file type")
	// ErrFileTooLarge rejects uploads over the size limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrMissingRequirements is returned by Process without a file or a card type.
	ErrMissingRequirements = errors.New("missing requirements")
	// ErrProcessingInFlight is returned by Process while an extraction is running.
	ErrProcessingInFlight = errors.New("processing already in progress")
	// ErrUnknownCardType rejects card types outside the supported set.
	ErrUnknownCardType = errors.New("unknown card type")
	// ErrSessionNotFound is returned by a Store for unknown or evicted ids.
	ErrSessionNotFound = errors.New("session not found")
)

// Controller owns the state of one OCR session: the uploaded file, the selected
// card type, the extracted text and whether an extraction is running.
//
// Every method is safe for concurrent use. At most one extraction runs per
// controller; a result computed for a file that has since been replaced or
// cleared is dropped.
type Controller struct {
	id        string
	extractor ocr.Extractor
	validator *validator.ImageValidator
	logger    logger.ContextLogger
	hook      func(models.SessionSnapshot)
	now       func() time.Time

	mu         sync.Mutex
	file       *models.UploadedFile
	cardType   models.CardType
	text       string
	processing bool
	lastErr    string
	updatedAt  time.Time
	generation uint64 // bumped whenever the file changes
	job        *job
}

type job struct {
	generation uint64
	done       chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithCompletionHook registers fn to run after every extraction that was still current when it finished.
func WithCompletionHook(fn func(models.SessionSnapshot)) Option {
	return func(c *Controller) {
		c.hook = fn
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController creates an empty session.
func NewController(id string, extractor ocr.Extractor, v *validator.ImageValidator, log logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		id:        id,
		extractor: extractor,
		validator: v,
		logger:    logger.NewContextLogger(log.With(logger.String("session_id", id))),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.updatedAt = c.now()
	return c
}

// ID returns the session id the controller was created with.
func (c *Controller) ID() string {
	return c.id
}

// Upload validates file and, if it passes, makes it the session's file and drops any previous result.
// A rejected file leaves the session untouched.
func (c *Controller) Upload(file models.UploadedFile) error {
	result := c.validator.Validate(file.Name, file.Size, file.MimeType)
	if !result.IsValid {
		verr := result.Errors[0]
		switch verr.Code {
		case validator.CodeFileTooLarge:
			return fmt.Errorf("%w: %s", ErrFileTooLarge, verr.Message)
		default:
			return fmt.Errorf("%w: %s", ErrInvalidFileType, verr.Message)
		}
	}

	file.MimeType = result.FileInfo.MimeType
	if file.Hash == "" && file.Data != nil {
		file.Hash = validator.Hash(file.Data)
	}

	c.mu.Lock()
	file.UploadedAt = c.now()
	c.file = &file
	c.text = ""
	c.lastErr = ""
	c.generation++
	c.updatedAt = file.UploadedAt
	c.mu.Unlock()

	c.logger.Info("File uploaded",
		logger.String("filename", file.Name),
		logger.Int64("size", file.Size),
		logger.String("mimeType", file.MimeType),
	)
	return nil
}

// Clear returns the session to its initial state.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.file = nil
	c.cardType = ""
	c.text = ""
	c.processing = false
	c.lastErr = ""
	c.job = nil
	c.generation++
	c.updatedAt = c.now()
	c.mu.Unlock()

	c.logger.Info("Session cleared")
}

// SelectCardType sets the card type passed to the next extraction.
func (c *Controller) SelectCardType(t models.CardType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCardType, t)
	}

	c.mu.Lock()
	c.cardType = t
	c.updatedAt = c.now()
	c.mu.Unlock()

	c.logger.Debug("Card type selected", logger.String("cardType", string(t)))
	return nil
}

// Process starts extracting text from the current file. It returns once the
// extraction is running; the returned channel is closed when it finishes.
// The extraction keeps the values of ctx but is never cancelled.
func (c *Controller) Process(ctx context.Context) (<-chan struct{}, error) {
	c.mu.Lock()
	switch {
	case c.file == nil && c.cardType == "":
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: no file uploaded and no card type selected", ErrMissingRequirements)
	case c.file == nil:
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: no file uploaded", ErrMissingRequirements)
	case c.cardType == "":
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: no card type selected", ErrMissingRequirements)
	case c.processing:
		c.mu.Unlock()
		return nil, ErrProcessingInFlight
	}

	j := &job{generation: c.generation, done: make(chan struct{})}
	c.job = j
	c.processing = true
	c.lastErr = ""
	c.updatedAt = c.now()

	req := ocr.Request{
		SessionID: c.id,
		Filename:  c.file.Name,
		Size:      c.file.Size,
		MimeType:  c.file.MimeType,
		Hash:      c.file.Hash,
		Data:      c.file.Data,
		CardType:  c.cardType,
	}
	c.mu.Unlock()

	c.logger.FromContext(ctx).Info("Processing started",
		logger.String("extractor", c.extractor.Name()),
		logger.String("cardType", string(req.CardType)),
	)

	go c.run(context.WithoutCancel(ctx), j, req)
	return j.done, nil
}

func (c *Controller) run(ctx context.Context, j *job, req ocr.Request) {
	defer close(j.done)

	start := c.now()
	text, err := c.extractor.Extract(ctx, req)

	c.mu.Lock()
	current := c.job == j
	stale := j.generation != c.generation
	if current {
		c.job = nil
		c.processing = false
		if !stale {
			if err != nil {
				c.lastErr = err.Error()
			} else {
				c.text = text
			}
		}
		c.updatedAt = c.now()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	log := c.logger.FromContext(ctx)
	switch {
	case !current || stale:
		log.Info("Discarding result for replaced file", logger.Duration("elapsed", c.now().Sub(start)))
		return
	case err != nil:
		log.Error("Processing failed", logger.Error(err))
	default:
		log.Info("Processing completed",
			logger.Duration("elapsed", c.now().Sub(start)),
			logger.Int("textLength", len(text)),
		)
	}

	if c.hook != nil {
		c.hook(snap)
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() models.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Text returns the extracted text, empty while there is none.
func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

func (c *Controller) snapshotLocked() models.SessionSnapshot {
	snap := models.SessionSnapshot{
		ID:            c.id,
		CardType:      c.cardType,
		ExtractedText: c.text,
		Processing:    c.processing,
		LastError:     c.lastErr,
		UpdatedAt:     c.updatedAt,
	}

	if c.file != nil {
		f := *c.file
		f.Data = nil
		snap.File = &f
	}

	switch {
	case c.processing:
		snap.Status = models.StatusProcessing
	case c.text != "":
		snap.Status = models.StatusCompleted
	case c.file != nil:
		snap.Status = models.StatusReady
	default:
		snap.Status = models.StatusIdle
	}

	return snap
}
