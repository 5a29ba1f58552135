package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/card-ocr/pkg/logger"
	"github.com/feichai0017/card-ocr/pkg/queue"
)

// ErrExtractionFailed wraps the error a worker reported for a task.
var ErrExtractionFailed = errors.New("extraction failed")

// QueuedConfig tunes how long Queued waits for the worker.
type QueuedConfig struct {
	Priority     int
	PollInterval time.Duration
	Timeout      time.Duration
}

// Queued hands extraction to cmd/worker over asynq and polls the saved status.
type Queued struct {
	queue  queue.Queue
	logger logger.Logger
	config QueuedConfig
}

// NewQueued creates a queue-backed extractor.
func NewQueued(q queue.Queue, log logger.Logger, cfg QueuedConfig) *Queued {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Priority == 0 {
		cfg.Priority = 2
	}
	return &Queued{
		queue:  q,
		logger: log,
		config: cfg,
	}
}

func (e *Queued) Name() string {
	return "queue"
}

func (e *Queued) Extract(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	task := &queue.Task{
		ID:       uuid.New().String(),
		Type:     queue.TaskTypeExtract,
		Priority: e.config.Priority,
		Payload: queue.ExtractPayload{
			SessionID: req.SessionID,
			Filename:  req.Filename,
			Size:      req.Size,
			MimeType:  req.MimeType,
			Hash:      req.Hash,
			CardType:  string(req.CardType),
		},
		CreatedAt: time.Now(),
	}

	// the pending record goes in before the task is visible to workers, so it can
	// never overwrite a final status
	if err := e.queue.SaveFinalStatus(ctx, &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    queue.StatusPending,
		StartedAt: task.CreatedAt,
	}); err != nil {
		e.logger.Warn("Failed to save initial status",
			logger.String("taskId", task.ID),
			logger.Error(err),
		)
	}

	if err := e.queue.Enqueue(ctx, task); err != nil {
		_ = e.queue.SaveFinalStatus(ctx, &queue.TaskStatus{
			TaskID:     task.ID,
			Status:     queue.StatusFailed,
			Error:      err.Error(),
			StartedAt:  task.CreatedAt,
			FinishedAt: time.Now(),
		})
		return "", fmt.Errorf("failed to enqueue extraction: %w", err)
	}

	e.logger.Info("Extraction task enqueued",
		logger.String("taskId", task.ID),
		logger.String("cardType", string(req.CardType)),
	)

	return e.wait(ctx, task.ID)
}

func (e *Queued) wait(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for task %s: %w", taskID, ctx.Err())
		case <-ticker.C:
		}

		status, err := e.queue.GetTaskStatus(ctx, taskID)
		if err != nil {
			e.logger.Warn("Failed to poll task status",
				logger.String("taskId", taskID),
				logger.Error(err),
			)
			continue
		}

		switch status.Status {
		case queue.StatusCompleted:
			return status.Result, nil
		case queue.StatusFailed:
			return "", fmt.Errorf("%w: task %s: %s", ErrExtractionFailed, taskID, status.Error)
		}
	}
}
