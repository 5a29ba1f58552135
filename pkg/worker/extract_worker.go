package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/card-ocr/internal/agent/ocr"
	"github.com/feichai0017/card-ocr/internal/models"
	"github.com/feichai0017/card-ocr/pkg/logger"
	"github.com/feichai0017/card-ocr/pkg/queue"
)

// ExtractWorker runs ocr:extract tasks and records their outcome in the status store.
type ExtractWorker struct {
	BaseWorker
	extractor ocr.Extractor
	statuses  queue.StatusStore
}

func NewExtractWorker(cfg *Config, extractor ocr.Extractor, statuses queue.StatusStore, log logger.Logger) (*ExtractWorker, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("worker concurrency must be positive, got %d", cfg.Concurrency)
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Second
			},
		},
	)

	w := &ExtractWorker{
		BaseWorker: BaseWorker{
			server: server,
			mux:    asynq.NewServeMux(),
			logger: log,
		},
		extractor: extractor,
		statuses:  statuses,
	}

	w.mux.HandleFunc(queue.TaskTypeExtract, w.handleExtract)
	return w, nil
}

func (w *ExtractWorker) handleExtract(ctx context.Context, t *asynq.Task) error {
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		// malformed payloads never succeed on retry
		return fmt.Errorf("failed to unmarshal task: %v: %w", err, asynq.SkipRetry)
	}

	if task.ID == "" {
		w.logger.Error("Invalid task data", logger.Any("payload", task.Payload))
		return fmt.Errorf("invalid task data: missing id: %w", asynq.SkipRetry)
	}

	log := w.logger.With(
		logger.String("taskId", task.ID),
		logger.String("session_id", task.Payload.SessionID),
	)

	cardType, err := models.ParseCardType(task.Payload.CardType)
	if err != nil {
		w.saveStatus(ctx, log, &queue.TaskStatus{
			TaskID:     task.ID,
			Status:     queue.StatusFailed,
			Error:      err.Error(),
			StartedAt:  task.CreatedAt,
			FinishedAt: time.Now(),
		})
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log.Info("Processing extraction task", logger.String("cardType", string(cardType)))
	w.saveStatus(ctx, log, &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    queue.StatusRunning,
		Progress:  0.5,
		StartedAt: time.Now(),
	})

	started := time.Now()
	text, err := w.extractor.Extract(ctx, ocr.Request{
		SessionID: task.Payload.SessionID,
		Filename:  task.Payload.Filename,
		Size:      task.Payload.Size,
		MimeType:  task.Payload.MimeType,
		Hash:      task.Payload.Hash,
		CardType:  cardType,
	})
	if err != nil {
		log.Error("Extraction failed", logger.Error(err))
		w.saveStatus(ctx, log, &queue.TaskStatus{
			TaskID:     task.ID,
			Status:     queue.StatusFailed,
			Error:      err.Error(),
			StartedAt:  started,
			FinishedAt: time.Now(),
		})
		return err
	}

	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write([]byte(text)); err != nil {
			log.Warn("Failed to write task result", logger.Error(err))
		}
	}

	w.saveStatus(ctx, log, &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     queue.StatusCompleted,
		Progress:   1.0,
		Result:     text,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})

	log.Info("Extraction task completed", logger.Duration("elapsed", time.Since(started)))
	return nil
}

func (w *ExtractWorker) saveStatus(ctx context.Context, log logger.Logger, status *queue.TaskStatus) {
	if err := w.statuses.SaveFinalStatus(ctx, status); err != nil {
		log.Error("Failed to save task status",
			logger.String("status", status.Status),
			logger.Error(err),
		)
	}
}

// Start runs the asynq server in the background and stops it when ctx is done.
func (w *ExtractWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
