package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/feichai0017/card-ocr/config"
	"github.com/feichai0017/card-ocr/internal/agent/ocr"
	"github.com/feichai0017/card-ocr/pkg/logger"
	"github.com/feichai0017/card-ocr/pkg/queue"
	"github.com/feichai0017/card-ocr/pkg/worker"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		panic(err)
	}

	// 初始化日志
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
		logger.WithErrorPaths(cfg.Log.ErrorPaths),
		logger.WithField("service", "card-ocr-worker"),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// status records are shared with the server through redis
	statuses, err := queue.NewAsynqQueue(&queue.QueueConfig{
		RedisAddr: cfg.Redis.Addr,
		RedisDB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Error("Failed to connect task queue", logger.Error(err))
		os.Exit(1)
	}
	defer statuses.Close()

	workerCfg := &worker.Config{
		RedisAddr:   cfg.Redis.Addr,
		RedisDB:     cfg.Redis.DB,
		Concurrency: cfg.Worker.Concurrency,
		Queues:      cfg.Worker.Queues,
	}

	extractWorker, err := worker.NewExtractWorker(workerCfg, ocr.NewSimulated(cfg.Extraction.Delay), statuses, log.Named("worker"))
	if err != nil {
		log.Error("Failed to create extract worker", logger.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 启动 worker
	if err := extractWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Worker started", logger.Int("concurrency", workerCfg.Concurrency))

	<-ctx.Done()

	// 优雅关闭
	log.Info("Shutting down worker...")
	extractWorker.Stop()
	log.Info("Worker stopped")
}
