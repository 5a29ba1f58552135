package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/card-ocr/api/handlers"
	"github.com/feichai0017/card-ocr/api/routes"
	"github.com/feichai0017/card-ocr/config"
	"github.com/feichai0017/card-ocr/internal/agent"
	"github.com/feichai0017/card-ocr/internal/models"
	"github.com/feichai0017/card-ocr/internal/service/session"
	"github.com/feichai0017/card-ocr/internal/utils/validator"
	"github.com/feichai0017/card-ocr/pkg/logger"
	"github.com/feichai0017/card-ocr/pkg/queue"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		panic(err)
	}

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(cfg.Log.OutputPaths),
		logger.WithErrorPaths(cfg.Log.ErrorPaths),
		logger.WithField("service", "card-ocr-server"),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	v := validator.NewImageValidator(log, &validator.ValidatorConfig{
		MaxFileSize:  cfg.Upload.MaxFileSize,
		AllowedTypes: cfg.Upload.AllowedTypes,
	})

	// the queue is only needed when extraction runs on cmd/worker
	var q queue.Queue
	if cfg.Extraction.Backend == agent.BackendQueue {
		aq, err := queue.NewAsynqQueue(&queue.QueueConfig{
			RedisAddr:      cfg.Redis.Addr,
			RedisDB:        cfg.Redis.DB,
			MaxRetries:     3,
			ProcessTimeout: cfg.Extraction.Timeout,
		})
		if err != nil {
			log.Fatal("Failed to connect task queue", logger.Error(err))
		}
		defer aq.Close()
		q = aq
	}

	extractor, err := agent.NewExtractor(cfg.Extraction, q, log)
	if err != nil {
		log.Fatal("Failed to create extractor", logger.Error(err))
	}

	sessions := session.NewManager(extractor, v, log, session.ManagerConfig{
		MaxSessions: cfg.Session.MaxSessions,
		MaxAge:      cfg.Session.MaxAge,
	}, session.WithCompletionHook(func(s models.SessionSnapshot) {
		log.Info("OCR Complete!",
			logger.String("session_id", s.ID),
			logger.String("cardType", string(s.CardType)),
			logger.Int("chars", len(s.ExtractedText)),
		)
	}))

	// init handlers
	gin.SetMode(cfg.Server.Mode)
	h := handlers.NewHandlers(sessions, v, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, routes.Options{
		AllowOrigins: cfg.Server.AllowOrigins,
		Logger:       log,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// start server
	g.Go(func() error {
		log.Info("Server starting", logger.String("addr", srv.Addr), logger.String("extractor", extractor.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return sessions.Run(gctx, cfg.Session.CleanupInterval)
	})

	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", logger.Error(err))
		return
	}
	log.Info("Server stopped")
}
