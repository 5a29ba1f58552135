package agent

import (
	"fmt"

	cfg "github.com/feichai0017/card-ocr/config"
	"github.com/feichai0017/card-ocr/internal/agent/ocr"
	"github.com/feichai0017/card-ocr/pkg/logger"
	"github.com/feichai0017/card-ocr/pkg/queue"
)

const (
	BackendLocal = "local"
	BackendQueue = "queue"
)

// NewExtractor picks the extraction backend named in the config.
// The queue backend needs q; the local backend ignores it.
func NewExtractor(c cfg.ExtractionConfig, q queue.Queue, log logger.Logger) (ocr.Extractor, error) {
	log.Info("Creating extractor",
		logger.String("backend", c.Backend),
		logger.Duration("delay", c.Delay),
	)

	switch c.Backend {
	case BackendLocal, "":
		return ocr.NewSimulated(c.Delay), nil
	case BackendQueue:
		if q == nil {
			return nil, fmt.Errorf("extraction backend %q requires a queue", c.Backend)
		}
		return ocr.NewQueued(q, log.Named("extractor"), ocr.QueuedConfig{
			PollInterval: c.PollInterval,
			Timeout:      c.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported extraction backend: %s", c.Backend)
	}
}
