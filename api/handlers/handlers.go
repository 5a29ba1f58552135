package handlers

import (
	"github.com/feichai0017/card-ocr/internal/service/session"
	"github.com/feichai0017/card-ocr/internal/utils/validator"
	"github.com/feichai0017/card-ocr/pkg/logger"
)

type Handlers struct {
	Session *SessionHandler
	Health  *HealthHandler
}

func NewHandlers(
	store session.Store,
	v *validator.ImageValidator,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Session: NewSessionHandler(store, v, log),
		Health:  NewHealthHandler(),
	}
}
