package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/card-ocr/internal/agent/ocr"
	"github.com/feichai0017/card-ocr/internal/utils/validator"
	"github.com/feichai0017/card-ocr/pkg/logger"
)

// Store is what the HTTP layer needs from the session registry.
type Store interface {
	Create() (*Controller, error)
	Get(id string) (*Controller, error)
	Delete(id string) error
}

// ManagerConfig bounds how many sessions are kept and for how long.
type ManagerConfig struct {
	MaxSessions int
	MaxAge      time.Duration // idle time before a session is evicted
}

// Manager keeps one Controller per browser session.
type Manager struct {
	extractor ocr.Extractor
	validator *validator.ImageValidator
	logger    logger.Logger
	config    ManagerConfig
	opts      []Option
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	controller   *Controller
	lastAccessed time.Time
}

// NewManager creates an empty registry. opts are applied to every controller it creates.
func NewManager(extractor ocr.Extractor, v *validator.ImageValidator, log logger.Logger, cfg ManagerConfig, opts ...Option) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * time.Minute
	}
	return &Manager{
		extractor: extractor,
		validator: v,
		logger:    log,
		config:    cfg,
		opts:      opts,
		now:       time.Now,
		sessions:  make(map[string]*entry),
	}
}

// Create registers a new empty session, evicting the least recently used one when full.
func (m *Manager) Create() (*Controller, error) {
	id := uuid.New().String()
	c := NewController(id, m.extractor, m.validator, m.logger, m.opts...)

	m.mu.Lock()
	if len(m.sessions) >= m.config.MaxSessions {
		m.evictOldestLocked()
	}
	m.sessions[id] = &entry{controller: c, lastAccessed: m.now()}
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("Session created",
		logger.String("session_id", id),
		logger.Int("sessions", count),
	)
	return c, nil
}

// Get returns the session and marks it as used.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.lastAccessed = m.now()
	return e.controller, nil
}

// Delete drops a session. An extraction still running for it finishes unobserved.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup evicts sessions idle for longer than MaxAge and returns how many were removed.
func (m *Manager) Cleanup() int {
	threshold := m.now().Add(-m.config.MaxAge)

	m.mu.Lock()
	removed := 0
	for id, e := range m.sessions {
		if e.lastAccessed.Before(threshold) {
			delete(m.sessions, id)
			removed++
		}
	}
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Info("Expired sessions removed",
			logger.Int("removed", removed),
			logger.Time("threshold", threshold),
		)
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done. A non-positive interval means one minute.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Cleanup()
		}
	}
}

func (m *Manager) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range m.sessions {
		if oldestID == "" || e.lastAccessed.Before(oldest) {
			oldestID, oldest = id, e.lastAccessed
		}
	}
	if oldestID != "" {
		delete(m.sessions, oldestID)
		m.logger.Warn("Session limit reached, evicted least recently used session",
			logger.String("session_id", oldestID),
			logger.Int("maxSessions", m.config.MaxSessions),
		)
	}
}
