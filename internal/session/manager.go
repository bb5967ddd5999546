package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/onnwee/viewfinder/internal/catalog"
)

// DefaultIdleTTL is how long a session may go without commands before the
// reaper closes it.
const DefaultIdleTTL = 30 * time.Minute

// Manager errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("session limit reached")
)

// CatalogProvider returns the catalog new sessions navigate.
type CatalogProvider interface {
	Current() *catalog.Catalog
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Controller  Config
	MaxSessions int // 0 means unlimited
	IdleTTL     time.Duration
}

// Manager creates, looks up and closes session controllers.
type Manager struct {
	cfg     ManagerConfig
	catalog CatalogProvider
	clock   clock.Clock
	logger  *slog.Logger
	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewManager creates a Manager. metrics may be nil.
func NewManager(cfg ManagerConfig, cat CatalogProvider, clk clock.Clock, logger *slog.Logger, metrics *Metrics) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		catalog:  cat,
		clock:    clk,
		logger:   logger,
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Controller),
	}
}

// Create starts a new session.
func (m *Manager) Create() (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	c := NewController(m.ctx, id, m.catalog.Current(), m.cfg.Controller, m.clock, m.logger)
	m.sessions[id] = c
	if m.metrics != nil {
		m.metrics.sessionsCreated.Inc()
		m.metrics.sessionsActive.Set(float64(len(m.sessions)))
	}
	m.logger.Info("session created", slog.String("session_id", id))
	return c, nil
}

// Get returns the live session with id.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.RLock()
	c, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Close closes and forgets the session with id.
func (m *Manager) Close(id string) error {
	c, err := m.remove(id, "closed")
	if err != nil {
		return err
	}
	c.Close()
	return nil
}

func (m *Manager) remove(id, reason string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(m.sessions, id)
	if m.metrics != nil {
		m.metrics.sessionsClosed.WithLabelValues(reason).Inc()
		m.metrics.sessionsActive.Set(float64(len(m.sessions)))
	}
	m.logger.Info("session closed", slog.String("session_id", id), slog.String("reason", reason))
	return c, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ReapIdle closes sessions idle for longer than ttl and returns how many
// were closed.
func (m *Manager) ReapIdle(ttl time.Duration) int {
	cutoff := m.clock.Now().Add(-ttl)

	m.mu.RLock()
	var stale []string
	for id, c := range m.sessions {
		if c.LastActive().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	reaped := 0
	for _, id := range stale {
		c, err := m.remove(id, "idle")
		if err != nil {
			continue
		}
		c.Close()
		reaped++
	}
	if reaped > 0 {
		m.logger.Info("reaped idle sessions", slog.Int("reaped", reaped), slog.Duration("idle_ttl", ttl))
	}
	return reaped
}

// RunReaper reaps idle sessions every interval until ctx is cancelled.
// It blocks and should typically be run in a goroutine.
func (m *Manager) RunReaper(ctx context.Context, interval time.Duration, observe func(reaped int, d time.Duration)) {
	ticker := m.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			n := m.ReapIdle(m.cfg.IdleTTL)
			if observe != nil {
				observe(n, time.Since(start))
			}
		case <-ctx.Done():
			m.logger.Info("stopping session reaper")
			return
		}
	}
}

// Broadcast runs f against every live session. It is used to push catalog
// reloads into open sessions.
func (m *Manager) Broadcast(ctx context.Context, f func(ctx context.Context, c *Controller) error) error {
	m.mu.RLock()
	live := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		live = append(live, c)
	}
	m.mu.RUnlock()

	var errs []error
	for _, c := range live {
		if err := f(ctx, c); err != nil && !errors.Is(err, ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ApplyCatalog rebinds every live session to cat.
func (m *Manager) ApplyCatalog(ctx context.Context, cat *catalog.Catalog) error {
	return m.Broadcast(ctx, func(ctx context.Context, c *Controller) error {
		_, err := c.SetCatalog(ctx, cat)
		return err
	})
}

// Shutdown closes every session and refuses new ones.
func (m *Manager) Shutdown() {
	m.cancel()

	m.mu.Lock()
	live := m.sessions
	m.sessions = make(map[string]*Controller)
	if m.metrics != nil {
		m.metrics.sessionsActive.Set(0)
	}
	m.mu.Unlock()

	for _, c := range live {
		c.Close()
	}
}
