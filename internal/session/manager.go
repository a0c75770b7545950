package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/datasource"
	"github.com/sal-openlab/datafusion-server/internal/engine"
	"github.com/sal-openlab/datafusion-server/internal/externaldb"
	"github.com/sal-openlab/datafusion-server/internal/mlog"
)

// EngineFactory constructs a fresh embedded engine session for a
// newly created session context, letting tests substitute a fake
// engine.Session without linking go-duckdb.
type EngineFactory func() (engine.Session, error)

// Manager is the process-wide Session Manager (C7): a map of session
// id to Context, reaped by TTL on a fixed interval. NewManager starts
// the reap goroutine immediately; Close stops it so no goroutine is
// ever left running past server shutdown.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Context

	newEngine    EngineFactory
	defaultTTL   time.Duration
	registry     *datasource.Registry
	logger       mlog.Logger
	reapInterval time.Duration
	externalDB   *externaldb.Resolver

	reaper *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// NewManager builds a Manager and starts its reap goroutine. externalDB
// may be nil, in which case sessions never resolve "@namespace"-
// qualified table references (spec.md §4.5) and such a query fails the
// same way it would against a plain DuckDB table of that literal name.
func NewManager(newEngine EngineFactory, registry *datasource.Registry, defaultTTL, reapInterval time.Duration, logger mlog.Logger, externalDB *externaldb.Resolver) *Manager {
	m := &Manager{
		sessions:     make(map[string]*Context),
		newEngine:    newEngine,
		defaultTTL:   defaultTTL,
		registry:     registry,
		logger:       logger,
		reapInterval: reapInterval,
		externalDB:   externalDB,
		reaper:       time.NewTicker(reapInterval),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	go m.reapLoop()

	return m
}

func (m *Manager) reapLoop() {
	defer close(m.done)

	for {
		select {
		case <-m.reaper.C:
			m.Reap()
		case <-m.stop:
			return
		}
	}
}

// Close stops the reap goroutine and blocks until it has exited.
func (m *Manager) Close() {
	m.reaper.Stop()
	close(m.stop)
	<-m.done
}

// CreateSession creates a new session under id (generating a uuid if
// empty), failing with a duplicate error if id is already present.
// keepAlive of zero uses the manager's configured default.
func (m *Manager) CreateSession(id string, keepAlive time.Duration) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	if keepAlive <= 0 {
		keepAlive = m.defaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return "", apperr.RequestValidation("session %q already exists", id)
	}

	eng, err := m.newEngine()
	if err != nil {
		return "", apperr.DataFusion(fmt.Errorf("create engine session: %w", err))
	}

	m.sessions[id] = NewContext(id, eng, keepAlive, m.externalDB)

	return id, nil
}

// List returns a snapshot of every live session context.
func (m *Manager) List() []*Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Context, 0, len(m.sessions))
	for _, sc := range m.sessions {
		out = append(out, sc)
	}

	return out
}

// Get returns the session context for id.
func (m *Manager) Get(id string) (*Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sc, ok := m.sessions[id]
	if !ok {
		return nil, apperr.SessionNotFound(id)
	}

	return sc, nil
}

// DestroySession removes id's entry and releases its engine.
func (m *Manager) DestroySession(id string) error {
	m.mu.Lock()
	sc, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return apperr.SessionNotFound(id)
	}

	return sc.Close()
}

// Reap implements the two-phase sweep from spec.md §4.8 exactly:
// snapshot keys under RLock, test Expired() per session under its own
// RLock, remove expired entries under the manager's Lock one at a
// time. The only point where two locks are held together is the
// re-check of Expired() (the session's RLock) inside the manager's
// Lock before removal; the sweep never blocks a request handler for
// more than one session's worth of work.
func (m *Manager) Reap() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.mu.RLock()
		sc, ok := m.sessions[id]
		m.mu.RUnlock()

		if !ok || !sc.Expired() {
			continue
		}

		m.mu.Lock()
		// Re-check under the write lock: another goroutine may have
		// touched or already removed this session between the RLock
		// snapshot above and acquiring the Lock here.
		sc, ok = m.sessions[id]
		if ok && sc.Expired() {
			delete(m.sessions, id)
		} else {
			ok = false
		}
		m.mu.Unlock()

		if ok {
			if err := sc.Close(); err != nil {
				m.logger.Warnf("close reaped session %q: %s", id, err)
			}

			m.logger.Infof("reaped expired session %q", id)
		}
	}
}

// AppendDataSource dispatches ds to the reader matching (ds.format,
// scheme-class) via the double match in internal/datasource's
// registry, reads it, and registers the resulting batches on the
// session identified by id.
func (m *Manager) AppendDataSource(ctx context.Context, id string, ds datasource.DataSource) error {
	sc, err := m.Get(id)
	if err != nil {
		return err
	}

	if err := sc.ExistsDataSource(ds); err != nil {
		return err
	}

	reader, err := m.registry.Resolve(ds)
	if err != nil {
		return err
	}

	batches, err := reader.Read(ctx, ds)
	if err != nil {
		return err
	}

	return sc.RegisterRecordBatch(ds, batches)
}

// RefreshDataSource re-ingests name from the descriptor it was
// registered with, rejecting names not registered on the session.
func (m *Manager) RefreshDataSource(ctx context.Context, id, name string) error {
	sc, err := m.Get(id)
	if err != nil {
		return err
	}

	ds, ok := sc.DataSource(name)
	if !ok {
		return apperr.RequestValidation("data source %q has no descriptor to refresh", name)
	}

	ds.Options.Overwrite = true
	ds.Options.RefreshSchema = true

	return m.AppendDataSource(ctx, id, ds)
}
