// Package service keeps the open settlement sessions and wires each one to its
// persistence, order-history poller and event queues.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"billsplit/bill"
	dbt "billsplit/db/db"
	"billsplit/metrics"
	"billsplit/mq/mq"
	"billsplit/orders"
	"billsplit/persist"
	"billsplit/poll"
)

var ErrSessionNotFound = errors.New("session not found")

type Options struct {
	PollInterval time.Duration
	PersistDelay time.Duration
	Logger       *slog.Logger
}

type Manager struct {
	store  dbt.SettlementDBWrapper
	source orders.Source
	queues mq.SettlementMessageQueueWrapper // may be nil
	opts   Options
	log    *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewManager(store dbt.SettlementDBWrapper, source orders.Source, queues mq.SettlementMessageQueueWrapper, opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:    store,
		source:   source,
		queues:   queues,
		opts:     opts,
		log:      log,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open returns the session, restoring its persisted configuration and starting its
// poller when it is not open yet. A uuid.Nil id opens a new session. The session
// stays open when the first order-history fetch fails; that error is returned with it.
func (m *Manager) Open(ctx context.Context, sessionID uuid.UUID, tableID string) (*Session, error) {
	if sessionID == uuid.Nil {
		sessionID = uuid.New()
	}

	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		if s.TableID == tableID {
			return s, nil
		}
		// same diner moved to another table
		if err := m.Close(ctx, sessionID, false); err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.log.Warn("failed to close session before reopening", "session", sessionID, "error", err)
		}
	} else {
		m.mu.Unlock()
	}

	s := m.newSession(sessionID, tableID)

	cfg, err := s.persister.Load(ctx)
	if err != nil {
		s.log.Warn("restoring defaults, persisted settlement unreadable", "error", err)
	}
	s.settlement.Restore(cfg)
	s.settlement.OnChange(s.persister.Schedule)

	m.mu.Lock()
	if existing, ok := m.sessions[sessionID]; ok {
		// lost a race with a concurrent Open of the same session
		m.mu.Unlock()
		return existing, nil
	}
	m.sessions[sessionID] = s
	m.mu.Unlock()
	metrics.OpenSessions.Inc()
	s.log.Info("session opened")

	if err := s.poller.Start(context.WithoutCancel(ctx)); err != nil {
		return s, err
	}
	return s, nil
}

func (m *Manager) newSession(sessionID uuid.UUID, tableID string) *Session {
	log := m.log.With("session", sessionID, "table", tableID)
	s := &Session{
		ID:         sessionID,
		TableID:    tableID,
		settlement: bill.NewSettlement(),
		source:     m.source,
		queues:     m.queues,
		log:        log,
	}
	s.persister = persist.New(m.store, sessionID, persist.WithDelay(m.opts.PersistDelay), persist.WithLogger(log))
	s.poller = poll.New(m.source, tableID, s.applyOrders, poll.WithInterval(m.opts.PollInterval), poll.WithLogger(log))
	return s
}

func (m *Manager) Get(sessionID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close stops the session's poller and flushes pending writes. With purge the
// persisted configuration is deleted as well.
func (m *Manager) Close(ctx context.Context, sessionID uuid.UUID, purge bool) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	metrics.OpenSessions.Dec()

	err := s.close(ctx)
	if purge {
		if perr := s.persister.Forget(ctx); perr != nil {
			err = errors.Join(err, perr)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to close session %s: %w", sessionID, err)
	}
	s.log.Info("session closed", "purged", purge)
	return nil
}

// Shutdown closes every open session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.Close(ctx, id, false); err != nil && !errors.Is(err, ErrSessionNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Queues exposes the event queues for subscribers such as the websocket stream.
func (m *Manager) Queues() mq.SettlementMessageQueueWrapper {
	return m.queues
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
