package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"billsplit/bill"
	dbt "billsplit/db/db"
	"billsplit/libs/diff"
	"billsplit/metrics"
)

const DefaultDelay = 100 * time.Millisecond

// Persister saves one session's SplitConfiguration. Saves are debounced: a burst of
// Schedule calls results in a single write of the last configuration.
type Persister struct {
	store   dbt.SettlementDBWrapper
	session uuid.UUID
	delay   time.Duration
	log     *slog.Logger

	writeMu sync.Mutex // serializes writes so an older snapshot never lands last

	mu      sync.Mutex
	timer   *time.Timer
	pending *bill.SplitConfiguration
	written *bill.SplitConfiguration
	closed  bool
}

type Option func(*Persister)

func WithDelay(d time.Duration) Option {
	return func(p *Persister) {
		if d > 0 {
			p.delay = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(p *Persister) {
		if log != nil {
			p.log = log
		}
	}
}

func New(store dbt.SettlementDBWrapper, session uuid.UUID, opts ...Option) *Persister {
	p := &Persister{
		store:   store,
		session: session,
		delay:   DefaultDelay,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("session", session)
	return p
}

// Load restores the persisted configuration. Fields that are missing or corrupt fall
// back to their defaults individually. An error means the store itself failed; the
// returned configuration is then the default one.
func (p *Persister) Load(ctx context.Context) (bill.SplitConfiguration, error) {
	keys := make([]dbt.EntryKey, len(Keys))
	for i, name := range Keys {
		keys[i] = dbt.EntryKey{SessionID: p.session, Name: name}
	}

	loader := dbt.NewSettlementDataLoader(p.store)
	entries, err := loader.GetEntry.LoadAll(ctx, keys)
	if err != nil {
		return bill.DefaultConfiguration(), fmt.Errorf("failed to load settlement of session %s: %w", p.session, err)
	}

	values := make(map[string]string, len(Keys))
	for i, e := range entries {
		if e.Found {
			values[Keys[i]] = e.Value
		}
	}

	cfg, corrupt := DecodeConfiguration(values)
	for _, key := range corrupt {
		p.log.Warn("discarding unreadable persisted value", "key", key)
	}
	return cfg, nil
}

// Schedule queues cfg for writing after the debounce delay, replacing anything queued.
func (p *Persister) Schedule(cfg bill.SplitConfiguration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.pending = &cfg
	if p.timer == nil {
		p.timer = time.AfterFunc(p.delay, p.fire)
		return
	}
	p.timer.Reset(p.delay)
}

func (p *Persister) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Flush(ctx); err != nil {
		p.log.Warn("failed to persist settlement", "error", err)
	}
}

// Flush writes the queued configuration now. On failure it stays queued for the next attempt.
func (p *Persister) Flush(ctx context.Context) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	if p.timer != nil {
		p.timer.Stop()
	}
	written := p.written
	p.mu.Unlock()

	if pending == nil {
		return nil
	}

	if err := p.write(ctx, pending, written); err != nil {
		p.mu.Lock()
		if p.pending == nil {
			p.pending = pending
		}
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.written = pending
	p.mu.Unlock()
	return nil
}

func (p *Persister) write(ctx context.Context, cfg, written *bill.SplitConfiguration) error {
	encoded, err := EncodeConfiguration(*cfg)
	if err != nil {
		return err
	}

	keys := p.changedKeys(cfg, written)
	if len(keys) == 0 {
		return nil
	}
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		values[k] = encoded[k]
	}

	if err := p.store.SetEntries(ctx, p.session, values); err != nil {
		for _, k := range keys {
			metrics.PersistWrites.WithLabelValues(k, metrics.ResultError).Inc()
		}
		return fmt.Errorf("failed to write settlement of session %s: %w", p.session, err)
	}
	for _, k := range keys {
		metrics.PersistWrites.WithLabelValues(k, metrics.ResultOK).Inc()
	}
	p.log.Debug("persisted settlement", "keys", keys)
	return nil
}

// changedKeys lists the keys to write: all of them until something has been written,
// then only those whose field differs from the last written configuration.
func (p *Persister) changedKeys(cfg, written *bill.SplitConfiguration) []string {
	if written == nil {
		return Keys
	}
	roots, err := diff.ChangedRoots(*written, *cfg)
	if err != nil {
		p.log.Debug("diff failed, writing every key", "error", err)
		return Keys
	}
	known := make(map[string]bool, len(Keys))
	for _, k := range Keys {
		known[k] = true
	}
	var keys []string
	for _, r := range roots {
		if known[r] {
			keys = append(keys, r)
		}
	}
	return keys
}

// Close flushes anything queued and stops accepting new work.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.Flush(ctx)
}

// Forget deletes everything persisted for the session.
func (p *Persister) Forget(ctx context.Context) error {
	p.mu.Lock()
	p.pending = nil
	p.written = nil
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()
	return p.store.DeleteSession(ctx, p.session)
}
