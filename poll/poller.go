// Package poll refreshes a table's order history on a fixed interval.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"billsplit/bill"
	"billsplit/metrics"
	"billsplit/orders"
)

const DefaultInterval = 10 * time.Second

// Poller fetches the order history once on Start and then every interval until Stop.
// Failed fetches are logged and skipped; the previous history stays in effect.
type Poller struct {
	source   orders.Source
	tableID  string
	onUpdate func([]bill.Order)
	interval time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(p *Poller) {
		if log != nil {
			p.log = log
		}
	}
}

func New(source orders.Source, tableID string, onUpdate func([]bill.Order), opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		tableID:  tableID,
		onUpdate: onUpdate,
		interval: DefaultInterval,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("table", tableID)
	return p
}

// Start fetches once synchronously and returns that fetch's error, then keeps polling
// in the background either way. Starting a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	err := p.Poll(ctx)
	go p.loop(ctx, done)
	return err
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
				p.log.Warn("order history refresh failed", "error", err)
			}
		}
	}
}

// Poll fetches now and hands the history to the update callback on success.
func (p *Poller) Poll(ctx context.Context) error {
	history, err := p.source.FetchOrders(ctx, p.tableID)
	if err != nil {
		metrics.OrderPolls.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("failed to fetch orders of table %s: %w", p.tableID, err)
	}
	metrics.OrderPolls.WithLabelValues(metrics.ResultOK).Inc()
	if p.onUpdate != nil {
		p.onUpdate(history)
	}
	return nil
}

// Stop ends the polling loop and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
