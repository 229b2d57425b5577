package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billsplit/bill"
	"billsplit/libs/logging"
)

type scriptedSource struct {
	mu    sync.Mutex
	calls int
	fail  func(call int) bool
}

func (s *scriptedSource) FetchOrders(_ context.Context, tableID string) ([]bill.Order, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()
	if s.fail != nil && s.fail(call) {
		return nil, errors.New("backend down")
	}
	return []bill.Order{{ID: tableID, Total: "10"}}, nil
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestPoller_FetchesEagerlyAndOnTicks(t *testing.T) {
	src := &scriptedSource{}
	var updates atomic.Int32
	p := New(src, "7", func(history []bill.Order) {
		if len(history) == 1 && history[0].ID == "7" {
			updates.Add(1)
		}
	}, WithInterval(10*time.Millisecond), WithLogger(logging.Discard()))

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, int32(1), updates.Load(), "first fetch happens before Start returns")

	assert.Eventually(t, func() bool { return updates.Load() >= 3 }, time.Second, 5*time.Millisecond)
	p.Stop()

	calls := src.Calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, src.Calls(), "no fetch after Stop")
}

func TestPoller_FailuresKeepPolling(t *testing.T) {
	// first and third fetches fail
	src := &scriptedSource{fail: func(call int) bool { return call == 1 || call == 3 }}
	var updates atomic.Int32
	p := New(src, "7", func([]bill.Order) { updates.Add(1) },
		WithInterval(10*time.Millisecond), WithLogger(logging.Discard()))

	err := p.Start(context.Background())
	require.Error(t, err)
	assert.Zero(t, updates.Load())

	assert.Eventually(t, func() bool { return updates.Load() >= 2 }, time.Second, 5*time.Millisecond)
	p.Stop()
	assert.GreaterOrEqual(t, src.Calls(), 4)
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	p := New(&scriptedSource{}, "7", nil, WithLogger(logging.Discard()))
	p.Stop()
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Start(context.Background()))
	p.Stop()
	p.Stop()
}
