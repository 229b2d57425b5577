package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleFlight_HitAndExpiry(t *testing.T) {
	c := NewSingleFlight[int](5 * time.Second)
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	calls := 0
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return calls * 10, nil
	}

	v, res, err := c.Get(context.Background(), "mesa-1", fetch)
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, Miss, res)

	now = now.Add(4 * time.Second)
	v, res, err = c.Get(context.Background(), "mesa-1", fetch)
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, Hit, res)

	now = now.Add(2 * time.Second)
	v, _, err = c.Get(context.Background(), "mesa-1", fetch)
	require.NoError(t, err)
	assert.Equal(t, 20, v)
	assert.Equal(t, 2, calls)

	c.Invalidate("mesa-1")
	_, _, ok := c.Peek("mesa-1")
	assert.False(t, ok)
}

func TestSingleFlight_ErrorsNotCached(t *testing.T) {
	c := NewSingleFlight[string](time.Minute)
	boom := errors.New("backend down")

	_, _, err := c.Get(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	v, res, err := c.Get(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, Miss, res)
}

func TestSingleFlight_DeduplicatesConcurrentCallers(t *testing.T) {
	c := NewSingleFlight[int](time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]int, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			v, _, err := c.Get(context.Background(), "mesa-9", fetch)
			if err == nil {
				results[i] = v
			}
		}(i)
	}

	// let every caller reach the in-flight fetch
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestSingleFlight_CallerCancelDoesNotCancelFetch(t *testing.T) {
	c := NewSingleFlight[int](time.Minute)
	release := make(chan struct{})
	fetchErr := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err := c.Get(ctx, "k", func(fctx context.Context) (int, error) {
		<-release
		fetchErr <- fctx.Err()
		return 7, nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	assert.NoError(t, <-fetchErr)

	require.Eventually(t, func() bool {
		v, _, ok := c.Peek("k")
		return ok && v == 7
	}, time.Second, 10*time.Millisecond)
}
