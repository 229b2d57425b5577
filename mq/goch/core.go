package goch

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"billsplit/mq/mq"
)

const (
	DefaultBufferSize  = 64
	DefaultSendTimeout = time.Second
)

type subscriber[T any] struct {
	topic uuid.UUID
	ch    chan T
}

// fanOutQueueCore delivers every published message to each subscriber of the
// message's topic. A subscriber that does not take a message within sendTimeout
// is dropped and its channel closed.
type fanOutQueueCore[T mq.TopicProvider] struct {
	publishChan chan T
	subscribers map[uuid.UUID]subscriber[T]
	mu          sync.RWMutex
	quit        chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
	bufferSize  int
	sendTimeout time.Duration
}

func newFanOutQueueCore[T mq.TopicProvider](bufferSize int) *fanOutQueueCore[T] {
	if bufferSize < 0 {
		bufferSize = 0
	}
	c := &fanOutQueueCore[T]{
		publishChan: make(chan T, bufferSize),
		subscribers: make(map[uuid.UUID]subscriber[T]),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		bufferSize:  bufferSize,
		sendTimeout: DefaultSendTimeout,
	}
	go c.run()
	return c
}

func (c *fanOutQueueCore[T]) run() {
	defer close(c.done)
	for {
		select {
		case msg := <-c.publishChan:
			c.dispatch(msg)
		case <-c.quit:
			c.closeAll()
			return
		}
	}
}

func (c *fanOutQueueCore[T]) dispatch(msg T) {
	topic := msg.GetTopic()
	var slow []uuid.UUID

	// sends happen under the read lock so DeSubscribe cannot close a channel mid-send
	c.mu.RLock()
	for id, sub := range c.subscribers {
		if sub.topic != topic {
			continue
		}
		timer := time.NewTimer(c.sendTimeout)
		select {
		case sub.ch <- msg:
		case <-timer.C:
			slow = append(slow, id)
		}
		timer.Stop()
	}
	c.mu.RUnlock()

	for _, id := range slow {
		_ = c.DeSubscribe(id)
	}
}

func (c *fanOutQueueCore[T]) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, sub := range c.subscribers {
		close(sub.ch)
		delete(c.subscribers, id)
	}
}

func (c *fanOutQueueCore[T]) stopped() bool {
	select {
	case <-c.quit:
		return true
	default:
		return false
	}
}

// Publish never blocks; it fails with ErrQueueFull when the publish buffer is full.
func (c *fanOutQueueCore[T]) Publish(msg T) error {
	if c.stopped() {
		return ErrQueueStopped
	}
	select {
	case c.publishChan <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *fanOutQueueCore[T]) Subscribe(topic uuid.UUID) (uuid.UUID, <-chan T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped() {
		return uuid.Nil, nil, ErrQueueStopped
	}

	id := uuid.New()
	ch := make(chan T, c.bufferSize)
	c.subscribers[id] = subscriber[T]{topic: topic, ch: ch}
	return id, ch, nil
}

func (c *fanOutQueueCore[T]) DeSubscribe(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.subscribers[id]
	if !ok {
		return fmt.Errorf("subscriber %s not found", id)
	}
	delete(c.subscribers, id)
	close(sub.ch)
	return nil
}

// Stop closes every subscriber channel and waits for the dispatcher to exit.
func (c *fanOutQueueCore[T]) Stop() {
	c.stopOnce.Do(func() { close(c.quit) })
	<-c.done
}

// --- Error Definitions ---
type QueueError string

func (e QueueError) Error() string {
	return string(e)
}

const (
	ErrQueueFull    QueueError = "message queue is full"
	ErrQueueStopped QueueError = "message queue is stopped"
)
