package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"billsplit/mq/mq"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// StreamEvent is one frame of the session websocket.
type StreamEvent struct {
	Type string `json:"type"` // snapshot, orders.update, settlement.create|update|delete
	Data any    `json:"data"`
}

// subscribeSessionEvents merges every queue's events for sessionID into one channel,
// closed once ctx ends and all subscriptions have shut down.
func subscribeSessionEvents(ctx context.Context, queues mq.SettlementMessageQueueWrapper, sessionID uuid.UUID) <-chan StreamEvent {
	merged := make(chan StreamEvent)
	var wg sync.WaitGroup

	forward := func(in <-chan StreamEvent) {
		defer wg.Done()
		for ev := range in {
			select {
			case merged <- ev:
			case <-ctx.Done():
			}
		}
	}

	ordersOut := make(chan StreamEvent)
	wg.Add(1)
	go forward(ordersOut)
	mq.SubscribeProcessor[mq.OrderHistoryMessageQueue, mq.OrderHistoryMessage, StreamEvent](
		sessionID, ctx, queues.GetOrderHistoryMessageQueue(),
		func(msg mq.OrderHistoryMessage) (StreamEvent, bool, error) {
			return StreamEvent{Type: "orders.update", Data: msg}, false, nil
		}, ordersOut)

	for action := mq.ActionCreate; action < mq.ActionCnt; action++ {
		q := queues.GetSettlementMessageQueue(action)
		if q == nil {
			continue
		}
		eventType := "settlement." + action.String()
		out := make(chan StreamEvent)
		wg.Add(1)
		go forward(out)
		mq.SubscribeProcessor[mq.SettlementMessageQueue, mq.SettlementMessage, StreamEvent](
			sessionID, ctx, q,
			func(msg mq.SettlementMessage) (StreamEvent, bool, error) {
				return StreamEvent{Type: eventType, Data: msg}, false, nil
			}, out)
	}

	go func() {
		wg.Wait()
		close(merged)
	}()
	return merged
}

func (h *handler) stream(c *gin.Context) {
	s := currentSession(c)
	queues := h.manager.Queues()
	if queues == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered the client
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	// the client never sends data; reading surfaces its close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	events := subscribeSessionEvents(ctx, queues, s.ID)
	write := func(ev StreamEvent) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev)
	}

	if err := write(StreamEvent{Type: "snapshot", Data: s.Snapshot()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := write(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
