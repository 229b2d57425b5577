package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"billsplit/mq/mq"
)

const (
	exchangeName = "settlement_events_exchange" // All settlement events go through this exchange
)

const (
	kindOrderHistory = "orders"
	kindSettlement   = "settlement"
)

// routingKey is <kind>.<action>.<session>, so a subscription binds to exactly one session.
func routingKey(kind string, action mq.Action, topic uuid.UUID) string {
	return fmt.Sprintf("%s.%s.%s", kind, action, topic)
}

type consumer struct {
	channel *amqp091.Channel
}

// rabbitMessageQueue implements mq.MessageQueue for RabbitMQ.
type rabbitMessageQueue[M mq.TopicProvider] struct {
	action    mq.Action
	kind      string
	conn      *amqp091.Connection
	channel   *amqp091.Channel // publishing channel
	mu        sync.Mutex       // Protects the consumers map
	consumers map[uuid.UUID]consumer
}

func newRabbitMessageQueue[M mq.TopicProvider](kind string, action mq.Action, conn *amqp091.Connection) (*rabbitMessageQueue[M], error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := declareExchange(ch, exchangeName); err != nil {
		ch.Close()
		return nil, err
	}

	return &rabbitMessageQueue[M]{
		action:    action,
		kind:      kind,
		conn:      conn,
		channel:   ch,
		consumers: make(map[uuid.UUID]consumer),
	}, nil
}

func (q *rabbitMessageQueue[M]) GetAction() mq.Action {
	return q.action
}

func (q *rabbitMessageQueue[M]) Publish(msg M) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = q.channel.PublishWithContext(ctx,
		exchangeName, // exchange
		routingKey(q.kind, q.action, msg.GetTopic()), // routing key
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Subscribe binds a private queue to topic. The returned channel closes on DeSubscribe.
func (q *rabbitMessageQueue[M]) Subscribe(topic uuid.UUID) (uuid.UUID, <-chan M, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	queueName, err := DeclareQueueAndExchange(ch, exchangeName, routingKey(q.kind, q.action, topic))
	if err != nil {
		ch.Close()
		return uuid.Nil, nil, err
	}

	deliveries, err := ch.Consume(
		queueName, // queue
		"",        // consumer
		true,      // auto-ack
		true,      // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		ch.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	subscriberID := uuid.New()
	outputChan := make(chan M, 16)

	q.mu.Lock()
	q.consumers[subscriberID] = consumer{channel: ch}
	q.mu.Unlock()

	go func() {
		// deliveries closes when the channel is closed by DeSubscribe or Close
		defer close(outputChan)

		for d := range deliveries {
			var msg M
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				slog.Warn("failed to unmarshal message", "queue", queueName, "error", err)
				continue
			}

			select {
			case outputChan <- msg:
			case <-time.After(1 * time.Second):
				slog.Warn("timeout sending message to consumer, skipping", "subscriber", subscriberID)
			}
		}
	}()

	return subscriberID, outputChan, nil
}

func (q *rabbitMessageQueue[M]) DeSubscribe(subscriberID uuid.UUID) error {
	q.mu.Lock()
	c, ok := q.consumers[subscriberID]
	delete(q.consumers, subscriberID)
	q.mu.Unlock()

	if !ok {
		return fmt.Errorf("consumer with ID %s not found for %s.%s", subscriberID, q.kind, q.action)
	}
	return c.channel.Close()
}

func (q *rabbitMessageQueue[M]) close() {
	q.mu.Lock()
	for id, c := range q.consumers {
		c.channel.Close()
		delete(q.consumers, id)
	}
	q.mu.Unlock()
	if q.channel != nil {
		q.channel.Close()
	}
}

// rabbitSettlementMessageQueueWrapper implements mq.SettlementMessageQueueWrapper for RabbitMQ
type rabbitSettlementMessageQueueWrapper struct {
	orderHistoryMQ    *rabbitMessageQueue[mq.OrderHistoryMessage]
	settlementMQArray [mq.ActionCnt]*rabbitMessageQueue[mq.SettlementMessage]
	conn              *amqp091.Connection // Keep a reference to the connection to close it later
}

func NewRabbitSettlementMessageQueueWrapper(conn *amqp091.Connection) (mq.SettlementMessageQueueWrapper, error) {
	wrapper := &rabbitSettlementMessageQueueWrapper{
		conn: conn,
	}

	var err error
	wrapper.orderHistoryMQ, err = newRabbitMessageQueue[mq.OrderHistoryMessage](kindOrderHistory, mq.ActionUpdate, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create order history mq: %w", err)
	}
	for action := mq.ActionCreate; action < mq.ActionCnt; action++ {
		wrapper.settlementMQArray[action], err = newRabbitMessageQueue[mq.SettlementMessage](kindSettlement, action, conn)
		if err != nil {
			wrapper.Close()
			return nil, fmt.Errorf("failed to create settlement %s mq: %w", action, err)
		}
	}

	return wrapper, nil
}

func (wrapper *rabbitSettlementMessageQueueWrapper) GetOrderHistoryMessageQueue() mq.OrderHistoryMessageQueue {
	return wrapper.orderHistoryMQ
}

func (wrapper *rabbitSettlementMessageQueueWrapper) GetSettlementMessageQueue(action mq.Action) mq.SettlementMessageQueue {
	if action < 0 || action >= mq.ActionCnt || wrapper.settlementMQArray[action] == nil {
		return nil
	}
	return wrapper.settlementMQArray[action]
}

// Close closes all channels and the RabbitMQ connection.
func (wrapper *rabbitSettlementMessageQueueWrapper) Close() {
	if wrapper.orderHistoryMQ != nil {
		wrapper.orderHistoryMQ.close()
	}
	for _, q := range wrapper.settlementMQArray {
		if q != nil {
			q.close()
		}
	}
	if wrapper.conn != nil {
		wrapper.conn.Close()
	}
}
