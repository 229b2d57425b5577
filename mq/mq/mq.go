package mq

import "github.com/google/uuid"

// TopicProvider is implemented by messages that are routed by session.
type TopicProvider interface {
	GetTopic() uuid.UUID
}

// Mode names a queue backend.
type Mode string

const (
	ModeGoChan    Mode = "go_chan"
	ModeRabbitMQ  Mode = "rabbitmq"
	ModeGCPPubSub Mode = "gcp_pub_sub"
)

// MessageQueue carries one message kind for one action. Subscriptions are filtered by topic.
type MessageQueue[M TopicProvider] interface {
	GetAction() Action
	Publish(msg M) error
	Subscribe(topic uuid.UUID) (uuid.UUID, <-chan M, error)
	DeSubscribe(id uuid.UUID) error
}

type OrderHistoryMessageQueue = MessageQueue[OrderHistoryMessage]

type SettlementMessageQueue = MessageQueue[SettlementMessage]

type SettlementMessageQueueWrapper interface {
	GetOrderHistoryMessageQueue() OrderHistoryMessageQueue
	GetSettlementMessageQueue(action Action) SettlementMessageQueue
	Close()
}
