package gcppubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"

	"billsplit/mq/mq"
)

const (
	sessionIDAttribute = "sessionId"
)

// subscriptionInfo holds details about an active Pub/Sub subscription.
type subscriptionInfo struct {
	gcpSubscription *pubsub.Subscription
	cancel          context.CancelFunc
}

// GenericPubSubService publishes and receives one message type on one Pub/Sub topic.
// Messages carry the session id as an attribute that subscriptions filter on.
type GenericPubSubService[M mq.TopicProvider] struct {
	client              *pubsub.Client
	topic               *pubsub.Topic
	action              mq.Action
	activeSubscriptions map[uuid.UUID]*subscriptionInfo
	subscriptionsMutex  sync.Mutex
	ctx                 context.Context
}

// NewGenericPubSubService ensures the topic exists, creating it if necessary.
func NewGenericPubSubService[M mq.TopicProvider](ctx context.Context, client *pubsub.Client, topicID string, action mq.Action) (*GenericPubSubService[M], error) {
	if client == nil {
		return nil, errors.New("GCP Pub/Sub client is nil")
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existence of topic %s: %w", topicID, err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			return nil, fmt.Errorf("failed to create topic %s: %w", topicID, err)
		}
		slog.Info("created Pub/Sub topic", "topic", topicID)
	}

	return &GenericPubSubService[M]{
		client:              client,
		topic:               topic,
		action:              action,
		activeSubscriptions: make(map[uuid.UUID]*subscriptionInfo),
		ctx:                 ctx,
	}, nil
}

func (s *GenericPubSubService[M]) GetAction() mq.Action {
	return s.action
}

// Publish waits for the server to acknowledge the message.
func (s *GenericPubSubService[M]) Publish(msg M) error {
	typeName := reflect.TypeOf(msg).Name()
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", typeName, err)
	}

	result := s.topic.Publish(s.ctx, &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			sessionIDAttribute: msg.GetTopic().String(),
		},
	})
	if _, err := result.Get(s.ctx); err != nil {
		return fmt.Errorf("failed to publish %s to topic %s: %w", typeName, s.topic.ID(), err)
	}
	return nil
}

// Subscribe creates a filtered GCP subscription for sessionID and starts receiving.
// The subscription is deleted when the receiver stops.
func (s *GenericPubSubService[M]) Subscribe(sessionID uuid.UUID) (uuid.UUID, <-chan M, error) {
	subscriptionID := uuid.New()
	typeName := reflect.TypeOf(*new(M)).Name()

	gcpSubName := fmt.Sprintf("sub-%s-%s", s.topic.ID(), subscriptionID.String())
	config := pubsub.SubscriptionConfig{
		Topic:            s.topic,
		Filter:           fmt.Sprintf("attributes.%s = \"%s\"", sessionIDAttribute, sessionID.String()),
		ExpirationPolicy: 24 * time.Hour,
		AckDeadline:      10 * time.Second,
	}

	gcpSub, err := s.client.CreateSubscription(s.ctx, gcpSubName, config)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to create GCP subscription %s for %s: %w", gcpSubName, typeName, err)
	}

	msgChan := make(chan M, 5)
	receiveCtx, cancel := context.WithCancel(s.ctx)

	s.subscriptionsMutex.Lock()
	s.activeSubscriptions[subscriptionID] = &subscriptionInfo{
		gcpSubscription: gcpSub,
		cancel:          cancel,
	}
	s.subscriptionsMutex.Unlock()

	go func() {
		defer func() {
			s.subscriptionsMutex.Lock()
			delete(s.activeSubscriptions, subscriptionID)
			s.subscriptionsMutex.Unlock()

			if deleteErr := gcpSub.Delete(context.Background()); deleteErr != nil {
				slog.Warn("failed to delete GCP subscription", "subscription", gcpSub.ID(), "error", deleteErr)
			}
			close(msgChan)
		}()

		// Receive blocks until the context is cancelled.
		err := gcpSub.Receive(receiveCtx, func(ctx context.Context, pubsubMsg *pubsub.Message) {
			pubsubMsg.Ack()

			var msg M
			if err := json.Unmarshal(pubsubMsg.Data, &msg); err != nil {
				slog.Warn("failed to unmarshal message", "type", typeName, "subscription", subscriptionID, "error", err)
				return
			}

			select {
			case msgChan <- msg:
			case <-time.After(2 * time.Second):
				slog.Warn("timeout delivering message", "type", typeName, "subscription", subscriptionID)
			case <-receiveCtx.Done():
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("receive loop stopped", "type", typeName, "subscription", subscriptionID, "error", err)
		}
	}()

	return subscriptionID, msgChan, nil
}

// DeSubscribe stops the receiver; its goroutine removes the GCP subscription.
func (s *GenericPubSubService[M]) DeSubscribe(id uuid.UUID) error {
	s.subscriptionsMutex.Lock()
	info, ok := s.activeSubscriptions[id]
	if ok {
		info.cancel()
	}
	s.subscriptionsMutex.Unlock()

	if !ok {
		return fmt.Errorf("subscription ID %s not found for %s service", id, reflect.TypeOf(*new(M)).Name())
	}
	return nil
}

// Close stops every active subscription of this service.
func (s *GenericPubSubService[M]) Close() {
	s.subscriptionsMutex.Lock()
	defer s.subscriptionsMutex.Unlock()

	for _, info := range s.activeSubscriptions {
		info.cancel()
	}
}

func topicName(kind string, action mq.Action) string {
	return fmt.Sprintf("billsplit-%s-%s", kind, action)
}

type GCPSettlementMessageQueueWrapper struct {
	client            *pubsub.Client
	OrderHistoryMQ    *GenericPubSubService[mq.OrderHistoryMessage]
	SettlementMQArray [mq.ActionCnt]*GenericPubSubService[mq.SettlementMessage]
}

// NewGCPSettlementMessageQueueWrapper creates a new MQ wrapper instance using GCP Pub/Sub.
func NewGCPSettlementMessageQueueWrapper(ctx context.Context, projectID string) (mq.SettlementMessageQueueWrapper, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Pub/Sub client for project %s: %w", projectID, err)
	}

	wrapper := &GCPSettlementMessageQueueWrapper{client: client}
	wrapper.OrderHistoryMQ, err = NewGenericPubSubService[mq.OrderHistoryMessage](ctx, client, topicName("orders", mq.ActionUpdate), mq.ActionUpdate)
	if err != nil {
		client.Close()
		return nil, err
	}
	for action := mq.ActionCreate; action < mq.ActionCnt; action++ {
		wrapper.SettlementMQArray[action], err = NewGenericPubSubService[mq.SettlementMessage](ctx, client, topicName("settlement", action), action)
		if err != nil {
			client.Close()
			return nil, err
		}
	}
	return wrapper, nil
}

func (wrapper *GCPSettlementMessageQueueWrapper) GetOrderHistoryMessageQueue() mq.OrderHistoryMessageQueue {
	return wrapper.OrderHistoryMQ
}

func (wrapper *GCPSettlementMessageQueueWrapper) GetSettlementMessageQueue(action mq.Action) mq.SettlementMessageQueue {
	if action < 0 || action >= mq.ActionCnt || wrapper.SettlementMQArray[action] == nil {
		return nil
	}
	return wrapper.SettlementMQArray[action]
}

func (wrapper *GCPSettlementMessageQueueWrapper) Close() {
	if wrapper.OrderHistoryMQ != nil {
		wrapper.OrderHistoryMQ.Close()
	}
	for _, q := range wrapper.SettlementMQArray {
		if q != nil {
			q.Close()
		}
	}
	if wrapper.client != nil {
		wrapper.client.Close()
	}
}
