package mq

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Subscriber is anything that can be subscribed to by topic, with messages of type M.
type Subscriber[M any] interface {
	Subscribe(uuid.UUID) (uuid.UUID, <-chan M, error)
	DeSubscribe(id uuid.UUID) error
}

// SubscribeProcessor subscribes service to topicID in a goroutine and forwards each
// message through transformFunc into outputStream until ctx ends or the subscription
// closes. outputStream is closed on exit; it must belong to this subscription alone.
// A transform may skip a message or fail on it; either way the message is dropped.
func SubscribeProcessor[S Subscriber[M], M any, O any](
	topicID uuid.UUID,
	ctx context.Context,
	service S,
	transformFunc func(msg M) (O, bool, error),
	outputStream chan<- O,
) {
	go func() {
		uid, inputCh, err := service.Subscribe(topicID)
		if err != nil {
			slog.Warn("subscribe failed", "topic", topicID, "error", err)
			close(outputStream)
			return
		}

		defer func() {
			if err := service.DeSubscribe(uid); err != nil {
				slog.Debug("de-subscribe failed", "subscription", uid, "error", err)
			}
			close(outputStream)
		}()

		for {
			select {
			case msg, ok := <-inputCh:
				if !ok {
					return
				}

				output, skip, err := transformFunc(msg)
				if err != nil {
					slog.Debug("dropping message", "subscription", uid, "error", err)
					continue
				}
				if skip {
					continue
				}

				select {
				case outputStream <- output:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()
}
