package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stackforge/terraform-registry/common/logger"
	"github.com/stackforge/terraform-registry/common/queue"
)

// PublishedEvent describes a committed module version. Consumed by the
// documentation generator and the external mirror.
type PublishedEvent struct {
	Namespace   string    `json:"namespace"`
	Name        string    `json:"name"`
	Provider    string    `json:"provider"`
	Version     string    `json:"version"`
	Locator     string    `json:"locator"`
	PublishedAt time.Time `json:"published_at"`
}

// Notifier publishes post-commit events. All publishing is
// fire-and-forget: a consumer failure never affects the committed
// transaction.
type Notifier struct {
	queue queue.Queue
	log   *logger.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(q queue.Queue, log *logger.Logger) *Notifier {
	return &Notifier{
		queue: q,
		log:   log,
	}
}

// ModulePublished emits docs-generation and mirror-push requests for a
// committed version
func (n *Notifier) ModulePublished(ctx context.Context, event PublishedEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.log.Error("failed to marshal published event", "error", err)
		return
	}

	key := event.Namespace + "/" + event.Name + "/" + event.Provider

	for _, topic := range []string{queue.TopicDocsGenerate, queue.TopicMirrorPush} {
		if err := n.queue.Publish(ctx, topic, key, payload); err != nil {
			n.log.Warn("failed to publish event", "topic", topic, "key", key, "error", err)
		}
	}
}

// RegisterConsumers attaches the in-process stand-ins for the external
// docs and mirror collaborators: they acknowledge events in the log so
// deployments without real consumers still drain the topics.
func RegisterConsumers(ctx context.Context, q queue.Queue, log *logger.Logger) error {
	handler := func(topic string) queue.MessageHandler {
		return func(ctx context.Context, key string, value []byte) error {
			var event PublishedEvent
			if err := json.Unmarshal(value, &event); err != nil {
				log.Warn("unparseable event", "topic", topic, "key", key, "error", err)
				return nil
			}
			log.Info("event received",
				"topic", topic,
				"module", key,
				"version", event.Version,
			)
			return nil
		}
	}

	for _, topic := range []string{queue.TopicDocsGenerate, queue.TopicMirrorPush} {
		if err := q.Subscribe(ctx, topic, handler(topic)); err != nil {
			return err
		}
	}

	return nil
}
