package kafka

import (
	"context"
	"encoding/json"
	"log"

	kafkago "github.com/segmentio/kafka-go"
)

// Publisher publishes order lifecycle events. Publish failures must never
// fail the operation that produced the event; implementations log and move on.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload any)
	Close() error
}

// KafkaPublisher keeps one writer per topic.
type KafkaPublisher struct {
	writers map[string]*kafkago.Writer
}

// NewPublisher creates writers for every topic in topics.
func NewPublisher(brokers []string, topics []string) *KafkaPublisher {
	writers := make(map[string]*kafkago.Writer, len(topics))
	for _, topic := range topics {
		writers[topic] = NewKafkaWriter(brokers, topic)
	}
	return &KafkaPublisher{writers: writers}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, key string, payload any) {
	writer, ok := p.writers[topic]
	if !ok {
		log.Printf("No writer configured for topic %s", topic)
		return
	}

	value, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal event for topic %s: %v", topic, err)
		return
	}

	if err := WriteMessage(ctx, writer, []byte(key), value); err != nil {
		log.Printf("Failed to publish event to topic %s: %v", topic, err)
	}
}

func (p *KafkaPublisher) Close() error {
	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NopPublisher discards events. Used in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, topic string, key string, payload any) {}

func (NopPublisher) Close() error { return nil }
