package repository

import (
	"context"

	"SigPulse/internal/domain/models"
	"SigPulse/internal/domain/repository"
	pkgkafka "SigPulse/pkg/kafka"
)

// KafkaPublisher ships accepted signals to the egress topic consumed by
// downstream digest and notification services.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates a Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish keys by category so per-category ordering survives partitioning.
func (p *KafkaPublisher) Publish(ctx context.Context, s *models.Signal) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Category), s)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops signals; used when the Kafka egress is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *models.Signal) error { return nil }
func (NopPublisher) Close() error                                  { return nil }
