package repository

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"

	"ZeroDTE/internal/domain/models"
	domrepo "ZeroDTE/internal/domain/repository"
	pkgkafka "ZeroDTE/pkg/kafka"
)

// messagePublisher is the part of *pkgkafka.Producer the publisher needs.
type messagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...kafka.Header) error
	Close() error
}

// KafkaAnalysisPublisher sends finished analyses to the results topic,
// keyed by the primary instrument so consumers see them in order.
type KafkaAnalysisPublisher struct {
	producer messagePublisher
	topic    string
}

// NewKafkaAnalysisPublisher creates a Kafka publisher.
func NewKafkaAnalysisPublisher(producer *pkgkafka.Producer, topic string) *KafkaAnalysisPublisher {
	return &KafkaAnalysisPublisher{producer: producer, topic: topic}
}

func (p *KafkaAnalysisPublisher) Publish(ctx context.Context, a *models.Analysis) error {
	if a == nil {
		return errors.New("nil analysis")
	}
	trace := pkgkafka.TraceIDFrom(ctx)
	if trace == "" {
		trace = a.ID
	}
	return p.producer.Publish(ctx, p.topic, []byte(models.XSP), a, pkgkafka.TraceHeaders(trace)...)
}

func (p *KafkaAnalysisPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher drops analyses; used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *models.Analysis) error { return nil }
func (NopPublisher) Close() error                                    { return nil }

var (
	_ domrepo.AnalysisPublisher = (*KafkaAnalysisPublisher)(nil)
	_ domrepo.AnalysisPublisher = NopPublisher{}
)
