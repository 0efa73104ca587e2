package repository

import (
	"context"
	"time"

	"ZoneScan/internal/domain/models"
	drepo "ZoneScan/internal/domain/repository"
	pkgkafka "ZoneScan/pkg/kafka"
)

// EventZoneAccepted is the event type carried by every zone message.
const EventZoneAccepted = "zone.accepted"

// BatchProducer is the subset of pkg/kafka.Producer used for publishing.
type BatchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// ZoneEvent is the message body published for each accepted zone.
type ZoneEvent struct {
	Event       string      `json:"event"`
	PublishedAt time.Time   `json:"publishedAt"`
	Zone        models.Zone `json:"zone"`
}

// KafkaZonePublisher publishes accepted zones keyed by ticker so each ticker
// keeps its order within a partition.
type KafkaZonePublisher struct {
	producer BatchProducer
	topic    string
	now      func() time.Time
}

func NewKafkaZonePublisher(producer BatchProducer, topic string) *KafkaZonePublisher {
	return &KafkaZonePublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaZonePublisher) PublishZones(ctx context.Context, zones []models.Zone) error {
	if len(zones) == 0 {
		return nil
	}
	ts := p.now()
	msgs := make([]pkgkafka.Message, len(zones))
	for i, z := range zones {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(z.Ticker),
			Value: ZoneEvent{Event: EventZoneAccepted, PublishedAt: ts, Zone: z},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaZonePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ drepo.ZonePublisher = (*KafkaZonePublisher)(nil)
