package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

type DefaultKafkaPublisher struct {
	writer *kafka.Writer
}

func NewDefaultKafkaPublisher(brokers []string) *DefaultKafkaPublisher {
	return &DefaultKafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (k *DefaultKafkaPublisher) Publish(ctx context.Context, topic string, msgs ...domain.Message) error {
	km := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		km = append(km, toKafkaMessage(topic, m))
	}
	return k.writer.WriteMessages(ctx, km...)
}

func (k *DefaultKafkaPublisher) Close() error {
	return k.writer.Close()
}

// OrderEventWriter publishes order events to one topic through any
// PublisherPort.
type OrderEventWriter struct {
	port  domain.PublisherPort
	topic string
}

func NewOrderEventWriter(port domain.PublisherPort, topic string) *OrderEventWriter {
	return &OrderEventWriter{port: port, topic: topic}
}

// PublishOrderEvent keys by buy order so events of one order stay on one
// partition.
func (w *OrderEventWriter) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	msg, err := EncodeOrderEvent(event)
	if err != nil {
		return err
	}
	return w.port.Publish(ctx, w.topic, msg)
}

func toKafkaMessage(topic string, m domain.Message) kafka.Message {
	return kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Time:  time.Now(),
		Topic: topic,
	}
}

func EncodeOrderEvent(event domain.OrderEvent) (domain.Message, error) {
	v, err := json.Marshal(event)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{Key: []byte(event.BuyOrder), Value: v}, nil
}
