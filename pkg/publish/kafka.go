package publish

import (
	"context"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/storekit/config-hub/pkg/core"
)

// KafkaPublisher writes change events to one topic, keyed by shop so a
// consumer sees each shop's changes in write order.
type KafkaPublisher struct {
	name    string
	brokers []string
	topic   string
	writer  *kafka.Writer
	logger  *slog.Logger
}

func NewKafka(name string, brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		name:    name,
		brokers: brokers,
		topic:   topic,
		logger:  logger,
	}
}

func (p *KafkaPublisher) Name() string { return p.name }
func (p *KafkaPublisher) Type() string { return "kafka" }

func (p *KafkaPublisher) Connect(ctx context.Context) error {
	p.writer = &kafka.Writer{
		Addr:     kafka.TCP(p.brokers...),
		Topic:    p.topic,
		Balancer: &kafka.Hash{},
	}
	p.logger.Info("kafka publisher connected",
		"name", p.name,
		"brokers", strings.Join(p.brokers, ","),
		"topic", p.topic,
	)
	return nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt core.ChangeEvent) error {
	data, err := marshalEvent(evt)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Shop),
		Value: data,
	})
}

func (p *KafkaPublisher) Close(ctx context.Context) error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
