package publish

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/storekit/config-hub/pkg/core"
)

// RabbitPublisher pushes change events onto a durable queue.
type RabbitPublisher struct {
	name   string
	url    string
	queue  string
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

func NewRabbit(name, url, queue string, logger *slog.Logger) *RabbitPublisher {
	return &RabbitPublisher{
		name:   name,
		url:    url,
		queue:  queue,
		logger: logger,
	}
}

func (p *RabbitPublisher) Name() string { return p.name }
func (p *RabbitPublisher) Type() string { return "rabbitmq" }

func (p *RabbitPublisher) Connect(ctx context.Context) error {
	var err error
	p.conn, err = amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	p.ch, err = p.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	if _, err := p.ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare %s: %w", p.queue, err)
	}

	p.logger.Info("rabbitmq publisher connected", "name", p.name, "queue", p.queue)
	return nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, evt core.ChangeEvent) error {
	data, err := marshalEvent(evt)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   evt.ID,
		Body:        data,
	})
}

func (p *RabbitPublisher) Close(ctx context.Context) error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
