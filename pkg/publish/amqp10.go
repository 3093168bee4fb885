package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azure/go-amqp"

	"github.com/storekit/config-hub/pkg/core"
)

// AMQP10Publisher sends change events to an AMQP 1.0 address, for brokers
// like ActiveMQ or Azure Service Bus that the 0-9-1 client cannot reach.
type AMQP10Publisher struct {
	name    string
	url     string
	address string
	conn    *amqp.Conn
	session *amqp.Session
	sender  *amqp.Sender
	logger  *slog.Logger
}

func NewAMQP10(name, url, address string, logger *slog.Logger) *AMQP10Publisher {
	return &AMQP10Publisher{
		name:    name,
		url:     url,
		address: address,
		logger:  logger,
	}
}

func (p *AMQP10Publisher) Name() string { return p.name }
func (p *AMQP10Publisher) Type() string { return "amqp10" }

func (p *AMQP10Publisher) Connect(ctx context.Context) error {
	var err error
	p.conn, err = amqp.Dial(ctx, p.url, nil)
	if err != nil {
		return fmt.Errorf("amqp10 dial: %w", err)
	}

	p.session, err = p.conn.NewSession(ctx, nil)
	if err != nil {
		return fmt.Errorf("amqp10 session: %w", err)
	}

	p.sender, err = p.session.NewSender(ctx, p.address, nil)
	if err != nil {
		return fmt.Errorf("amqp10 sender: %w", err)
	}

	p.logger.Info("amqp10 publisher connected", "name", p.name, "address", p.address)
	return nil
}

func (p *AMQP10Publisher) Publish(ctx context.Context, evt core.ChangeEvent) error {
	data, err := marshalEvent(evt)
	if err != nil {
		return err
	}
	return p.sender.Send(ctx, &amqp.Message{
		Data: [][]byte{data},
		Properties: &amqp.MessageProperties{
			MessageID: evt.ID,
			Subject:   &evt.Shop,
		},
	}, nil)
}

func (p *AMQP10Publisher) Close(ctx context.Context) error {
	if p.sender != nil {
		p.sender.Close(ctx)
	}
	if p.session != nil {
		p.session.Close(ctx)
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
