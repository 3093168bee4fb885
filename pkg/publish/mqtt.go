package publish

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/storekit/config-hub/pkg/core"
)

// MQTTPublisher publishes change events to shops/<shop>/config, which lets
// lightweight consumers subscribe per shop with a plain topic filter.
type MQTTPublisher struct {
	name        string
	brokerURL   string
	topicPrefix string
	cm          *autopaho.ConnectionManager
	logger      *slog.Logger
}

func NewMQTT(name, brokerURL, topicPrefix string, logger *slog.Logger) *MQTTPublisher {
	if topicPrefix == "" {
		topicPrefix = "shops"
	}
	return &MQTTPublisher{
		name:        name,
		brokerURL:   brokerURL,
		topicPrefix: topicPrefix,
		logger:      logger,
	}
}

func (p *MQTTPublisher) Name() string { return p.name }
func (p *MQTTPublisher) Type() string { return "mqtt" }

func (p *MQTTPublisher) Connect(ctx context.Context) error {
	serverURL, err := url.Parse(p.brokerURL)
	if err != nil {
		return fmt.Errorf("mqtt invalid URL: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			p.logger.Info("mqtt connection up", "name", p.name)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "confighub-" + p.name + "-" + uuid.New().String()[:8],
		},
	}

	p.cm, err = autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("mqtt connection: %w", err)
	}

	if err := p.cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("mqtt await connection: %w", err)
	}

	p.logger.Info("mqtt publisher connected", "name", p.name, "broker", p.brokerURL)
	return nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, evt core.ChangeEvent) error {
	data, err := marshalEvent(evt)
	if err != nil {
		return err
	}
	_, err = p.cm.Publish(ctx, &paho.Publish{
		Topic:   fmt.Sprintf("%s/%s/config", p.topicPrefix, evt.Shop),
		QoS:     1,
		Payload: data,
	})
	return err
}

func (p *MQTTPublisher) Close(ctx context.Context) error {
	if p.cm != nil {
		return p.cm.Disconnect(ctx)
	}
	return nil
}
