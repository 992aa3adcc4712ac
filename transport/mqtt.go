package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var ErrNotConnected = errors.New("mqtt client is not connected")

// Publisher sends one payload to a topic. A nil error means the broker
// acknowledged the publish.
type Publisher interface {
	Send(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
}

// pahoPublisher is the part of mqtt.Client the transport needs.
type pahoPublisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTTransport publishes commands at QoS 1 with a bounded wait.
type MQTTTransport struct {
	client  pahoPublisher
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

func NewMQTTTransport(client pahoPublisher, timeout time.Duration, logger *slog.Logger) *MQTTTransport {
	return &MQTTTransport{
		client:  client,
		qos:     1,
		timeout: timeout,
		logger:  logger.With("transport_type", "mqtt"),
	}
}

func (mt *MQTTTransport) IsConnected() bool {
	return mt.client.IsConnectionOpen()
}

// Send publishes payload and waits for the ack, the timeout or ctx,
// whichever comes first. It fails fast when disconnected.
func (mt *MQTTTransport) Send(ctx context.Context, topic string, payload []byte) error {
	if !mt.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	logger := mt.logger.With("topic", topic)
	logger.Debug("Publishing message", "payload", string(payload), "qos", mt.qos)

	token := mt.client.Publish(topic, mt.qos, false, payload)

	timer := time.NewTimer(mt.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			logger.Error("MQTT publish failed", slog.Any("error", err))
			return fmt.Errorf("MQTT publish failed: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("MQTT publish cancelled by context: %w", ctx.Err())
	case <-timer.C:
		logger.Error("Publish timed out", "timeout", mt.timeout)
		return fmt.Errorf("MQTT publish timed out after %v", mt.timeout)
	}

	logger.Info("Message published successfully", "payload", string(payload))
	return nil
}
