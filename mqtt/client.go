package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ecoheat/config"
	"ecoheat/metrics"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qosAtLeastOnce   = 1
	subscribeTimeout = 10 * time.Second
	quiesceMillis    = 250
)

// MessageHandler receives every inbound message once.
type MessageHandler func(topic string, payload []byte)

// Client wraps the PAHO MQTT client. It owns the broker session; reconnects
// are handled by PAHO and reported through the OnConnect hooks.
type Client struct {
	client  mqtt.Client
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	handler   MessageHandler
	onConnect []func()
}

// NewClient builds the session options. Nothing is dialed until Connect.
func NewClient(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *Client {
	c := &Client{
		logger:  logger.With("component", "mqtt_client"),
		metrics: m,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetUsername(cfg.MQTTUsername).
		SetPassword(cfg.MQTTPassword).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(1 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(10 * time.Second).
		SetCleanSession(true)

	opts.SetOnConnectHandler(c.onConnected)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	c.client = mqtt.NewClient(opts)
	return c
}

// SetMessageHandler installs the receive callback. It must be set before
// Connect so no message is missed.
func (c *Client) SetMessageHandler(h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// OnConnect registers fn to run after every successful (re)connect.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// Connect starts the session. It returns when the first attempt resolves or
// ctx is done; in the latter case PAHO keeps retrying in the background.
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		return nil
	case <-ctx.Done():
		c.logger.Warn("MQTT broker not reachable yet, retrying in background", slog.Any("error", ctx.Err()))
		return nil
	}
}

// Disconnect closes the session, letting in-flight work quiesce briefly.
func (c *Client) Disconnect() {
	if c.client.IsConnectionOpen() {
		c.client.Disconnect(quiesceMillis)
		c.metrics.SetConnected(false)
		c.logger.Info("MQTT Client disconnected")
	}
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Subscribe subscribes to one topic at QoS 1 and waits for the broker ack.
func (c *Client) Subscribe(topic string) error {
	token := c.client.Subscribe(topic, qosAtLeastOnce, c.dispatch)
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscribe to %s timed out after %v", topic, subscribeTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	c.logger.Debug("Successfully subscribed to topic", "topic", topic)
	return nil
}

// PahoClient exposes the underlying client to the outbound transport.
func (c *Client) PahoClient() mqtt.Client {
	return c.client
}

func (c *Client) dispatch(_ mqtt.Client, msg mqtt.Message) {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()
	if h == nil {
		c.logger.Warn("No message handler installed, message ignored", "topic", msg.Topic())
		return
	}
	h(msg.Topic(), msg.Payload())
}

func (c *Client) onConnected(_ mqtt.Client) {
	c.metrics.SetConnected(true)
	c.logger.Info("Successfully connected to MQTT broker")

	c.mu.RLock()
	hooks := append([]func(){}, c.onConnect...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.metrics.SetConnected(false)
	c.logger.Error("Connection lost. Reconnecting...", slog.Any("error", err))
}
