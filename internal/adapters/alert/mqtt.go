package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
)

const mqttConnectTimeout = 5 * time.Second

// MQTTPublisher publishes the alert label straight to a broker
type MQTTPublisher struct {
	broker   string
	clientID string
	qos      byte
	logger   *zap.Logger

	mu        sync.RWMutex
	client    mqtt.Client
	connected bool
}

// NewMQTTPublisher creates an MQTT sink. An empty clientID gets a random one.
func NewMQTTPublisher(broker, clientID string, qos byte, logger *zap.Logger) *MQTTPublisher {
	if clientID == "" {
		clientID = "mail-shield-" + uuid.NewString()[:8]
	}
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	return &MQTTPublisher{
		broker:   broker,
		clientID: clientID,
		qos:      qos,
		logger:   logger,
	}
}

// Start connects to the broker. Reconnects happen in the background.
func (p *MQTTPublisher) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.broker)
	opts.SetClientID(p.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		p.logger.Info("MQTT connection established",
			zap.String("broker", p.broker),
			zap.String("client_id", p.clientID))
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		p.logger.Warn("MQTT connection lost, will auto-reconnect",
			zap.String("broker", p.broker),
			zap.Error(err))
	}

	c := mqtt.NewClient(opts)
	p.mu.Lock()
	p.client = c
	p.mu.Unlock()

	token := c.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		// SetConnectRetry keeps trying in the background.
		p.logger.Warn("MQTT broker not reachable yet, retrying in background", zap.String("broker", p.broker))
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	p.setConnected(true)
	return nil
}

// Publish implements core.AlertPublisher. The payload is the bare label.
func (p *MQTTPublisher) Publish(ctx context.Context, alert core.Alert) error {
	p.mu.RLock()
	c, connected := p.client, p.connected
	p.mu.RUnlock()
	if c == nil || !connected {
		return fmt.Errorf("mqtt not connected")
	}

	token := c.Publish(alert.Topic, p.qos, false, alert.Message)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish aborted: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish failed: %w", err)
	}

	p.logger.Debug("Published MQTT alert",
		zap.String("topic", alert.Topic),
		zap.String("message", alert.Message),
		zap.Uint8("qos", p.qos))
	return nil
}

// Stop disconnects from the broker
func (p *MQTTPublisher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		p.logger.Info("MQTT disconnected")
	}
	p.connected = false
	return nil
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
