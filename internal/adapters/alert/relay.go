// Package alert holds the IoT alert sinks.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3/client"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
)

// DefaultRelayEndpoint is the local MQTT relay
const DefaultRelayEndpoint = "http://127.0.0.1:5001/mqtt-publish"

// RelayPublisher posts alerts to an HTTP relay that forwards them to MQTT
type RelayPublisher struct {
	http     *client.Client
	endpoint string
	logger   *zap.Logger
}

// NewRelayPublisher creates a relay sink
func NewRelayPublisher(endpoint string, timeout time.Duration, logger *zap.Logger) *RelayPublisher {
	if endpoint == "" {
		endpoint = DefaultRelayEndpoint
	}
	c := client.New().
		SetJSONMarshal(json.Marshal).
		SetJSONUnmarshal(json.Unmarshal)
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &RelayPublisher{http: c, endpoint: endpoint, logger: logger}
}

// Publish implements core.AlertPublisher
func (p *RelayPublisher) Publish(ctx context.Context, alert core.Alert) error {
	resp, err := p.http.R().
		SetContext(ctx).
		SetJSON(alert).
		Post(p.endpoint)
	if err != nil {
		if errors.Is(err, client.ErrTimeoutOrCancel) && ctx.Err() != nil {
			return fmt.Errorf("relay publish aborted: %w", ctx.Err())
		}
		return fmt.Errorf("failed to reach alert relay: %w", err)
	}
	defer resp.Close()

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return fmt.Errorf("alert relay returned HTTP %d: %s", code, string(resp.Body()))
	}

	p.logger.Debug("Alert relay accepted message",
		zap.String("message", alert.Message),
		zap.String("topic", alert.Topic),
		zap.ByteString("response", resp.Body()))
	return nil
}
