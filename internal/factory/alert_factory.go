package factory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/adapters/alert"
	"github.com/mikey/mail-shield/internal/config"
)

// AlertFactory builds the alert fan-out named by alerts.sinks
type AlertFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewAlertFactory creates a new alert factory
func NewAlertFactory(cfg *config.Config, logger *zap.Logger) *AlertFactory {
	return &AlertFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreatePublisher creates every configured sink. The returned stop function
// releases connections held by the sinks.
func (f *AlertFactory) CreatePublisher(ctx context.Context) (*alert.Multi, func(), error) {
	alertsCfg := f.cfg.GetAlerts()

	var sinks []alert.Named
	var stops []func()
	stopAll := func() {
		for _, s := range stops {
			s()
		}
	}

	for _, name := range alertsCfg.Sinks {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "":
			continue
		case "relay":
			sinks = append(sinks, alert.Named{
				Name:      name,
				Publisher: alert.NewRelayPublisher(alertsCfg.RelayEndpoint, alertsCfg.Timeout, f.logger),
			})
		case "mqtt":
			mqttCfg := f.cfg.GetMQTT()
			p := alert.NewMQTTPublisher(mqttCfg.Broker, mqttCfg.ClientID, mqttCfg.QoS, f.logger)
			if err := p.Start(ctx); err != nil {
				stopAll()
				return nil, nil, fmt.Errorf("failed to start mqtt sink: %w", err)
			}
			stops = append(stops, func() { _ = p.Stop() })
			sinks = append(sinks, alert.Named{Name: name, Publisher: p})
		case "telegram":
			tgCfg := f.cfg.GetTelegram()
			p, err := alert.NewTelegramPublisher(tgCfg.Token, tgCfg.ChatID, tgCfg.Labels, f.logger)
			if err != nil {
				stopAll()
				return nil, nil, err
			}
			sinks = append(sinks, alert.Named{Name: name, Publisher: p})
		case "smtp":
			smtpCfg := f.cfg.GetSMTP()
			p, err := alert.NewSMTPPublisher(smtpCfg.Address, smtpCfg.From, smtpCfg.To, smtpCfg.Labels, f.logger)
			if err != nil {
				stopAll()
				return nil, nil, err
			}
			sinks = append(sinks, alert.Named{Name: name, Publisher: p})
		default:
			stopAll()
			return nil, nil, fmt.Errorf("unsupported alert sink: %s", name)
		}
	}

	if len(sinks) == 0 {
		f.logger.Warn("No alert sinks configured, IoT alerts are disabled")
	}
	return alert.NewMulti(sinks...), stopAll, nil
}
