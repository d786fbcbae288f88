package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
)

// DefaultNotifyLabels are the labels worth a human notification
var DefaultNotifyLabels = []string{"phishing", "scam", "fraudulent", "malicious", "suspicious", "suspicious_url", "spam"}

var telegramTemplates = map[string]string{
	"phishing":       "🎣 *PHISHING DETECTED*\n🚨 mail-shield alert: phishing email detected!",
	"scam":           "⚠️ *SCAM DETECTED*\n🚨 mail-shield alert: scam email detected!",
	"fraudulent":     "🚫 *FRAUD DETECTED*\n🚨 mail-shield alert: fraudulent content detected!",
	"suspicious_url": "🔗 *SUSPICIOUS LINK*\n🚨 mail-shield alert: dangerous URL detected!",
	"safe":           "✅ *SAFE CONTENT*\n🛡️ mail-shield: content verified as safe",
}

// Allowlist filters alerts by label. An empty list allows everything.
type Allowlist map[string]struct{}

// NewAllowlist normalizes labels into an allowlist
func NewAllowlist(labels []string) Allowlist {
	a := make(Allowlist, len(labels))
	for _, l := range labels {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			a[l] = struct{}{}
		}
	}
	return a
}

// Allows reports whether label passes the list
func (a Allowlist) Allows(label string) bool {
	if len(a) == 0 {
		return true
	}
	_, ok := a[strings.ToLower(label)]
	return ok
}

// FormatTelegramAlert renders the notification text for an alert
func FormatTelegramAlert(alert core.Alert, at time.Time) string {
	var sb strings.Builder
	if tpl, ok := telegramTemplates[strings.ToLower(alert.Message)]; ok {
		sb.WriteString(tpl)
	} else {
		fmt.Fprintf(&sb, "🚨 mail-shield alert: %s", alert.Message)
	}
	if alert.Risk != nil {
		fmt.Fprintf(&sb, "\n\n📋 Risk: %.0f%%", *alert.Risk*100)
	}
	fmt.Fprintf(&sb, "\n\n⏰ Time: %s", at.Format("2006-01-02 15:04:05"))
	return sb.String()
}

// telegramSender is the part of the bot API the publisher needs
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramPublisher notifies a Telegram chat about dangerous messages
type TelegramPublisher struct {
	bot    telegramSender
	chatID int64
	allow  Allowlist
	now    func() time.Time
	logger *zap.Logger
}

// NewTelegramPublisher logs in with token and targets chatID
func NewTelegramPublisher(token string, chatID int64, labels []string, logger *zap.Logger) (*TelegramPublisher, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	logger.Info("Telegram alerts enabled", zap.String("bot", bot.Self.UserName), zap.Int64("chat_id", chatID))
	return newTelegramPublisher(bot, chatID, labels, logger), nil
}

func newTelegramPublisher(bot telegramSender, chatID int64, labels []string, logger *zap.Logger) *TelegramPublisher {
	return &TelegramPublisher{
		bot:    bot,
		chatID: chatID,
		allow:  NewAllowlist(labels),
		now:    time.Now,
		logger: logger,
	}
}

// Publish implements core.AlertPublisher
func (p *TelegramPublisher) Publish(ctx context.Context, alert core.Alert) error {
	if !p.allow.Allows(alert.Message) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(p.chatID, FormatTelegramAlert(alert, p.now()))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := p.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send Telegram alert: %w", err)
	}
	p.logger.Debug("Sent Telegram alert", zap.String("label", alert.Message))
	return nil
}
