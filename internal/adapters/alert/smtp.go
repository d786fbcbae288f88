package alert

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
)

const smtpDialTimeout = 10 * time.Second

// SMTPPublisher mails an alert to a fixed set of recipients
type SMTPPublisher struct {
	addr   string
	from   string
	to     []string
	allow  Allowlist
	now    func() time.Time
	logger *zap.Logger
}

// NewSMTPPublisher creates a mail sink relaying through addr (host:port)
func NewSMTPPublisher(addr, from string, to, labels []string, logger *zap.Logger) (*SMTPPublisher, error) {
	if addr == "" || from == "" || len(to) == 0 {
		return nil, fmt.Errorf("smtp alerts need an address, a sender and at least one recipient")
	}
	return &SMTPPublisher{
		addr:   addr,
		from:   from,
		to:     to,
		allow:  NewAllowlist(labels),
		now:    time.Now,
		logger: logger,
	}, nil
}

// Publish implements core.AlertPublisher
func (p *SMTPPublisher) Publish(ctx context.Context, alert core.Alert) error {
	if !p.allow.Allows(alert.Message) {
		return nil
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	dialer := net.Dialer{Timeout: smtpDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP relay: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set connection deadline: %w", err)
		}
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(p.from, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, rcpt := range p.to {
		if err := c.Rcpt(rcpt, nil); err != nil {
			p.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", rcpt),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(p.message(alert, hostname)); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send alert mail: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		p.logger.Warn("QUIT command failed", zap.Error(err))
	}
	p.logger.Debug("Mailed alert", zap.String("label", alert.Message), zap.Strings("to", p.to))
	return nil
}

func (p *SMTPPublisher) message(alert core.Alert, hostname string) []byte {
	now := p.now()
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", p.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(p.to, ", "))
	fmt.Fprintf(&b, "Subject: [mail-shield] %s detected\r\n", strings.ToUpper(alert.Message))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%d.%s@%s>\r\n", now.UnixNano(), alert.Message, hostname)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "The message in view was classified as %q.\r\n", alert.Message)
	if alert.Risk != nil {
		fmt.Fprintf(&b, "Risk: %.2f\r\n", *alert.Risk)
	}
	fmt.Fprintf(&b, "Topic: %s\r\n", alert.Topic)
	return b.Bytes()
}
