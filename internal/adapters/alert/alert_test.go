package alert

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
)

func risk(v float64) *float64 { return &v }

func TestRelayPublisher(t *testing.T) {
	var got core.Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Errorf("relay body is not json: %v", err)
		}
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	p := NewRelayPublisher(srv.URL+"/mqtt-publish", time.Second, zap.NewNop())
	alert := core.Alert{Message: "phishing", Topic: "shieldbox/email_scan", Risk: risk(0.9)}
	if err := p.Publish(context.Background(), alert); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got.Message != "phishing" || got.Topic != "shieldbox/email_scan" || got.Risk == nil || *got.Risk != 0.9 {
		t.Errorf("relay received %+v", got)
	}
}

func TestRelayPublisher_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":"broker down"}`)
	}))
	defer srv.Close()

	p := NewRelayPublisher(srv.URL, time.Second, zap.NewNop())
	err := p.Publish(context.Background(), core.Alert{Message: "scam", Topic: "t"})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected HTTP 503 error, got %v", err)
	}
}

func TestAllowlist(t *testing.T) {
	tests := []struct {
		labels []string
		label  string
		want   bool
	}{
		{nil, "anything", true},
		{[]string{"phishing"}, "phishing", true},
		{[]string{" Phishing "}, "PHISHING", true},
		{[]string{"phishing"}, "safe", false},
		{DefaultNotifyLabels, "no_mail", false},
		{DefaultNotifyLabels, "scam", true},
	}
	for _, tt := range tests {
		if got := NewAllowlist(tt.labels).Allows(tt.label); got != tt.want {
			t.Errorf("Allows(%v, %q) = %v, want %v", tt.labels, tt.label, got, tt.want)
		}
	}
}

func TestFormatTelegramAlert(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	tests := []struct {
		name     string
		alert    core.Alert
		contains []string
	}{
		{"phishing", core.Alert{Message: "phishing"}, []string{"PHISHING DETECTED", "⏰ Time: 2026-03-04 05:06:07"}},
		{"scam", core.Alert{Message: "scam"}, []string{"SCAM DETECTED"}},
		{"fraud", core.Alert{Message: "fraudulent"}, []string{"FRAUD DETECTED"}},
		{"link", core.Alert{Message: "suspicious_url"}, []string{"SUSPICIOUS LINK"}},
		{"fallback", core.Alert{Message: "malicious"}, []string{"🚨 mail-shield alert: malicious"}},
		{"risk", core.Alert{Message: "phishing", Risk: risk(0.87)}, []string{"📋 Risk: 87%"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatTelegramAlert(tt.alert, at)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("message %q does not contain %q", got, want)
				}
			}
		})
	}
}

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.err != nil {
		return tgbotapi.Message{}, b.err
	}
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestTelegramPublisher(t *testing.T) {
	bot := &fakeBot{}
	p := newTelegramPublisher(bot, 42, DefaultNotifyLabels, zap.NewNop())

	for _, label := range []string{"safe", "no_mail", "phishing"} {
		if err := p.Publish(context.Background(), core.Alert{Message: label, Topic: "t"}); err != nil {
			t.Fatalf("publish %s: %v", label, err)
		}
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(bot.sent))
	}
	msg := bot.sent[0]
	if msg.ChatID != 42 || msg.ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("unexpected message config %+v", msg)
	}
	if !strings.Contains(msg.Text, "PHISHING DETECTED") {
		t.Errorf("unexpected text %q", msg.Text)
	}

	bot.err = errors.New("flood wait")
	if err := p.Publish(context.Background(), core.Alert{Message: "scam"}); err == nil {
		t.Error("expected send error")
	}
}

type namedFunc func(ctx context.Context, a core.Alert) error

func (f namedFunc) Publish(ctx context.Context, a core.Alert) error { return f(ctx, a) }

func TestMulti(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	sink := func(name string, err error) Named {
		return Named{Name: name, Publisher: namedFunc(func(ctx context.Context, a core.Alert) error {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
			return err
		})}
	}

	boom := errors.New("boom")
	m := NewMulti(sink("relay", nil), sink("mqtt", boom), sink("telegram", nil))
	err := m.Publish(context.Background(), core.Alert{Message: "phishing"})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "mqtt") {
		t.Errorf("expected joined mqtt error, got %v", err)
	}
	if len(calls) != 3 {
		t.Errorf("expected every sink to be attempted, got %v", calls)
	}

	if err := NewMulti().Publish(context.Background(), core.Alert{}); err != nil {
		t.Errorf("empty fan-out returned %v", err)
	}
}

type smtpBackend struct {
	mu   sync.Mutex
	from string
	to   []string
	data string
	done chan struct{}
}

func (b *smtpBackend) NewSession(*smtp.Conn) (smtp.Session, error) {
	return &smtpSession{b: b}, nil
}

type smtpSession struct{ b *smtpBackend }

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.b.mu.Lock()
	s.b.from = from
	s.b.mu.Unlock()
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	if strings.HasSuffix(to, "@rejected.test") {
		return &smtp.SMTPError{Code: 550, Message: "no such user"}
	}
	s.b.mu.Lock()
	s.b.to = append(s.b.to, to)
	s.b.mu.Unlock()
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.b.mu.Lock()
	s.b.data = string(raw)
	s.b.mu.Unlock()
	close(s.b.done)
	return nil
}

func (s *smtpSession) Reset()        {}
func (s *smtpSession) Logout() error { return nil }

func TestSMTPPublisher(t *testing.T) {
	be := &smtpBackend{done: make(chan struct{})}
	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Serve(l) }()
	defer srv.Close()

	p, err := NewSMTPPublisher(l.Addr().String(), "shield@localhost",
		[]string{"ops@example.com", "nobody@rejected.test"}, DefaultNotifyLabels, zap.NewNop())
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	// Filtered labels never open a connection.
	if err := p.Publish(context.Background(), core.Alert{Message: "safe"}); err != nil {
		t.Fatalf("publish safe: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Publish(ctx, core.Alert{Message: "phishing", Topic: "shieldbox/email_scan", Risk: risk(0.5)}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case <-be.done:
	case <-time.After(5 * time.Second):
		t.Fatal("server never received data")
	}
	be.mu.Lock()
	defer be.mu.Unlock()
	if be.from != "shield@localhost" || len(be.to) != 1 || be.to[0] != "ops@example.com" {
		t.Errorf("unexpected envelope from=%q to=%v", be.from, be.to)
	}
	if !strings.Contains(be.data, "Subject: [mail-shield] PHISHING detected") || !strings.Contains(be.data, "Risk: 0.50") {
		t.Errorf("unexpected message:\n%s", be.data)
	}
}

func TestNewSMTPPublisher_Validation(t *testing.T) {
	if _, err := NewSMTPPublisher("", "a@b", []string{"c@d"}, nil, zap.NewNop()); err == nil {
		t.Error("expected error for missing address")
	}
	if _, err := NewSMTPPublisher("localhost:25", "a@b", nil, nil, zap.NewNop()); err == nil {
		t.Error("expected error for missing recipients")
	}
}
