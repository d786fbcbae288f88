package scoring

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
)

var request = &core.ScanRequest{Subject: "Hi", Sender: "bob@example.com", Body: "Hi Bob..."}

func serve(t *testing.T, status int, body string, inspect func(*http.Request, []byte)) *Classifier {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if inspect != nil {
			inspect(r, raw)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewClassifier(srv.URL+"/scan-email", 0, zap.NewNop())
}

func TestClassify_Success(t *testing.T) {
	var sent map[string]string
	c := serve(t, http.StatusOK,
		`{"status":"Safe","reason":"clean","risk":0.05,"performance":{"prediction_time":12.5,"mqtt_time":3}}`,
		func(r *http.Request, raw []byte) {
			if r.Method != http.MethodPost || r.URL.Path != "/scan-email" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if err := json.Unmarshal(raw, &sent); err != nil {
				t.Errorf("request body is not json: %v", err)
			}
		})

	v, err := c.Classify(context.Background(), request)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if v.Label != "safe" || v.Reason != "clean" || v.Risk == nil || *v.Risk != 0.05 {
		t.Errorf("unexpected verdict %+v", v)
	}
	if v.MLTiming == nil || *v.MLTiming != 12500*time.Microsecond {
		t.Errorf("ml timing = %v, want 12.5ms", v.MLTiming)
	}
	if sent["subject"] != "Hi" || sent["sender"] != "bob@example.com" || sent["body"] != "Hi Bob..." {
		t.Errorf("unexpected payload %v", sent)
	}
}

func TestClassify_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"server error", http.StatusInternalServerError, `{"error":"Model inference failed","reason":"boom"}`, func(t *testing.T, err error) {
			var se *core.StatusError
			if !errors.As(err, &se) || se.Code != 500 || se.Detail != "Model inference failed: boom" {
				t.Errorf("expected StatusError 500, got %v", err)
			}
			if !errors.Is(err, core.ErrBadStatus) {
				t.Error("status errors must match ErrBadStatus")
			}
		}},
		{"bad request without body", http.StatusBadRequest, ``, func(t *testing.T, err error) {
			var se *core.StatusError
			if !errors.As(err, &se) || se.Code != 400 {
				t.Errorf("expected StatusError 400, got %v", err)
			}
		}},
		{"not json", http.StatusOK, `<html>`, func(t *testing.T, err error) {
			if !errors.Is(err, core.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		}},
		{"no status", http.StatusOK, `{"subject":"Hi"}`, func(t *testing.T, err error) {
			if !errors.Is(err, core.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := serve(t, tt.status, tt.body, nil)
			_, err := c.Classify(context.Background(), request)
			if err == nil {
				t.Fatal("expected an error")
			}
			tt.check(t, err)
		})
	}
}

func TestClassify_Offline(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	c := NewClassifier("http://"+addr+"/scan-email", 0, zap.NewNop())
	_, err = c.Classify(context.Background(), request)
	if !errors.Is(err, core.ErrBackendOffline) {
		t.Fatalf("expected ErrBackendOffline, got %v", err)
	}
}

func TestClassify_HonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClassifier(srv.URL, 0, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Classify(ctx, request)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
