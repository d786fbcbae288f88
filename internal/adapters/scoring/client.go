// Package scoring talks to the remote scoring service: its scan-email route
// classifies messages and its scan-link route scores single URLs.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3/client"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
)

// DefaultEndpoint is the local scoring service
const DefaultEndpoint = "http://127.0.0.1:5000/scan-email"

const modelName = "scoring"

type scanResponse struct {
	Status      string       `json:"status"`
	Reason      string       `json:"reason"`
	Risk        *float64     `json:"risk"`
	Performance *performance `json:"performance"`
	Error       string       `json:"error"`
}

// performance times are in milliseconds
type performance struct {
	PredictionTime *float64 `json:"prediction_time"`
	MQTTTime       *float64 `json:"mqtt_time"`
}

// Classifier posts scan requests to the scoring service
type Classifier struct {
	http     *client.Client
	endpoint string
	logger   *zap.Logger
}

// NewClassifier creates a classifier for endpoint. The request deadline comes
// from the caller's context, timeout is only a safety net.
func NewClassifier(endpoint string, timeout time.Duration, logger *zap.Logger) *Classifier {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := client.New().
		SetJSONMarshal(json.Marshal).
		SetJSONUnmarshal(json.Unmarshal)
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &Classifier{
		http:     c,
		endpoint: endpoint,
		logger:   logger,
	}
}

// Classify implements core.Classifier
func (c *Classifier) Classify(ctx context.Context, req *core.ScanRequest) (*core.Verdict, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetJSON(req).
		Post(c.endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, client.ErrTimeoutOrCancel) {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("failed to reach scoring service: %w: %v", core.ErrBackendOffline, err)
	}
	defer resp.Close()

	var body scanResponse
	decodeErr := json.Unmarshal(resp.Body(), &body)

	code := resp.StatusCode()
	if code < 200 || code > 299 {
		detail := strings.TrimSpace(body.Error)
		if body.Reason != "" {
			detail = strings.TrimSpace(detail + ": " + body.Reason)
		}
		return nil, &core.StatusError{Code: code, Detail: detail}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedResponse, decodeErr)
	}
	if strings.TrimSpace(body.Status) == "" {
		return nil, fmt.Errorf("%w: missing status", core.ErrMalformedResponse)
	}

	verdict := &core.Verdict{
		Label:  strings.ToLower(strings.TrimSpace(body.Status)),
		Reason: body.Reason,
		Risk:   body.Risk,
		Model:  modelName,
	}
	if p := body.Performance; p != nil && p.PredictionTime != nil {
		d := time.Duration(*p.PredictionTime * float64(time.Millisecond))
		verdict.MLTiming = &d
	}

	c.logger.Debug("Scoring service replied",
		zap.String("label", verdict.Label),
		zap.Int("status_code", code))
	return verdict, nil
}
