package scoring

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3/client"
	"go.uber.org/zap"

	"github.com/mikey/mail-shield/internal/core"
)

// DefaultLinkEndpoint is the local link scoring route
const DefaultLinkEndpoint = "http://127.0.0.1:5000/scan-link"

var (
	// ErrEmptyLink is returned for a blank URL
	ErrEmptyLink = errors.New("empty URL")
	// ErrInvalidLink is returned for text that does not look like a web address
	ErrInvalidLink = errors.New("invalid URL")
)

var linkPattern = regexp.MustCompile(`^(https?://)?([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}(/.*)?$`)

// NormalizeLink trims raw, checks it looks like a host name with an optional
// path, and adds an https scheme when none is given.
func NormalizeLink(raw string) (string, error) {
	link := strings.TrimSpace(raw)
	if link == "" {
		return "", ErrEmptyLink
	}
	if !linkPattern.MatchString(link) {
		return "", ErrInvalidLink
	}
	lower := strings.ToLower(link)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		link = "https://" + link
	}
	return link, nil
}

type linkResponse struct {
	URL         string   `json:"url"`
	Status      string   `json:"status"`
	Probability *float64 `json:"probability"`
	Reason      string   `json:"reason"`
}

// LinkChecker posts URLs to the scoring service's link route
type LinkChecker struct {
	http     *client.Client
	endpoint string
	logger   *zap.Logger
}

// NewLinkChecker creates a link checker for endpoint
func NewLinkChecker(endpoint string, timeout time.Duration, logger *zap.Logger) *LinkChecker {
	if endpoint == "" {
		endpoint = DefaultLinkEndpoint
	}
	c := client.New().
		SetJSONMarshal(json.Marshal).
		SetJSONUnmarshal(json.Unmarshal)
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &LinkChecker{
		http:     c,
		endpoint: endpoint,
		logger:   logger,
	}
}

// CheckLink scores one URL. The service reports its own failures with status
// "error", which is returned as an error here.
func (l *LinkChecker) CheckLink(ctx context.Context, rawURL string) (*core.LinkVerdict, error) {
	link, err := NormalizeLink(rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := l.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetJSON(map[string]string{"url": link}).
		Post(l.endpoint)
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

	code := resp.StatusCode()
	if code < 200 || code > 299 {
		return nil, &core.StatusError{Code: code}
	}

	var body linkResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)
	}
	status := strings.ToLower(strings.TrimSpace(body.Status))
	switch status {
	case "":
		return nil, fmt.Errorf("%w: missing status", core.ErrMalformedResponse)
	case "error":
		return nil, fmt.Errorf("link scoring failed: %s", body.Reason)
	}

	verdict := &core.LinkVerdict{
		URL:         link,
		Status:      status,
		Probability: body.Probability,
		Reason:      body.Reason,
	}
	l.logger.Debug("Link scored",
		zap.String("url", link),
		zap.String("status", status))
	return verdict, nil
}
