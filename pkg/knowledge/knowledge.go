package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/company-agent/pkg/httpclient"
	"github.com/xhad/company-agent/pkg/logger"
	"github.com/xhad/company-agent/pkg/metrics"
	"github.com/xhad/company-agent/pkg/notice"
)

type ClientConfig struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client fetches the knowledge strings for a company domain.
type Client struct {
	http   *httpclient.Client
	logger *zap.Logger
}

func NewWithConfig(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	return &Client{
		http:   httpclient.NewClient(config.Timeout),
		logger: logger.OrNop(config.Logger).Named("knowledge"),
	}
}

func New() *Client {
	return NewWithConfig(ClientConfig{})
}

// Endpoint joins apiURL and the path-escaped domain.
func Endpoint(apiURL, domain string) string {
	return strings.TrimRight(apiURL, "/") + "/" + url.PathEscape(domain)
}

// GetKnowledge makes at most one request. It never fails outright: on any
// failure of the live source the demo set for domain is returned along with
// an error wrapping notice.ErrKnowledgeSourceUnavailable. Whenever the
// returned slice is empty the error also wraps notice.ErrNoKnowledgeAvailable.
func (c *Client) GetKnowledge(ctx context.Context, apiURL, domain string) ([]string, error) {
	apiURL = strings.TrimSpace(apiURL)
	domain = strings.TrimSpace(domain)

	if apiURL == "" || domain == "" {
		items := DemoKnowledge(domain)
		if len(items) == 0 {
			return items, fmt.Errorf("%w for %q", notice.ErrNoKnowledgeAvailable, domain)
		}
		return items, nil
	}

	endpoint := Endpoint(apiURL, domain)
	start := time.Now()
	items, err := c.fetch(ctx, endpoint)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, notice.ErrTimeout) {
			outcome = metrics.OutcomeTimeout
		}
		metrics.ObserveRequest(metrics.TargetKnowledge, outcome, start)
		metrics.FallbacksTotal.WithLabelValues(metrics.TargetKnowledge).Inc()
		c.logger.Warn("falling back to demo knowledge",
			zap.String("url", endpoint), zap.String("domain", domain), zap.Error(err))

		unavailable := fmt.Errorf("%w: %w", notice.ErrKnowledgeSourceUnavailable, err)
		fallback := DemoKnowledge(domain)
		if len(fallback) == 0 {
			return fallback, errors.Join(unavailable, fmt.Errorf("%w for %q", notice.ErrNoKnowledgeAvailable, domain))
		}
		return fallback, unavailable
	}

	metrics.ObserveRequest(metrics.TargetKnowledge, metrics.OutcomeOK, start)
	c.logger.Debug("fetched knowledge", zap.String("domain", domain), zap.Int("count", len(items)))
	if len(items) == 0 {
		return items, fmt.Errorf("%w for %q", notice.ErrNoKnowledgeAvailable, domain)
	}
	return items, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]string, error) {
	data, err := c.http.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a JSON array, keeping strings as-is and rendering any other
// element as compact JSON.
func Parse(data []byte) ([]string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if raw == nil {
		return nil, errors.New("malformed response: null body")
	}

	items := make([]string, 0, len(raw))
	for _, item := range raw {
		if trimmed := bytes.TrimSpace(item); len(trimmed) > 0 && trimmed[0] == '"' {
			var s string
			if err := json.Unmarshal(trimmed, &s); err == nil {
				items = append(items, s)
				continue
			}
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, item); err != nil {
			items = append(items, string(item))
			continue
		}
		items = append(items, compact.String())
	}
	return items, nil
}
