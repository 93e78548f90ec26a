package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/company-agent/internal/models"
	"github.com/xhad/company-agent/pkg/httpclient"
	"github.com/xhad/company-agent/pkg/logger"
	"github.com/xhad/company-agent/pkg/metrics"
	"github.com/xhad/company-agent/pkg/notice"
)

var errNoDomains = errors.New("response contained no usable domains")

type ClientConfig struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client lists the companies available for chat. It never caches.
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
		logger: logger.OrNop(config.Logger).Named("directory"),
	}
}

func New() *Client {
	return NewWithConfig(ClientConfig{})
}

// ListDomains always returns a usable list. An empty apiURL selects the demo
// list with no error; any failure of the live source also yields the demo
// list, together with an error wrapping notice.ErrDirectorySourceUnavailable.
func (c *Client) ListDomains(ctx context.Context, apiURL string) ([]models.CompanyDomain, error) {
	apiURL = strings.TrimSpace(apiURL)
	if apiURL == "" {
		return DemoDomains(), nil
	}

	start := time.Now()
	domains, err := c.fetch(ctx, apiURL)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, notice.ErrTimeout) {
			outcome = metrics.OutcomeTimeout
		}
		metrics.ObserveRequest(metrics.TargetDirectory, outcome, start)
		metrics.FallbacksTotal.WithLabelValues(metrics.TargetDirectory).Inc()
		c.logger.Warn("falling back to demo domains", zap.String("url", apiURL), zap.Error(err))
		return DemoDomains(), fmt.Errorf("%w: %w", notice.ErrDirectorySourceUnavailable, err)
	}

	metrics.ObserveRequest(metrics.TargetDirectory, metrics.OutcomeOK, start)
	c.logger.Debug("fetched domains", zap.String("url", apiURL), zap.Int("count", len(domains)))
	return domains, nil
}

func (c *Client) fetch(ctx context.Context, apiURL string) ([]models.CompanyDomain, error) {
	data, err := c.http.Get(ctx, apiURL)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a directory response. Elements that are not objects or lack
// a domain are skipped; a body that is not an array, or has no usable
// element, is an error.
func Parse(data []byte) ([]models.CompanyDomain, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}

	domains := make([]models.CompanyDomain, 0, len(raw))
	for _, item := range raw {
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			continue
		}
		if d, ok := toDomain(fields); ok {
			domains = append(domains, d)
		}
	}

	if len(domains) == 0 {
		return nil, errNoDomains
	}
	return domains, nil
}

var (
	domainKeys = []string{"domain", "company_domain"}
	nameKeys   = []string{"name", "company_name"}
)

func toDomain(fields map[string]any) (models.CompanyDomain, bool) {
	domain := strings.TrimSpace(firstString(fields, domainKeys))
	if domain == "" {
		return models.CompanyDomain{}, false
	}
	name := strings.TrimSpace(firstString(fields, nameKeys))
	if name == "" {
		name = models.NameFromDomain(domain)
	}

	d := models.CompanyDomain{Domain: domain, Name: name}
	for k, v := range fields {
		if contains(domainKeys, k) || contains(nameKeys, k) || v == nil {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]string)
		}
		d.Extra[k] = stringify(v)
	}
	return d, true
}

func firstString(fields map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := fields[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
