// Package crawl submits company domains to the remote crawler that feeds the
// knowledge API.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/company-agent/pkg/httpclient"
	"github.com/xhad/company-agent/pkg/logger"
	"github.com/xhad/company-agent/pkg/metrics"
	"github.com/xhad/company-agent/pkg/notice"
)

const defaultMessage = "You will be notified when crawling is complete."

var (
	ErrNotConfigured  = errors.New("crawl API URL is not configured")
	ErrNoDomains      = errors.New("enter at least one company domain")
	ErrPromptRequired = errors.New("a custom crawl needs a prompt")
)

// Request is the body sent to the crawler.
type Request struct {
	Domains []string `json:"company_domains"`
	Lite    bool     `json:"lite_crawl"`
	Prompt  string   `json:"prompt,omitempty"`
}

type Response struct {
	Message string   `json:"message"`
	Domains []string `json:"-"`
}

type ClientConfig struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

type Client struct {
	http   *httpclient.Client
	logger *zap.Logger
}

func NewWithConfig(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		http:   httpclient.NewClient(config.Timeout),
		logger: logger.OrNop(config.Logger).Named("crawl"),
	}
}

// ParseDomains reads one domain per line, dropping blank lines.
func ParseDomains(text string) []string {
	var domains []string
	for _, line := range strings.Split(text, "\n") {
		if d := strings.TrimSpace(line); d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

func (r Request) Validate() error {
	if len(r.Domains) == 0 {
		return ErrNoDomains
	}
	if !r.Lite && strings.TrimSpace(r.Prompt) == "" {
		return ErrPromptRequired
	}
	return nil
}

// Submit posts req once. Validation errors are returned as-is; transport and
// status failures wrap notice.ErrCrawlSubmissionFailed.
func (c *Client) Submit(ctx context.Context, apiURL string, req Request) (*Response, error) {
	apiURL = strings.TrimSpace(apiURL)
	if apiURL == "" {
		return nil, ErrNotConfigured
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Lite {
		req.Prompt = ""
	}

	start := time.Now()
	var resp Response
	if err := c.http.PostJSON(ctx, apiURL, req, &resp); err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, notice.ErrTimeout) {
			outcome = metrics.OutcomeTimeout
		}
		metrics.ObserveRequest(metrics.TargetCrawl, outcome, start)
		c.logger.Error("crawl submission failed", zap.String("url", apiURL), zap.Strings("domains", req.Domains), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", notice.ErrCrawlSubmissionFailed, err)
	}
	metrics.ObserveRequest(metrics.TargetCrawl, metrics.OutcomeOK, start)

	if resp.Message == "" {
		resp.Message = defaultMessage
	}
	resp.Domains = req.Domains
	c.logger.Info("crawl submitted", zap.Strings("domains", req.Domains), zap.Bool("lite", req.Lite))
	return &resp, nil
}
