package types

import (
	"context"

	"github.com/xhad/company-agent/internal/models"
	"github.com/xhad/company-agent/pkg/crawl"
	"github.com/xhad/company-agent/pkg/llm"
)

// Core interfaces

type DomainLister interface {
	ListDomains(ctx context.Context, apiURL string) ([]models.CompanyDomain, error)
}

type KnowledgeFetcher interface {
	GetKnowledge(ctx context.Context, apiURL, domain string) ([]string, error)
}

type Answerer interface {
	Answer(ctx context.Context, req llm.Request) (*models.QueryResult, error)
	DefaultOptions() llm.Options
}

type CrawlSubmitter interface {
	Submit(ctx context.Context, apiURL string, req crawl.Request) (*crawl.Response, error)
}

type TranscriptArchiver interface {
	Save(ctx context.Context, sessionID string, entries []models.QueryResult) error
}
