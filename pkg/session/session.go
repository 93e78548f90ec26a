package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xhad/company-agent/internal/models"
	"github.com/xhad/company-agent/internal/types"
	"github.com/xhad/company-agent/pkg/crawl"
	"github.com/xhad/company-agent/pkg/llm"
	"github.com/xhad/company-agent/pkg/logger"
	"github.com/xhad/company-agent/pkg/notice"
	"github.com/xhad/company-agent/pkg/transcript"
)

var (
	ErrNoDomainSelected = errors.New("select a company domain first")
	ErrUnknownDomain    = errors.New("domain is not in the company list")
	ErrEmptyQuestion    = errors.New("question is empty")
)

// Settings are the user-adjustable values of a session. API URLs set here
// take precedence over the environment.
type Settings struct {
	DomainAPIURL    string          `json:"domain_api_url"`
	KnowledgeAPIURL string          `json:"knowledge_api_url"`
	CrawlAPIURL     string          `json:"crawl_api_url"`
	Model           string          `json:"model"`
	Temperature     float64         `json:"temperature"`
	IncludeFields   models.FieldSet `json:"-"`
}

func (s Settings) clone() Settings {
	s.IncludeFields = models.NewFieldSet(s.IncludeFields.List()...)
	return s
}

func (s Settings) Validate() error {
	if s.Temperature < 0 || s.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1")
	}
	for f := range s.IncludeFields {
		if !f.Valid() {
			return fmt.Errorf("unknown output field %q", f)
		}
	}
	endpoints := []struct{ name, raw string }{
		{"domain API URL", s.DomainAPIURL},
		{"knowledge API URL", s.KnowledgeAPIURL},
		{"crawl API URL", s.CrawlAPIURL},
	}
	for _, ep := range endpoints {
		if ep.raw == "" {
			continue
		}
		u, err := url.Parse(ep.raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid %s: %q", ep.name, ep.raw)
		}
	}
	return nil
}

type Deps struct {
	Directory types.DomainLister
	Knowledge types.KnowledgeFetcher
	Composer  types.Answerer
	Crawler   types.CrawlSubmitter
	Archive   types.TranscriptArchiver // receives the transcript on Close
	Logger    *zap.Logger
	Now       func() time.Time
}

// Turn is the outcome of one question.
type Turn struct {
	Result  models.QueryResult
	Notices []notice.Notice
}

// Session holds everything one user sees: settings, the company list and the
// transcript. It is created when the user connects and dropped when they
// leave; nothing in it is shared with other sessions.
type Session struct {
	ID string

	deps   Deps
	logger *zap.Logger

	mu       sync.Mutex
	settings Settings
	domains  []models.CompanyDomain
	loaded   bool
	selected string

	busy       atomic.Bool
	transcript *transcript.Transcript
}

func New(deps Deps, settings Settings) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if settings.IncludeFields == nil {
		settings.IncludeFields = models.NewFieldSet(models.DefaultFields...)
	}
	id := uuid.NewString()
	return &Session{
		ID:         id,
		deps:       deps,
		logger:     logger.OrNop(deps.Logger).Named("session").With(zap.String("session_id", id)),
		settings:   settings.clone(),
		transcript: transcript.New(),
	}
}

func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.clone()
}

// UpdateSettings replaces the settings. A changed directory URL forces the
// next LoadDomains to fetch again.
func (s *Session) UpdateSettings(settings Settings) error {
	settings.DomainAPIURL = strings.TrimSpace(settings.DomainAPIURL)
	settings.KnowledgeAPIURL = strings.TrimSpace(settings.KnowledgeAPIURL)
	settings.CrawlAPIURL = strings.TrimSpace(settings.CrawlAPIURL)
	if settings.IncludeFields == nil {
		settings.IncludeFields = models.NewFieldSet()
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.DomainAPIURL != s.settings.DomainAPIURL {
		s.loaded = false
	}
	s.settings = settings.clone()
	return nil
}

// LoadDomains fetches the company list once per session; refresh forces a
// new fetch. The list is never empty: failures fall back to demo companies
// and are reported as notices.
func (s *Session) LoadDomains(ctx context.Context, refresh bool) ([]models.CompanyDomain, []notice.Notice) {
	s.mu.Lock()
	if s.loaded && !refresh {
		domains := append([]models.CompanyDomain(nil), s.domains...)
		s.mu.Unlock()
		return domains, nil
	}
	apiURL := s.settings.DomainAPIURL
	s.mu.Unlock()

	domains, err := s.deps.Directory.ListDomains(ctx, apiURL)
	notices := notice.FromError(err)
	if err != nil {
		s.logger.Warn("domain directory fallback", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains = domains
	s.loaded = true
	if _, ok := s.find(s.selected); !ok {
		s.selected = ""
		if len(domains) > 0 {
			s.selected = domains[0].Domain
		}
	}
	return append([]models.CompanyDomain(nil), domains...), notices
}

func (s *Session) Domains() []models.CompanyDomain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CompanyDomain(nil), s.domains...)
}

func (s *Session) SelectDomain(domain string) (models.CompanyDomain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.find(strings.TrimSpace(domain))
	if !ok {
		return models.CompanyDomain{}, fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}
	s.selected = d.Domain
	return d, nil
}

func (s *Session) Selected() (models.CompanyDomain, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(s.selected)
}

func (s *Session) find(domain string) (models.CompanyDomain, bool) {
	if domain == "" {
		return models.CompanyDomain{}, false
	}
	for _, d := range s.domains {
		if d.Domain == domain {
			return d, true
		}
	}
	return models.CompanyDomain{}, false
}

// Ask answers a question about the selected company. Only one question is
// answered at a time; a second call while one is running fails with
// notice.ErrBusy. When the completion fails the turn is still recorded, as a
// failure entry, and returned together with the error.
func (s *Session) Ask(ctx context.Context, question string) (*Turn, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, notice.ErrBusy
	}
	defer s.busy.Store(false)

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	company, ok := s.Selected()
	if !ok {
		return nil, ErrNoDomainSelected
	}
	settings := s.Settings()

	var notices []notice.Notice
	knowledge, err := s.deps.Knowledge.GetKnowledge(ctx, settings.KnowledgeAPIURL, company.Domain)
	if err != nil {
		notices = append(notices, notice.FromError(err)...)
		s.logger.Info("knowledge degraded", zap.String("domain", company.Domain), zap.Error(err))
	}

	opts := llm.Options{
		Model:         settings.Model,
		Temperature:   settings.Temperature,
		IncludeFields: settings.IncludeFields,
	}
	result, err := s.deps.Composer.Answer(ctx, llm.Request{
		Domain:    company.Domain,
		Question:  question,
		Knowledge: knowledge,
		Options:   opts,
	})
	if err != nil {
		if !errors.Is(err, notice.ErrCompletionFailed) {
			return nil, err
		}
		failure := models.QueryResult{
			ID:        uuid.NewString(),
			Domain:    company.Domain,
			Question:  question,
			Model:     opts.Model,
			Error:     err.Error(),
			Timestamp: s.deps.Now().UTC(),
		}
		s.transcript.Append(failure)
		notices = append(notices, notice.FromError(err)...)
		return &Turn{Result: failure, Notices: notices}, err
	}

	s.transcript.Append(*result)
	return &Turn{Result: result.Clone(), Notices: notices}, nil
}

func (s *Session) Transcript() []models.QueryResult {
	return s.transcript.Entries()
}

func (s *Session) Export() ([]byte, error) {
	return s.transcript.ExportJSON()
}

func (s *Session) ClearTranscript() {
	s.transcript.Clear()
}

// SubmitCrawl sends the domains in text (one per line) to the crawler.
func (s *Session) SubmitCrawl(ctx context.Context, text string, lite bool, prompt string) (*crawl.Response, error) {
	if s.deps.Crawler == nil {
		return nil, crawl.ErrNotConfigured
	}
	return s.deps.Crawler.Submit(ctx, s.Settings().CrawlAPIURL, crawl.Request{
		Domains: crawl.ParseDomains(text),
		Lite:    lite,
		Prompt:  prompt,
	})
}

// Close ends the session, handing the remaining transcript to the archive
// if one is configured.
func (s *Session) Close(ctx context.Context) error {
	if s.deps.Archive == nil {
		return nil
	}
	entries := s.transcript.Entries()
	if len(entries) == 0 {
		return nil
	}
	if err := s.deps.Archive.Save(ctx, s.ID, entries); err != nil {
		s.logger.Error("failed to archive transcript", zap.Int("entries", len(entries)), zap.Error(err))
		return err
	}
	return nil
}
