package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/xhad/company-agent/internal/models"
	"github.com/xhad/company-agent/pkg/logger"
	"github.com/xhad/company-agent/pkg/metrics"
	"github.com/xhad/company-agent/pkg/notice"
)

const (
	defaultSystemTemplate = "You are a helpful assistant answering questions about a company for a business user. Be concise and factual."

	contextInstruction   = "Answer the question using only the company knowledge above. If the knowledge does not contain the answer, say that it is not available."
	noContextInstruction = "Answer from your general knowledge, and state clearly that no company-specific context was available."
)

// ComposerConfig represents the configuration for an answer composer.
type ComposerConfig struct {
	Provider       string
	Model          string
	Temperature    float64
	MaxTokens      int
	BaseURL        string // provider endpoint override
	APIKey         string
	Timeout        time.Duration
	SystemTemplate string
	Logger         *zap.Logger

	// LLM replaces the provider client when set.
	LLM llms.Model
	// Now is the clock used for result timestamps.
	Now func() time.Time
}

// Options are the per-question settings chosen in the UI.
type Options struct {
	Model         string
	Temperature   float64
	IncludeFields models.FieldSet
}

type Request struct {
	Domain    string
	Question  string
	Knowledge []string
	Options   Options
}

// Composer turns a question and its company knowledge into one completion.
type Composer struct {
	config ComposerConfig
	llm    llms.Model
	logger *zap.Logger
}

// NewWithConfig creates a new Composer with the given configuration.
func NewWithConfig(config ComposerConfig) (*Composer, error) {
	if config.Provider == "" {
		config.Provider = ProviderOpenAI
	}
	if config.Model == "" {
		config.Model = DefaultModel(config.Provider)
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	model := config.LLM
	if model == nil {
		var err error
		model, err = newModel(config)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM: %w", err)
		}
	}

	return &Composer{
		config: config,
		llm:    model,
		logger: logger.OrNop(config.Logger).Named("composer"),
	}, nil
}

// DefaultOptions returns the configured model and temperature with the
// default output fields.
func (c *Composer) DefaultOptions() Options {
	return Options{
		Model:         c.config.Model,
		Temperature:   c.config.Temperature,
		IncludeFields: models.NewFieldSet(models.DefaultFields...),
	}
}

// Prompt builds the user message sent for req.
func (c *Composer) Prompt(req Request) string {
	var b strings.Builder
	if len(req.Knowledge) > 0 {
		b.WriteString("Company knowledge")
		if req.Domain != "" {
			fmt.Fprintf(&b, " for %s", req.Domain)
		}
		b.WriteString(":\n")
		b.WriteString(strings.Join(req.Knowledge, "\n"))
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "Question: %s\n\n", req.Question)
		b.WriteString(contextInstruction)
		return b.String()
	}

	if req.Domain != "" {
		fmt.Fprintf(&b, "No company-specific knowledge is available for %s.\n\n", req.Domain)
	} else {
		b.WriteString("No company-specific knowledge is available.\n\n")
	}
	fmt.Fprintf(&b, "Question: %s\n\n", req.Question)
	b.WriteString(noContextInstruction)
	return b.String()
}

// Answer makes exactly one completion call. Any failure of that call is
// returned wrapping notice.ErrCompletionFailed and no result is produced.
func (c *Composer) Answer(ctx context.Context, req Request) (*models.QueryResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, errors.New("question is empty")
	}
	opts := req.Options
	if opts.Model == "" {
		opts.Model = c.config.Model
	}
	if opts.Temperature < 0 || opts.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	for f := range opts.IncludeFields {
		if !f.Valid() {
			return nil, fmt.Errorf("unknown output field %q", f)
		}
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, c.config.SystemTemplate),
		llms.TextParts(schema.ChatMessageTypeHuman, c.Prompt(req)),
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.llm.GenerateContent(ctx, content,
		llms.WithModel(opts.Model),
		llms.WithTemperature(opts.Temperature),
		llms.WithMaxTokens(c.config.MaxTokens),
	)
	if err == nil && (resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil) {
		err = errors.New("no response from LLM")
	}
	if err != nil {
		outcome := metrics.OutcomeError
		if notice.IsTimeout(err) {
			outcome = metrics.OutcomeTimeout
			err = fmt.Errorf("%w: %w", notice.ErrTimeout, err)
		}
		metrics.ObserveRequest(metrics.TargetLLM, outcome, start)
		metrics.CompletionsTotal.WithLabelValues(MetricLabel(opts.Model), outcome).Inc()
		c.logger.Error("completion failed", zap.String("model", opts.Model), zap.String("domain", req.Domain), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", notice.ErrCompletionFailed, err)
	}
	metrics.ObserveRequest(metrics.TargetLLM, metrics.OutcomeOK, start)
	metrics.CompletionsTotal.WithLabelValues(MetricLabel(opts.Model), metrics.OutcomeOK).Inc()

	answer := strings.TrimSpace(resp.Choices[0].Content)
	result := &models.QueryResult{
		ID:        uuid.NewString(),
		Domain:    req.Domain,
		Question:  req.Question,
		Answer:    answer,
		Model:     opts.Model,
		Knowledge: append([]string{}, req.Knowledge...),
		Timestamp: c.config.Now().UTC(),
	}
	result.Structured = Structure(*result, opts.IncludeFields)

	c.logger.Debug("answered question",
		zap.String("model", opts.Model),
		zap.String("domain", req.Domain),
		zap.Int("knowledge_items", len(req.Knowledge)),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}

// Structure picks the enabled fields from already-known values of r.
func Structure(r models.QueryResult, fields models.FieldSet) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields.List() {
		switch f {
		case models.FieldQuestion:
			out[string(f)] = r.Question
		case models.FieldAnswer:
			out[string(f)] = r.Answer
		case models.FieldDomain:
			out[string(f)] = r.Domain
		case models.FieldModel:
			out[string(f)] = r.Model
		case models.FieldTimestamp:
			out[string(f)] = r.Timestamp.Format(time.RFC3339)
		case models.FieldKnowledge:
			out[string(f)] = append([]string{}, r.Knowledge...)
		}
	}
	return out
}
