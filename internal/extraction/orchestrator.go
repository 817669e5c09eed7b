package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finsight-ai/finsight/internal/insights"
	"github.com/finsight-ai/finsight/internal/llm"
	"github.com/finsight-ai/finsight/internal/retriever"
	"github.com/finsight-ai/finsight/internal/retry"
)

var (
	// ErrNoContext is returned when retrieval finds no indexed segments for
	// the document, so there is nothing to cite an insight against.
	ErrNoContext = errors.New("no indexed segments for document")
)

// ResponseError reports a model response that could not be parsed into the
// required schema even after a strict re-prompt. Raw preserves the model
// output for inspection; Error includes it (truncated) so the failed task's
// last_error carries it for manual review.
type ResponseError struct {
	Raw string
	Err error
}

// rawErrorLimit caps how much model output Error embeds in the task record.
const rawErrorLimit = 500

func (e *ResponseError) Error() string {
	raw := e.Raw
	if len(raw) > rawErrorLimit {
		raw = raw[:rawErrorLimit] + "..."
	}
	return fmt.Sprintf("unparseable model response: %v; raw output: %s", e.Err, raw)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// Config carries the tunables for extraction runs.
type Config struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
	TopK            int
	MaxAttempts     int
	Timeout         time.Duration
	Logger          *zap.Logger
}

// Orchestrator retrieves the relevant segments for a document, runs one
// extraction task against the LLM, and persists the result with its
// provenance. It holds no locks across provider calls.
type Orchestrator struct {
	provider llm.Provider
	retr     *retriever.Retriever
	store    *insights.Store
	cfg      Config
	retryCfg retry.Config
}

func NewOrchestrator(provider llm.Provider, retr *retriever.Retriever, store *insights.Store, cfg Config) *Orchestrator {
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 1024
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	retryCfg := retry.DefaultConfig()
	if cfg.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.MaxAttempts
	}
	retryCfg.RetryableErrors = []error{llm.ErrRateLimited, llm.ErrTimeout}
	retryCfg.Logger = cfg.Logger

	return &Orchestrator{
		provider: provider,
		retr:     retr,
		store:    store,
		cfg:      cfg,
		retryCfg: retryCfg,
	}
}

// ExtractMetric extracts a single named financial metric. When the excerpts
// do not contain the metric the insight is saved with Insufficient set
// rather than a fabricated value.
func (o *Orchestrator) ExtractMetric(ctx context.Context, documentID, metric string) (*insights.Insight, error) {
	hits, err := o.retrieve(ctx, documentID, metric)
	if err != nil {
		return nil, err
	}

	var res metricResult
	msgs := buildMessages(metricPromptTemplate, formatExcerpts(hits), metric)
	if err := o.completeJSON(ctx, msgs, func(raw string) error {
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			return err
		}
		if res.Value == "" {
			return errors.New("missing value field")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	in := &insights.Insight{
		DocumentID:    documentID,
		Task:          insights.TaskMetric,
		Metric:        metric,
		Value:         res.Value,
		Insufficient:  !res.Found,
		SegmentIDs:    segmentIDs(hits),
		Model:         o.cfg.Model,
		PromptVersion: PromptVersion,
	}
	if err := o.store.Save(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// IdentifyRisks extracts the risks the document describes, one insight per
// risk. A document that names no risks yields a single insufficient insight.
func (o *Orchestrator) IdentifyRisks(ctx context.Context, documentID string) ([]*insights.Insight, error) {
	hits, err := o.retrieve(ctx, documentID, "risk factors uncertainties and exposures")
	if err != nil {
		return nil, err
	}

	var res riskResult
	msgs := buildMessages(riskPromptTemplate, formatExcerpts(hits))
	if err := o.completeJSON(ctx, msgs, func(raw string) error {
		return json.Unmarshal([]byte(raw), &res)
	}); err != nil {
		return nil, err
	}

	segIDs := segmentIDs(hits)
	if len(res.Risks) == 0 {
		in := &insights.Insight{
			DocumentID:    documentID,
			Task:          insights.TaskRisk,
			Value:         "No risks identified",
			Insufficient:  true,
			SegmentIDs:    segIDs,
			Model:         o.cfg.Model,
			PromptVersion: PromptVersion,
		}
		if err := o.store.Save(ctx, in); err != nil {
			return nil, err
		}
		return []*insights.Insight{in}, nil
	}

	out := make([]*insights.Insight, 0, len(res.Risks))
	for _, r := range res.Risks {
		value := r.Risk
		if r.Detail != "" {
			value = r.Risk + ": " + r.Detail
		}
		in := &insights.Insight{
			DocumentID:    documentID,
			Task:          insights.TaskRisk,
			Value:         value,
			SegmentIDs:    segIDs,
			Model:         o.cfg.Model,
			PromptVersion: PromptVersion,
		}
		if err := o.store.Save(ctx, in); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

// AnalyzeSentiment classifies the overall tone as Positive, Negative, or
// Neutral.
func (o *Orchestrator) AnalyzeSentiment(ctx context.Context, documentID string) (*insights.Insight, error) {
	hits, err := o.retrieve(ctx, documentID, "management outlook tone and guidance")
	if err != nil {
		return nil, err
	}

	var res sentimentResult
	msgs := buildMessages(sentimentPromptTemplate, formatExcerpts(hits))
	if err := o.completeJSON(ctx, msgs, func(raw string) error {
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			return err
		}
		switch res.Sentiment {
		case "Positive", "Negative", "Neutral":
			return nil
		}
		return fmt.Errorf("sentiment %q not one of Positive, Negative, Neutral", res.Sentiment)
	}); err != nil {
		return nil, err
	}

	value := res.Sentiment
	if res.Explanation != "" {
		value = res.Sentiment + ": " + res.Explanation
	}
	in := &insights.Insight{
		DocumentID:    documentID,
		Task:          insights.TaskSentiment,
		Value:         value,
		SegmentIDs:    segmentIDs(hits),
		Model:         o.cfg.Model,
		PromptVersion: PromptVersion,
		Confidence:    res.Confidence,
	}
	if err := o.store.Save(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// Summarize produces a short summary of the document's key financial
// information.
func (o *Orchestrator) Summarize(ctx context.Context, documentID string) (*insights.Insight, error) {
	hits, err := o.retrieve(ctx, documentID, "key financial results and highlights")
	if err != nil {
		return nil, err
	}

	var res summaryResult
	msgs := buildMessages(summaryPromptTemplate, formatExcerpts(hits))
	if err := o.completeJSON(ctx, msgs, func(raw string) error {
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			return err
		}
		if strings.TrimSpace(res.Summary) == "" {
			return errors.New("missing summary field")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	in := &insights.Insight{
		DocumentID:    documentID,
		Task:          insights.TaskSummary,
		Value:         res.Summary,
		SegmentIDs:    segmentIDs(hits),
		Model:         o.cfg.Model,
		PromptVersion: PromptVersion,
	}
	if err := o.store.Save(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

// Analyze runs every extraction task for a document. Metric extraction runs
// once per configured metric. Task failures do not stop the remaining
// tasks; all errors are joined into the returned error.
func (o *Orchestrator) Analyze(ctx context.Context, documentID string, metrics []string) ([]*insights.Insight, error) {
	var out []*insights.Insight
	var errs []error

	for _, metric := range metrics {
		in, err := o.ExtractMetric(ctx, documentID, metric)
		if err != nil {
			errs = append(errs, fmt.Errorf("metric %q: %w", metric, err))
			continue
		}
		out = append(out, in)
	}

	if risks, err := o.IdentifyRisks(ctx, documentID); err != nil {
		errs = append(errs, fmt.Errorf("risks: %w", err))
	} else {
		out = append(out, risks...)
	}

	if in, err := o.AnalyzeSentiment(ctx, documentID); err != nil {
		errs = append(errs, fmt.Errorf("sentiment: %w", err))
	} else {
		out = append(out, in)
	}

	if in, err := o.Summarize(ctx, documentID); err != nil {
		errs = append(errs, fmt.Errorf("summary: %w", err))
	} else {
		out = append(out, in)
	}

	return out, errors.Join(errs...)
}

func (o *Orchestrator) retrieve(ctx context.Context, documentID, query string) ([]retriever.Hit, error) {
	hits, err := o.retr.ForDocument(ctx, documentID, query, o.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	if len(hits) == 0 {
		return nil, ErrNoContext
	}
	return hits, nil
}

// completeJSON calls the provider and decodes the response. Rate limit and
// timeout errors are retried with backoff. A response that fails decode is
// re-prompted once with a stricter instruction; a second failure returns a
// ResponseError carrying the raw output.
func (o *Orchestrator) completeJSON(ctx context.Context, msgs []llm.Message, decode func(raw string) error) error {
	raw, err := o.complete(ctx, msgs, o.cfg.Temperature)
	if err != nil {
		return err
	}

	if decodeErr := decode(stripFences(raw)); decodeErr == nil {
		return nil
	}

	o.cfg.Logger.Debug("model response failed schema, re-prompting strictly",
		zap.String("model", o.cfg.Model))

	strict := make([]llm.Message, len(msgs))
	copy(strict, msgs)
	strict[len(strict)-1].Content += strictSuffix

	raw, err = o.complete(ctx, strict, 0)
	if err != nil {
		return err
	}
	if decodeErr := decode(stripFences(raw)); decodeErr != nil {
		return &ResponseError{Raw: raw, Err: decodeErr}
	}
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, msgs []llm.Message, temperature float64) (string, error) {
	// Each attempt gets its own deadline so a hung provider surfaces as
	// llm.ErrTimeout instead of stalling the worker.
	resp, err := retry.DoWithResult(ctx, o.retryCfg, func() (*llm.CompletionResponse, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
		return o.provider.Complete(callCtx, llm.CompletionRequest{
			Model:       o.cfg.Model,
			Messages:    msgs,
			MaxTokens:   o.cfg.MaxOutputTokens,
			Temperature: temperature,
			JSONMode:    true,
		})
	})
	if err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}
	return resp.Content, nil
}

// stripFences removes markdown code fences some models wrap around JSON.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	lines := strings.Split(raw, "\n")
	if len(lines) < 2 {
		return raw
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.Join(lines[1:end], "\n")
}

func segmentIDs(hits []retriever.Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Segment.ID
	}
	return ids
}
