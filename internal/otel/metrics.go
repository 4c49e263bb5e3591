package otel

import (
	"context"

	"github.com/timvw/reel-judge/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "reel-judge"

// Metrics holds all OTEL metric instruments for reel-judge.
// All counters are cumulative (monotonic) and safe for concurrent use.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// LLM token counters (partitioned by provider + model via attributes)
	InputTokens         metric.Int64Counter
	OutputTokens        metric.Int64Counter
	CacheReadTokens     metric.Int64Counter
	CacheCreationTokens metric.Int64Counter

	// Knowledge probe cache counters
	ProbeCacheHits   metric.Int64Counter
	ProbeCacheMisses metric.Int64Counter
	ProbeCacheClears metric.Int64Counter

	// Verdicts partitioned by outcome (pass, fail, incomplete)
	Verdicts metric.Int64Counter
	// Tests skipped after a model call failed for good
	SkippedTests metric.Int64Counter
	// Movies partitioned by final pipeline state
	Movies metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	// --- LLM token counters ---

	m.InputTokens, err = meter.Int64Counter("llm.tokens.input",
		metric.WithDescription("Total LLM input tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.OutputTokens, err = meter.Int64Counter("llm.tokens.output",
		metric.WithDescription("Total LLM output tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.CacheReadTokens, err = meter.Int64Counter("llm.tokens.cache_read",
		metric.WithDescription("Total input tokens served from provider prompt cache"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.CacheCreationTokens, err = meter.Int64Counter("llm.tokens.cache_creation",
		metric.WithDescription("Total input tokens used to create provider prompt cache entries"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	// --- Probe cache counters ---

	m.ProbeCacheHits, err = meter.Int64Counter("probe_cache.hits",
		metric.WithDescription("Number of knowledge probes answered from the cache"))
	if err != nil {
		return nil, err
	}

	m.ProbeCacheMisses, err = meter.Int64Counter("probe_cache.misses",
		metric.WithDescription("Number of knowledge probes sent to the model"))
	if err != nil {
		return nil, err
	}

	m.ProbeCacheClears, err = meter.Int64Counter("probe_cache.clears",
		metric.WithDescription("Number of explicit probe cache clears"))
	if err != nil {
		return nil, err
	}

	// --- Pipeline counters ---

	m.Verdicts, err = meter.Int64Counter("verdicts.total",
		metric.WithDescription("Test verdicts partitioned by outcome (pass, fail, incomplete)"))
	if err != nil {
		return nil, err
	}

	m.SkippedTests, err = meter.Int64Counter("tests.skipped",
		metric.WithDescription("Tests skipped because the model call failed after retries"))
	if err != nil {
		return nil, err
	}

	m.Movies, err = meter.Int64Counter("movies.total",
		metric.WithDescription("Movies processed partitioned by final state (skipped, aborted, done)"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTokens records LLM token usage on the metric counters.
func (m *Metrics) RecordTokens(ctx context.Context, provider, modelName string, usage model.TokenUsage) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", modelName),
	)
	m.InputTokens.Add(ctx, usage.InputTokens, attrs)
	m.OutputTokens.Add(ctx, usage.OutputTokens, attrs)
	if usage.CacheReadInputTokens > 0 {
		m.CacheReadTokens.Add(ctx, usage.CacheReadInputTokens, attrs)
	}
	if usage.CacheCreationInputTokens > 0 {
		m.CacheCreationTokens.Add(ctx, usage.CacheCreationInputTokens, attrs)
	}
}

// RecordProbeCacheHit records a probe answered from the cache.
func (m *Metrics) RecordProbeCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.ProbeCacheHits.Add(ctx, 1)
}

// RecordProbeCacheMiss records a probe sent to the model.
func (m *Metrics) RecordProbeCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.ProbeCacheMisses.Add(ctx, 1)
}

// RecordProbeCacheClear records an explicit cache clear.
func (m *Metrics) RecordProbeCacheClear(ctx context.Context) {
	if m == nil {
		return
	}
	m.ProbeCacheClears.Add(ctx, 1)
}

// RecordVerdict records one test verdict.
func (m *Metrics) RecordVerdict(ctx context.Context, test string, v model.Verdict) {
	if m == nil {
		return
	}
	m.Verdicts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("test.name", test),
		attribute.String("verdict", v.String()),
	))
}

// RecordSkippedTest records a test skipped after a failed model call.
func (m *Metrics) RecordSkippedTest(ctx context.Context, test string) {
	if m == nil {
		return
	}
	m.SkippedTests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("test.name", test),
	))
}

// RecordMovie records a movie reaching a final pipeline state.
func (m *Metrics) RecordMovie(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.Movies.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pipeline.state", state),
	))
}
