// Package analyzer judges movies against bias tests.
//
// The model does the judging. Go builds the conversation, caches the
// knowledge probe and extracts the structured answer; a response that
// cannot be read degrades to an Incomplete verdict instead of an error.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/timvw/reel-judge/internal/cache"
	"github.com/timvw/reel-judge/internal/extract"
	"github.com/timvw/reel-judge/internal/llm"
	"github.com/timvw/reel-judge/internal/model"
	ppotel "github.com/timvw/reel-judge/internal/otel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Reasons stored when the verdict cannot be read from the model.
const (
	DefaultReason   = "Insufficient information to determine if the movie passes the test"
	DefaultReasonES = "Información insuficiente para determinar si la película pasa la prueba"
)

var tracer = otel.Tracer("reel-judge/analyzer")

// Evaluation is the outcome of one test on one movie.
// When NoKnowledge is set the model does not know the movie and Result is
// the zero value.
type Evaluation struct {
	Result      model.TestResult
	NoKnowledge bool
}

// Evaluator runs the probe / criteria / verdict protocol.
type Evaluator struct {
	Chatter    llm.Chatter
	Cache      *cache.ResponseCache
	Translator *Translator     // fallback for a missing reason_es; nil disables
	Metrics    *ppotel.Metrics // nil-safe
	Logger     *zap.Logger     // nil disables logging
}

// Evaluate judges movie against test.
//
// Errors are returned only when a model call fails for good (after the
// chatter's own retries) or ctx is cancelled.
func (e *Evaluator) Evaluate(ctx context.Context, movie model.Movie, test model.Test) (Evaluation, error) {
	ctx, span := tracer.Start(ctx, "run_test",
		trace.WithAttributes(
			attribute.Int64("movie.id", movie.ID),
			attribute.String("movie.title", movie.Title),
			attribute.Int("movie.year", movie.Year),
			attribute.Int64("test.id", test.ID),
			attribute.String("test.name", test.Name),
		))
	defer span.End()

	logger := nopIfNil(e.Logger).With(
		zap.Int64("movie_id", movie.ID),
		zap.Int64("test_id", test.ID),
	)

	start := time.Now()
	conv := llm.NewConversation(e.Chatter, SystemPrompt)
	defer func() {
		e.Metrics.RecordTokens(ctx, e.Chatter.Provider(), e.Chatter.Model(), conv.Usage())
	}()

	known, err := e.probe(ctx, conv, movie)
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "probe"))
		return Evaluation{}, fmt.Errorf("knowledge probe: %w", err)
	}
	if !known {
		span.SetAttributes(attribute.Bool("no_knowledge", true))
		logger.Info("model has no knowledge of the movie")
		return Evaluation{NoKnowledge: true}, nil
	}

	criteria, err := render(criteriaTmpl, criteriaData{Criteria: test.Criteria(), Title: movie.Title, Year: movie.Year})
	if err != nil {
		return Evaluation{}, fmt.Errorf("rendering criteria prompt: %w", err)
	}
	if _, err := conv.Send(ctx, criteria); err != nil {
		span.SetAttributes(attribute.String("error.type", "criteria"))
		return Evaluation{}, fmt.Errorf("criteria reasoning: %w", err)
	}

	response, err := conv.Send(ctx, VerdictPrompt)
	if err != nil {
		span.SetAttributes(attribute.String("error.type", "verdict"))
		return Evaluation{}, fmt.Errorf("verdict: %w", err)
	}
	elapsed := time.Since(start).Seconds()

	result := readVerdict(response)
	if result.ReasonES == "" && e.Translator != nil {
		if es, ok := e.Translator.Translate(ctx, result.Reason, Spanish); ok {
			result.ReasonES = es
		} else {
			logger.Warn("no Spanish reason available")
		}
	}

	result.MovieID = movie.ID
	result.TestID = test.ID
	result.ExecutionTime = elapsed
	result.Active = true
	result.CreatedAt = model.Now()

	span.SetAttributes(attribute.String("verdict", result.Verdict.String()))
	e.Metrics.RecordVerdict(ctx, test.Name, result.Verdict)
	logger.Debug("test evaluated",
		zap.Stringer("verdict", result.Verdict),
		zap.Float64("seconds", elapsed))

	return Evaluation{Result: result}, nil
}

// probe adds the knowledge probe exchange to conv and reports whether the
// model knows the movie. The raw response is cached whatever it says.
func (e *Evaluator) probe(ctx context.Context, conv *llm.Conversation, movie model.Movie) (bool, error) {
	prompt, err := render(probeTmpl, probeData{Title: movie.Title, Year: movie.Year})
	if err != nil {
		return false, err
	}

	response, hit := e.Cache.Get(movie.Title, movie.Year)
	if hit {
		e.Metrics.RecordProbeCacheHit(ctx)
		conv.Replay(prompt, response)
	} else {
		e.Metrics.RecordProbeCacheMiss(ctx)
		response, err = conv.Send(ctx, prompt)
		if err != nil {
			return false, err
		}
		e.Cache.Set(movie.Title, movie.Year, response)
	}

	known, ok := extract.Bool(response, "is_there_information")
	return ok && known, nil
}

// readVerdict turns the verdict response into a result. A response without
// a JSON object yields the default Incomplete result.
func readVerdict(response string) model.TestResult {
	obj, ok := extract.Object(response)
	if !ok {
		return model.TestResult{Verdict: model.Incomplete, Reason: DefaultReason, ReasonES: DefaultReasonES}
	}

	var result model.TestResult
	if r := obj.Get("result"); r.IsBool() {
		b := r.Bool()
		result.Verdict = model.VerdictFromBool(&b)
	}
	result.Reason, _ = extract.String(response, "reason")
	result.ReasonES, _ = extract.String(response, "reason_es")
	// Both reasons come from the same source so the languages never disagree.
	if result.Reason == "" {
		result.Reason = DefaultReason
		result.ReasonES = DefaultReasonES
	}
	return result
}
