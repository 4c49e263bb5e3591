package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/timvw/reel-judge/internal/extract"
	"github.com/timvw/reel-judge/internal/llm"
	"github.com/timvw/reel-judge/internal/model"
	ppotel "github.com/timvw/reel-judge/internal/otel"
	"go.uber.org/zap"
)

// Summarizer writes the bilingual social-media summary of a movie's results.
type Summarizer struct {
	Chatter    llm.Chatter
	Translator *Translator     // fallback for a missing Spanish summary; nil disables
	Metrics    *ppotel.Metrics // nil-safe
	Logger     *zap.Logger     // nil disables logging
}

// Summarize summarizes the active results of movie. ok is false when no
// summary could be produced; the caller keeps going without one.
// A missing Spanish summary alone does not fail the call.
func (s *Summarizer) Summarize(ctx context.Context, movie model.Movie, results []model.TestResult) (summary, summaryES string, ok bool) {
	logger := nopIfNil(s.Logger).With(zap.Int64("movie_id", movie.ID))

	prompt, err := render(summaryTmpl, summaryData{
		Results: ResultLines(results),
		Title:   movie.Title,
		Year:    movie.Year,
	})
	if err != nil {
		logger.Warn("rendering summary prompt", zap.Error(err))
		return "", "", false
	}

	conv := llm.NewConversation(s.Chatter, SummarySystemPrompt)
	response, err := conv.Send(ctx, prompt)
	s.Metrics.RecordTokens(ctx, s.Chatter.Provider(), s.Chatter.Model(), conv.Usage())
	if err != nil {
		logger.Warn("summary failed", zap.Error(err))
		return "", "", false
	}

	// The JSON trailer sometimes lands inside the <output> section.
	clean := extract.StripReasoning(response)
	text, found := extract.Output(clean)
	if !found {
		text = clean
	}
	summary = extract.Without(text)
	if summary == "" {
		logger.Warn("summary response has no text")
		return "", "", false
	}

	summaryES, found = extract.String(clean, "summary_in_spanish")
	if !found && s.Translator != nil {
		summaryES, _ = s.Translator.Translate(ctx, summary, Spanish)
	}
	return summary, summaryES, true
}

// ResultLines renders one "name (objective): Outcome" line per active result.
func ResultLines(results []model.TestResult) string {
	var b strings.Builder
	for _, r := range results {
		if !r.Active {
			continue
		}
		name, objective := fmt.Sprintf("Test %d", r.TestID), ""
		if r.Test != nil {
			name, objective = r.Test.Name, r.Test.Objective
		}
		fmt.Fprintf(&b, "%s (%s): %s\n", name, objective, r.Verdict.Label())
	}
	return b.String()
}
