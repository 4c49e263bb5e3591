package pipeline

import (
	"context"
	"fmt"

	"github.com/timvw/reel-judge/internal/analyzer"
	"github.com/timvw/reel-judge/internal/model"
	"go.uber.org/zap"
)

// UpdateIncomplete re-runs every active test whose verdict is Incomplete and
// overwrites the same result row. Movies whose results changed get a fresh
// summary and score. Returns the number of rows rewritten.
func (p *Pipeline) UpdateIncomplete(ctx context.Context) (int, error) {
	p.startBatch(ctx, false, "Re-running incomplete tests")

	results, err := p.deps.Repo.IncompleteResults(ctx)
	if err != nil {
		return 0, err
	}
	p.progress("Found %d incomplete results", len(results))

	movies := map[int64]model.Movie{}
	var touched []int64
	updated := 0
	for _, old := range results {
		movie, ok := movies[old.MovieID]
		if !ok {
			movie, err = p.deps.Repo.GetMovie(ctx, old.MovieID)
			if err != nil {
				return updated, err
			}
			movies[old.MovieID] = movie
		}
		if old.Test == nil {
			p.logger.Warn("result references an unknown test", zap.Int64("result_id", old.ID), zap.Int64("test_id", old.TestID))
			continue
		}

		p.progress("%s (%d): %s", movie.Title, movie.Year, old.Test.Name)
		eval, err := p.deps.Evaluator.Evaluate(ctx, movie, *old.Test)
		if err != nil {
			if ctx.Err() != nil {
				return updated, ctx.Err()
			}
			p.logger.Warn("re-run failed, keeping incomplete result",
				zap.Int64("result_id", old.ID), zap.Error(err))
			p.deps.Metrics.RecordSkippedTest(ctx, old.Test.Name)
			continue
		}
		if eval.NoKnowledge {
			p.logger.Info("model has no information, keeping incomplete result", zap.Int64("result_id", old.ID))
			continue
		}

		result := eval.Result
		result.ID = old.ID
		if err := p.deps.Repo.SaveResult(ctx, &result); err != nil {
			return updated, err
		}
		updated++
		p.progress("  %s", result.Verdict.Label())
		if len(touched) == 0 || touched[len(touched)-1] != movie.ID {
			touched = append(touched, movie.ID)
		}
	}

	for _, id := range touched {
		if err := p.resummarize(ctx, movies[id]); err != nil {
			return updated, err
		}
	}
	return updated, nil
}

// UpdateTranslations fills the missing Spanish reasons of active results.
// Returns the number of results translated.
func (p *Pipeline) UpdateTranslations(ctx context.Context) (int, error) {
	p.startBatch(ctx, false, "Translating reasons")

	results, err := p.deps.Repo.UntranslatedResults(ctx)
	if err != nil {
		return 0, err
	}
	p.progress("Found %d results without a Spanish reason", len(results))

	translated := 0
	for _, r := range results {
		if err := ctx.Err(); err != nil {
			return translated, err
		}
		es, ok := p.deps.Translator.Translate(ctx, r.Reason, analyzer.Spanish)
		if !ok {
			p.logger.Warn("translation failed", zap.Int64("result_id", r.ID))
			continue
		}
		r.ReasonES = es
		if err := p.deps.Repo.SaveResult(ctx, &r); err != nil {
			return translated, err
		}
		translated++
	}
	p.progress("Translated %d of %d", translated, len(results))
	return translated, nil
}

// UpdateSummaries regenerates summary, Spanish summary and score of every
// stored movie from its active results. Returns the number of movies updated.
func (p *Pipeline) UpdateSummaries(ctx context.Context) (int, error) {
	p.startBatch(ctx, false, "Regenerating summaries")

	movies, err := p.deps.Repo.ListMovies(ctx)
	if err != nil {
		return 0, err
	}
	for i, movie := range movies {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		p.progress("[%d/%d] %s (%d)", i+1, len(movies), movie.Title, movie.Year)
		if err := p.resummarize(ctx, movie); err != nil {
			return i, err
		}
	}
	return len(movies), nil
}

func (p *Pipeline) resummarize(ctx context.Context, movie model.Movie) error {
	results, err := p.deps.Repo.ActiveResults(ctx, movie.ID)
	if err != nil {
		return fmt.Errorf("loading results of movie %d: %w", movie.ID, err)
	}
	score := model.Score(results)
	summary, summaryES, ok := p.deps.Summarizer.Summarize(ctx, movie, results)
	if !ok {
		// Keep the stored summary, the score still reflects the results.
		p.logger.Warn("no summary generated", zap.Int64("movie_id", movie.ID))
		summary, summaryES = movie.Summary, movie.SummaryES
	}
	return p.deps.Repo.UpdateMovieSummary(ctx, movie.ID, summary, summaryES, score)
}
