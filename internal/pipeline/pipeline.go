// Package pipeline runs the per-movie evaluation workflow.
//
// A movie moves through
//
//	FETCHED -> SKIPPED
//	FETCHED -> SAVED -> TESTS_RUNNING -> ABORTED
//	FETCHED -> SAVED -> TESTS_RUNNING -> TESTS_DONE -> SUMMARIZED -> DONE
//
// SKIPPED and ABORTED movies are left out of batch results. An abort happens
// when the model does not know the movie; everything written for it is
// removed again.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/timvw/reel-judge/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("reel-judge/pipeline")

// State is a pipeline stage of one movie.
type State string

const (
	StateFetched      State = "fetched"
	StateSkipped      State = "skipped"
	StateSaved        State = "saved"
	StateTestsRunning State = "tests_running"
	StateAborted      State = "aborted"
	StateTestsDone    State = "tests_done"
	StateSummarized   State = "summarized"
	StateDone         State = "done"
)

// Outcome is what happened to one movie.
type Outcome struct {
	Movie   model.Movie
	State   State
	Results []model.TestResult
	// SkippedTests are the ids of tests whose model calls failed.
	SkippedTests []int64
}

// Options select the batch to analyze.
type Options struct {
	Year int
	Page int

	// Overwrite re-analyzes movies that are already stored.
	Overwrite bool
	// ClearCache empties the probe cache before the batch.
	ClearCache bool
}

// Pipeline orchestrates fetching, judging and persisting movies.
// It processes one movie at a time.
type Pipeline struct {
	deps   Deps
	logger *zap.Logger
}

// New creates a pipeline over deps.
func New(deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, logger: logger}
}

func (p *Pipeline) progress(format string, args ...any) {
	if p.deps.Progress != nil {
		p.deps.Progress(fmt.Sprintf(format, args...))
	}
}

// AnalyzeMovies analyzes one catalog page of a release year and returns the
// movies that reached DONE.
func (p *Pipeline) AnalyzeMovies(ctx context.Context, opts Options) ([]Outcome, error) {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	p.startBatch(ctx, opts.ClearCache,
		fmt.Sprintf("Analyzing movies of %d, page %d", opts.Year, opts.Page))

	movies, err := p.deps.Catalog.FetchMovies(ctx, opts.Year, opts.Page)
	if err != nil {
		return nil, err
	}
	tests, err := p.deps.Repo.GetTests(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tests: %w", err)
	}
	p.progress("Found %d movies and %d tests", len(movies), len(tests))

	var done []Outcome
	for i, movie := range movies {
		p.progress("[%d/%d] %s (%d)", i+1, len(movies), movie.Title, movie.Year)
		outcome, err := p.process(ctx, movie, tests, opts.Overwrite)
		if err != nil {
			return done, err
		}
		if outcome.State == StateDone {
			done = append(done, outcome)
		}
	}
	p.progress("Finished: %d of %d movies analyzed", len(done), len(movies))
	return done, nil
}

// AnalyzeMovie analyzes a single movie by catalog id. A skipped or aborted
// movie is reported through the outcome state.
func (p *Pipeline) AnalyzeMovie(ctx context.Context, id int64, overwrite, clearCache bool) (Outcome, error) {
	p.startBatch(ctx, clearCache, fmt.Sprintf("Analyzing movie %d", id))

	tests, err := p.deps.Repo.GetTests(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading tests: %w", err)
	}
	// The rest of the record comes from the detail fetch in process.
	return p.process(ctx, model.Movie{ID: id}, tests, overwrite)
}

func (p *Pipeline) startBatch(ctx context.Context, clearCache bool, what string) {
	if clearCache && p.deps.Cache != nil {
		p.logger.Info("clearing probe cache", zap.Int("entries", p.deps.Cache.Len()))
		p.deps.Cache.Clear()
		p.deps.Metrics.RecordProbeCacheClear(ctx)
	}
	p.progress("%s (started %s)", what, time.Now().Format(time.DateTime))
}

// process runs the workflow of one movie. Errors are batch-level: store or
// catalog failures, and cancellation.
func (p *Pipeline) process(ctx context.Context, movie model.Movie, tests []model.Test, overwrite bool) (out Outcome, err error) {
	ctx, span := tracer.Start(ctx, "analyze_movie",
		trace.WithAttributes(
			attribute.Int64("movie.id", movie.ID),
			attribute.String("movie.title", movie.Title),
			attribute.Int("movie.year", movie.Year),
			attribute.Bool("overwrite", overwrite),

			// Langfuse trace-level attributes
			attribute.String("langfuse.trace.name", "reel-judge-analyze"),
			attribute.StringSlice("langfuse.trace.tags", []string{"reel-judge", "analyze"}),
		))
	defer func() {
		span.SetAttributes(attribute.String("pipeline.state", string(out.State)))
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	logger := p.logger.With(zap.Int64("movie_id", movie.ID), zap.String("title", movie.Title))
	out = Outcome{Movie: movie, State: StateFetched}

	exists, err := p.deps.Repo.MovieExists(ctx, movie.ID)
	if err != nil {
		return out, fmt.Errorf("checking movie %d: %w", movie.ID, err)
	}
	if exists && !overwrite {
		out.State = StateSkipped
		logger.Info("movie already analyzed, skipping")
		p.progress("  already analyzed, skipped")
		p.deps.Metrics.RecordMovie(ctx, string(out.State))
		return out, nil
	}

	details, err := p.deps.Catalog.FetchMovieDetails(ctx, movie.ID)
	if err != nil {
		return out, err
	}
	movie = mergeDetails(movie, details)
	out.Movie = movie
	if err := p.deps.Repo.SaveMovie(ctx, movie); err != nil {
		return out, err
	}
	out.State = StateSaved

	if err := p.deps.Repo.SetResultsInactive(ctx, movie.ID); err != nil {
		return out, err
	}
	out.State = StateTestsRunning

	var written []int64
	for _, test := range tests {
		eval, err := p.deps.Evaluator.Evaluate(ctx, movie, test)
		if err != nil {
			if ctx.Err() != nil {
				// Older results are already inactive; an --overwrite run repairs the movie.
				logger.Warn("analysis interrupted, movie left incomplete",
					zap.String("state", string(out.State)),
					zap.Int("results_written", len(written)))
				span.SetAttributes(attribute.Bool("pipeline.interrupted", true))
				return out, ctx.Err()
			}
			logger.Warn("test failed, skipping",
				zap.Int64("test_id", test.ID),
				zap.String("test", test.Name),
				zap.Error(err))
			p.progress("  %s: skipped (%v)", test.Name, err)
			p.deps.Metrics.RecordSkippedTest(ctx, test.Name)
			out.SkippedTests = append(out.SkippedTests, test.ID)
			continue
		}

		if eval.NoKnowledge {
			if err := p.rollback(ctx, movie.ID, written); err != nil {
				return out, err
			}
			out.State = StateAborted
			out.Results = nil
			logger.Info("model does not know the movie, aborted")
			p.progress("  model has no information about this movie, removed")
			p.deps.Metrics.RecordMovie(ctx, string(out.State))
			return out, nil
		}

		result := eval.Result
		if err := p.deps.Repo.SaveResult(ctx, &result); err != nil {
			return out, err
		}
		written = append(written, result.ID)
		t := test
		result.Test = &t
		out.Results = append(out.Results, result)
		p.progress("  %s: %s", test.Name, result.Verdict.Label())
	}
	out.State = StateTestsDone

	score := model.Score(out.Results)
	summary, summaryES, ok := p.deps.Summarizer.Summarize(ctx, movie, out.Results)
	if !ok {
		logger.Warn("no summary generated")
	}
	if err := p.deps.Repo.UpdateMovieSummary(ctx, movie.ID, summary, summaryES, score); err != nil {
		return out, err
	}
	out.Movie.Summary, out.Movie.SummaryES, out.Movie.Score = summary, summaryES, score
	out.State = StateSummarized

	p.progress("  score %d%% (%d tests, %d skipped)", score, len(out.Results), len(out.SkippedTests))
	out.State = StateDone
	p.deps.Metrics.RecordMovie(ctx, string(out.State))
	return out, nil
}

// rollback removes the results written in this run and the movie itself.
// Deleting the movie also drops the inactive results of earlier runs: a
// movie the model no longer knows keeps no history, unlike a plain re-run.
func (p *Pipeline) rollback(ctx context.Context, movieID int64, written []int64) error {
	if err := p.deps.Repo.DeleteResults(ctx, written); err != nil {
		return fmt.Errorf("rolling back results of movie %d: %w", movieID, err)
	}
	if err := p.deps.Repo.DeleteMovie(ctx, movieID); err != nil {
		return fmt.Errorf("rolling back movie %d: %w", movieID, err)
	}
	return nil
}

// mergeDetails fills the discovered movie with the fields only the detail
// record carries. Discovery values win when both are set.
func mergeDetails(movie, details model.Movie) model.Movie {
	if movie.Title == "" {
		movie.Title = details.Title
	}
	if movie.ReleaseDate == "" {
		movie.ReleaseDate = details.ReleaseDate
		movie.Year = details.Year
	}
	if movie.PosterPath == "" {
		movie.PosterPath = details.PosterPath
	}
	if movie.BackdropPath == "" {
		movie.BackdropPath = details.BackdropPath
	}
	if details.TMDBScore != 0 {
		movie.TMDBScore = details.TMDBScore
	}
	movie.IMDbID = details.IMDbID
	movie.Genres = details.Genres
	return movie
}
