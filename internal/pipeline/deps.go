package pipeline

import (
	"context"

	"github.com/timvw/reel-judge/internal/analyzer"
	"github.com/timvw/reel-judge/internal/model"
	ppotel "github.com/timvw/reel-judge/internal/otel"
	"go.uber.org/zap"
)

// Catalog lists and describes movies.
type Catalog interface {
	FetchMovies(ctx context.Context, year, page int) ([]model.Movie, error)
	FetchMovieDetails(ctx context.Context, id int64) (model.Movie, error)
}

// Repository is the persistence the pipeline writes through.
type Repository interface {
	GetTests(ctx context.Context) ([]model.Test, error)
	MovieExists(ctx context.Context, id int64) (bool, error)
	GetMovie(ctx context.Context, id int64) (model.Movie, error)
	ListMovies(ctx context.Context) ([]model.Movie, error)
	SaveMovie(ctx context.Context, movie model.Movie) error
	UpdateMovieSummary(ctx context.Context, id int64, summary, summaryES string, score int) error
	DeleteMovie(ctx context.Context, id int64) error
	SetResultsInactive(ctx context.Context, movieID int64) error
	SaveResult(ctx context.Context, result *model.TestResult) error
	DeleteResults(ctx context.Context, ids []int64) error
	ActiveResults(ctx context.Context, movieID int64) ([]model.TestResult, error)
	IncompleteResults(ctx context.Context) ([]model.TestResult, error)
	UntranslatedResults(ctx context.Context) ([]model.TestResult, error)
}

// Evaluator judges one movie against one test.
type Evaluator interface {
	Evaluate(ctx context.Context, movie model.Movie, test model.Test) (analyzer.Evaluation, error)
}

// Translator translates a text, reporting false on failure.
type Translator interface {
	Translate(ctx context.Context, text, language string) (string, bool)
}

// Summarizer writes the bilingual summary of a movie's results.
type Summarizer interface {
	Summarize(ctx context.Context, movie model.Movie, results []model.TestResult) (summary, summaryES string, ok bool)
}

// Cache is the probe cache the batch may clear before starting.
type Cache interface {
	Clear()
	Len() int
}

// Deps are the collaborators of a Pipeline, built once by the caller.
type Deps struct {
	Catalog    Catalog
	Repo       Repository
	Evaluator  Evaluator
	Translator Translator
	Summarizer Summarizer
	Cache      Cache

	Logger  *zap.Logger     // nil disables logging
	Metrics *ppotel.Metrics // nil-safe
	// Progress receives human-readable progress lines. nil discards them.
	Progress func(string)
}
