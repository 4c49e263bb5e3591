package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/timvw/reel-judge/internal/analyzer"
	"github.com/timvw/reel-judge/internal/model"
	"github.com/timvw/reel-judge/internal/store"
)

type fakeCatalog struct {
	movies  []model.Movie
	details map[int64]model.Movie
	err     error
}

func (c *fakeCatalog) FetchMovies(_ context.Context, year, page int) ([]model.Movie, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.movies, nil
}

func (c *fakeCatalog) FetchMovieDetails(_ context.Context, id int64) (model.Movie, error) {
	if d, ok := c.details[id]; ok {
		return d, nil
	}
	for _, m := range c.movies {
		if m.ID == id {
			return m, nil
		}
	}
	return model.Movie{}, fmt.Errorf("movie %d not in catalog", id)
}

// memRepo is an in-memory Repository.
type memRepo struct {
	tests   []model.Test
	movies  map[int64]model.Movie
	results []model.TestResult
	nextID  int64

	resultWrites int
	deleted      []int64
}

func newMemRepo(tests ...model.Test) *memRepo {
	return &memRepo{tests: tests, movies: map[int64]model.Movie{}}
}

func (r *memRepo) GetTests(context.Context) ([]model.Test, error) {
	out := append([]model.Test(nil), r.tests...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) MovieExists(_ context.Context, id int64) (bool, error) {
	_, ok := r.movies[id]
	return ok, nil
}

func (r *memRepo) GetMovie(_ context.Context, id int64) (model.Movie, error) {
	m, ok := r.movies[id]
	if !ok {
		return model.Movie{}, store.ErrNotFound
	}
	return m, nil
}

func (r *memRepo) ListMovies(context.Context) ([]model.Movie, error) {
	var out []model.Movie
	for _, m := range r.movies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) SaveMovie(_ context.Context, movie model.Movie) error {
	if old, ok := r.movies[movie.ID]; ok {
		movie.Summary, movie.SummaryES, movie.Score = old.Summary, old.SummaryES, old.Score
	}
	r.movies[movie.ID] = movie
	return nil
}

func (r *memRepo) UpdateMovieSummary(_ context.Context, id int64, summary, summaryES string, score int) error {
	m, ok := r.movies[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Summary, m.SummaryES, m.Score = summary, summaryES, score
	r.movies[id] = m
	return nil
}

func (r *memRepo) DeleteMovie(_ context.Context, id int64) error {
	if _, ok := r.movies[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.movies, id)
	kept := r.results[:0]
	for _, res := range r.results {
		if res.MovieID != id {
			kept = append(kept, res)
		}
	}
	r.results = kept
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *memRepo) SetResultsInactive(_ context.Context, movieID int64) error {
	for i := range r.results {
		if r.results[i].MovieID == movieID {
			r.results[i].Active = false
		}
	}
	return nil
}

func (r *memRepo) SaveResult(_ context.Context, result *model.TestResult) error {
	r.resultWrites++
	stored := *result
	stored.Test = nil
	if result.ID != 0 {
		for i := range r.results {
			if r.results[i].ID == result.ID {
				r.results[i] = stored
				return nil
			}
		}
		return errors.New("no such result")
	}
	r.nextID++
	stored.ID = r.nextID
	result.ID = r.nextID
	r.results = append(r.results, stored)
	return nil
}

func (r *memRepo) DeleteResults(_ context.Context, ids []int64) error {
	drop := map[int64]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := r.results[:0]
	for _, res := range r.results {
		if !drop[res.ID] {
			kept = append(kept, res)
		}
	}
	r.results = kept
	return nil
}

func (r *memRepo) filter(keep func(model.TestResult) bool) []model.TestResult {
	var out []model.TestResult
	for _, res := range r.results {
		if !keep(res) {
			continue
		}
		for _, t := range r.tests {
			if t.ID == res.TestID {
				t := t
				res.Test = &t
			}
		}
		out = append(out, res)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MovieID != out[j].MovieID {
			return out[i].MovieID < out[j].MovieID
		}
		return out[i].TestID < out[j].TestID
	})
	return out
}

func (r *memRepo) ActiveResults(_ context.Context, movieID int64) ([]model.TestResult, error) {
	return r.filter(func(res model.TestResult) bool { return res.Active && res.MovieID == movieID }), nil
}

func (r *memRepo) IncompleteResults(context.Context) ([]model.TestResult, error) {
	return r.filter(func(res model.TestResult) bool { return res.Active && res.Verdict == model.Incomplete }), nil
}

func (r *memRepo) UntranslatedResults(context.Context) ([]model.TestResult, error) {
	return r.filter(func(res model.TestResult) bool { return res.Active && res.ReasonES == "" }), nil
}

// scriptedEvaluator answers per test id. Unscripted tests pass.
type scriptedEvaluator struct {
	verdicts    map[int64]model.Verdict
	errs        map[int64]error
	noKnowledge map[int64]bool
	calls       []int64
	onCall      func(testID int64)
}

func newScriptedEvaluator() *scriptedEvaluator {
	return &scriptedEvaluator{
		verdicts:    map[int64]model.Verdict{},
		errs:        map[int64]error{},
		noKnowledge: map[int64]bool{},
	}
}

func (e *scriptedEvaluator) Evaluate(_ context.Context, movie model.Movie, test model.Test) (analyzer.Evaluation, error) {
	e.calls = append(e.calls, test.ID)
	if e.onCall != nil {
		e.onCall(test.ID)
	}
	if err := e.errs[test.ID]; err != nil {
		return analyzer.Evaluation{}, err
	}
	if e.noKnowledge[test.ID] {
		return analyzer.Evaluation{NoKnowledge: true}, nil
	}
	v, ok := e.verdicts[test.ID]
	if !ok {
		v = model.Pass
	}
	return analyzer.Evaluation{Result: model.TestResult{
		MovieID:  movie.ID,
		TestID:   test.ID,
		Verdict:  v,
		Reason:   fmt.Sprintf("%s verdict for %s", v, test.Name),
		ReasonES: "razón",
		Active:   true,
	}}, nil
}

type fakeSummarizer struct {
	ok    bool
	calls int
	seen  []model.TestResult
}

func (s *fakeSummarizer) Summarize(_ context.Context, movie model.Movie, results []model.TestResult) (string, string, bool) {
	s.calls++
	s.seen = results
	if !s.ok {
		return "", "", false
	}
	return "summary of " + movie.Title, "resumen de " + movie.Title, true
}

type fakeTranslator struct {
	fail bool
}

func (t *fakeTranslator) Translate(_ context.Context, text, language string) (string, bool) {
	if t.fail {
		return "", false
	}
	return "[" + language + "] " + text, true
}

type fakeCache struct {
	entries int
	cleared int
}

func (c *fakeCache) Clear()   { c.entries = 0; c.cleared++ }
func (c *fakeCache) Len() int { return c.entries }
