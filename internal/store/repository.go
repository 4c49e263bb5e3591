package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/timvw/reel-judge/internal/model"
)

// Repository maps domain records onto gateway tables.
type Repository struct {
	gw Gateway
}

// NewRepository returns a repository writing through gw.
func NewRepository(gw Gateway) *Repository {
	return &Repository{gw: gw}
}

// GetTests returns every test ordered by id.
func (r *Repository) GetTests(ctx context.Context) ([]model.Test, error) {
	var rows []testRow
	if err := r.gw.Read(ctx, &rows, TableTests, nil, "id"); err != nil {
		return nil, err
	}
	tests := make([]model.Test, len(rows))
	for i, row := range rows {
		tests[i] = row.model()
	}
	return tests, nil
}

// SaveTests upserts the test battery.
func (r *Repository) SaveTests(ctx context.Context, tests []model.Test) error {
	for _, t := range tests {
		if _, err := r.gw.Upsert(ctx, TableTests, Record{
			"id":        t.ID,
			"name":      t.Name,
			"objective": t.Objective,
		}); err != nil {
			return fmt.Errorf("saving test %d: %w", t.ID, err)
		}
	}
	return nil
}

// MovieExists reports whether a movie record exists.
func (r *Repository) MovieExists(ctx context.Context, id int64) (bool, error) {
	var rows []movieRow
	if err := r.gw.Read(ctx, &rows, TableMovies, Filter{"id": id}); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// GetMovie returns the movie with its genres, or ErrNotFound.
func (r *Repository) GetMovie(ctx context.Context, id int64) (model.Movie, error) {
	var rows []movieRow
	if err := r.gw.Read(ctx, &rows, TableMovies, Filter{"id": id}); err != nil {
		return model.Movie{}, err
	}
	if len(rows) == 0 {
		return model.Movie{}, fmt.Errorf("movie %d: %w", id, ErrNotFound)
	}
	movie := rows[0].model()

	genres, err := r.movieGenres(ctx, id)
	if err != nil {
		return model.Movie{}, err
	}
	movie.Genres = genres
	return movie, nil
}

// ListMovies returns every movie ordered by id, without genres.
func (r *Repository) ListMovies(ctx context.Context) ([]model.Movie, error) {
	var rows []movieRow
	if err := r.gw.Read(ctx, &rows, TableMovies, nil, "id"); err != nil {
		return nil, err
	}
	movies := make([]model.Movie, len(rows))
	for i, row := range rows {
		movies[i] = row.model()
	}
	return movies, nil
}

func (r *Repository) movieGenres(ctx context.Context, movieID int64) ([]model.Genre, error) {
	var links []movieGenreRow
	if err := r.gw.Read(ctx, &links, TableMoviesGenres, Filter{"movie_id": movieID}, "genre_id"); err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(links))
	for i, l := range links {
		ids[i] = l.GenreID
	}
	var rows []genreRow
	if err := r.gw.Read(ctx, &rows, TableGenres, Filter{"id": ids}, "id"); err != nil {
		return nil, err
	}
	genres := make([]model.Genre, len(rows))
	for i, g := range rows {
		genres[i] = model.Genre{ID: g.ID, Name: g.Name}
	}
	return genres, nil
}

// SaveMovie upserts the movie, inserts genres that do not exist yet and
// replaces the movie's genre links.
func (r *Repository) SaveMovie(ctx context.Context, movie model.Movie) error {
	if _, err := r.gw.Upsert(ctx, TableMovies, movieRecord(movie)); err != nil {
		return fmt.Errorf("saving movie %d: %w", movie.ID, err)
	}

	if len(movie.Genres) > 0 {
		if err := r.saveMissingGenres(ctx, movie.Genres); err != nil {
			return err
		}
	}

	if _, err := r.gw.Delete(ctx, TableMoviesGenres, Filter{"movie_id": movie.ID}); err != nil {
		return fmt.Errorf("clearing genres of movie %d: %w", movie.ID, err)
	}
	for _, g := range movie.Genres {
		if _, err := r.gw.Upsert(ctx, TableMoviesGenres, Record{"movie_id": movie.ID, "genre_id": g.ID}); err != nil {
			return fmt.Errorf("linking movie %d to genre %d: %w", movie.ID, g.ID, err)
		}
	}
	return nil
}

func (r *Repository) saveMissingGenres(ctx context.Context, genres []model.Genre) error {
	ids := make([]int64, len(genres))
	for i, g := range genres {
		ids[i] = g.ID
	}
	var existing []genreRow
	if err := r.gw.Read(ctx, &existing, TableGenres, Filter{"id": ids}); err != nil {
		return err
	}
	known := make(map[int64]bool, len(existing))
	for _, g := range existing {
		known[g.ID] = true
	}
	for _, g := range genres {
		if known[g.ID] {
			continue
		}
		if _, err := r.gw.Upsert(ctx, TableGenres, Record{"id": g.ID, "name": g.Name}); err != nil {
			return fmt.Errorf("saving genre %d: %w", g.ID, err)
		}
		known[g.ID] = true
	}
	return nil
}

// UpdateMovieSummary stores the pipeline-derived movie fields.
func (r *Repository) UpdateMovieSummary(ctx context.Context, id int64, summary, summaryES string, score int) error {
	n, err := r.gw.Update(ctx, TableMovies, Filter{"id": id}, Record{
		"summary":    summary,
		"summary_es": summaryES,
		"our_score":  score,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("movie %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteMovie deletes the movie and every row that references it.
// Returns ErrNotFound when there was no movie.
func (r *Repository) DeleteMovie(ctx context.Context, id int64) error {
	if _, err := r.gw.Delete(ctx, TableResults, Filter{"movie_id": id}); err != nil {
		return err
	}
	if _, err := r.gw.Delete(ctx, TableMoviesGenres, Filter{"movie_id": id}); err != nil {
		return err
	}
	n, err := r.gw.Delete(ctx, TableMovies, Filter{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("movie %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetResultsInactive supersedes every result of the movie.
func (r *Repository) SetResultsInactive(ctx context.Context, movieID int64) error {
	_, err := r.gw.Update(ctx, TableResults, Filter{"movie_id": movieID}, Record{"active": false})
	return err
}

// SaveResult inserts a new result, or overwrites the row with result.ID
// when it is set. The stored id is written back into result.
func (r *Repository) SaveResult(ctx context.Context, result *model.TestResult) error {
	id, err := r.gw.Upsert(ctx, TableResults, resultRecord(*result))
	if err != nil {
		return fmt.Errorf("saving result of test %d for movie %d: %w", result.TestID, result.MovieID, err)
	}
	result.ID = id
	return nil
}

// DeleteResults deletes results by id.
func (r *Repository) DeleteResults(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.gw.Delete(ctx, TableResults, Filter{"id": ids})
	return err
}

// ActiveResults returns the active results of a movie ordered by test id,
// each joined with its test.
func (r *Repository) ActiveResults(ctx context.Context, movieID int64) ([]model.TestResult, error) {
	return r.results(ctx, Filter{"movie_id": movieID, "active": true})
}

// IncompleteResults returns every active result without a verdict.
func (r *Repository) IncompleteResults(ctx context.Context) ([]model.TestResult, error) {
	return r.results(ctx, Filter{"active": true, "result": nil})
}

// UntranslatedResults returns every active result without a Spanish reason.
func (r *Repository) UntranslatedResults(ctx context.Context) ([]model.TestResult, error) {
	return r.results(ctx, Filter{"active": true, "reason_es": nil})
}

func (r *Repository) results(ctx context.Context, filter Filter) ([]model.TestResult, error) {
	var rows []resultRow
	if err := r.gw.Read(ctx, &rows, TableResults, filter, "movie_id", "test_id", "id"); err != nil {
		return nil, err
	}
	tests, err := r.testsByID(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]model.TestResult, len(rows))
	for i, row := range rows {
		results[i] = row.model()
		if t, ok := tests[row.TestID]; ok {
			results[i].Test = &t
		}
	}
	return results, nil
}

func (r *Repository) testsByID(ctx context.Context) (map[int64]model.Test, error) {
	tests, err := r.GetTests(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Test, len(tests))
	for _, t := range tests {
		byID[t.ID] = t
	}
	return byID, nil
}

// Stats summarizes the stored data. Result counts cover active results.
type Stats struct {
	Movies  int         `json:"movies"`
	Results int         `json:"results"`
	Genres  int         `json:"genres"`
	ByYear  []YearStats `json:"movies_by_year"`
	ByTest  []TestStats `json:"results_by_test"`
}

// YearStats counts movies released in one year.
type YearStats struct {
	Year   int `json:"year"`
	Movies int `json:"movies"`
}

// TestStats counts the active verdicts of one test.
type TestStats struct {
	TestID int64  `json:"test_id"`
	Name   string `json:"name"`
	model.VerdictCounts
}

// Stats computes totals, movies per year and verdicts per test.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	movies, err := r.ListMovies(ctx)
	if err != nil {
		return stats, err
	}
	stats.Movies = len(movies)
	byYear := map[int]int{}
	for _, m := range movies {
		byYear[m.Year]++
	}
	for year, n := range byYear {
		stats.ByYear = append(stats.ByYear, YearStats{Year: year, Movies: n})
	}
	sort.Slice(stats.ByYear, func(i, j int) bool { return stats.ByYear[i].Year < stats.ByYear[j].Year })

	var genres []genreRow
	if err := r.gw.Read(ctx, &genres, TableGenres, nil); err != nil {
		return stats, err
	}
	stats.Genres = len(genres)

	var rows []resultRow
	if err := r.gw.Read(ctx, &rows, TableResults, Filter{"active": true}); err != nil {
		return stats, err
	}
	stats.Results = len(rows)

	tests, err := r.GetTests(ctx)
	if err != nil {
		return stats, err
	}
	index := make(map[int64]int, len(tests))
	for i, t := range tests {
		index[t.ID] = i
		stats.ByTest = append(stats.ByTest, TestStats{TestID: t.ID, Name: t.Name})
	}
	for _, row := range rows {
		if i, ok := index[row.TestID]; ok {
			stats.ByTest[i].Count(row.model().Verdict)
		}
	}
	return stats, nil
}
