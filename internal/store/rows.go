package store

import (
	"database/sql"

	"github.com/timvw/reel-judge/internal/model"
)

// Rows mirror the table columns one to one; Read selects "*".

type movieRow struct {
	ID           int64   `db:"id"`
	Title        string  `db:"title"`
	Year         int     `db:"year"`
	ReleaseDate  string  `db:"release_date"`
	PosterPath   string  `db:"poster_path"`
	BackdropPath string  `db:"backdrop_path"`
	TMDBScore    float64 `db:"tmdb_score"`
	IMDbID       string  `db:"imdb_id"`
	Summary      string  `db:"summary"`
	SummaryES    string  `db:"summary_es"`
	Score        int     `db:"our_score"`
	CreatedAt    string  `db:"created_at"`
}

func (r movieRow) model() model.Movie {
	return model.Movie{
		ID:           r.ID,
		Title:        r.Title,
		Year:         r.Year,
		ReleaseDate:  r.ReleaseDate,
		PosterPath:   r.PosterPath,
		BackdropPath: r.BackdropPath,
		TMDBScore:    r.TMDBScore,
		IMDbID:       r.IMDbID,
		Summary:      r.Summary,
		SummaryES:    r.SummaryES,
		Score:        r.Score,
		CreatedAt:    r.CreatedAt,
	}
}

// movieRecord holds the catalog columns of a movie. Pipeline-owned columns
// (summary, summary_es, our_score) are written by UpdateMovieSummary only.
func movieRecord(m model.Movie) Record {
	createdAt := m.CreatedAt
	if createdAt == "" {
		createdAt = model.Now()
	}
	return Record{
		"id":            m.ID,
		"title":         m.Title,
		"year":          m.Year,
		"release_date":  m.ReleaseDate,
		"poster_path":   m.PosterPath,
		"backdrop_path": m.BackdropPath,
		"tmdb_score":    m.TMDBScore,
		"imdb_id":       m.IMDbID,
		"created_at":    createdAt,
	}
}

type genreRow struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type movieGenreRow struct {
	MovieID int64 `db:"movie_id"`
	GenreID int64 `db:"genre_id"`
}

type testRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Objective string `db:"objective"`
}

func (r testRow) model() model.Test {
	return model.Test{ID: r.ID, Name: r.Name, Objective: r.Objective}
}

type resultRow struct {
	ID            int64          `db:"id"`
	MovieID       int64          `db:"movie_id"`
	TestID        int64          `db:"test_id"`
	Result        sql.NullBool   `db:"result"`
	Reason        string         `db:"reason"`
	ReasonES      sql.NullString `db:"reason_es"`
	ExecutionTime float64        `db:"execution_time"`
	Active        bool           `db:"active"`
	CreatedAt     string         `db:"created_at"`
}

func (r resultRow) model() model.TestResult {
	var verdict *bool
	if r.Result.Valid {
		verdict = &r.Result.Bool
	}
	return model.TestResult{
		ID:            r.ID,
		MovieID:       r.MovieID,
		TestID:        r.TestID,
		Verdict:       model.VerdictFromBool(verdict),
		Reason:        r.Reason,
		ReasonES:      r.ReasonES.String,
		ExecutionTime: r.ExecutionTime,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
	}
}

func resultRecord(r model.TestResult) Record {
	createdAt := r.CreatedAt
	if createdAt == "" {
		createdAt = model.Now()
	}
	rec := Record{
		"movie_id":       r.MovieID,
		"test_id":        r.TestID,
		"result":         nullBool(r.Verdict),
		"reason":         r.Reason,
		"reason_es":      nullString(r.ReasonES),
		"execution_time": r.ExecutionTime,
		"active":         r.Active,
		"created_at":     createdAt,
	}
	if r.ID != 0 {
		rec["id"] = r.ID
	}
	return rec
}

func nullBool(v model.Verdict) sql.NullBool {
	b := v.Bool()
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

// nullString stores an empty string as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
