package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timvw/reel-judge/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, Token: "secret", Language: "en-US"}, nil)
	c.retryInterval = time.Millisecond
	return c
}

func TestFetchMovies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/discover/movie", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "popularity.desc", q.Get("sort_by"))
		assert.Equal(t, "2021-01-01", q.Get("primary_release_date.gte"))
		assert.Equal(t, "2022-01-01", q.Get("primary_release_date.lte"))
		assert.Equal(t, "false", q.Get("include_adult"))
		_, _ = io.WriteString(w, `{"page": 2, "results": [
			{"id": 438631, "title": "Dune", "release_date": "2021-09-15", "poster_path": "/p.jpg", "backdrop_path": "/b.jpg", "vote_average": 7.8},
			{"id": 1, "title": "Undated", "release_date": ""}
		]}`)
	})

	movies, err := c.FetchMovies(context.Background(), 2021, 2)
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, model.Movie{
		ID:           438631,
		Title:        "Dune",
		Year:         2021,
		ReleaseDate:  "2021-09-15",
		PosterPath:   "/p.jpg",
		BackdropPath: "/b.jpg",
		TMDBScore:    7.8,
	}, movies[0])
	assert.Equal(t, 0, movies[1].Year)
}

func TestFetchMovieDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/438631", r.URL.Path)
		assert.Equal(t, "en-US", r.URL.Query().Get("language"))
		_, _ = io.WriteString(w, `{
			"id": 438631, "title": "Dune", "release_date": "2021-09-15",
			"vote_average": 7.8, "imdb_id": "tt1160419",
			"genres": [{"id": 878, "name": "Science Fiction"}, {"id": 12, "name": "Adventure"}]
		}`)
	})

	movie, err := c.FetchMovieDetails(context.Background(), 438631)
	require.NoError(t, err)
	assert.Equal(t, "tt1160419", movie.IMDbID)
	assert.Equal(t, 2021, movie.Year)
	assert.Equal(t, []model.Genre{{ID: 878, Name: "Science Fiction"}, {ID: 12, Name: "Adventure"}}, movie.Genres)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"id": 1, "title": "Third time"}`)
	})

	movie, err := c.FetchMovieDetails(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Third time", movie.Title)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"status_message": "The resource you requested could not be found."}`)
	})

	_, err := c.FetchMovieDetails(context.Background(), 1)
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.FetchMovies(context.Background(), 2021, 1)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results": [`)
	})
	_, err := c.FetchMovies(context.Background(), 2021, 1)
	assert.ErrorContains(t, err, "decoding tmdb response")
}

func TestDefaults(t *testing.T) {
	c := New(Config{RequestsPerSecond: 4}, nil)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, "en-US", c.language)
	assert.Equal(t, uint(3), c.maxAttempts)
	require.NotNil(t, c.limiter)
	assert.InDelta(t, 4.0, float64(c.limiter.Limit()), 0.0001)
}
