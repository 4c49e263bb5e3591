// Package catalog fetches movie records from The Movie Database (TMDB).
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/timvw/reel-judge/internal/model"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the TMDB v3 API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// Config configures the TMDB client.
type Config struct {
	// BaseURL overrides DefaultBaseURL.
	BaseURL string
	// Token is the v4 read access token sent as a bearer token.
	Token string
	// Language is the TMDB language code, e.g. "en-US".
	Language string
	// RequestsPerSecond bounds the request rate. 0 disables limiting.
	RequestsPerSecond float64
	// MaxAttempts is the number of tries for 429 and 5xx answers.
	MaxAttempts uint
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// Client talks to the TMDB API.
type Client struct {
	baseURL     string
	token       string
	language    string
	http        *http.Client
	limiter     *rate.Limiter
	maxAttempts uint
	logger      *zap.Logger

	// retryInterval overrides the first backoff delay when set.
	retryInterval time.Duration
}

// New creates a TMDB client.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:     cfg.BaseURL,
		token:       cfg.Token,
		language:    cfg.Language,
		http:        cfg.HTTPClient,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.language == "" {
		c.language = "en-US"
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.maxAttempts == 0 {
		c.maxAttempts = 3
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// StatusError is a non-2xx TMDB answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type movieJSON struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	ReleaseDate  string  `json:"release_date"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	IMDbID       string  `json:"imdb_id"`
	Genres       []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

func (m movieJSON) model() model.Movie {
	movie := model.Movie{
		ID:           m.ID,
		Title:        m.Title,
		Year:         model.YearFromDate(m.ReleaseDate),
		ReleaseDate:  m.ReleaseDate,
		PosterPath:   m.PosterPath,
		BackdropPath: m.BackdropPath,
		TMDBScore:    m.VoteAverage,
		IMDbID:       m.IMDbID,
	}
	for _, g := range m.Genres {
		movie.Genres = append(movie.Genres, model.Genre{ID: g.ID, Name: g.Name})
	}
	return movie
}

// FetchMovies returns one page of the most popular movies released in year.
func (c *Client) FetchMovies(ctx context.Context, year, page int) ([]model.Movie, error) {
	q := url.Values{}
	q.Set("include_adult", "false")
	q.Set("include_video", "false")
	q.Set("language", c.language)
	q.Set("page", strconv.Itoa(page))
	q.Set("sort_by", "popularity.desc")
	q.Set("primary_release_date.gte", fmt.Sprintf("%d-01-01", year))
	q.Set("primary_release_date.lte", fmt.Sprintf("%d-01-01", year+1))

	var resp struct {
		Results []movieJSON `json:"results"`
	}
	if err := c.get(ctx, "/discover/movie", q, &resp); err != nil {
		return nil, fmt.Errorf("discovering movies of %d page %d: %w", year, page, err)
	}
	movies := make([]model.Movie, len(resp.Results))
	for i, m := range resp.Results {
		movies[i] = m.model()
	}
	return movies, nil
}

// FetchMovieDetails returns the detail record of one movie, including
// genres, IMDb id and vote average.
func (c *Client) FetchMovieDetails(ctx context.Context, id int64) (model.Movie, error) {
	q := url.Values{}
	q.Set("language", c.language)

	var m movieJSON
	if err := c.get(ctx, "/movie/"+strconv.FormatInt(id, 10), q, &m); err != nil {
		return model.Movie{}, fmt.Errorf("fetching movie %d: %w", id, err)
	}
	return m.model(), nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + query.Encode()

	operation := func() ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(fmt.Errorf("rate limit: %w", err))
			}
		}
		body, err := c.do(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return nil, backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}

	expo := backoff.NewExponentialBackOff()
	if c.retryInterval > 0 {
		expo.InitialInterval = c.retryInterval
		expo.MaxInterval = 2 * c.retryInterval
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(c.maxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Warn("tmdb request failed, retrying",
				zap.String("path", path),
				zap.Duration("wait", wait),
				zap.Error(err))
		}),
	)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding tmdb response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}
	return body, nil
}
