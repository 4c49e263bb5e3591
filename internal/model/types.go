package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Movie is a catalog title evaluated by the pipeline.
// ID is the external catalog (TMDB) identifier and is the record identity.
type Movie struct {
	// ID is the TMDB movie ID.
	ID int64 `json:"id"`
	// Title is the original catalog title. Never translated.
	Title string `json:"title"`
	// Year is the release year taken from ReleaseDate.
	Year int `json:"year"`
	// ReleaseDate is the catalog release date (YYYY-MM-DD).
	ReleaseDate string `json:"release_date"`
	// PosterPath and BackdropPath are relative TMDB image paths.
	PosterPath   string `json:"poster_path"`
	BackdropPath string `json:"backdrop_path"`
	// TMDBScore is the catalog vote average.
	TMDBScore float64 `json:"tmdb_score"`
	// IMDbID is filled from the detail record when the movie is saved.
	IMDbID string `json:"imdb_id,omitempty"`
	// Genres are filled from the detail record when the movie is saved.
	Genres []Genre `json:"genres,omitempty"`

	// Summary and SummaryES are generated from the active test results.
	Summary   string `json:"summary,omitempty"`
	SummaryES string `json:"summary_es,omitempty"`
	// Score is the percentage of active results that passed.
	Score int `json:"our_score"`

	// CreatedAt is an RFC 3339 timestamp set when the record is first saved.
	CreatedAt string `json:"created_at,omitempty"`
}

// Genre is a catalog genre.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Test is a named bias criterion. Tests run in ascending ID order.
type Test struct {
	ID        int64  `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Objective string `json:"objective" yaml:"objective"`
}

// Criteria returns the text the model judges the movie against.
func (t Test) Criteria() string {
	if t.Objective == "" {
		return t.Name
	}
	return t.Name + ": " + t.Objective
}

// TestResult is one verdict of one test for one movie.
// Old results are never deleted by re-runs; they are superseded by
// flipping Active to false. Only deleting the movie removes them.
type TestResult struct {
	ID      int64   `json:"id,omitempty"`
	MovieID int64   `json:"movie_id"`
	TestID  int64   `json:"test_id"`
	Verdict Verdict `json:"result"`
	// Reason is the English justification, ReasonES the Spanish one.
	// ReasonES is empty when no translation was available.
	Reason   string `json:"reason"`
	ReasonES string `json:"reason_es,omitempty"`
	// ExecutionTime is the wall-clock duration of the evaluation, in seconds.
	ExecutionTime float64 `json:"execution_time"`
	Active        bool    `json:"active"`
	CreatedAt     string  `json:"created_at,omitempty"`

	// Test is populated when results are read joined with their test.
	Test *Test `json:"tests,omitempty"`
}

// Verdict is the tri-state outcome of a test.
// The zero value is Incomplete: lack of a usable answer is never a failure.
type Verdict int

const (
	Incomplete Verdict = iota
	Pass
	Fail
)

// VerdictFromBool maps a nullable boolean onto a verdict.
func VerdictFromBool(b *bool) Verdict {
	switch {
	case b == nil:
		return Incomplete
	case *b:
		return Pass
	default:
		return Fail
	}
}

// Bool returns the nullable boolean form used for storage.
func (v Verdict) Bool() *bool {
	switch v {
	case Pass:
		t := true
		return &t
	case Fail:
		f := false
		return &f
	default:
		return nil
	}
}

// Label returns the human-readable outcome used in summaries.
func (v Verdict) Label() string {
	switch v {
	case Pass:
		return "Passed"
	case Fail:
		return "Failed"
	default:
		return "Incomplete"
	}
}

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Fail:
		return "fail"
	default:
		return "incomplete"
	}
}

// MarshalJSON encodes the verdict as true, false or null.
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Bool())
}

// UnmarshalJSON accepts true, false or null. Anything else is rejected.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("verdict must be true, false or null: %w", err)
	}
	*v = VerdictFromBool(b)
	return nil
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation with the model.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage tracks LLM token consumption for a single call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`

	// CacheReadInputTokens is the number of input tokens read from the
	// provider's prompt cache (Anthropic cache_read_input_tokens,
	// OpenAI prompt_tokens_details.cached_tokens).
	CacheReadInputTokens int64 `json:"cache_read_input_tokens,omitempty"`
	// CacheCreationInputTokens is the number of input tokens used to
	// create a new cache entry (Anthropic only).
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens,omitempty"`
}

// Add accumulates another usage record.
func (u *TokenUsage) Add(o TokenUsage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheReadInputTokens += o.CacheReadInputTokens
	u.CacheCreationInputTokens += o.CacheCreationInputTokens
}

// YearFromDate extracts the year from a YYYY-MM-DD date. Returns 0 when the
// date is empty or malformed.
func YearFromDate(date string) int {
	head, _, _ := strings.Cut(date, "-")
	if len(head) != 4 {
		return 0
	}
	var year int
	if _, err := fmt.Sscanf(head, "%d", &year); err != nil {
		return 0
	}
	return year
}

// Now returns the timestamp format stored in CreatedAt fields.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Score returns the percentage of passed results, rounded to the nearest
// integer. Zero results score 0.
func Score(results []TestResult) int {
	if len(results) == 0 {
		return 0
	}
	passed := 0
	for _, r := range results {
		if r.Verdict == Pass {
			passed++
		}
	}
	return int(float64(100*passed)/float64(len(results)) + 0.5)
}

// VerdictCounts tallies results by outcome.
type VerdictCounts struct {
	Passed     int `json:"passed"`
	Failed     int `json:"failed"`
	Incomplete int `json:"incomplete"`
}

// Count adds one verdict to the tally.
func (c *VerdictCounts) Count(v Verdict) {
	switch v {
	case Pass:
		c.Passed++
	case Fail:
		c.Failed++
	default:
		c.Incomplete++
	}
}
