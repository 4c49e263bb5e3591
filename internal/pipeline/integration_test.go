package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timvw/reel-judge/internal/model"
	"github.com/timvw/reel-judge/internal/store"
)

func TestPipelineWithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	gw, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "pipeline.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	require.NoError(t, gw.Migrate())

	repo := store.NewRepository(gw)
	require.NoError(t, repo.SaveTests(ctx, fiveTests))

	evaluator := newScriptedEvaluator()
	evaluator.verdicts[4] = model.Incomplete
	catalog := &fakeCatalog{
		movies: []model.Movie{dune},
		details: map[int64]model.Movie{dune.ID: {
			ID: dune.ID, Title: "Dune", ReleaseDate: "2021-09-15", Year: 2021,
			Genres: []model.Genre{{ID: 878, Name: "Science Fiction"}},
		}},
	}
	p := New(Deps{
		Catalog:    catalog,
		Repo:       repo,
		Evaluator:  evaluator,
		Translator: &fakeTranslator{},
		Summarizer: &fakeSummarizer{ok: true},
	})

	_, err = p.AnalyzeMovies(ctx, Options{Year: 2021})
	require.NoError(t, err)

	evaluator.verdicts[1] = model.Fail
	done, err := p.AnalyzeMovies(ctx, Options{Year: 2021, Overwrite: true})
	require.NoError(t, err)
	require.Len(t, done, 1)

	active, err := repo.ActiveResults(ctx, dune.ID)
	require.NoError(t, err)
	require.Len(t, active, 5)
	assert.Equal(t, model.Fail, active[0].Verdict)
	assert.Equal(t, "Bechdel", active[0].Test.Name)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Results, "inactive rows are not counted")

	// Re-running the incomplete test rewrites the same row.
	evaluator.verdicts[4] = model.Pass
	n, err := p.UpdateIncomplete(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	incomplete, err := repo.IncompleteResults(ctx)
	require.NoError(t, err)
	assert.Empty(t, incomplete)

	movie, err := repo.GetMovie(ctx, dune.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, movie.Score)
	assert.Equal(t, "summary of Dune", movie.Summary)

	// A movie the model does not know leaves nothing behind.
	evaluator.noKnowledge[1] = true
	_, err = p.AnalyzeMovies(ctx, Options{Year: 2021, Overwrite: true})
	require.NoError(t, err)
	exists, err := repo.MovieExists(ctx, dune.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	// Superseded results of the earlier runs are gone as well.
	leftover, err := gw.Delete(ctx, store.TableResults, store.Filter{"movie_id": dune.ID})
	require.NoError(t, err)
	assert.Zero(t, leftover)
}
