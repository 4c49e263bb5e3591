package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timvw/reel-judge/internal/model"
)

func seedResults(t *testing.T, h *harness, movie model.Movie, verdicts map[int64]model.Verdict, reasonES string) map[int64]int64 {
	t.Helper()
	h.repo.movies[movie.ID] = movie
	ids := map[int64]int64{}
	for testID, v := range verdicts {
		r := model.TestResult{MovieID: movie.ID, TestID: testID, Verdict: v, Reason: "reason", ReasonES: reasonES, Active: true}
		require.NoError(t, h.repo.SaveResult(context.Background(), &r))
		ids[testID] = r.ID
	}
	return ids
}

func TestUpdateIncomplete(t *testing.T) {
	h := newHarness()
	ids := seedResults(t, h, dune, map[int64]model.Verdict{1: model.Pass, 2: model.Incomplete, 3: model.Incomplete}, "es")
	h.evaluator.verdicts[2] = model.Fail
	h.evaluator.errs[3] = errors.New("HTTP 503")

	n, err := h.pipeline.UpdateIncomplete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.ElementsMatch(t, []int64{2, 3}, h.evaluator.calls)

	active, _ := h.repo.ActiveResults(context.Background(), dune.ID)
	require.Len(t, active, 3)
	assert.Equal(t, ids[2], active[1].ID, "same row is rewritten")
	assert.Equal(t, model.Fail, active[1].Verdict)
	assert.Equal(t, model.Incomplete, active[2].Verdict, "failed re-run keeps the old row")

	// 1 pass out of 3 active results.
	assert.Equal(t, 33, h.repo.movies[dune.ID].Score)
	assert.Equal(t, "summary of Dune", h.repo.movies[dune.ID].Summary)
}

func TestUpdateIncomplete_NoKnowledgeKeepsRow(t *testing.T) {
	h := newHarness()
	seedResults(t, h, dune, map[int64]model.Verdict{1: model.Incomplete}, "es")
	h.evaluator.noKnowledge[1] = true

	n, err := h.pipeline.UpdateIncomplete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Contains(t, h.repo.movies, dune.ID)
	assert.Len(t, h.repo.results, 1)
}

func TestUpdateTranslations(t *testing.T) {
	h := newHarness()
	seedResults(t, h, dune, map[int64]model.Verdict{1: model.Pass}, "")
	seedResults(t, h, barbie, map[int64]model.Verdict{1: model.Fail}, "ya traducido")

	n, err := h.pipeline.UpdateTranslations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, _ := h.repo.ActiveResults(context.Background(), dune.ID)
	require.Len(t, active, 1)
	assert.Equal(t, "[Spanish] reason", active[0].ReasonES)
	other, _ := h.repo.ActiveResults(context.Background(), barbie.ID)
	assert.Equal(t, "ya traducido", other[0].ReasonES)
}

func TestUpdateTranslations_FailureLeavesRow(t *testing.T) {
	h := newHarness()
	seedResults(t, h, dune, map[int64]model.Verdict{1: model.Pass}, "")
	h.translator.fail = true

	n, err := h.pipeline.UpdateTranslations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	active, _ := h.repo.ActiveResults(context.Background(), dune.ID)
	assert.Empty(t, active[0].ReasonES)
}

func TestUpdateSummaries(t *testing.T) {
	h := newHarness()
	seedResults(t, h, dune, map[int64]model.Verdict{1: model.Pass, 2: model.Fail}, "es")
	seedResults(t, h, barbie, map[int64]model.Verdict{1: model.Pass}, "es")

	n, err := h.pipeline.UpdateSummaries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 50, h.repo.movies[dune.ID].Score)
	assert.Equal(t, 100, h.repo.movies[barbie.ID].Score)
	assert.Equal(t, "resumen de Barbie", h.repo.movies[barbie.ID].SummaryES)
}

func TestUpdateSummaries_FailureKeepsStoredSummary(t *testing.T) {
	h := newHarness()
	movie := dune
	movie.Summary, movie.SummaryES = "old", "viejo"
	seedResults(t, h, movie, map[int64]model.Verdict{1: model.Fail}, "es")
	h.summarizer.ok = false

	_, err := h.pipeline.UpdateSummaries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "old", h.repo.movies[dune.ID].Summary)
	assert.Equal(t, 0, h.repo.movies[dune.ID].Score)
}
