package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timvw/reel-judge/internal/cache"
	"github.com/timvw/reel-judge/internal/model"
)

var (
	dune    = model.Movie{ID: 438631, Title: "Dune", Year: 2021}
	bechdel = model.Test{ID: 1, Name: "Bechdel", Objective: "Two named women talk to each other about something other than a man"}
)

const knownProbe = `<thinking>I know this film.</thinking> ... {"is_there_information": true}`

func newTestEvaluator(chatter *stageChatter) *Evaluator {
	return &Evaluator{
		Chatter:    chatter,
		Cache:      cache.New(10),
		Translator: &Translator{Chatter: chatter},
	}
}

func TestEvaluate_Pass(t *testing.T) {
	chatter := newStageChatter(map[stage]string{
		stageProbe:    knownProbe,
		stageCriteria: "Step 1: Jessica and the Reverend Mother talk about the Bene Gesserit...",
		stageVerdict:  `{"result": true, "reason": "Two women discuss the Bene Gesserit.", "reason_es": "Dos mujeres hablan de las Bene Gesserit."}`,
	})
	ev := newTestEvaluator(chatter)

	got, err := ev.Evaluate(context.Background(), dune, bechdel)
	require.NoError(t, err)
	require.False(t, got.NoKnowledge)

	r := got.Result
	assert.Equal(t, model.Pass, r.Verdict)
	assert.Equal(t, "Two women discuss the Bene Gesserit.", r.Reason)
	assert.Equal(t, "Dos mujeres hablan de las Bene Gesserit.", r.ReasonES)
	assert.Equal(t, dune.ID, r.MovieID)
	assert.Equal(t, bechdel.ID, r.TestID)
	assert.True(t, r.Active)
	assert.GreaterOrEqual(t, r.ExecutionTime, 0.0)
	assert.NotEmpty(t, r.CreatedAt)

	require.Len(t, chatter.calls, 3)
	verdictCall := chatter.calls[2]
	assert.Equal(t, SystemPrompt, verdictCall.system)
	require.Len(t, verdictCall.turns, 5)
	assert.Equal(t, knownProbe, verdictCall.turns[1].Content)
	assert.Contains(t, verdictCall.turns[2].Content, "The criteria: Bechdel: Two named women")
	assert.Contains(t, verdictCall.turns[2].Content, "Dune (2021)")
	assert.Equal(t, 0, chatter.count(stageTranslate))
}

func TestEvaluate_ProbeCachedAcrossTests(t *testing.T) {
	chatter := newStageChatter(map[stage]string{
		stageProbe:    knownProbe,
		stageCriteria: "analysis",
		stageVerdict:  `{"result": false, "reason": "r", "reason_es": "r_es"}`,
	})
	ev := newTestEvaluator(chatter)

	for id := int64(1); id <= 4; id++ {
		_, err := ev.Evaluate(context.Background(), dune, model.Test{ID: id, Name: "test"})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, chatter.count(stageProbe))
	assert.Equal(t, 4, chatter.count(stageCriteria))
	assert.Equal(t, 1, ev.Cache.Len())

	// Cached probe is replayed as the second turn of later conversations.
	last := chatter.calls[len(chatter.calls)-1]
	assert.Equal(t, knownProbe, last.turns[1].Content)
}

func TestEvaluate_ProbeCacheKeyIncludesYear(t *testing.T) {
	chatter := newStageChatter(map[stage]string{
		stageProbe:    knownProbe,
		stageCriteria: "analysis",
		stageVerdict:  `{"result": true, "reason": "r", "reason_es": "r_es"}`,
	})
	ev := newTestEvaluator(chatter)

	remake := dune
	remake.Year = 1984
	_, err := ev.Evaluate(context.Background(), dune, bechdel)
	require.NoError(t, err)
	_, err = ev.Evaluate(context.Background(), remake, bechdel)
	require.NoError(t, err)

	assert.Equal(t, 2, chatter.count(stageProbe))
}

func TestEvaluate_NoKnowledge(t *testing.T) {
	tests := []struct {
		name  string
		probe string
	}{
		{"explicit false", `I don't know. {"is_there_information": false}`},
		{"no json", "I don't know this movie."},
		{"string instead of boolean", `{"is_there_information": "yes"}`},
		{"field missing", `{"known": true}`},
		{"broken json", `{"is_there_information": tru`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chatter := newStageChatter(map[stage]string{stageProbe: tt.probe})
			ev := newTestEvaluator(chatter)

			got, err := ev.Evaluate(context.Background(), dune, bechdel)
			require.NoError(t, err)
			assert.True(t, got.NoKnowledge)
			assert.Len(t, chatter.calls, 1)

			// The negative answer is cached too.
			cached, ok := ev.Cache.Get(dune.Title, dune.Year)
			assert.True(t, ok)
			assert.Equal(t, tt.probe, cached)
		})
	}
}

func TestEvaluate_UnreadableVerdictDefaults(t *testing.T) {
	for _, verdict := range []string{
		"I could not decide.",
		"} result: true {",
		`{"result": true, "reason": "unterminated"`,
	} {
		t.Run(verdict, func(t *testing.T) {
			chatter := newStageChatter(map[stage]string{
				stageProbe:    knownProbe,
				stageCriteria: "analysis",
				stageVerdict:  verdict,
			})
			got, err := newTestEvaluator(chatter).Evaluate(context.Background(), dune, bechdel)
			require.NoError(t, err)
			assert.Equal(t, model.Incomplete, got.Result.Verdict)
			assert.Equal(t, DefaultReason, got.Result.Reason)
			assert.Equal(t, DefaultReasonES, got.Result.ReasonES)
			assert.Equal(t, bechdel.ID, got.Result.TestID)
			assert.True(t, got.Result.Active)
		})
	}
}

func TestEvaluate_MissingReasonDefaultsBothLanguages(t *testing.T) {
	chatter := newStageChatter(map[stage]string{
		stageProbe:    knownProbe,
		stageCriteria: "analysis",
		stageVerdict:  `{"result": true, "reason_es": "La película pasa la prueba."}`,
	})
	got, err := newTestEvaluator(chatter).Evaluate(context.Background(), dune, bechdel)
	require.NoError(t, err)
	assert.Equal(t, model.Pass, got.Result.Verdict)
	assert.Equal(t, DefaultReason, got.Result.Reason)
	assert.Equal(t, DefaultReasonES, got.Result.ReasonES)
	assert.Zero(t, chatter.count(stageTranslate))
}

func TestEvaluate_NonBooleanResultIsIncomplete(t *testing.T) {
	chatter := newStageChatter(map[stage]string{
		stageProbe:    knownProbe,
		stageCriteria: "analysis",
		stageVerdict:  `{"result": "maybe", "reason": "Hard to tell.", "reason_es": "Difícil de saber."}`,
	})
	got, err := newTestEvaluator(chatter).Evaluate(context.Background(), dune, bechdel)
	require.NoError(t, err)
	assert.Equal(t, model.Incomplete, got.Result.Verdict)
	assert.Equal(t, "Hard to tell.", got.Result.Reason)
}

func TestEvaluate_MissingSpanishReasonIsTranslated(t *testing.T) {
	chatter := newStageChatter(map[stage]string{
		stageProbe:     knownProbe,
		stageCriteria:  "analysis",
		stageVerdict:   "```json\n{\"result\": false, \"reason\": \"No women talk.\"}\n```",
		stageTranslate: `{"translated": "Ninguna mujer habla."}`,
	})
	got, err := newTestEvaluator(chatter).Evaluate(context.Background(), dune, bechdel)
	require.NoError(t, err)
	assert.Equal(t, model.Fail, got.Result.Verdict)
	assert.Equal(t, "Ninguna mujer habla.", got.Result.ReasonES)
	assert.Equal(t, 1, chatter.count(stageTranslate))
}

func TestEvaluate_TranslationFailureLeavesSpanishEmpty(t *testing.T) {
	chatter := newStageChatter(map[stage]string{
		stageProbe:    knownProbe,
		stageCriteria: "analysis",
		stageVerdict:  `{"result": true, "reason": "They talk."}`,
	})
	chatter.errs[stageTranslate] = errors.New("translation down")

	got, err := newTestEvaluator(chatter).Evaluate(context.Background(), dune, bechdel)
	require.NoError(t, err)
	assert.Equal(t, model.Pass, got.Result.Verdict)
	assert.Empty(t, got.Result.ReasonES)
}

func TestEvaluate_ModelFailureIsReturned(t *testing.T) {
	for _, st := range []stage{stageProbe, stageCriteria, stageVerdict} {
		t.Run(string(st), func(t *testing.T) {
			chatter := newStageChatter(map[stage]string{
				stageProbe:    knownProbe,
				stageCriteria: "analysis",
				stageVerdict:  `{"result": true, "reason": "r", "reason_es": "r"}`,
			})
			chatter.errs[st] = errors.New("HTTP 503")

			_, err := newTestEvaluator(chatter).Evaluate(context.Background(), dune, bechdel)
			assert.Error(t, err)
		})
	}
}

func TestEvaluate_FailedProbeIsNotCached(t *testing.T) {
	chatter := newStageChatter(nil)
	chatter.errs[stageProbe] = errors.New("timeout")
	ev := newTestEvaluator(chatter)

	_, err := ev.Evaluate(context.Background(), dune, bechdel)
	require.Error(t, err)
	assert.Equal(t, 0, ev.Cache.Len())
}
