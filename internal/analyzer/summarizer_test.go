package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timvw/reel-judge/internal/model"
)

func sampleResults() []model.TestResult {
	return []model.TestResult{
		{TestID: 1, Verdict: model.Pass, Active: true, Test: &model.Test{ID: 1, Name: "Bechdel", Objective: "two women talk"}},
		{TestID: 2, Verdict: model.Fail, Active: true, Test: &model.Test{ID: 2, Name: "Mako Mori", Objective: "a woman has her own arc"}},
		{TestID: 3, Verdict: model.Incomplete, Active: true, Test: &model.Test{ID: 3, Name: "Ellen Willis", Objective: "genders swapped"}},
		{TestID: 1, Verdict: model.Fail, Active: false, Test: &model.Test{ID: 1, Name: "Bechdel", Objective: "two women talk"}},
	}
}

func TestResultLines(t *testing.T) {
	want := "Bechdel (two women talk): Passed\n" +
		"Mako Mori (a woman has her own arc): Failed\n" +
		"Ellen Willis (genders swapped): Incomplete\n"
	assert.Equal(t, want, ResultLines(sampleResults()))
	assert.Equal(t, "Test 9 (): Passed\n", ResultLines([]model.TestResult{{TestID: 9, Verdict: model.Pass, Active: true}}))
}

func TestSummarize_OutputAndSpanish(t *testing.T) {
	chatter := newStageChatter(map[stage]string{
		stageSummary: "<thinking>plan</thinking>\n<output>\nDune gives women power but few words.\n</output>\n" +
			`{"summary_in_spanish": "Dune da poder a las mujeres pero pocas palabras."}`,
	})
	s := &Summarizer{Chatter: chatter, Translator: &Translator{Chatter: chatter}}

	summary, summaryES, ok := s.Summarize(context.Background(), dune, sampleResults())
	require.True(t, ok)
	assert.Equal(t, "Dune gives women power but few words.", summary)
	assert.Equal(t, "Dune da poder a las mujeres pero pocas palabras.", summaryES)

	require.Len(t, chatter.calls, 1)
	assert.Equal(t, SummarySystemPrompt, chatter.calls[0].system)
	prompt := chatter.calls[0].turns[0].Content
	assert.Contains(t, prompt, "Bechdel (two women talk): Passed")
	assert.NotContains(t, prompt, "Bechdel (two women talk): Failed")
	assert.Contains(t, prompt, `"Dune" (2021)`)
}

func TestSummarize_JSONInsideOutput(t *testing.T) {
	chatter := newStageChatter(map[stage]string{
		stageSummary: "<output>Short summary.\n{\"summary_in_spanish\": \"Resumen corto.\"}</output>",
	})
	summary, summaryES, ok := (&Summarizer{Chatter: chatter}).Summarize(context.Background(), dune, sampleResults())
	require.True(t, ok)
	assert.Equal(t, "Short summary.", summary)
	assert.Equal(t, "Resumen corto.", summaryES)
}

func TestSummarize_WithoutOutputTagsUsesProse(t *testing.T) {
	chatter := newStageChatter(map[stage]string{
		stageSummary:   "Dune sidelines its women.",
		stageTranslate: `{"translated": "Dune margina a sus mujeres."}`,
	})
	s := &Summarizer{Chatter: chatter, Translator: &Translator{Chatter: chatter}}

	summary, summaryES, ok := s.Summarize(context.Background(), dune, sampleResults())
	require.True(t, ok)
	assert.Equal(t, "Dune sidelines its women.", summary)
	assert.Equal(t, "Dune margina a sus mujeres.", summaryES)
	assert.Equal(t, 1, chatter.count(stageTranslate))
}

func TestSummarize_WithoutOutputTagsDropsReasoning(t *testing.T) {
	chatter := newStageChatter(map[stage]string{
		stageSummary: "<thinking>I will be viral. {draft}</thinking>\n<reflection>check</reflection>\n" +
			"Dune gives women power.\n{\"summary_in_spanish\": \"Dune da poder a las mujeres.\"}",
	})
	s := &Summarizer{Chatter: chatter, Translator: &Translator{Chatter: chatter}}

	summary, summaryES, ok := s.Summarize(context.Background(), dune, sampleResults())
	require.True(t, ok)
	assert.Equal(t, "Dune gives women power.", summary)
	assert.Equal(t, "Dune da poder a las mujeres.", summaryES)
	assert.Zero(t, chatter.count(stageTranslate))
}

func TestSummarize_Failures(t *testing.T) {
	t.Run("call error", func(t *testing.T) {
		chatter := newStageChatter(nil)
		chatter.errs[stageSummary] = errors.New("down")
		_, _, ok := (&Summarizer{Chatter: chatter}).Summarize(context.Background(), dune, sampleResults())
		assert.False(t, ok)
	})
	t.Run("only reasoning", func(t *testing.T) {
		chatter := newStageChatter(map[stage]string{stageSummary: "<thinking>plan</thinking>\n<reflection>ok</reflection>"})
		_, _, ok := (&Summarizer{Chatter: chatter}).Summarize(context.Background(), dune, sampleResults())
		assert.False(t, ok)
	})
	t.Run("only json", func(t *testing.T) {
		chatter := newStageChatter(map[stage]string{stageSummary: `{"summary_in_spanish": "hola"}`})
		_, _, ok := (&Summarizer{Chatter: chatter}).Summarize(context.Background(), dune, sampleResults())
		assert.False(t, ok)
	})
}
