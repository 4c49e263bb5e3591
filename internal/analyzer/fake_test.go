package analyzer

import (
	"context"
	"strings"

	"github.com/timvw/reel-judge/internal/llm"
	"github.com/timvw/reel-judge/internal/model"
)

type stage string

const (
	stageProbe     stage = "probe"
	stageCriteria  stage = "criteria"
	stageVerdict   stage = "verdict"
	stageTranslate stage = "translate"
	stageSummary   stage = "summary"
)

func stageOf(prompt string) stage {
	switch {
	case strings.HasPrefix(prompt, "Do you know the movie"):
		return stageProbe
	case strings.HasPrefix(prompt, "The criteria:"):
		return stageCriteria
	case strings.HasPrefix(prompt, "Based on your analysis"):
		return stageVerdict
	case strings.Contains(prompt, `"translated"`):
		return stageTranslate
	case strings.Contains(prompt, "Based on the previous test results"):
		return stageSummary
	default:
		return ""
	}
}

type call struct {
	stage  stage
	system string
	turns  []model.Turn
}

// stageChatter answers by stage of the last user turn.
type stageChatter struct {
	replies map[stage]string
	errs    map[stage]error
	calls   []call
}

func newStageChatter(replies map[stage]string) *stageChatter {
	return &stageChatter{replies: replies, errs: map[stage]error{}}
}

func (c *stageChatter) Chat(_ context.Context, system string, turns []model.Turn) (*llm.Reply, error) {
	st := stageOf(turns[len(turns)-1].Content)
	c.calls = append(c.calls, call{stage: st, system: system, turns: turns})
	if err := c.errs[st]; err != nil {
		return nil, err
	}
	return &llm.Reply{Text: c.replies[st], Usage: model.TokenUsage{InputTokens: 5, OutputTokens: 1}}, nil
}

func (c *stageChatter) Provider() string { return "fake" }
func (c *stageChatter) Model() string    { return "fake-1" }

func (c *stageChatter) count(st stage) int {
	n := 0
	for _, cl := range c.calls {
		if cl.stage == st {
			n++
		}
	}
	return n
}
