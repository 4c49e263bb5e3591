package llm

import (
	"context"

	"github.com/timvw/reel-judge/internal/model"
)

// Conversation holds the history of one logical exchange with a model.
// Each Send appends the user turn and the assistant reply, so the next
// call sees everything said so far. A Conversation is not safe for
// concurrent use.
type Conversation struct {
	chatter Chatter
	system  string
	turns   []model.Turn
	usage   model.TokenUsage
}

// NewConversation starts an empty conversation under the given system prompt.
func NewConversation(chatter Chatter, system string) *Conversation {
	return &Conversation{chatter: chatter, system: system}
}

// Send appends a user turn, asks the model, and appends its reply.
// On error the history is left as it was before the call.
func (c *Conversation) Send(ctx context.Context, content string) (string, error) {
	turns := append(c.History(), model.Turn{Role: model.RoleUser, Content: content})
	reply, err := c.chatter.Chat(ctx, c.system, turns)
	if err != nil {
		return "", err
	}
	c.turns = append(turns, model.Turn{Role: model.RoleAssistant, Content: reply.Text})
	c.usage.Add(reply.Usage)
	return reply.Text, nil
}

// Replay appends a user turn and a known assistant answer without calling
// the model. Used to resume from a cached response.
func (c *Conversation) Replay(user, assistant string) {
	c.turns = append(c.turns,
		model.Turn{Role: model.RoleUser, Content: user},
		model.Turn{Role: model.RoleAssistant, Content: assistant},
	)
}

// History returns a copy of the turns exchanged so far.
func (c *Conversation) History() []model.Turn {
	out := make([]model.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Usage returns the tokens consumed by Send calls on this conversation.
func (c *Conversation) Usage() model.TokenUsage {
	return c.usage
}
