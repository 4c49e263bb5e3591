package analyzer

import (
	"context"

	"github.com/timvw/reel-judge/internal/extract"
	"github.com/timvw/reel-judge/internal/llm"
	ppotel "github.com/timvw/reel-judge/internal/otel"
	"go.uber.org/zap"
)

// Spanish is the target language of every bilingual field.
const Spanish = "Spanish"

// Translator asks the model for a single-turn translation.
type Translator struct {
	Chatter llm.Chatter
	Metrics *ppotel.Metrics // nil-safe
	Logger  *zap.Logger     // nil disables logging
}

// Translate returns text translated to language. Any failure (call error,
// no JSON, missing "translated" field) yields ("", false).
func (t *Translator) Translate(ctx context.Context, text, language string) (string, bool) {
	logger := nopIfNil(t.Logger)

	prompt, err := render(translateTmpl, translateData{Language: language, Text: text})
	if err != nil {
		logger.Warn("rendering translation prompt", zap.Error(err))
		return "", false
	}

	conv := llm.NewConversation(t.Chatter, TranslateSystemPrompt)
	response, err := conv.Send(ctx, prompt)
	t.Metrics.RecordTokens(ctx, t.Chatter.Provider(), t.Chatter.Model(), conv.Usage())
	if err != nil {
		logger.Warn("translation failed", zap.String("language", language), zap.Error(err))
		return "", false
	}

	translated, ok := extract.String(response, "translated")
	if !ok {
		logger.Warn("translation response has no translated field", zap.String("language", language))
		return "", false
	}
	return translated, true
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
