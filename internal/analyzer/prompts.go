package analyzer

import (
	_ "embed"
	"strings"
	"text/template"
)

// SystemPrompt frames every evaluation conversation.
//
//go:embed prompts/system.md
var SystemPrompt string

// TranslateSystemPrompt frames translation conversations.
//
//go:embed prompts/translate_system.md
var TranslateSystemPrompt string

// SummarySystemPrompt frames summary conversations, including the content
// policy for the published text.
//
//go:embed prompts/summary_system.md
var SummarySystemPrompt string

// VerdictPrompt asks for the final JSON verdict. It has no placeholders.
//
//go:embed prompts/verdict.md
var VerdictPrompt string

var (
	//go:embed prompts/probe.md
	probeText string
	//go:embed prompts/criteria.md
	criteriaText string
	//go:embed prompts/translate.md
	translateText string
	//go:embed prompts/summary.md
	summaryText string

	probeTmpl     = mustParse("probe", probeText)
	criteriaTmpl  = mustParse("criteria", criteriaText)
	translateTmpl = mustParse("translate", translateText)
	summaryTmpl   = mustParse("summary", summaryText)
)

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=error").Parse(text))
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

type probeData struct {
	Title string
	Year  int
}

type criteriaData struct {
	Criteria string
	Title    string
	Year     int
}

type translateData struct {
	Language string
	Text     string
}

type summaryData struct {
	Results string
	Title   string
	Year    int
}
