// Package tui renders pipeline progress as a live terminal view.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// maxLines is how many progress lines stay on screen when the terminal
// height is unknown.
const maxLines = 20

// Work is a long-running job that reports progress lines.
type Work func(ctx context.Context, progress func(string)) error

// Progress shows the lines a Work emits, with a spinner and counters.
type Progress struct {
	Title     string
	ThemeName string
}

type lineMsg string

type doneMsg struct{ err error }

// model implements tea.Model
type progressModel struct {
	title   string
	styles  styles
	spinner spinner.Model
	cancel  context.CancelFunc
	started time.Time

	lines   []string
	current string // latest movie header

	movies  int
	passed  int
	failed  int
	skipped int

	stopping bool
	done     bool
	err      error

	width  int
	height int
}

func newProgressModel(title string, theme Theme, cancel context.CancelFunc) *progressModel {
	st := newStyles(theme)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = st.title
	return &progressModel{
		title:   title,
		styles:  st,
		spinner: sp,
		cancel:  cancel,
		started: time.Now(),
	}
}

// Run executes work while rendering its progress. Pressing q or Ctrl+C
// cancels work; Run waits for it to return and reports its error.
func (p *Progress) Run(ctx context.Context, work Work) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newProgressModel(p.Title, ThemeByName(p.ThemeName), cancel)
	prog := tea.NewProgram(m)

	go func() {
		err := work(ctx, func(line string) { prog.Send(lineMsg(line)) })
		prog.Send(doneMsg{err: err})
	}()

	final, err := prog.Run()
	if fm, ok := final.(*progressModel); ok && fm.done {
		return fm.err
	}
	if err != nil {
		return fmt.Errorf("progress view: %w", err)
	}
	return ctx.Err()
}

func (m *progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.stopping {
				m.stopping = true
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case lineMsg:
		m.addLine(string(msg))
		return m, nil

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) addLine(line string) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(line, " "):
		m.movies++
		m.current = trimmed
	case strings.HasSuffix(trimmed, ": Passed"):
		m.passed++
	case strings.HasSuffix(trimmed, ": Failed"):
		m.failed++
	case strings.Contains(trimmed, ": skipped ("):
		m.skipped++
	}

	m.lines = append(m.lines, line)
	if keep := m.visibleLines(); len(m.lines) > keep {
		m.lines = m.lines[len(m.lines)-keep:]
	}
}

func (m *progressModel) visibleLines() int {
	if m.height > 6 {
		return m.height - 4
	}
	return maxLines
}

func (m *progressModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.title.Render(m.title))
	b.WriteString("  ")
	b.WriteString(m.styles.dim.Render(fmt.Sprintf("%s elapsed", time.Since(m.started).Truncate(time.Second))))
	b.WriteString("\n")

	for _, line := range m.lines {
		b.WriteString(m.renderLine(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	counts := fmt.Sprintf("movies: %d  passed: %d  failed: %d  skipped: %d",
		m.movies, m.passed, m.failed, m.skipped)
	switch {
	case m.done && m.err != nil:
		b.WriteString(m.styles.failed.Render("error: " + m.err.Error()))
		b.WriteString("  ")
		b.WriteString(m.styles.dim.Render(counts))
	case m.done:
		b.WriteString(m.styles.passed.Render("done"))
		b.WriteString("  ")
		b.WriteString(m.styles.dim.Render(counts))
	case m.stopping:
		b.WriteString(m.styles.warning.Render("stopping..."))
		b.WriteString("  ")
		b.WriteString(m.styles.dim.Render(counts))
	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(m.styles.text.Render(truncate(m.current, m.lineWidth())))
		b.WriteString("  ")
		b.WriteString(m.styles.dim.Render(counts + "  q=stop"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) renderLine(line string) string {
	line = truncate(line, m.lineWidth())
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(line, " "):
		return m.styles.movie.Render(line)
	case strings.HasSuffix(trimmed, ": Passed"):
		return m.styles.passed.Render(line)
	case strings.HasSuffix(trimmed, ": Failed"):
		return m.styles.failed.Render(line)
	case strings.HasSuffix(trimmed, ": Incomplete"), strings.Contains(trimmed, "skipped"), strings.Contains(trimmed, "removed"):
		return m.styles.warning.Render(line)
	default:
		return m.styles.text.Render(line)
	}
}

func (m *progressModel) lineWidth() int {
	if m.width > 0 {
		return m.width
	}
	return 120
}

// truncate cuts a string to at most maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
