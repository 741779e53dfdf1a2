package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// errPromptCancelled is returned when the user leaves a prompt with
// esc or ctrl+c. It wraps context.Canceled so main exits with 130.
var errPromptCancelled = fmt.Errorf("prompt cancelled: %w", context.Canceled)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// prompter asks the user for values the flags and config left open.
type prompter interface {
	Select(title string, options []string) (int, error)
	Input(title, def string) (string, error)
}

// teaPrompter shows bubbletea prompts on a terminal.
type teaPrompter struct {
	in  io.Reader
	out io.Writer
}

func (p teaPrompter) Select(title string, options []string) (int, error) {
	final, err := tea.NewProgram(newSelectModel(title, options), tea.WithInput(p.in), tea.WithOutput(p.out)).Run()
	if err != nil {
		return -1, err
	}
	m := final.(selectModel)
	if m.Cancelled {
		return -1, errPromptCancelled
	}
	return m.Selected, nil
}

func (p teaPrompter) Input(title, def string) (string, error) {
	final, err := tea.NewProgram(newInputModel(title, def), tea.WithInput(p.in), tea.WithOutput(p.out)).Run()
	if err != nil {
		return "", err
	}
	m := final.(inputModel)
	if m.Cancelled {
		return "", errPromptCancelled
	}
	return m.Result(), nil
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// =============================================================================
// selectModel - pick one option from a list
// =============================================================================

type selectModel struct {
	Title     string
	Options   []string
	Cursor    int
	Selected  int
	Cancelled bool
}

func newSelectModel(title string, options []string) selectModel {
	return selectModel{Title: title, Options: options, Selected: -1}
}

func (m selectModel) Init() tea.Cmd {
	return nil
}

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch s := key.String(); s {
	case "q", "ctrl+c", "esc":
		m.Cancelled = true
		return m, tea.Quit
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
		}
	case "down", "j":
		if m.Cursor < len(m.Options)-1 {
			m.Cursor++
		}
	case "enter":
		if len(m.Options) > 0 {
			m.Selected = m.Cursor
			return m, tea.Quit
		}
	default:
		// Number keys pick directly, matching the numbers shown.
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if i := int(s[0] - '1'); i < len(m.Options) {
				m.Cursor, m.Selected = i, i
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m selectModel) View() string {
	if m.Selected >= 0 || m.Cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")
	for i, opt := range m.Options {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		line := fmt.Sprintf("%s%d. %s", cursor, i+1, opt)
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// =============================================================================
// inputModel - free text with a default
// =============================================================================

type inputModel struct {
	Title     string
	Default   string
	Value     []rune
	Done      bool
	Cancelled bool
}

func newInputModel(title, def string) inputModel {
	return inputModel{Title: title, Default: def}
}

// Result returns the typed value, or the default when nothing was typed.
func (m inputModel) Result() string {
	if v := strings.TrimSpace(string(m.Value)); v != "" {
		return v
	}
	return m.Default
}

func (m inputModel) Init() tea.Cmd {
	return nil
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.Cancelled = true
		return m, tea.Quit
	case tea.KeyEnter:
		m.Done = true
		return m, tea.Quit
	case tea.KeyBackspace:
		if len(m.Value) > 0 {
			m.Value = m.Value[:len(m.Value)-1]
		}
	case tea.KeySpace:
		m.Value = append(m.Value, ' ')
	case tea.KeyRunes:
		m.Value = append(m.Value, key.Runes...)
	}
	return m, nil
}

func (m inputModel) View() string {
	if m.Done || m.Cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(StyleTitle.Render(m.Title))
	if m.Default != "" {
		b.WriteString(listDimStyle.Render(" (default " + m.Default + ")"))
	}
	b.WriteString("\n")
	b.WriteString(StyleHighlight.Render("› "))
	b.WriteString(StyleValue.Render(string(m.Value)))
	b.WriteString(listDimStyle.Render("█"))
	b.WriteString("\n")
	return b.String()
}
