package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// promptModel is a bubbletea model that reads one question.
type promptModel struct {
	input     textinput.Model
	submitted bool
}

func newPromptModel() promptModel {
	ti := textinput.New()
	ti.Placeholder = "Why was order 101 late?  Compare Mumbai and Delhi?"
	ti.Prompt = "ask> "
	ti.CharLimit = 512
	ti.Width = 72
	ti.Focus()
	return promptModel{input: ti}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			m.submitted = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.submitted {
		return ""
	}
	return m.input.View() + "\n(enter to ask, esc to quit)\n"
}

// question returns the submitted text, or "" when the prompt was abandoned.
func (m promptModel) question() string {
	if !m.submitted {
		return ""
	}
	return strings.TrimSpace(m.input.Value())
}

// promptQuestion runs the prompt on in/out. An abandoned prompt or an empty
// line returns "".
func promptQuestion(ctx context.Context, in io.Reader, out io.Writer) (string, error) {
	p := tea.NewProgram(newPromptModel(),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	result, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	final, ok := result.(promptModel)
	if !ok {
		return "", fmt.Errorf("prompt: unexpected model %T", result)
	}
	return final.question(), nil
}
