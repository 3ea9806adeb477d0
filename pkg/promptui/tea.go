package promptui

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"github.com/flowctl/flowctl/pkg/model"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
)

// TeaDriver implements executor.PromptDriver with a Bubble Tea form per
// call: one short-lived tea.Program per Ask/Confirm/ChooseAction/
// AckPrompt invocation, mirroring gert's per-overlay Bubble Tea models
// (pkg/tui/choice.go) but run standalone instead of as a sub-view of a
// larger running program, since the scenario engine itself owns no
// persistent TUI loop (spec.md §2 describes it as a driver the executor
// invokes at suspension points, not an owning shell).
type TeaDriver struct {
	Stdin  io.Reader
	Stdout io.Writer
}

// NewTeaDriver constructs a TeaDriver over the process terminal.
func NewTeaDriver() *TeaDriver { return &TeaDriver{} }

func (d *TeaDriver) programOpts() []tea.ProgramOption {
	var opts []tea.ProgramOption
	if d.Stdin != nil {
		opts = append(opts, tea.WithInput(d.Stdin))
	}
	if d.Stdout != nil {
		opts = append(opts, tea.WithOutput(d.Stdout))
	}
	return opts
}

// Ask dispatches to the input/confirm/select/multiselect form matching
// step.Mode.
func (d *TeaDriver) Ask(ctx context.Context, step model.Step, opts []model.ResolvedOption) (any, error) {
	switch step.Mode {
	case model.PromptConfirm:
		v, err := d.Confirm(ctx, step)
		return v, err
	case model.PromptSelect:
		return d.runSelect(step, opts, false)
	case model.PromptMultiSelect:
		return d.runSelect(step, opts, true)
	default: // PromptInput
		return d.runInput(step)
	}
}

func (d *TeaDriver) Confirm(ctx context.Context, step model.Step) (bool, error) {
	m := confirmModel{title: promptCopy(step)}
	final, err := d.run(m)
	if err != nil {
		return false, err
	}
	cm := final.(confirmModel)
	if cm.cancelled {
		return false, ErrAborted
	}
	return cm.value, nil
}

func (d *TeaDriver) ChooseAction(ctx context.Context, actions []model.ErrorAction) (string, error) {
	opts := make([]Option, 0, len(actions)+1)
	for _, a := range actions {
		opts = append(opts, Option{Value: a.Next, Label: a.Label})
	}
	opts = append(opts, Option{Value: "exit", Label: "Abort"})
	m := listModel{title: "Choose a recovery action", options: opts}
	final, err := d.run(m)
	if err != nil {
		return "", err
	}
	lm := final.(listModel)
	if lm.cancelled {
		return "", ErrAborted
	}
	return fmt.Sprint(opts[lm.cursor].Value), nil
}

func (d *TeaDriver) AckPrompt(ctx context.Context, ruleID, note string) (bool, error) {
	title := fmt.Sprintf("Policy %q blocks this command. Acknowledge to downgrade to a warning and continue?", ruleID)
	if note != "" {
		title += "\n" + note
	}
	m := confirmModel{title: title}
	final, err := d.run(m)
	if err != nil {
		return false, err
	}
	cm := final.(confirmModel)
	if cm.cancelled {
		return false, ErrAborted
	}
	return cm.value, nil
}

func (d *TeaDriver) run(m tea.Model) (tea.Model, error) {
	p := tea.NewProgram(m, d.programOpts()...)
	return p.Run()
}

func (d *TeaDriver) runInput(step model.Step) (any, error) {
	m := newInputModel(step)
	final, err := d.run(m)
	if err != nil {
		return nil, err
	}
	im := final.(inputModel)
	if im.cancelled {
		return nil, ErrAborted
	}
	return im.input.Value(), nil
}

func (d *TeaDriver) runSelect(step model.Step, opts []model.ResolvedOption, multi bool) (any, error) {
	m := listModel{title: promptCopy(step), options: opts, multi: multi, picked: map[int]bool{}}
	final, err := d.run(m)
	if err != nil {
		return nil, err
	}
	lm := final.(listModel)
	if lm.cancelled {
		return nil, ErrAborted
	}
	if !multi {
		return opts[lm.cursor].Value, nil
	}
	out := make([]any, 0, len(lm.picked))
	for i, o := range opts {
		if lm.picked[i] {
			out = append(out, o.Value)
		}
	}
	return out, nil
}

// --- input (free-text) model ---

type inputModel struct {
	title     string
	input     textinput.Model
	cancelled bool
	done      bool
}

func newInputModel(step model.Step) inputModel {
	ti := textinput.New()
	ti.Focus()
	if step.Default != nil {
		ti.SetValue(fmt.Sprint(step.Default))
	}
	return inputModel{title: promptCopy(step), input: ti}
}

func (m inputModel) Init() tea.Cmd { return textinput.Blink }

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return titleStyle.Render(m.title) + "\n" + m.input.View() + "\n" + dimStyle.Render("enter to submit, esc to cancel")
}

// --- confirm (y/n) model ---

type confirmModel struct {
	title     string
	value     bool
	cancelled bool
	done      bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "y", "Y":
			m.value = true
			m.done = true
			return m, tea.Quit
		case "n", "N", "enter":
			m.value = false
			m.done = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return titleStyle.Render(m.title) + "\n" + dimStyle.Render("y/n (default: n)")
}

// --- select / multiselect model ---

type listModel struct {
	title     string
	options   []model.ResolvedOption
	multi     bool
	cursor    int
	picked    map[int]bool
	cancelled bool
	done      bool
}

func (m listModel) Init() tea.Cmd { return nil }

func (m listModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.options)-1 {
				m.cursor++
			}
		case " ":
			if m.multi {
				m.picked[m.cursor] = !m.picked[m.cursor]
			}
		case "enter":
			m.done = true
			return m, tea.Quit
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m listModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	for i, o := range m.options {
		marker := "  "
		if i == m.cursor {
			marker = cursorStyle.Render("> ")
		}
		label := o.Label
		if label == "" {
			label = fmt.Sprint(o.Value)
		}
		if m.multi {
			box := "[ ]"
			if m.picked[i] {
				box = "[x]"
			}
			label = box + " " + label
		}
		if o.Disabled {
			label = dimStyle.Render(label + " (disabled)")
		} else if i == m.cursor {
			label = selectedStyle.Render(label)
		}
		b.WriteString(marker + label + "\n")
	}
	if m.multi {
		b.WriteString(dimStyle.Render("space to toggle, enter to submit, esc to cancel"))
	} else {
		b.WriteString(dimStyle.Render("enter to submit, esc to cancel"))
	}
	return b.String()
}
