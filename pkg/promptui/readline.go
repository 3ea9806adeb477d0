package promptui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/flowctl/flowctl/pkg/model"
)

// ReadlineDriver is the --no-tui fallback: plain line-editing prompts via
// chzyer/readline, used for input/confirm/select/multiselect. It also
// implements AckPrompt, which the executor does not call. Grounded on the same
// suspension-point contract as TeaDriver; chosen when the host terminal
// can't or shouldn't run a full-screen Bubble Tea program.
type ReadlineDriver struct {
	instance *readline.Instance
}

// NewReadlineDriver constructs a ReadlineDriver over the process terminal.
func NewReadlineDriver() (*ReadlineDriver, error) {
	inst, err := readline.New("")
	if err != nil {
		return nil, fmt.Errorf("promptui: readline: %w", err)
	}
	return &ReadlineDriver{instance: inst}, nil
}

// Close releases the underlying readline instance.
func (d *ReadlineDriver) Close() error { return d.instance.Close() }

func (d *ReadlineDriver) Ask(ctx context.Context, step model.Step, opts []model.ResolvedOption) (any, error) {
	switch step.Mode {
	case model.PromptConfirm:
		return d.Confirm(ctx, step)
	case model.PromptSelect:
		return d.askSelect(step, opts, false)
	case model.PromptMultiSelect:
		return d.askSelect(step, opts, true)
	default:
		return d.askInput(step)
	}
}

func (d *ReadlineDriver) askInput(step model.Step) (any, error) {
	prompt := promptCopy(step)
	if step.Default != nil {
		prompt = fmt.Sprintf("%s [%v]", prompt, step.Default)
	}
	d.instance.SetPrompt(prompt + ": ")
	line, err := d.instance.Readline()
	if err != nil {
		return nil, ErrAborted
	}
	line = strings.TrimSpace(line)
	if line == "" && step.Default != nil {
		return step.Default, nil
	}
	return line, nil
}

func (d *ReadlineDriver) Confirm(ctx context.Context, step model.Step) (bool, error) {
	d.instance.SetPrompt(promptCopy(step) + " [y/N]: ")
	line, err := d.instance.Readline()
	if err != nil {
		return false, ErrAborted
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

func (d *ReadlineDriver) askSelect(step model.Step, opts []model.ResolvedOption, multi bool) (any, error) {
	fmt.Println(promptCopy(step))
	for i, o := range opts {
		label := o.Label
		if label == "" {
			label = fmt.Sprint(o.Value)
		}
		disabled := ""
		if o.Disabled {
			disabled = " (disabled)"
		}
		fmt.Printf("  %d) %s%s\n", i+1, label, disabled)
	}
	if multi {
		d.instance.SetPrompt("choose (comma-separated numbers): ")
	} else {
		d.instance.SetPrompt("choose (number): ")
	}
	line, err := d.instance.Readline()
	if err != nil {
		return nil, ErrAborted
	}
	indices, err := parseIndices(line, len(opts))
	if err != nil {
		return nil, err
	}
	if !multi {
		if len(indices) == 0 {
			return nil, fmt.Errorf("promptui: no selection made")
		}
		return opts[indices[0]].Value, nil
	}
	out := make([]any, 0, len(indices))
	for _, idx := range indices {
		out = append(out, opts[idx].Value)
	}
	return out, nil
}

func (d *ReadlineDriver) ChooseAction(ctx context.Context, actions []model.ErrorAction) (string, error) {
	fmt.Println("Choose a recovery action:")
	for i, a := range actions {
		fmt.Printf("  %d) %s\n", i+1, a.Label)
	}
	fmt.Printf("  %d) Abort\n", len(actions)+1)
	d.instance.SetPrompt("choose (number): ")
	line, err := d.instance.Readline()
	if err != nil {
		return "", ErrAborted
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(actions)+1 {
		return "", fmt.Errorf("promptui: invalid selection %q", line)
	}
	if n == len(actions)+1 {
		return "exit", nil
	}
	return actions[n-1].Next, nil
}

func (d *ReadlineDriver) AckPrompt(ctx context.Context, ruleID, note string) (bool, error) {
	prompt := fmt.Sprintf("Policy %q blocks this command.", ruleID)
	if note != "" {
		prompt += " " + note
	}
	fmt.Println(prompt)
	d.instance.SetPrompt("acknowledge and continue? [y/N]: ")
	line, err := d.instance.Readline()
	if err != nil {
		return false, ErrAborted
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

func parseIndices(line string, n int) ([]int, error) {
	fields := strings.Split(line, ",")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil || v < 1 || v > n {
			return nil, fmt.Errorf("promptui: invalid selection %q", f)
		}
		out = append(out, v-1)
	}
	return out, nil
}
