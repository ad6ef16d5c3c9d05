package ui

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("cancelled")

// IsCI returns true if running in a CI environment.
// gitlab-ci-local sets GITLAB_CI=false, which should not be treated as CI.
func IsCI() bool {
	return isTruthy(os.Getenv("CI")) ||
		isTruthy(os.Getenv("BLOCKS_CI")) ||
		isTruthy(os.Getenv("GITHUB_ACTIONS")) ||
		isTruthy(os.Getenv("GITLAB_CI"))
}

func isTruthy(v string) bool {
	return v != "" && v != "false" && v != "0"
}

func mapAbort(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrCancelled
	}
	return err
}

// Option is one entry of a multi-select prompt.
type Option struct {
	Label    string
	Value    string
	Selected bool
}

// MultiSelect prompts the user to pick any number of options. In CI the
// preselected options are returned without prompting.
func MultiSelect(title string, opts []Option) ([]string, error) {
	var selected []string
	options := make([]huh.Option[string], 0, len(opts))
	for _, o := range opts {
		if o.Selected {
			selected = append(selected, o.Value)
		}
		options = append(options, huh.NewOption(o.Label, o.Value).Selected(o.Selected))
	}
	if IsCI() {
		return selected, nil
	}

	err := huh.NewMultiSelect[string]().
		Title(title).
		Options(options...).
		Value(&selected).
		Run()
	return selected, mapAbort(err)
}

// Confirm prompts the user for a yes/no confirmation.
func Confirm(title string) (bool, error) {
	var confirmed bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed).
		Run()
	return confirmed, mapAbort(err)
}

// Prompter asks for confirmations on the terminal. In CI every question is
// answered with Default.
type Prompter struct {
	Default bool
}

// Confirm implements the reconciler's confirmation hook.
func (p Prompter) Confirm(title string) (bool, error) {
	if IsCI() {
		return p.Default, nil
	}
	return Confirm(title)
}
