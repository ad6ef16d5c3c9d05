package ui

import (
	"github.com/charmbracelet/huh/spinner"
)

// WithSpinner runs a function with a spinner. In CI mode, or when quiet is
// set, runs without spinner.
func WithSpinner(title string, quiet bool, fn func() error) error {
	if quiet || IsCI() {
		return fn()
	}
	var actionErr error
	err := spinner.New().
		Title(title).
		Action(func() {
			actionErr = fn()
		}).
		Run()
	if err != nil {
		return err
	}
	return actionErr
}
