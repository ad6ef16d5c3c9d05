package builder

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/company/blocks/internal/registry"
)

// Warnings are non-fatal problems found while building a manifest.
type Warnings []string

// StrictModeError is returned when warnings are treated as errors.
type StrictModeError struct {
	Warnings Warnings
	Err      error
}

func (e *StrictModeError) Error() string {
	return fmt.Sprintf("%d warning(s) with errorOnWarn set:\n  %s", len(e.Warnings), strings.Join(e.Warnings, "\n  "))
}

func (e *StrictModeError) Unwrap() error {
	return e.Err
}

func strictError(w Warnings) error {
	var err error
	for _, msg := range w {
		err = multierr.Append(err, errors.New(msg))
	}
	return &StrictModeError{Warnings: w, Err: err}
}

// Dir is the result of building one blocks directory.
type Dir struct {
	Path       string
	Categories []registry.Category
}

// Merge combines the categories of several directories. A category name seen
// in an earlier directory wins; the later one is skipped with a warning.
func Merge(dirs []Dir, strict bool) ([]registry.Category, Warnings, error) {
	var (
		out      []registry.Category
		warnings Warnings
	)
	seen := make(map[string]string)

	for _, d := range dirs {
		for _, cat := range d.Categories {
			if first, ok := seen[cat.Name]; ok {
				msg := fmt.Sprintf("Skipped adding `%s/%s` because a category with the same name already exists in `%s`", d.Path, cat.Name, first)
				if strict {
					return nil, Warnings{msg}, strictError(Warnings{msg})
				}
				warnings = append(warnings, msg)
				continue
			}
			seen[cat.Name] = d.Path
			out = append(out, cat)
		}
	}
	return out, warnings, nil
}

// Check validates a merged manifest. Every problem is collected; under strict
// mode a non-empty result is also returned as a *StrictModeError.
func Check(categories []registry.Category, strict bool) (Warnings, error) {
	var warnings Warnings

	exists := make(map[string]bool)
	for _, cat := range categories {
		seen := make(map[string]bool)
		for _, b := range cat.Blocks {
			if seen[b.Name] {
				warnings = append(warnings, fmt.Sprintf("Duplicate block `%s` in category `%s`", b.Name, cat.Name))
			}
			seen[b.Name] = true
			exists[cat.Name+"/"+b.Name] = true
		}
	}

	for _, cat := range categories {
		for _, b := range cat.Blocks {
			for _, dep := range b.LocalDependencies {
				if !exists[dep] {
					warnings = append(warnings, fmt.Sprintf("`%s` depends on local dependency `%s` which doesn't exist", b.Specifier(), dep))
				}
			}
			for _, dep := range append(append([]string{}, b.Dependencies...), b.DevDependencies...) {
				if !isPinned(dep) {
					warnings = append(warnings, fmt.Sprintf("`%s` depends on `%s` without a version; pin it as `%s@<version>`", b.Specifier(), dep, dep))
				}
			}
		}
	}

	if strict && len(warnings) > 0 {
		return warnings, strictError(warnings)
	}
	return warnings, nil
}
