// Package diff computes and renders line diffs between local and remote
// block files.
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Kind classifies a Change.
type Kind int

const (
	Unchanged Kind = iota
	Added
	Removed
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unchanged"
	}
}

// Change is a run of consecutive lines with the same Kind. Text keeps the
// line terminators.
type Change struct {
	Kind  Kind
	Text  string
	Count int
}

// Lines diffs local against remote line by line. Within every run of
// changed lines the removed record comes before the added one.
func Lines(local, remote string) []Change {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(local, remote)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var out []Change
	var removed, added strings.Builder
	flush := func() {
		if removed.Len() > 0 {
			out = append(out, newChange(Removed, removed.String()))
			removed.Reset()
		}
		if added.Len() > 0 {
			out = append(out, newChange(Added, added.String()))
			added.Reset()
		}
	}

	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			removed.WriteString(d.Text)
		case diffmatchpatch.DiffInsert:
			added.WriteString(d.Text)
		default:
			flush()
			if n := len(out); n > 0 && out[n-1].Kind == Unchanged {
				out[n-1] = newChange(Unchanged, out[n-1].Text+d.Text)
				continue
			}
			out = append(out, newChange(Unchanged, d.Text))
		}
	}
	flush()
	return out
}

// HasChanges reports whether any record adds or removes lines.
func HasChanges(changes []Change) bool {
	for _, c := range changes {
		if c.Kind != Unchanged {
			return true
		}
	}
	return false
}

// CountAdded returns the number of added records.
func CountAdded(changes []Change) int {
	n := 0
	for _, c := range changes {
		if c.Kind == Added {
			n++
		}
	}
	return n
}

func newChange(k Kind, text string) Change {
	return Change{Kind: k, Text: text, Count: len(splitLines(text))}
}

// splitLines splits text into lines, ignoring one trailing terminator.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
