package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Info describes the file pair being rendered.
type Info struct {
	From    string
	To      string
	Changes []Change
	Prefix  string
}

// FormatOptions controls Format. Nil callbacks default to identity colors,
// an empty prefix and plain intro lines.
type FormatOptions struct {
	From    string
	To      string
	Changes []Change

	// Expand shows every unchanged line.
	Expand bool
	// MaxUnchanged is the number of unchanged lines kept next to a change
	// when a longer unchanged run is collapsed.
	MaxUnchanged int

	ColorAdded        func(string) string
	ColorRemoved      func(string) string
	ColorCharsAdded   func(string) string
	ColorCharsRemoved func(string) string
	// ColorMeta styles line numbers and collapse placeholders.
	ColorMeta func(string) string

	Prefix      func() string
	Intro       func(Info) string
	OnUnchanged func(Info) string
}

func identity(s string) string { return s }

func (o FormatOptions) withDefaults() FormatOptions {
	for _, fn := range []*func(string) string{
		&o.ColorAdded, &o.ColorRemoved, &o.ColorCharsAdded, &o.ColorCharsRemoved, &o.ColorMeta,
	} {
		if *fn == nil {
			*fn = identity
		}
	}
	if o.Prefix == nil {
		o.Prefix = func() string { return "" }
	}
	if o.Intro == nil {
		o.Intro = func(i Info) string {
			n := CountAdded(i.Changes)
			s := "s"
			if n == 1 {
				s = ""
			}
			return fmt.Sprintf("%s%s → %s (%d change%s)\n%s\n", i.Prefix, i.From, i.To, n, s, i.Prefix)
		}
	}
	if o.OnUnchanged == nil {
		o.OnUnchanged = func(i Info) string {
			return fmt.Sprintf("%s%s → %s (unchanged)\n", i.Prefix, i.From, i.To)
		}
	}
	if o.MaxUnchanged < 0 {
		o.MaxUnchanged = 0
	}
	return o
}

// Format renders changes for display. Long unchanged runs collapse into a
// "+ N more unchanged" placeholder unless Expand is set, and a single
// replaced line is shown as one line with character-level highlights.
func Format(opts FormatOptions) string {
	o := opts.withDefaults()
	info := Info{From: o.From, To: o.To, Changes: o.Changes, Prefix: o.Prefix()}

	if !HasChanges(o.Changes) {
		return o.OnUnchanged(info)
	}

	f := formatter{o: o}
	f.b.WriteString(o.Intro(info))

	changes := o.Changes
	for i := 0; i < len(changes); i++ {
		c := changes[i]
		prevChanged := i > 0 && changes[i-1].Kind != Unchanged
		nextChanged := i+1 < len(changes) && changes[i+1].Kind != Unchanged

		if c.Kind == Unchanged {
			f.unchanged(splitLines(c.Text), prevChanged, nextChanged)
			continue
		}

		if c.Kind == Removed && c.Count == 1 && nextChanged && changes[i+1].Kind == Added && changes[i+1].Count == 1 {
			f.replacedLine(c.Text, changes[i+1].Text)
			i++
			continue
		}

		f.changed(c)
	}

	out := f.b.String()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

type formatter struct {
	o    FormatOptions
	b    strings.Builder
	line int // zero-based line number in the remote file
}

func (f *formatter) linePrefix(n int) string {
	return f.o.Prefix() + f.o.ColorMeta(fmt.Sprintf("%3d ", n+1))
}

func (f *formatter) writeLines(lines []string, start int, color func(string) string) {
	for j, l := range lines {
		f.b.WriteString(f.linePrefix(start + j))
		f.b.WriteString(color(l))
		f.b.WriteByte('\n')
	}
}

func (f *formatter) unchanged(lines []string, prevChanged, nextChanged bool) {
	keep := f.o.MaxUnchanged
	if f.o.Expand || len(lines) <= keep {
		f.writeLines(lines, f.line, identity)
		f.line += len(lines)
		return
	}

	shown := 0
	if prevChanged {
		shown += keep
	}
	if nextChanged {
		shown += keep
	}
	if shown >= len(lines) {
		f.writeLines(lines, f.line, identity)
		f.line += len(lines)
		return
	}

	if prevChanged {
		f.writeLines(lines[:keep], f.line, identity)
	}
	hidden := len(lines) - shown
	f.b.WriteString(f.o.Prefix() + "    " + f.o.ColorMeta(fmt.Sprintf("+ %d more unchanged (-E to expand)", hidden)) + "\n")
	if nextChanged {
		f.writeLines(lines[len(lines)-keep:], f.line+len(lines)-keep, identity)
	}
	f.line += len(lines)
}

func (f *formatter) replacedLine(oldText, newText string) {
	oldLine := strings.TrimSuffix(oldText, "\n")
	newLine := strings.TrimSuffix(newText, "\n")

	dmp := diffmatchpatch.New()
	var sb strings.Builder
	for _, d := range dmp.DiffMain(oldLine, newLine, false) {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			sb.WriteString(f.o.ColorCharsAdded(d.Text))
		case diffmatchpatch.DiffDelete:
			sb.WriteString(f.o.ColorCharsRemoved(d.Text))
		default:
			sb.WriteString(d.Text)
		}
	}

	f.b.WriteString(f.linePrefix(f.line))
	f.b.WriteString(sb.String())
	f.b.WriteByte('\n')
	f.line++
}

func (f *formatter) changed(c Change) {
	lines := splitLines(c.Text)
	color, chars := f.o.ColorAdded, f.o.ColorCharsAdded
	if c.Kind == Removed {
		color, chars = f.o.ColorRemoved, f.o.ColorCharsRemoved
	}

	// Whitespace-only runs would be invisible in plain foreground colors.
	if strings.TrimSpace(c.Text) == "" {
		color = func(s string) string {
			if s == "" {
				s = " "
			}
			return chars(s)
		}
	}

	f.writeLines(lines, f.line, color)
	if c.Kind == Added {
		f.line += len(lines)
	}
}
