package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/company/blocks/internal/diff"
)

var (
	greenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	redStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	yellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	cyanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	grayStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boldStyle   = lipgloss.NewStyle().Bold(true)

	addedBgStyle   = lipgloss.NewStyle().Background(lipgloss.Color("2")).Foreground(lipgloss.Color("0"))
	removedBgStyle = lipgloss.NewStyle().Background(lipgloss.Color("1")).Foreground(lipgloss.Color("0"))
)

// Output handles styled terminal output.
type Output struct {
	noColor bool
	out     io.Writer
	err     io.Writer
}

// NewOutput creates a new Output writing to stdout and stderr.
func NewOutput() *Output {
	return &Output{out: os.Stdout, err: os.Stderr}
}

// NewOutputTo creates an Output writing to the given streams, uncolored.
func NewOutputTo(out, err io.Writer) *Output {
	return &Output{out: out, err: err, noColor: true}
}

// SetNoColor disables colored output.
func (o *Output) SetNoColor(v bool) {
	o.noColor = v
}

// Writer returns the stream regular output goes to.
func (o *Output) Writer() io.Writer {
	return o.out
}

func (o *Output) style(s lipgloss.Style) func(string) string {
	if o.noColor {
		return func(v string) string { return v }
	}
	return func(v string) string { return s.Render(v) }
}

// Success prints a success message with a green checkmark.
func (o *Output) Success(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if o.noColor {
		fmt.Fprintf(o.out, "OK %s\n", msg)
	} else {
		fmt.Fprintf(o.out, "%s %s\n", greenStyle.Render("✓"), msg)
	}
}

// Error prints an error message with a red X.
func (o *Output) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if o.noColor {
		fmt.Fprintf(o.err, "FAIL %s\n", msg)
	} else {
		fmt.Fprintf(o.err, "%s %s\n", redStyle.Render("✗"), msg)
	}
}

// Warning prints a warning message with a yellow exclamation.
func (o *Output) Warning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if o.noColor {
		fmt.Fprintf(o.err, "WARN %s\n", msg)
	} else {
		fmt.Fprintf(o.err, "%s %s\n", yellowStyle.Render("!"), msg)
	}
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	fmt.Fprintf(o.out, format+"\n", args...)
}

// Println prints a line to stdout.
func (o *Output) Println(format string, args ...any) {
	fmt.Fprintf(o.out, format+"\n", args...)
}

// Print writes s as is.
func (o *Output) Print(s string) {
	fmt.Fprint(o.out, s)
}

// Bold renders s in bold.
func (o *Output) Bold(s string) string {
	return o.style(boldStyle)(s)
}

// Muted renders s dimmed.
func (o *Output) Muted(s string) string {
	return o.style(grayStyle)(s)
}

// Accent renders s in the highlight color.
func (o *Output) Accent(s string) string {
	return o.style(cyanStyle)(s)
}

// Table prints a simple aligned table.
func (o *Output) Table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	// Calculate column widths
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, h := range headers {
		fmt.Fprintf(o.out, "%-*s  ", widths[i], h)
	}
	fmt.Fprintln(o.out)

	for i, w := range widths {
		fmt.Fprintf(o.out, "%s", strings.Repeat("-", w))
		if i < len(widths)-1 {
			fmt.Fprint(o.out, "  ")
		}
	}
	fmt.Fprintln(o.out)

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(o.out, "%-*s  ", widths[i], cell)
			}
		}
		fmt.Fprintln(o.out)
	}
}

// DiffOptions fills the color callbacks and gutter of opts.
func (o *Output) DiffOptions(opts diff.FormatOptions) diff.FormatOptions {
	opts.ColorAdded = o.style(greenStyle)
	opts.ColorRemoved = o.style(redStyle)
	opts.ColorCharsAdded = o.style(addedBgStyle)
	opts.ColorCharsRemoved = o.style(removedBgStyle)
	opts.ColorMeta = o.style(grayStyle)
	gutter := o.style(grayStyle)("│ ")
	opts.Prefix = func() string { return gutter }
	opts.Intro = func(i diff.Info) string {
		n := diff.CountAdded(i.Changes)
		return fmt.Sprintf("%s%s → %s %s\n%s\n",
			i.Prefix, o.Bold(i.From), o.Bold(i.To), o.Muted(fmt.Sprintf("(%d change(s))", n)), i.Prefix)
	}
	opts.OnUnchanged = func(i diff.Info) string {
		return fmt.Sprintf("%s%s → %s %s\n", i.Prefix, o.Bold(i.From), o.Bold(i.To), o.Muted("(unchanged)"))
	}
	return opts
}
