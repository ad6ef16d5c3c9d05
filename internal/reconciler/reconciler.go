// Package reconciler downloads resolved blocks, shows how they differ from
// the local copies and writes the accepted files.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/company/blocks/internal/config"
	"github.com/company/blocks/internal/diff"
	"github.com/company/blocks/internal/filemanager"
	"github.com/company/blocks/internal/injector"
	"github.com/company/blocks/internal/logger"
	"github.com/company/blocks/internal/registry"
	"github.com/company/blocks/internal/resolver"
	"github.com/company/blocks/internal/ui"
)

const defaultConcurrency = 4

// Fetcher downloads one file of a registry. *registry.Client implements it.
type Fetcher interface {
	FetchRaw(ctx context.Context, state registry.State, path string) (string, error)
}

// Confirmer asks the user to accept a change.
type Confirmer interface {
	Confirm(title string) (bool, error)
}

// Status is what happened to one file.
type Status int

const (
	Unchanged Status = iota
	Written
	Rejected
)

func (s Status) String() string {
	switch s {
	case Written:
		return "written"
	case Rejected:
		return "rejected"
	default:
		return "unchanged"
	}
}

// FileResult records the outcome for one destination file.
type FileResult struct {
	Specifier string
	Path      string
	Status    Status
}

// Result summarizes a run.
type Result struct {
	Files           []FileResult
	Dependencies    []string
	DevDependencies []string
}

// Count returns the number of files with status s.
func (r *Result) Count(s Status) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == s {
			n++
		}
	}
	return n
}

// Reconciler applies remote blocks to a project.
type Reconciler struct {
	Fs        afero.Fs
	Fetcher   Fetcher
	Confirmer Confirmer
	Project   *config.Project
	Root      string

	// Yes accepts every change without prompting.
	Yes          bool
	Expand       bool
	MaxUnchanged int

	Watermark bool
	Version   string
	// Date stamps the watermark. Zero means today.
	Date time.Time

	Concurrency int
	Out         *ui.Output
}

// file is one planned download.
type file struct {
	specifier string
	state     registry.State
	source    string
	name      string
	dest      string
	remote    string
}

// Run downloads every file of blocks concurrently, then diffs, prompts and
// writes them one at a time in resolution order. A cancelled prompt stops
// the run; files already written stay written.
func (r *Reconciler) Run(ctx context.Context, blocks []resolver.Resolved) (*Result, error) {
	files, err := r.plan(blocks)
	if err != nil {
		return nil, err
	}
	if err := r.fetch(ctx, files); err != nil {
		return nil, err
	}

	res := &Result{}
	deps := make(map[string]bool)
	devDeps := make(map[string]bool)
	for _, rb := range blocks {
		for _, d := range rb.Block.Dependencies {
			deps[d] = true
		}
		for _, d := range rb.Block.DevDependencies {
			devDeps[d] = true
		}
	}
	res.Dependencies = sortedKeys(deps)
	res.DevDependencies = sortedKeys(devDeps)

	out := r.Out
	if out == nil {
		out = ui.NewOutputTo(io.Discard, io.Discard)
	}

	last := ""
	for _, f := range files {
		if f.specifier != last {
			out.Println("%s", out.Accent(f.specifier))
			last = f.specifier
		}

		status, err := r.apply(out, f)
		if err != nil {
			return res, err
		}
		res.Files = append(res.Files, FileResult{Specifier: f.specifier, Path: f.dest, Status: status})
	}
	return res, nil
}

func (r *Reconciler) plan(blocks []resolver.Resolved) ([]*file, error) {
	var files []*file
	for _, rb := range blocks {
		b := rb.Block
		if b.SourceRepo == nil {
			return nil, fmt.Errorf("%s has no source registry", rb.Specifier)
		}
		dir, err := r.Project.BlockDir(b, r.Root)
		if err != nil {
			return nil, err
		}

		names := slices.Clone(b.Files)
		if r.Project.IncludeTests {
			names = append(names, b.TestFiles...)
		}
		for _, name := range names {
			dest, err := filemanager.SafeJoin(dir, name, "file of "+rb.Specifier)
			if err != nil {
				return nil, err
			}
			files = append(files, &file{
				specifier: rb.Specifier,
				state:     *b.SourceRepo,
				source:    registry.JoinURL(b.Directory, name),
				name:      name,
				dest:      dest,
			})
		}
	}
	return files, nil
}

func (r *Reconciler) fetch(ctx context.Context, files []*file) error {
	limit := r.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, f := range files {
		g.Go(func() error {
			logger.Debug().Str("registry", f.state.URL).Str("path", f.source).Msg("fetching block file")
			content, err := r.Fetcher.FetchRaw(ctx, f.state, f.source)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", f.specifier, err)
			}
			f.remote = content
			return nil
		})
	}
	return g.Wait()
}

func (r *Reconciler) apply(out *ui.Output, f *file) (Status, error) {
	remote := f.remote
	if r.Watermark {
		date := r.Date
		if date.IsZero() {
			date = time.Now()
		}
		remote = injector.Apply(f.dest, remote, injector.Watermark(r.Version, f.state.URL, date))
	}

	local, exists, err := filemanager.ReadFileIfExists(r.Fs, f.dest)
	if err != nil {
		return Unchanged, err
	}

	// Watermarks are compared without their date so a reinstall on another
	// day is not reported as a change.
	changes := diff.Lines(injector.Undated(f.dest, local), injector.Undated(f.dest, remote))
	if exists && !diff.HasChanges(changes) {
		logger.Debug().Str("file", f.dest).Msg("no changes")
		if !r.Yes {
			out.Print(diff.Format(r.formatOptions(out, f, changes)))
		}
		return Unchanged, nil
	}

	if !r.Yes {
		out.Print(diff.Format(r.formatOptions(out, f, changes)))

		ok, err := r.Confirmer.Confirm("Accept changes?")
		if err != nil {
			if errors.Is(err, ui.ErrCancelled) {
				return Unchanged, ui.ErrCancelled
			}
			return Unchanged, fmt.Errorf("confirming %s: %w", f.dest, err)
		}
		if !ok {
			return Rejected, nil
		}
	}

	if err := filemanager.WriteFileAtomic(r.Fs, f.dest, []byte(remote)); err != nil {
		return Unchanged, err
	}
	logger.Debug().Str("file", f.dest).Msg("wrote block file")
	out.Success("Wrote %s", r.rel(f.dest))
	return Written, nil
}

func (r *Reconciler) formatOptions(out *ui.Output, f *file, changes []diff.Change) diff.FormatOptions {
	return out.DiffOptions(diff.FormatOptions{
		From:         registry.JoinURL(f.state.URL, f.name),
		To:           r.rel(f.dest),
		Changes:      changes,
		Expand:       r.Expand,
		MaxUnchanged: r.MaxUnchanged,
	})
}

func (r *Reconciler) rel(path string) string {
	rel, err := filepath.Rel(r.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
