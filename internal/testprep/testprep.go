// Package testprep stages the remote test files of installed blocks in a
// scratch directory so they run against the local copies.
package testprep

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/company/blocks/internal/config"
	"github.com/company/blocks/internal/filemanager"
	"github.com/company/blocks/internal/logger"
	"github.com/company/blocks/internal/reconciler"
	"github.com/company/blocks/internal/registry"
)

// Staged is one test file written to the scratch directory.
type Staged struct {
	Specifier string
	Path      string
}

// Preparer downloads test files into Dir.
type Preparer struct {
	Fs      afero.Fs
	Fetcher reconciler.Fetcher
	Project *config.Project
	Root    string
	Dir     string

	Concurrency int
}

// Prepare writes the test files of every block to Dir, rewriting relative
// imports so they resolve to the block's install location. Blocks without
// tests are skipped.
func (p *Preparer) Prepare(ctx context.Context, blocks []registry.Block) ([]Staged, error) {
	type job struct {
		block   registry.Block
		file    string
		dest    string
		content string
	}

	var jobs []*job
	for _, b := range blocks {
		if !b.Tests || len(b.TestFiles) == 0 {
			logger.Debug().Str("block", b.FullSpecifier()).Msg("no tests")
			continue
		}
		if b.SourceRepo == nil {
			return nil, fmt.Errorf("%s has no source registry", b.Specifier())
		}
		for _, f := range b.TestFiles {
			dest, err := filemanager.SafeJoin(p.Dir, f, "test file of "+b.FullSpecifier())
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, &job{block: b, file: f, dest: dest})
		}
	}

	limit := p.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, j := range jobs {
		g.Go(func() error {
			content, err := p.Fetcher.FetchRaw(gctx, *j.block.SourceRepo, registry.JoinURL(j.block.Directory, j.file))
			if err != nil {
				return fmt.Errorf("fetching tests of %s: %w", j.block.FullSpecifier(), err)
			}
			j.content = content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	staged := make([]Staged, 0, len(jobs))
	for _, j := range jobs {
		dir, err := p.Project.BlockDir(j.block, p.Root)
		if err != nil {
			return nil, err
		}
		// Imports are relative to the test file's own directory.
		target, err := filepath.Rel(filepath.Dir(j.dest), filepath.Join(dir, filepath.Dir(filepath.FromSlash(j.file))))
		if err != nil {
			return nil, fmt.Errorf("locating %s: %w", j.block.FullSpecifier(), err)
		}

		content := RewriteImports(j.content, filepath.ToSlash(target))
		if err := filemanager.WriteFileAtomic(p.Fs, j.dest, []byte(content)); err != nil {
			return nil, err
		}
		staged = append(staged, Staged{Specifier: j.block.FullSpecifier(), Path: j.dest})
	}
	return staged, nil
}

var importPattern = regexp.MustCompile(`((?:\bfrom|\bimport|\brequire\(|\bimport\()\s*)(['"])(\.{1,2}/[^'"]*|\.{1,2})(['"])`)

// RewriteImports prefixes every relative module specifier in a JavaScript
// or TypeScript source with target.
func RewriteImports(content, target string) string {
	return importPattern.ReplaceAllStringFunc(content, func(m string) string {
		parts := importPattern.FindStringSubmatch(m)
		spec := path.Join(target, parts[3])
		if !strings.HasPrefix(spec, ".") && !strings.HasPrefix(spec, "/") {
			spec = "./" + spec
		}
		return parts[1] + parts[2] + spec + parts[4]
	})
}
