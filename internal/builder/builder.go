// Package builder turns a directory of categories and blocks into a
// registry manifest.
package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/company/blocks/internal/config"
	"github.com/company/blocks/internal/registry"
)

// DescriptorFile describes a subdirectory block. Loose-file blocks use
// <name>.block.yaml next to the file.
const DescriptorFile = "block.yaml"

const descriptorSuffix = ".block.yaml"

// Options filters and annotates the blocks found in a directory.
type Options struct {
	// Cwd is the directory block paths are made relative to.
	Cwd string

	IncludeBlocks       []string
	IncludeCategories   []string
	DoNotListBlocks     []string
	DoNotListCategories []string
	ExcludeDeps         []string
}

// OptionsFromConfig builds Options from a build configuration.
func OptionsFromConfig(cwd string, b *config.Build) Options {
	return Options{
		Cwd:                 cwd,
		IncludeBlocks:       b.IncludeBlocks,
		IncludeCategories:   b.IncludeCategories,
		DoNotListBlocks:     b.DoNotListBlocks,
		DoNotListCategories: b.DoNotListCategories,
		ExcludeDeps:         b.ExcludeDeps,
	}
}

// descriptor is the content of a block.yaml file.
type descriptor struct {
	Dependencies      []string `yaml:"dependencies"`
	DevDependencies   []string `yaml:"devDependencies"`
	LocalDependencies []string `yaml:"localDependencies"`
}

// BuildBlocksDirectory reads every category under dir. Each subdirectory of
// a category is one block; each loose file is a block named after its stem.
func BuildBlocksDirectory(fsys afero.Fs, dir string, opts Options) ([]registry.Category, error) {
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading blocks directory %s: %w", dir, err)
	}

	var categories []registry.Category
	for _, entry := range entries {
		if !entry.IsDir() || !includes(opts.IncludeCategories, entry.Name()) {
			continue
		}
		cat, err := buildCategory(fsys, filepath.Join(dir, entry.Name()), entry.Name(), opts)
		if err != nil {
			return nil, err
		}
		categories = append(categories, cat)
	}
	return categories, nil
}

func buildCategory(fsys afero.Fs, catDir, name string, opts Options) (registry.Category, error) {
	cat := registry.Category{Name: name, Blocks: []registry.Block{}}

	entries, err := afero.ReadDir(fsys, catDir)
	if err != nil {
		return cat, fmt.Errorf("reading category %s: %w", name, err)
	}

	loose := make(map[string]*registry.Block)
	var order []string

	for _, entry := range entries {
		entryPath := filepath.Join(catDir, entry.Name())

		if entry.IsDir() {
			if !includes(opts.IncludeBlocks, entry.Name()) {
				continue
			}
			b, err := buildSubdirectoryBlock(fsys, entryPath, name, entry.Name(), opts)
			if err != nil {
				return cat, err
			}
			cat.Blocks = append(cat.Blocks, b)
			continue
		}

		if strings.HasSuffix(entry.Name(), descriptorSuffix) {
			continue
		}
		blockName := stem(entry.Name())
		if !includes(opts.IncludeBlocks, blockName) {
			continue
		}

		b, ok := loose[blockName]
		if !ok {
			nb := newBlock(name, blockName, relSlash(opts.Cwd, catDir), opts)
			b = &nb
			loose[blockName] = b
			order = append(order, blockName)
		}
		if isTestFile(entry.Name()) {
			b.TestFiles = append(b.TestFiles, entry.Name())
			b.Tests = true
		} else {
			b.Files = append(b.Files, entry.Name())
		}
	}

	for _, blockName := range order {
		b := loose[blockName]
		if len(b.Files) == 0 {
			// Test files without a source file do not make a block.
			continue
		}
		if err := applyDescriptor(fsys, filepath.Join(catDir, blockName+descriptorSuffix), b, opts); err != nil {
			return cat, err
		}
		cat.Blocks = append(cat.Blocks, *b)
	}
	return cat, nil
}

func buildSubdirectoryBlock(fsys afero.Fs, blockDir, category, name string, opts Options) (registry.Block, error) {
	b := newBlock(category, name, relSlash(opts.Cwd, blockDir), opts)
	b.Subdirectory = true

	err := afero.Walk(fsys, blockDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(blockDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		switch {
		case rel == DescriptorFile:
		case isTestFile(info.Name()):
			b.TestFiles = append(b.TestFiles, rel)
			b.Tests = true
		default:
			b.Files = append(b.Files, rel)
		}
		return nil
	})
	if err != nil {
		return b, fmt.Errorf("reading block %s/%s: %w", category, name, err)
	}

	if err := applyDescriptor(fsys, filepath.Join(blockDir, DescriptorFile), &b, opts); err != nil {
		return b, err
	}
	return b, nil
}

func newBlock(category, name, directory string, opts Options) registry.Block {
	return registry.Block{
		Name:              name,
		Category:          category,
		Directory:         directory,
		List:              !slices.Contains(opts.DoNotListBlocks, name) && !slices.Contains(opts.DoNotListCategories, category),
		Files:             []string{},
		LocalDependencies: []string{},
		Dependencies:      []string{},
		DevDependencies:   []string{},
	}
}

// applyDescriptor copies the dependency lists of a descriptor file into b.
// A missing descriptor leaves b without dependencies.
func applyDescriptor(fsys afero.Fs, path string, b *registry.Block, opts Options) error {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var d descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	b.LocalDependencies = append(b.LocalDependencies, d.LocalDependencies...)
	b.Dependencies = append(b.Dependencies, excludeDeps(d.Dependencies, opts.ExcludeDeps)...)
	b.DevDependencies = append(b.DevDependencies, excludeDeps(d.DevDependencies, opts.ExcludeDeps)...)
	return nil
}

func excludeDeps(deps, exclude []string) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		if !slices.Contains(exclude, depName(d)) {
			out = append(out, d)
		}
	}
	return out
}

// depName strips the version pin from name@version. A leading @ belongs to
// the scope.
func depName(dep string) string {
	if i := strings.LastIndex(dep, "@"); i > 0 {
		return dep[:i]
	}
	return dep
}

// isPinned reports whether dep carries a version.
func isPinned(dep string) bool {
	return strings.LastIndex(dep, "@") > 0
}

func isTestFile(name string) bool {
	if strings.HasSuffix(name, "_test.go") {
		return true
	}
	return strings.Contains(name, ".test.") || strings.Contains(name, ".spec.")
}

// stem returns a file name up to its first dot.
func stem(name string) string {
	name = strings.TrimSuffix(name, "_test.go")
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

func includes(filter []string, name string) bool {
	return len(filter) == 0 || slices.Contains(filter, name)
}

func relSlash(base, path string) string {
	if base == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
