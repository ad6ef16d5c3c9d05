// Package tracker works out which registry blocks are present in a project.
package tracker

import (
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/company/blocks/internal/config"
	"github.com/company/blocks/internal/filemanager"
	"github.com/company/blocks/internal/registry"
)

// InstalledBlock is a registry block found on disk.
type InstalledBlock struct {
	// Specifier is the fully-qualified key of the block in the universe.
	Specifier string
	Block     registry.Block
	// Path is the directory holding the block's files.
	Path string
}

// GetInstalled returns the blocks of universe that are present under root.
// A block counts as present when any of its files exists, or its directory
// exists for subdirectory blocks. Blocks with the same category/name from
// several registries are reported once, for the first registry in universe
// order.
func GetInstalled(fsys afero.Fs, universe *registry.BlockMap, cfg *config.Project, root string) ([]InstalledBlock, error) {
	var out []InstalledBlock
	seen := make(map[string]bool)
	var firstErr error

	universe.Each(func(key string, b registry.Block) {
		if firstErr != nil || seen[b.Specifier()] {
			return
		}
		dir, err := cfg.BlockDir(b, root)
		if err != nil {
			firstErr = err
			return
		}
		if !present(fsys, b, dir) {
			return
		}
		seen[b.Specifier()] = true
		out = append(out, InstalledBlock{Specifier: key, Block: b, Path: dir})
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// Specifiers returns the bare specifiers of installed blocks as a set.
func Specifiers(installed []InstalledBlock) map[string]bool {
	out := make(map[string]bool, len(installed))
	for _, ib := range installed {
		out[ib.Block.Specifier()] = true
	}
	return out
}

func present(fsys afero.Fs, b registry.Block, dir string) bool {
	if b.Subdirectory {
		ok, err := afero.DirExists(fsys, dir)
		return err == nil && ok
	}
	for _, f := range b.Files {
		if filemanager.Exists(fsys, filepath.Join(dir, filepath.FromSlash(f))) {
			return true
		}
	}
	return false
}
