package config

import (
	"fmt"
	"path/filepath"

	"github.com/company/blocks/internal/registry"
)

// PathForBlock returns the directory a block's category is installed into,
// trying the keys "category/name", "category" and "*" in that order. Under
// "*" the category name is appended.
func (p *Project) PathForBlock(b registry.Block, root string) (string, error) {
	if dir, ok := p.Paths[b.Category+"/"+b.Name]; ok {
		return filepath.Join(root, dir), nil
	}
	if dir, ok := p.Paths[b.Category]; ok {
		return filepath.Join(root, dir), nil
	}
	if dir, ok := p.Paths["*"]; ok {
		return filepath.Join(root, dir, b.Category), nil
	}
	return "", fmt.Errorf("no path configured for %s: add paths[%q] or paths[\"*\"] to %s", b.Specifier(), b.Category, ProjectFile)
}

// BlockDir returns the directory holding b's files: PathForBlock, plus the
// block name for subdirectory blocks.
func (p *Project) BlockDir(b registry.Block, root string) (string, error) {
	dir, err := p.PathForBlock(b, root)
	if err != nil {
		return "", err
	}
	if b.Subdirectory {
		dir = filepath.Join(dir, b.Name)
	}
	return dir, nil
}
