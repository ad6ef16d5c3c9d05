// Package filemanager writes installed block files and manages scratch
// directories.
package filemanager

import (
	"fmt"
	"path/filepath"
	"strings"
)

// validatePathComponent rejects path components that could escape the intended directory.
func validatePathComponent(name, label string) error {
	if name == "" {
		return fmt.Errorf("empty %s", label)
	}
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned != filepath.FromSlash(name) || filepath.IsAbs(cleaned) {
		return fmt.Errorf("invalid %s: %q", label, name)
	}
	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return fmt.Errorf("invalid %s: %q", label, name)
		}
	}
	return nil
}

// validateInsideDir checks that resolved is a child of base after cleaning.
func validateInsideDir(base, resolved string) error {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return err
	}
	absResolved, err := filepath.Abs(resolved)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(absResolved, absBase+string(filepath.Separator)) && absResolved != absBase {
		return fmt.Errorf("path %q escapes base directory %q", resolved, base)
	}
	return nil
}

// SafeJoin joins a registry-supplied relative path onto base, rejecting
// anything that would land outside base.
func SafeJoin(base, rel, label string) (string, error) {
	if err := validatePathComponent(rel, label); err != nil {
		return "", err
	}
	p := filepath.Join(base, filepath.FromSlash(rel))
	if err := validateInsideDir(base, p); err != nil {
		return "", fmt.Errorf("invalid %s: %w", label, err)
	}
	return p, nil
}
