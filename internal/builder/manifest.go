package builder

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"

	"github.com/company/blocks/internal/filemanager"
	"github.com/company/blocks/internal/registry"
)

// WriteManifest writes categories as tab-indented JSON, replacing any
// existing file atomically.
func WriteManifest(fsys afero.Fs, path string, categories []registry.Category) error {
	if categories == nil {
		categories = []registry.Category{}
	}
	data, err := json.MarshalIndent(categories, "", "\t")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	data = append(data, '\n')
	if err := filemanager.WriteFileAtomic(fsys, path, data); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
