package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/company/blocks/internal/filemanager"
)

// LegacyProjectFile is the JSON config written by older releases. It used a
// single "path" instead of the "paths" table.
const LegacyProjectFile = "blocks.json"

// LegacyExists checks whether the old JSON config exists in dir.
func LegacyExists(fsys afero.Fs, dir string) bool {
	return filemanager.Exists(fsys, filepath.Join(dir, LegacyProjectFile))
}

// migrateLegacyPath moves a top-level "path" value to paths["*"] unless
// paths already has a "*" entry. It reports whether anything changed.
func migrateLegacyPath(v *viper.Viper, p *Project) bool {
	legacy := v.GetString("path")
	if legacy == "" {
		return false
	}
	if p.Paths == nil {
		p.Paths = make(map[string]string)
	}
	if _, ok := p.Paths["*"]; ok {
		return false
	}
	p.Paths["*"] = legacy
	return true
}

// MigrateLegacy reads blocks.json and converts it into a Project.
// It does NOT delete the old file; the caller should do that after saving
// the migrated config.
func MigrateLegacy(fsys afero.Fs, dir string) (*Project, error) {
	path := filepath.Join(dir, LegacyProjectFile)
	if !filemanager.Exists(fsys, path) {
		return nil, fmt.Errorf("legacy config %s not found", LegacyProjectFile)
	}

	v := viper.New()
	v.SetFs(fsys)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("watermark", true)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading legacy config: %w", err)
	}

	var p Project
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("parsing legacy config: %w", err)
	}
	migrateLegacyPath(v, &p)

	if err := ValidateProject(&p); err != nil {
		return nil, fmt.Errorf("legacy config: %w", err)
	}
	return &p, nil
}
