package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/company/blocks/internal/filemanager"
)

// EnvPrefix prefixes environment overrides, e.g. BLOCKS_WATERMARK=false.
const EnvPrefix = "BLOCKS"

// ErrNotFound is returned when the project has no configuration file.
var ErrNotFound = errors.New("config file not found: run 'blocks init' first")

// ConfigExists checks whether the project config file exists in dir.
func ConfigExists(fsys afero.Fs, dir string) bool {
	return filemanager.Exists(fsys, filepath.Join(dir, ProjectFile))
}

func newViper(fsys afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fsys)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadProject reads blocks.yaml from dir. Values may be overridden through
// BLOCKS_* environment variables.
func LoadProject(fsys afero.Fs, dir string) (*Project, error) {
	path := filepath.Join(dir, ProjectFile)
	if !filemanager.Exists(fsys, path) {
		return nil, ErrNotFound
	}

	v := newViper(fsys)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := DefaultProject()
	v.SetDefault("repos", []string{})
	v.SetDefault("includeTests", defaults.IncludeTests)
	v.SetDefault("watermark", defaults.Watermark)
	v.SetDefault("errorOnWarn", false)
	v.SetDefault("testCommand", []string{})

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var p Project
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	migrateLegacyPath(v, &p)

	if err := ValidateProject(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProject writes p to blocks.yaml in dir.
func SaveProject(fsys afero.Fs, dir string, p *Project) error {
	if err := ValidateProject(p); err != nil {
		return err
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := filemanager.WriteFileAtomic(fsys, filepath.Join(dir, ProjectFile), data); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

// ValidateProject checks that a Project has the fields every command needs.
func ValidateProject(p *Project) error {
	if len(p.Paths) == 0 {
		return fmt.Errorf("paths is required: add at least a \"*\" entry")
	}
	for key, dir := range p.Paths {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("paths[%q] is empty", key)
		}
	}
	for i, r := range p.Repos {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("repos[%d] is empty", i)
		}
	}
	return nil
}

// LoadBuild reads blocks-build.yaml from dir, returning the defaults when
// the file does not exist.
func LoadBuild(fsys afero.Fs, dir string) (*Build, error) {
	defaults := DefaultBuild()
	path := filepath.Join(dir, BuildFile)

	v := newViper(fsys)
	v.SetDefault("dirs", defaults.Dirs)
	v.SetDefault("output", defaults.Output)
	v.SetDefault("errorOnWarn", defaults.ErrorOnWarn)
	for _, key := range []string{"includeBlocks", "includeCategories", "doNotListBlocks", "doNotListCategories", "excludeDeps"} {
		v.SetDefault(key, []string{})
	}

	if filemanager.Exists(fsys, path) {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading build config: %w", err)
		}
	}

	var b Build
	if err := v.Unmarshal(&b); err != nil {
		return nil, fmt.Errorf("parsing build config: %w", err)
	}
	if len(b.Dirs) == 0 {
		return nil, fmt.Errorf("build config: dirs must list at least one directory")
	}
	return &b, nil
}

// SaveBuild writes b to blocks-build.yaml in dir.
func SaveBuild(fsys afero.Fs, dir string, b *Build) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling build config: %w", err)
	}
	return filemanager.WriteFileAtomic(fsys, filepath.Join(dir, BuildFile), data)
}
