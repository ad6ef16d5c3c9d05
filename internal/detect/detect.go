// Package detect works out which JavaScript package manager a project uses,
// so install hints can be printed in the right dialect.
package detect

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// PackageManager names a supported package manager.
type PackageManager string

const (
	NPM  PackageManager = "npm"
	PNPM PackageManager = "pnpm"
	Yarn PackageManager = "yarn"
	Bun  PackageManager = "bun"
)

// Detected is the package manager of a project.
type Detected struct {
	Agent PackageManager
	// Version is the major version pinned by package.json's packageManager
	// field, if any.
	Version string
	// Source is the file the decision was made from, "" for the default.
	Source string
}

var lockfiles = []struct {
	name  string
	agent PackageManager
}{
	{"bun.lockb", Bun},
	{"bun.lock", Bun},
	{"pnpm-lock.yaml", PNPM},
	{"yarn.lock", Yarn},
	{"package-lock.json", NPM},
	{"npm-shrinkwrap.json", NPM},
}

var ignoredDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
}

func extractMajorVersion(version string) string {
	if version == "" {
		return ""
	}

	// Remove common version prefixes and constraints
	version = strings.TrimSpace(version)
	version = strings.Split(version, "||")[0]
	version = strings.Split(version, " ")[0]
	version = strings.Split(version, "+")[0]
	version = strings.TrimLeft(version, "^~><>=v ")

	// Extract only the major version (first numeric segment)
	var major strings.Builder
	for _, r := range version {
		if r < '0' || r > '9' {
			break
		}
		major.WriteRune(r)
	}

	return major.String()
}

// Detect returns the package manager of the project at root. The root
// directory wins; otherwise the first lockfile found in a subdirectory is
// used. Projects without any hint default to npm.
func Detect(fsys afero.Fs, root string) Detected {
	if d, ok := detectDir(fsys, root); ok {
		return d
	}

	found := Detected{Agent: NPM}
	_ = afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// if there's a random permission error somewhere, just skip it
			return nil
		}
		if path == root {
			return nil
		}

		if info.IsDir() {
			name := info.Name()
			if strings.HasPrefix(name, ".") || ignoredDirs[name] {
				return filepath.SkipDir
			}
			if d, ok := detectDir(fsys, path); ok {
				found = d
				return fs.SkipAll
			}
		}
		return nil
	})
	return found
}

func detectDir(fsys afero.Fs, dir string) (Detected, bool) {
	if d, ok := detectFromPackageJSON(fsys, dir); ok {
		return d, true
	}
	for _, lf := range lockfiles {
		path := filepath.Join(dir, lf.name)
		if ok, _ := afero.Exists(fsys, path); ok {
			return Detected{Agent: lf.agent, Source: path}, true
		}
	}
	return Detected{}, false
}

// detectFromPackageJSON reads the "packageManager" field, e.g. "pnpm@9.1.0".
func detectFromPackageJSON(fsys afero.Fs, dir string) (Detected, bool) {
	path := filepath.Join(dir, "package.json")
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return Detected{}, false
	}

	var pkg struct {
		PackageManager string `json:"packageManager"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.PackageManager == "" {
		return Detected{}, false
	}

	name, version, _ := strings.Cut(pkg.PackageManager, "@")
	switch agent := PackageManager(name); agent {
	case NPM, PNPM, Yarn, Bun:
		return Detected{Agent: agent, Version: extractMajorVersion(version), Source: path}, true
	}
	return Detected{}, false
}

// InstallCommand returns the command line that installs deps.
func InstallCommand(pm PackageManager, deps []string, dev bool) []string {
	var cmd []string
	switch pm {
	case NPM:
		cmd = []string{"npm", "install"}
	case Bun:
		cmd = []string{"bun", "add"}
	default:
		cmd = []string{string(pm), "add"}
	}
	cmd = append(cmd, deps...)
	if dev {
		if pm == Bun {
			cmd = append(cmd, "-d")
		} else {
			cmd = append(cmd, "-D")
		}
	}
	return cmd
}
