package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/company/blocks/internal/config"
	"github.com/company/blocks/internal/exitcodes"
	"github.com/company/blocks/internal/filemanager"
	"github.com/company/blocks/internal/registry"
)

type initOptions struct {
	repos       []string
	path        string
	tests       bool
	noWatermark bool
	registry    bool
	noVerify    bool
	yes         bool
}

func (a *App) newInitCmd() *cobra.Command {
	var opts initOptions
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize blocks for this project",
		Long: "Writes " + config.ProjectFile + " for a project that consumes blocks.\n" +
			"With --registry, writes " + config.BuildFile + " for a project that publishes blocks instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.registry {
				return a.runInitRegistry(opts)
			}
			return a.runInit(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&opts.repos, "repos", nil, "registries to install blocks from")
	f.StringVar(&opts.path, "path", "", "directory blocks are installed into (default ./src/blocks)")
	f.BoolVar(&opts.tests, "tests", false, "also install test files")
	f.BoolVar(&opts.noWatermark, "no-watermark", false, "do not add a provenance comment to installed files")
	f.BoolVar(&opts.registry, "registry", false, "initialize a registry instead of a project")
	f.BoolVar(&opts.noVerify, "no-verify", false, "do not check that the registries are reachable")
	f.BoolVarP(&opts.yes, "yes", "y", false, "overwrite an existing config without asking")
	return cmd
}

func (a *App) runInit(ctx context.Context, opts initOptions) error {
	cfg := config.DefaultProject()
	migrated := false

	switch {
	case config.ConfigExists(a.fs, a.projectDir):
		if err := a.confirmOverwrite(config.ProjectFile, opts.yes); err != nil {
			return err
		}
		if existing, err := config.LoadProject(a.fs, a.projectDir); err == nil {
			cfg = existing
		}
	case config.LegacyExists(a.fs, a.projectDir):
		legacy, err := config.MigrateLegacy(a.fs, a.projectDir)
		if err != nil {
			return &ExitError{Code: exitcodes.ConfigError, Message: err.Error()}
		}
		a.output.Info("Migrating %s to %s", config.LegacyProjectFile, config.ProjectFile)
		cfg = legacy
		migrated = true
	}

	if len(opts.repos) > 0 {
		cfg.Repos = opts.repos
	}
	if opts.path != "" {
		if cfg.Paths == nil {
			cfg.Paths = make(map[string]string)
		}
		cfg.Paths["*"] = opts.path
	}
	if opts.tests {
		cfg.IncludeTests = true
	}
	if opts.noWatermark {
		cfg.Watermark = false
	}

	for _, repo := range cfg.Repos {
		if registry.SelectProvider(repo) == nil {
			return &registry.UnknownProviderError{Ref: repo}
		}
	}

	if !opts.noVerify && len(cfg.Repos) > 0 {
		client := a.newRegistryClient()
		err := a.spin("Checking registries", func() error {
			states, err := client.States(ctx, cfg.Repos...)
			if err != nil {
				return err
			}
			for _, s := range states {
				if _, err := client.FetchManifest(ctx, s); err != nil {
					return &registry.RepoError{Repo: s.URL, Err: err}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if err := config.SaveProject(a.fs, a.projectDir, cfg); err != nil {
		return &ExitError{Code: exitcodes.ConfigError, Message: err.Error()}
	}
	a.project = cfg

	if migrated {
		if err := a.fs.Remove(filepath.Join(a.projectDir, config.LegacyProjectFile)); err != nil {
			a.output.Warning("Could not remove %s: %v", config.LegacyProjectFile, err)
		}
	}

	a.output.Success("Wrote %s with %d registr(ies)", config.ProjectFile, len(cfg.Repos))
	if len(cfg.Repos) == 0 {
		a.output.Info("Add a registry with 'blocks init --repos github/<owner>/<repo>' or edit %s.", config.ProjectFile)
	}
	return nil
}

func (a *App) runInitRegistry(opts initOptions) error {
	if filemanager.Exists(a.fs, filepath.Join(a.projectDir, config.BuildFile)) {
		if err := a.confirmOverwrite(config.BuildFile, opts.yes); err != nil {
			return err
		}
	}

	cfg := config.DefaultBuild()
	if err := config.SaveBuild(a.fs, a.projectDir, cfg); err != nil {
		return &ExitError{Code: exitcodes.ConfigError, Message: err.Error()}
	}
	for _, dir := range cfg.Dirs {
		if err := a.fs.MkdirAll(filepath.Join(a.projectDir, dir), 0755); err != nil {
			return err
		}
	}

	a.output.Success("Wrote %s", config.BuildFile)
	a.output.Info("Put categories in %v and run 'blocks build'.", cfg.Dirs)
	return nil
}

func (a *App) confirmOverwrite(name string, yes bool) error {
	if yes {
		return nil
	}
	ok, err := a.confirm(fmt.Sprintf("%s already exists. Overwrite it?", name))
	if err != nil {
		return err
	}
	if !ok {
		return &ExitError{Code: exitcodes.Cancelled, Message: "Cancelled."}
	}
	return nil
}
