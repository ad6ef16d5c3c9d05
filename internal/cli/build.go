package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/company/blocks/internal/builder"
	"github.com/company/blocks/internal/config"
	"github.com/company/blocks/internal/exitcodes"
	"github.com/company/blocks/internal/filemanager"
	"github.com/company/blocks/internal/logger"
	"github.com/company/blocks/internal/registry"
)

type buildOptions struct {
	dirs                []string
	includeBlocks       []string
	includeCategories   []string
	doNotListBlocks     []string
	doNotListCategories []string
	excludeDeps         []string
	noOutput            bool
	errorOnWarn         bool
}

func (a *App) newBuildCmd() *cobra.Command {
	var opts buildOptions
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build blocks-manifest.json for a registry",
		Long:  "Reads each blocks directory, checks the result and writes " + registry.ManifestFile + ". Flags override " + config.BuildFile + ".",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBuild(cmd.Context(), cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&opts.dirs, "dirs", nil, "directories containing categories")
	f.StringSliceVar(&opts.includeBlocks, "include-blocks", nil, "only include these blocks")
	f.StringSliceVar(&opts.includeCategories, "include-categories", nil, "only include these categories")
	f.StringSliceVar(&opts.doNotListBlocks, "do-not-list-blocks", nil, "hide these blocks from listings")
	f.StringSliceVar(&opts.doNotListCategories, "do-not-list-categories", nil, "hide these categories from listings")
	f.StringSliceVar(&opts.excludeDeps, "exclude-deps", nil, "dependencies to leave out of the manifest")
	f.BoolVar(&opts.noOutput, "no-output", false, "check only, do not write the manifest")
	f.BoolVar(&opts.errorOnWarn, "error-on-warn", false, "fail on any warning")
	return cmd
}

func (a *App) runBuild(_ context.Context, cmd *cobra.Command, opts buildOptions) error {
	cfg, err := config.LoadBuild(a.fs, a.projectDir)
	if err != nil {
		return &ExitError{Code: exitcodes.ConfigError, Message: err.Error()}
	}
	applyBuildFlags(cmd, cfg, opts)

	outPath := filepath.Join(a.projectDir, registry.ManifestFile)
	if cfg.Output && filemanager.Exists(a.fs, outPath) {
		logger.Debug().Str("path", outPath).Msg("removing previous manifest")
		if err := a.fs.Remove(outPath); err != nil {
			return err
		}
	}

	bopts := builder.OptionsFromConfig(a.projectDir, cfg)
	var dirs []builder.Dir
	for _, dir := range cfg.Dirs {
		cats, err := builder.BuildBlocksDirectory(a.fs, filepath.Join(a.projectDir, dir), bopts)
		if err != nil {
			return err
		}
		n := 0
		for _, c := range cats {
			n += len(c.Blocks)
		}
		a.output.Success("Built %d block(s) in %d categor(ies) from %s", n, len(cats), dir)
		dirs = append(dirs, builder.Dir{Path: dir, Categories: cats})
	}

	categories, warnings, err := builder.Merge(dirs, cfg.ErrorOnWarn)
	if err != nil {
		return err
	}

	checkWarnings, err := builder.Check(categories, cfg.ErrorOnWarn)
	warnings = append(warnings, checkWarnings...)
	for _, w := range warnings {
		a.output.Warning("%s", w)
	}
	if err != nil {
		return err
	}

	if !cfg.Output {
		a.output.Info("Skipped writing %s", registry.ManifestFile)
		return nil
	}
	if err := builder.WriteManifest(a.fs, outPath, categories); err != nil {
		return err
	}
	a.output.Success("Wrote %s", registry.ManifestFile)
	return nil
}

// applyBuildFlags overrides cfg with every flag set on the command line.
func applyBuildFlags(cmd *cobra.Command, cfg *config.Build, opts buildOptions) {
	f := cmd.Flags()
	if f.Changed("dirs") {
		cfg.Dirs = opts.dirs
	}
	if f.Changed("include-blocks") {
		cfg.IncludeBlocks = opts.includeBlocks
	}
	if f.Changed("include-categories") {
		cfg.IncludeCategories = opts.includeCategories
	}
	if f.Changed("do-not-list-blocks") {
		cfg.DoNotListBlocks = opts.doNotListBlocks
	}
	if f.Changed("do-not-list-categories") {
		cfg.DoNotListCategories = opts.doNotListCategories
	}
	if f.Changed("exclude-deps") {
		cfg.ExcludeDeps = opts.excludeDeps
	}
	if f.Changed("no-output") {
		cfg.Output = !opts.noOutput
	}
	if f.Changed("error-on-warn") {
		cfg.ErrorOnWarn = opts.errorOnWarn
	}
}
