package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/company/blocks/internal/config"
	"github.com/company/blocks/internal/detect"
	"github.com/company/blocks/internal/exitcodes"
	"github.com/company/blocks/internal/filemanager"
	"github.com/company/blocks/internal/registry"
	"github.com/company/blocks/internal/tracker"
)

func (a *App) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDoctor(cmd.Context())
		},
	}
}

func (a *App) runDoctor(ctx context.Context) error {
	allOK := true

	// 0. Legacy config
	if config.LegacyExists(a.fs, a.projectDir) {
		a.output.Warning("Old %s detected: run 'blocks init' to migrate", config.LegacyProjectFile)
	}

	// 1. Config file
	if config.ConfigExists(a.fs, a.projectDir) {
		a.output.Success("%s found", config.ProjectFile)
	} else if !config.LegacyExists(a.fs, a.projectDir) {
		a.output.Error("%s not found: run 'blocks init'", config.ProjectFile)
		return &ExitError{Code: exitcodes.ConfigError, Message: "doctor found problems"}
	}

	if err := a.LoadProjectConfig(); err != nil {
		a.output.Error("Config file invalid: %v", err)
		return &ExitError{Code: exitcodes.ConfigError, Message: "doctor found problems"}
	}

	// 2. Registries reachable (use a short timeout so doctor doesn't hang)
	if len(a.project.Repos) == 0 {
		a.output.Error("No repos configured in %s", config.ProjectFile)
		allOK = false
	}

	client := a.newRegistryClient()
	var states []registry.State
	for _, repo := range a.project.Repos {
		repoCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		s, err := client.State(repoCtx, repo)
		if err == nil {
			var m registry.Manifest
			m, err = client.FetchManifest(repoCtx, s)
			if err == nil {
				a.output.Success("Registry reachable at %s (%d categories)", s.URL, len(m))
				states = append(states, s)
			}
		}
		cancel()
		if err != nil {
			a.output.Error("Registry %s: %v", repo, err)
			allOK = false
		}
	}

	// 3. Install paths
	for key, dir := range a.project.Paths {
		path := filepath.Join(a.projectDir, dir)
		if filemanager.Exists(a.fs, path) {
			a.output.Success("paths[%q] → %s exists", key, dir)
		} else {
			a.output.Info("  paths[%q] → %s does not exist yet", key, dir)
		}
	}

	// 4. Installed blocks
	if len(states) > 0 {
		blocks, err := client.FetchBlocks(ctx, states...)
		if err == nil {
			var installed []tracker.InstalledBlock
			installed, err = tracker.GetInstalled(a.fs, blocks, a.project, a.projectDir)
			if err == nil {
				a.output.Success("%d of %d block(s) installed", len(installed), blocks.Len())
			}
		}
		if err != nil {
			a.output.Error("Could not check installed blocks: %v", err)
			allOK = false
		}
	}

	// 5. Test command
	if a.project.IncludeTests && len(a.project.TestCommand) == 0 {
		a.output.Warning("includeTests is set but no testCommand is configured")
	}

	// 6. Package manager
	pm := detect.Detect(a.fs, a.projectDir)
	source := "default"
	if pm.Source != "" {
		source = pm.Source
	}
	a.output.Success("Package manager: %s (%s)", pm.Agent, source)

	// 7. Registry build config
	if filemanager.Exists(a.fs, filepath.Join(a.projectDir, config.BuildFile)) {
		b, err := config.LoadBuild(a.fs, a.projectDir)
		if err != nil {
			a.output.Error("%s invalid: %v", config.BuildFile, err)
			allOK = false
		} else {
			for _, dir := range b.Dirs {
				if !filemanager.Exists(a.fs, filepath.Join(a.projectDir, dir)) {
					a.output.Error("Build dir %s does not exist", dir)
					allOK = false
				}
			}
		}
	}

	if !allOK {
		return &ExitError{Code: exitcodes.General, Message: "doctor found problems"}
	}
	fmt.Fprintln(a.output.Writer())
	a.output.Success("Everything looks good!")
	return nil
}
