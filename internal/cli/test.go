package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/company/blocks/internal/exitcodes"
	"github.com/company/blocks/internal/filemanager"
	"github.com/company/blocks/internal/registry"
	"github.com/company/blocks/internal/resolver"
	"github.com/company/blocks/internal/testprep"
)

// TestDirPrefix names the scratch directories created by 'blocks test'.
const TestDirPrefix = "blocks-tests-temp-"

type testOptions struct {
	repoFlags
	debug bool
}

func (a *App) newTestCmd() *cobra.Command {
	var opts testOptions
	cmd := &cobra.Command{
		Use:   "test [block...]",
		Short: "Run the registry's tests against your local blocks",
		Long:  "Downloads the test files of the given blocks (default: every installed block) into a scratch directory and runs testCommand from blocks.yaml on it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTest(cmd.Context(), args, opts)
		},
	}
	opts.repoFlags.register(cmd)
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "keep the scratch directory when tests fail")
	return cmd
}

func (a *App) runTest(ctx context.Context, blocks []string, opts testOptions) (err error) {
	if err := a.RequireProject(); err != nil {
		return err
	}

	repos, err := a.repos(opts.repoFlags)
	if err != nil {
		return err
	}

	u, err := a.fetchUniverse(ctx, repos)
	if err != nil {
		return err
	}

	if len(blocks) == 0 {
		installed, err := a.installed(u)
		if err != nil {
			return err
		}
		for _, ib := range installed {
			blocks = append(blocks, ib.Specifier)
		}
	}
	if len(blocks) == 0 {
		return &ExitError{Code: exitcodes.ResolutionError, Message: "there were no blocks found in your project"}
	}

	resolved, err := resolver.ResolveTree(blocks, u.blocks, u.states)
	if err != nil {
		return err
	}
	var targets []registry.Block
	for _, r := range resolved {
		if !r.Dependency {
			targets = append(targets, r.Block)
		}
	}

	scratch, err := filemanager.NewScratch(a.fs, a.projectDir, TestDirPrefix)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, scratch.Close())
	}()

	prep := &testprep.Preparer{
		Fs:      a.fs,
		Fetcher: u.client,
		Project: a.project,
		Root:    a.projectDir,
		Dir:     scratch.Dir,
	}
	var staged []testprep.Staged
	err = a.spin("Setting up test files", func() error {
		var prepErr error
		staged, prepErr = prep.Prepare(ctx, targets)
		return prepErr
	})
	if err != nil {
		return err
	}
	if len(staged) == 0 {
		a.output.Info("No tests found for %s", strings.Join(blocks, ", "))
		return nil
	}
	a.output.Success("Prepared %d test file(s) in %s", len(staged), scratch.Dir)

	if len(a.project.TestCommand) == 0 {
		scratch.Keep()
		a.output.Info("No testCommand configured in blocks.yaml; the test files are in %s", scratch.Dir)
		return nil
	}

	command := append(append([]string{}, a.project.TestCommand...), scratch.Dir)
	if runErr := a.runCommand(ctx, a.projectDir, command); runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if opts.debug {
			scratch.Keep()
			a.output.Info("--debug flag provided. Skipping cleanup. Run '%s' to retry tests.", strings.Join(command, " "))
		}
		return &ExitError{Code: exitcodes.General, Message: fmt.Sprintf("tests failed: %v", runErr)}
	}

	a.output.Success("Tests passed")
	return nil
}
