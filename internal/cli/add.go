package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/company/blocks/internal/exitcodes"
	"github.com/company/blocks/internal/logger"
	"github.com/company/blocks/internal/registry"
	"github.com/company/blocks/internal/resolver"
	"github.com/company/blocks/internal/tracker"
	"github.com/company/blocks/internal/ui"
)

type addOptions struct {
	repoFlags
	reconcileFlags
}

func (a *App) newAddCmd() *cobra.Command {
	var opts addOptions
	cmd := &cobra.Command{
		Use:   "add [block...]",
		Short: "Add blocks to this project",
		Long:  "Installs blocks and the local blocks they depend on. Blocks are given as category/name, or fully qualified with their registry (e.g. github/ieedan/std/utils/math).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAdd(cmd.Context(), args, opts)
		},
	}
	opts.repoFlags.register(cmd)
	opts.reconcileFlags.register(cmd)
	return cmd
}

func (a *App) runAdd(ctx context.Context, blocks []string, opts addOptions) error {
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

	installed, err := a.installed(u)
	if err != nil {
		return err
	}
	installedSet := tracker.Specifiers(installed)

	if len(blocks) == 0 {
		var options []ui.Option
		u.blocks.Each(func(key string, b registry.Block) {
			if !b.List || installedSet[b.Specifier()] {
				return
			}
			options = append(options, ui.Option{Label: b.Specifier() + "  " + b.SourceRepo.URL, Value: key})
		})
		if len(options) == 0 {
			a.output.Info("Every listed block is already installed.")
			return nil
		}

		blocks, err = a.multiSelect("Which blocks would you like to add?", options)
		if err != nil {
			return err
		}
		if len(blocks) == 0 {
			return &ExitError{Code: exitcodes.UsageError, Message: "no blocks selected"}
		}
	}

	logger.Debug().Strs("blocks", blocks).Msg("preparing to add")

	r := resolver.NewResolver(u.blocks, u.states)
	r.Installed = installedSet
	resolved, err := r.Resolve(blocks)
	if err != nil {
		return err
	}

	res, err := a.reconcile(ctx, u, resolved, opts.reconcileFlags)
	if err != nil {
		return err
	}
	a.printSummary(res)
	return nil
}
