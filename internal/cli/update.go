package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/company/blocks/internal/exitcodes"
	"github.com/company/blocks/internal/logger"
	"github.com/company/blocks/internal/resolver"
	"github.com/company/blocks/internal/ui"
)

type updateOptions struct {
	repoFlags
	reconcileFlags
	all bool
}

func (a *App) newUpdateCmd() *cobra.Command {
	var opts updateOptions
	cmd := &cobra.Command{
		Use:   "update [block...]",
		Short: "Update installed blocks",
		Long:  "Shows the difference between each installed file and the registry version and asks before overwriting it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpdate(cmd.Context(), args, opts)
		},
	}
	opts.repoFlags.register(cmd)
	opts.reconcileFlags.register(cmd)
	cmd.Flags().BoolVar(&opts.all, "all", false, "update every installed block")
	return cmd
}

func (a *App) runUpdate(ctx context.Context, blocks []string, opts updateOptions) error {
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

	if opts.all {
		blocks = nil
		for _, ib := range installed {
			blocks = append(blocks, ib.Specifier)
		}
	}

	if len(blocks) == 0 {
		if len(installed) == 0 {
			a.output.Info("No installed blocks found.")
			return nil
		}

		options := make([]ui.Option, 0, len(installed))
		for _, ib := range installed {
			options = append(options, ui.Option{Label: ib.Block.Specifier(), Value: ib.Specifier})
		}
		blocks, err = a.multiSelect("Which blocks would you like to update?", options)
		if err != nil {
			return err
		}
		if len(blocks) == 0 {
			return &ExitError{Code: exitcodes.UsageError, Message: "no blocks selected: pass block names or --all"}
		}
	}

	logger.Debug().Strs("blocks", blocks).Msg("preparing to update")

	resolved, err := resolver.ResolveTree(blocks, u.blocks, u.states)
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
