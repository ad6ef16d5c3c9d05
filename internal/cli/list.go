package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/company/blocks/internal/registry"
)

type listOptions struct {
	repoFlags
	all bool
}

func (a *App) newListCmd() *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the blocks of the configured registries",
		Long:  "Shows every listed block grouped by registry and category. Installed blocks are marked with an asterisk.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd.Context(), opts)
		},
	}
	opts.repoFlags.register(cmd)
	cmd.Flags().BoolVar(&opts.all, "all", false, "include blocks hidden from listings")
	return cmd
}

func (a *App) runList(ctx context.Context, opts listOptions) error {
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
	installedKeys := make(map[string]bool, len(installed))
	for _, ib := range installed {
		installedKeys[ib.Specifier] = true
	}

	type entry struct {
		block       registry.Block
		isInstalled bool
	}

	// registry URL -> category -> entries, in manifest order
	var repoOrder []string
	categories := make(map[string][]string)
	entries := make(map[string][]entry)

	total, installedCount := 0, 0
	u.blocks.Each(func(key string, b registry.Block) {
		if !b.List && !opts.all {
			return
		}
		repo := b.SourceRepo.URL
		if _, ok := categories[repo]; !ok {
			repoOrder = append(repoOrder, repo)
			categories[repo] = nil
		}
		catKey := repo + "\x00" + b.Category
		if _, ok := entries[catKey]; !ok {
			categories[repo] = append(categories[repo], b.Category)
		}
		entries[catKey] = append(entries[catKey], entry{block: b, isInstalled: installedKeys[key]})
		total++
		if installedKeys[key] {
			installedCount++
		}
	})

	for _, repo := range repoOrder {
		a.output.Println("%s", a.output.Bold(repo))
		for _, cat := range categories[repo] {
			a.output.Println("  %s:", cat)
			for _, e := range entries[repo+"\x00"+cat] {
				status := "  "
				if e.isInstalled {
					status = "* "
				}
				deps := ""
				if len(e.block.LocalDependencies) > 0 {
					deps = fmt.Sprintf(" (depends: %s)", strings.Join(e.block.LocalDependencies, ", "))
				}
				a.output.Println("    %s%-20s %s%s", status, e.block.Name, a.output.Muted(fmt.Sprintf("%d file(s)", len(e.block.Files))), deps)
			}
		}
		a.output.Println("")
	}

	if installedCount > 0 {
		a.output.Println("* = installed (%d/%d)", installedCount, total)
	} else {
		a.output.Println("%d blocks available", total)
	}
	return nil
}
