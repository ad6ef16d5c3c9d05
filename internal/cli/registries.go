package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/company/blocks/internal/detect"
	"github.com/company/blocks/internal/exitcodes"
	"github.com/company/blocks/internal/logger"
	"github.com/company/blocks/internal/reconciler"
	"github.com/company/blocks/internal/registry"
	"github.com/company/blocks/internal/resolver"
	"github.com/company/blocks/internal/tracker"
	"github.com/company/blocks/internal/ui"
)

// repoFlags are shared by every command that reads from registries.
type repoFlags struct {
	repo  string
	allow bool
}

func (f *repoFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.repo, "repo", "", "registry to use instead of the configured repos")
	cmd.Flags().BoolVarP(&f.allow, "allow", "A", false, "allow downloading code from --repo without asking")
}

// repos returns the registries to read. A --repo override replaces the
// configured list and must be allowed by the user.
func (a *App) repos(f repoFlags) ([]string, error) {
	if f.repo == "" {
		if len(a.project.Repos) == 0 {
			return nil, resolver.ErrNoRegistries
		}
		return a.project.Repos, nil
	}

	if !f.allow {
		ok, err := a.confirm(fmt.Sprintf("Allow blocks to download code from %s?", f.repo))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ExitError{Code: exitcodes.Cancelled, Message: "Cancelled."}
		}
	}
	return []string{f.repo}, nil
}

// universe resolves repos and fetches all of their manifests.
type universe struct {
	client *registry.Client
	states []registry.State
	blocks *registry.BlockMap
}

func (a *App) fetchUniverse(ctx context.Context, repos []string) (*universe, error) {
	u := &universe{client: a.newRegistryClient()}
	label := strings.Join(repos, ", ")

	err := a.spin(fmt.Sprintf("Fetching blocks from %s", label), func() error {
		states, err := u.client.States(ctx, repos...)
		if err != nil {
			return err
		}
		u.states = states

		blocks, err := u.client.FetchBlocks(ctx, states...)
		if err != nil {
			return err
		}
		u.blocks = blocks
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("blocks", u.blocks.Len()).Str("repos", label).Msg("retrieved blocks")
	return u, nil
}

func (a *App) spin(title string, fn func() error) error {
	return ui.WithSpinner(title, a.verbose, fn)
}

func (a *App) installed(u *universe) ([]tracker.InstalledBlock, error) {
	return tracker.GetInstalled(a.fs, u.blocks, a.project, a.projectDir)
}

// reconcileFlags are shared by add and update.
type reconcileFlags struct {
	yes          bool
	expand       bool
	maxUnchanged int
}

func (f *reconcileFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "accept every change without prompting")
	cmd.Flags().BoolVarP(&f.expand, "expand", "E", false, "show every unchanged line in diffs")
	cmd.Flags().IntVar(&f.maxUnchanged, "max-unchanged", 3, "unchanged lines shown around each change")
}

func (a *App) reconcile(ctx context.Context, u *universe, blocks []resolver.Resolved, f reconcileFlags) (*reconciler.Result, error) {
	r := &reconciler.Reconciler{
		Fs:           a.fs,
		Fetcher:      u.client,
		Confirmer:    confirmFunc(a.confirm),
		Project:      a.project,
		Root:         a.projectDir,
		Yes:          f.yes,
		Expand:       f.expand,
		MaxUnchanged: f.maxUnchanged,
		Watermark:    a.project.Watermark,
		Version:      a.version,
		Date:         a.now(),
		Out:          a.output,
	}
	return r.Run(ctx, blocks)
}

// printSummary reports what was written and how to install dependencies.
func (a *App) printSummary(res *reconciler.Result) {
	a.output.Println("")
	a.output.Success("%d file(s) written, %d unchanged, %d rejected",
		res.Count(reconciler.Written), res.Count(reconciler.Unchanged), res.Count(reconciler.Rejected))

	if len(res.Dependencies) == 0 && len(res.DevDependencies) == 0 {
		return
	}

	pm := detect.Detect(a.fs, a.projectDir)
	var steps []string
	if len(res.Dependencies) > 0 {
		steps = append(steps, "Install dependencies `"+strings.Join(detect.InstallCommand(pm.Agent, res.Dependencies, false), " ")+"`")
	}
	if len(res.DevDependencies) > 0 {
		steps = append(steps, "Install dev dependencies `"+strings.Join(detect.InstallCommand(pm.Agent, res.DevDependencies, true), " ")+"`")
	}

	a.output.Println("")
	a.output.Println("%s", a.output.Bold("Next steps:"))
	for i, s := range steps {
		a.output.Println("  %d. %s", i+1, s)
	}
}
