package cli

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/company/blocks/internal/builder"
	"github.com/company/blocks/internal/config"
	"github.com/company/blocks/internal/exitcodes"
	"github.com/company/blocks/internal/logger"
	"github.com/company/blocks/internal/registry"
	"github.com/company/blocks/internal/resolver"
	"github.com/company/blocks/internal/ui"
)

// App is the dependency container for all CLI commands.
type App struct {
	rootCmd *cobra.Command
	version string
	commit  string
	date    string
	fs      afero.Fs
	project *config.Project
	output  *ui.Output

	projectDir string
	token      string
	verbose    bool
	noColor    bool

	// Overridable in tests.
	clientOpts  []registry.Option
	confirm     func(title string) (bool, error)
	multiSelect func(title string, opts []ui.Option) ([]string, error)
	runCommand  func(ctx context.Context, dir string, args []string) error
	now         func() time.Time
}

// NewApp creates the root command and registers all subcommands.
func NewApp(version, commit, date string) *App {
	app := &App{
		version:     version,
		commit:      commit,
		date:        date,
		fs:          afero.NewOsFs(),
		output:      ui.NewOutput(),
		confirm:     ui.Prompter{Default: true}.Confirm,
		multiSelect: ui.MultiSelect,
		runCommand:  execCommand,
		now:         time.Now,
	}

	root := &cobra.Command{
		Use:   "blocks",
		Short: "Install and update source blocks from git-hosted registries",
		Long:  "Copies reusable blocks of source code from GitHub, GitLab, Bitbucket, Azure DevOps or plain HTTP registries into your project, and keeps them up to date.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envToken := os.Getenv("BLOCKS_TOKEN"); envToken != "" && app.token == "" {
				app.token = envToken
			}
			if os.Getenv("BLOCKS_DEBUG") != "" {
				app.verbose = true
			}
			if os.Getenv("BLOCKS_NO_COLOR") != "" || os.Getenv("NO_COLOR") != "" {
				app.noColor = true
			}
			if app.noColor {
				app.output.SetNoColor(true)
			}
			logger.Init(app.verbose, app.noColor)

			dir, err := filepath.Abs(app.projectDir)
			if err != nil {
				return &ExitError{Code: exitcodes.UsageError, Message: "invalid --cwd: " + err.Error()}
			}
			app.projectDir = dir
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&app.projectDir, "cwd", ".", "project directory")
	root.PersistentFlags().StringVar(&app.token, "token", "", "registry auth token (overrides BLOCKS_TOKEN)")
	root.PersistentFlags().BoolVar(&app.verbose, "verbose", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&app.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		app.newInitCmd(),
		app.newAddCmd(),
		app.newUpdateCmd(),
		app.newListCmd(),
		app.newBuildCmd(),
		app.newTestCmd(),
		app.newDoctorCmd(),
		app.newVersionCmd(),
	)

	app.rootCmd = root
	return app
}

// Execute runs the root command. Errors are returned as *ExitError.
func (a *App) Execute() error {
	return a.ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx.
func (a *App) ExecuteContext(ctx context.Context) error {
	return toExitError(a.rootCmd.ExecuteContext(ctx))
}

// LoadProjectConfig loads blocks.yaml. When only the legacy blocks.json
// exists it is migrated in memory; 'blocks init' writes the new file.
// Returns nil error if no config is found.
func (a *App) LoadProjectConfig() error {
	if config.ConfigExists(a.fs, a.projectDir) {
		p, err := config.LoadProject(a.fs, a.projectDir)
		if err != nil {
			return err
		}
		a.project = p
		return nil
	}

	if config.LegacyExists(a.fs, a.projectDir) {
		p, err := config.MigrateLegacy(a.fs, a.projectDir)
		if err != nil {
			return err
		}
		a.output.Warning("Using legacy %s; run 'blocks init' to migrate to %s", config.LegacyProjectFile, config.ProjectFile)
		a.project = p
		return nil
	}

	return nil
}

// RequireProject loads config and returns an error if it doesn't exist.
func (a *App) RequireProject() error {
	if a.project == nil {
		if err := a.LoadProjectConfig(); err != nil {
			return &ExitError{Code: exitcodes.ConfigError, Message: err.Error()}
		}
	}
	if a.project == nil {
		return &ExitError{
			Code:    exitcodes.ConfigError,
			Message: "no " + config.ProjectFile + " found: run 'blocks init' first",
		}
	}
	return nil
}

// newRegistryClient creates a registry client with the current settings.
func (a *App) newRegistryClient() *registry.Client {
	opts := []registry.Option{registry.WithLogger(logger.Log)}
	if a.token != "" {
		opts = append(opts, registry.WithToken(a.token))
	}
	if a.project != nil && a.project.ErrorOnWarn {
		opts = append(opts, registry.WithStrict(true))
	}
	opts = append(opts, a.clientOpts...)
	return registry.NewClient(opts...)
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			a.output.Info("blocks %s (commit: %s, built: %s)", a.version, a.commit, a.date)
		},
	}
}

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// toExitError maps the typed errors of the core packages to exit codes.
func toExitError(err error) error {
	if err == nil {
		return nil
	}

	var (
		exitErr     *ExitError
		unknown     *registry.UnknownProviderError
		invalid     *resolver.InvalidSpecifierError
		missing     *resolver.MissingBlockError
		cycle       *resolver.CircularDependencyError
		fetchErr    *registry.FetchError
		manifestErr *registry.ManifestError
		duplicate   *registry.DuplicateEntryError
		strictErr   *builder.StrictModeError
	)
	code := exitcodes.General
	switch {
	case errors.As(err, &exitErr):
		return exitErr
	case errors.Is(err, ui.ErrCancelled), errors.Is(err, context.Canceled):
		return &ExitError{Code: exitcodes.Cancelled, Message: "Cancelled."}
	case errors.As(err, &unknown), errors.As(err, &invalid):
		code = exitcodes.UsageError
	case errors.Is(err, config.ErrNotFound), errors.Is(err, resolver.ErrNoRegistries):
		code = exitcodes.ConfigError
	case errors.As(err, &duplicate), errors.As(err, &strictErr):
		code = exitcodes.StrictModeError
	case errors.As(err, &fetchErr), errors.As(err, &manifestErr):
		code = exitcodes.NetworkError
	case errors.As(err, &missing), errors.As(err, &cycle):
		code = exitcodes.ResolutionError
	}
	return &ExitError{Code: code, Message: err.Error()}
}

// confirmFunc adapts a prompt function to reconciler.Confirmer.
type confirmFunc func(title string) (bool, error)

func (f confirmFunc) Confirm(title string) (bool, error) {
	return f(title)
}

func execCommand(ctx context.Context, dir string, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
