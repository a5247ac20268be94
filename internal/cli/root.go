package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tutils-dev/tutils/internal/branding"
	"github.com/tutils-dev/tutils/internal/catalog"
	"github.com/tutils-dev/tutils/internal/config"
	"github.com/tutils-dev/tutils/internal/fetcher"
	"github.com/tutils-dev/tutils/internal/logger"
	"github.com/tutils-dev/tutils/internal/repository"
	"go.uber.org/zap"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

// Global flags.
var (
	configPath string
	debugFlag  bool
	logLevel   string
)

// session holds what every command needs, built once per invocation.
type session struct {
	configPath string
	cfg        config.Config
	log        *logger.Logger
	catalog    *catalog.Catalog
}

var current *session

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` discovers scripts published in local or remote repositories
and runs them as child processes with a timeout and an output line limit.

Repositories are configured in ~/.tutils/config.yaml.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The version command works without a config file.
		if cmd.Name() == "version" {
			return nil
		}
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		current = s
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			_ = current.log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.tutils/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// newSession loads the configuration and builds the logger and catalog.
func newSession(cmd *cobra.Command) (*session, error) {
	path := configPath
	if path == "" {
		path = config.FilePath()
	}
	path = config.ExpandPath(path)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if debugFlag {
		cfg.Debug = true
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log, err := logger.NewLogger(cfg.LoggingConfig())
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	log.Debug("config loaded", zap.String("path", path), zap.Int("repositories", len(cfg.Repositories)))

	f := fetcher.NewHTTPFetcher(
		fetcher.WithLogger(log),
		fetcher.WithProgress(fetcher.TerminalProgress(cmd.ErrOrStderr())),
	)
	cat := catalog.New(cfg.Repositories,
		catalog.WithLogger(log),
		catalog.WithRepositoryOptions(repository.WithFetcher(f)),
	)

	return &session{configPath: path, cfg: cfg, log: log, catalog: cat}, nil
}

// exitError carries a process exit code out of a command. Silent errors
// have already been reported and print nothing.
type exitError struct {
	code   int
	msg    string
	silent bool
}

func (e *exitError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return fmt.Sprintf("exit status %d", e.code)
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) && ee.code != 0 {
		return ee.code
	}
	return 1
}

// Execute runs the root command with build info injected via ldflags.
// Errors are printed to stderr as "Error: <message>".
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		var ee *exitError
		if !errors.As(err, &ee) || !ee.silent {
			fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}
	return err
}
