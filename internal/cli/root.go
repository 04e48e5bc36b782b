// Package cli contains the project-pilot commands
package cli

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jurkyy/project-pilot/internal/config"
	"github.com/Jurkyy/project-pilot/internal/output"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
	cfg     *config.Config
	logger  *slog.Logger
	printer *output.Printer
	version = "dev"
)

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "project-pilot",
		Short: "Turn a project description into a ready-to-build project",
		Long: `project-pilot sends a natural-language project description to an LLM and
writes the files it answers with into a new directory, adding a Dockerfile
when the answer has no container setup.

Example usage:
  project-pilot generate -d "a REST API for todos" -l go -n todo
  project-pilot generate -d "a CLI that resizes images" -o ./resizer --git-init
  project-pilot serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd.ErrOrStderr(), cmd.OutOrStdout())
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .project-pilot.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print warnings and errors")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &output.CLIError{
			Summary:    err.Error(),
			Suggestion: "Run '" + cmd.CommandPath() + " --help' for usage",
			ExitCode:   output.ExitUsageError,
		}
	})

	root.AddCommand(newGenerateCmd(), newServeCmd(), newVersionCmd())
	return root
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
}

// Execute runs the CLI with args and returns the process exit code
func Execute(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	printer = nil
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if err == nil {
		return output.ExitSuccess
	}

	p := printer
	if p == nil {
		p = output.NewPrinter(output.PrinterOptions{Colors: true, Err: stderr})
	}
	cliErr := output.FromError(err)
	if cliErr.ExitCode == output.ExitGeneral && isUsageError(err) {
		cliErr.ExitCode = output.ExitUsageError
	}
	p.FormatError(cliErr)
	return cliErr.ExitCode
}

// isUsageError recognizes cobra's argument and command errors
func isUsageError(err error) bool {
	var cliErr *output.CLIError
	if errors.As(err, &cliErr) {
		return false
	}
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "required flag") ||
		strings.Contains(msg, "arg(s)")
}

// initConfig loads configuration and sets up logging and output
func initConfig(stderr, stdout io.Writer) error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return &output.CLIError{
			Summary:    "invalid configuration",
			Detail:     err.Error(),
			Suggestion: "Check .project-pilot.yaml syntax or use --config flag",
			ExitCode:   output.ExitConfigError,
		}
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger = newLogger(stderr, level, cfg.Logging.Format)
	slog.SetDefault(logger)

	printer = output.NewPrinter(output.PrinterOptions{
		Colors: cfg.Output.Colors,
		Quiet:  quiet,
		Out:    stdout,
		Err:    stderr,
	})

	logger.Debug("configuration loaded",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"max_attempts", cfg.LLM.Retry.MaxAttempts,
	)
	return nil
}

// newLogger builds a text or JSON slog logger at the given level
func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
