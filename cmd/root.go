// Package cmd holds the minipl command line.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/antibyte/minipl/pkg/configuration"
	"github.com/antibyte/minipl/pkg/logger"

	"github.com/spf13/cobra"
)

const defaultConfigFile = "settings.cfg"

var (
	cfgFile string
	verbose bool
)

// exitError carries a failure that was already reported to the user.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var rootCmd = &cobra.Command{
	Use:   "minipl",
	Short: "Mini-PL interpreter and playground server",
	Long: `minipl scans, parses and interprets Mini-PL programs.

Commands:
  run      Run a program with stdin and stdout
  check    Report the first lexical or syntax error
  tokens   Print the token stream of a program
  test     Run YAML or TOML conformance suites
  serve    Start the playground server
  history  List recorded runs`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) { logger.Close() },
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	printError(err)
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigFile, "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log everything at DEBUG level")
}

// setup loads the configuration and the logger. Without an explicit
// --config a missing default file is not created; the defaults stay in
// memory and the log file is only opened with --verbose.
func setup(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	if err := configuration.Initialize(path); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if path == "" && !verbose {
		return nil
	}
	if err := logger.Initialize(); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	if verbose {
		logger.SetVerbose()
	}
	if path != "" {
		logger.ConfigInfo("configuration loaded from %s", path)
	}
	return nil
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
}
