package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/antibyte/minipl/pkg/suite"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test <suite>...",
	Short: "Run conformance suites",
	Long: `Run conformance suites. Files ending in .toml are read as TOML, all
others as YAML. Every case lists a program, its stdin and the stdout,
globals or error kind it must produce.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSuites,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func runSuites(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range args {
		s, err := suite.LoadFromFile(path)
		if err != nil {
			return err
		}

		name := s.Name
		if name == "" {
			name = path
		}
		fmt.Fprintln(out, headerStyle.Render(name))

		report := s.Run(ctx)
		for _, res := range report.Results {
			if res.Passed {
				fmt.Fprintf(out, "  %s %s\n", passStyle.Render("PASS"), res.Case.ID)
				continue
			}
			fmt.Fprintf(out, "  %s %s\n", failStyle.Render("FAIL"), res.Case.ID)
			for _, f := range res.Failures {
				fmt.Fprintf(out, "       %s\n", mutedStyle.Render(f))
			}
		}
		fmt.Fprintf(out, "  %d passed, %d failed in %s\n\n", report.Passed, report.Failed, report.Duration.Round(time.Millisecond))
		failed += report.Failed
	}

	if failed > 0 {
		return &exitError{code: 1}
	}
	return nil
}
