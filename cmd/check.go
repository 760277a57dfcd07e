package cmd

import (
	"fmt"

	"github.com/antibyte/minipl/pkg/minipl"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Scan and parse programs without running them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  checkPrograms,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func checkPrograms(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		source, err := loadSource(path)
		if err != nil {
			return err
		}

		program, err := minipl.NewParser(minipl.NewScanner(source)).Parse()
		if err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %v\n", failStyle.Render("FAIL"), path, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", passStyle.Render("ok  "), path,
			mutedStyle.Render(fmt.Sprintf("(%d statements)", len(program.Statements))))
	}
	if failed > 0 {
		return &exitError{code: 1}
	}
	return nil
}
