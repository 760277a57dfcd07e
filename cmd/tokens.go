package cmd

import (
	"fmt"

	"github.com/antibyte/minipl/pkg/minipl"

	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens <file>",
	Short: "Print the token stream of a program",
	Args:  cobra.ExactArgs(1),
	RunE:  dumpTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
}

func dumpTokens(cmd *cobra.Command, args []string) error {
	source, err := loadSource(args[0])
	if err != nil {
		return err
	}

	tokens, err := minipl.NewScanner(source).Tokens()
	for _, tok := range tokens {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mutedStyle.Render(tok.Pos.String()), tok)
	}
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(err.Error()))
		return &exitError{code: 1}
	}
	return nil
}
