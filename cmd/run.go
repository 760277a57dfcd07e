package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/antibyte/minipl/pkg/configuration"
	"github.com/antibyte/minipl/pkg/minipl"
	"github.com/antibyte/minipl/pkg/shared"
	"github.com/antibyte/minipl/pkg/store"

	"github.com/spf13/cobra"
)

var (
	runReadIntegers bool
	runRecord       bool
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a Mini-PL program",
	Long: `Run a Mini-PL program. Read statements consume standard input, print
statements write to standard output. After the program finishes its
final value is printed.

The loop iteration limit of the [Interpreter] section applies; the run
timeout does not, since reads may wait for a person typing.`,
	Args: cobra.ExactArgs(1),
	RunE: runProgram,
}

func init() {
	runCmd.Flags().BoolVar(&runReadIntegers, "read-integers", false, "store parsed numbers when reading into int variables")
	runCmd.Flags().BoolVar(&runRecord, "record", false, "store the run in the history database")
	rootCmd.AddCommand(runCmd)
}

func loadSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func runProgram(cmd *cobra.Command, args []string) error {
	source, err := loadSource(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if source == "" {
		fmt.Fprintln(out, "No input received")
		return nil
	}

	settings := shared.LoadRunSettings()
	settings.Timeout = 0
	if cmd.Flags().Changed("read-integers") {
		settings.ReadIntegers = runReadIntegers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var stdin, stdout bytes.Buffer
	opts := append(settings.Options(),
		minipl.WithContext(ctx),
		minipl.WithInput(io.TeeReader(cmd.InOrStdin(), &stdin)),
		minipl.WithOutput(io.MultiWriter(out, &stdout)),
	)

	start := time.Now()
	interp := minipl.New(source, opts...)
	result, runErr := interp.Interpret()

	if runRecord {
		outcome := &shared.Outcome{
			Stdout:   stdout.String(),
			Result:   result,
			Globals:  shared.GlobalsToMap(interp.Globals()),
			Err:      runErr,
			Duration: time.Since(start),
		}
		if err := recordRun(source, stdin.String(), outcome); err != nil {
			printError(err)
		}
	}

	if runErr != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(runErr.Error()))
		return &exitError{code: 1}
	}
	fmt.Fprintln(out, result.String())
	return nil
}

func openStore() (*store.Store, error) {
	return store.Open(configuration.GetString("Storage", "database", "minipl.db"))
}

func recordRun(source, stdin string, outcome *shared.Outcome) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	run := &store.Run{
		Username: currentUser(),
		Source:   source,
		Stdin:    stdin,
		Stdout:   outcome.Stdout,
		Result:   outcome.Result.String(),
		Globals:  outcome.Globals,
		Duration: outcome.Duration,
	}
	if info := shared.NewErrorInfo(outcome.Err); info != nil {
		run.ErrorKind = info.Kind
		run.ErrorMessage = info.Message
	}
	_, err = st.RecordRun(run)
	return err
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}
