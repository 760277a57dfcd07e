// Package suite runs conformance suites: programs with their stdin and the
// stdout, globals or error kind they must produce.
package suite

import (
	"time"

	"github.com/antibyte/minipl/pkg/shared"
)

// Suite is one YAML or TOML conformance file.
type Suite struct {
	Name        string   `yaml:"name" toml:"name"`
	Description string   `yaml:"description,omitempty" toml:"description"`
	Defaults    Defaults `yaml:"defaults,omitempty" toml:"defaults"`
	Cases       []Case   `yaml:"cases" toml:"cases"`
}

// Defaults apply to every case that does not override them.
type Defaults struct {
	ReadIntegers  bool   `yaml:"read_integers,omitempty" toml:"read_integers"`
	MaxIterations int64  `yaml:"max_iterations,omitempty" toml:"max_iterations"`
	Timeout       string `yaml:"timeout,omitempty" toml:"timeout"`
}

// Case is a single program with its expectations. Unset expectations are
// not checked.
type Case struct {
	ID           string         `yaml:"id" toml:"id"`
	Description  string         `yaml:"description,omitempty" toml:"description"`
	Source       string         `yaml:"source" toml:"source"`
	Stdin        string         `yaml:"stdin,omitempty" toml:"stdin"`
	ReadIntegers *bool          `yaml:"read_integers,omitempty" toml:"read_integers"`
	Stdout       *string        `yaml:"stdout,omitempty" toml:"stdout"`
	Globals      map[string]any `yaml:"globals,omitempty" toml:"globals"`
	Absent       []string       `yaml:"absent,omitempty" toml:"absent"`
	Error        string         `yaml:"error,omitempty" toml:"error"`
}

// Result is the verdict for one case.
type Result struct {
	Case     *Case
	Passed   bool
	Failures []string
	Outcome  *shared.Outcome
}

// Report collects the results of a suite run.
type Report struct {
	Suite    string
	Results  []Result
	Passed   int
	Failed   int
	Duration time.Duration
}

// OK reports whether every case passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}
