package suite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/antibyte/minipl/pkg/logger"
	"github.com/antibyte/minipl/pkg/shared"
)

// Run executes every case in order. It stops early only when ctx is done;
// the remaining cases are then reported as failed.
func (s *Suite) Run(ctx context.Context) *Report {
	start := time.Now()
	report := &Report{Suite: s.Name}

	for i := range s.Cases {
		c := &s.Cases[i]
		var res Result
		if err := ctx.Err(); err != nil {
			res = Result{Case: c, Failures: []string{fmt.Sprintf("not run: %v", err)}}
		} else {
			res = s.runCase(ctx, c)
		}

		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
			logger.Debug(logger.AreaInterpreter, "suite %s: case %s failed: %s", s.Name, c.ID, strings.Join(res.Failures, "; "))
		}
		report.Results = append(report.Results, res)
	}

	report.Duration = time.Since(start)
	return report
}

func (s *Suite) settings(c *Case) shared.RunSettings {
	settings := shared.RunSettings{
		ReadIntegers:  s.Defaults.ReadIntegers,
		MaxIterations: s.Defaults.MaxIterations,
	}
	if s.Defaults.Timeout != "" {
		settings.Timeout, _ = time.ParseDuration(s.Defaults.Timeout)
	}
	if c.ReadIntegers != nil {
		settings.ReadIntegers = *c.ReadIntegers
	}
	return settings
}

func (s *Suite) runCase(ctx context.Context, c *Case) Result {
	outcome := shared.Run(ctx, s.settings(c), c.Source, strings.NewReader(c.Stdin))
	res := Result{Case: c, Outcome: outcome}

	if c.Error != "" {
		if outcome.Err == nil {
			res.fail("expected %s, program succeeded", c.Error)
		} else if kind := shared.NewErrorInfo(outcome.Err).Kind; kind != c.Error {
			res.fail("expected %s, got %s: %v", c.Error, kind, outcome.Err)
		}
	} else if outcome.Err != nil {
		res.fail("unexpected error: %v", outcome.Err)
	}

	if c.Stdout != nil && outcome.Stdout != *c.Stdout {
		res.fail("stdout: expected %q, got %q", *c.Stdout, outcome.Stdout)
	}

	names := make([]string, 0, len(c.Globals))
	for name := range c.Globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		actual, ok := outcome.Globals[strings.ToLower(name)]
		if !ok {
			res.fail("global %s: not bound", name)
			continue
		}
		if !valuesEqual(c.Globals[name], actual) {
			res.fail("global %s: expected %v (%T), got %v (%T)", name, c.Globals[name], c.Globals[name], actual, actual)
		}
	}
	for _, name := range c.Absent {
		if _, ok := outcome.Globals[strings.ToLower(name)]; ok {
			res.fail("global %s: expected unbound", name)
		}
	}

	res.Passed = len(res.Failures) == 0
	return res
}

func (r *Result) fail(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// valuesEqual compares a decoded YAML or TOML value with an interpreter
// value. Integers compare numerically whatever their Go type.
func valuesEqual(expected, actual any) bool {
	if n, ok := toInt64(expected); ok {
		a, ok := actual.(int64)
		return ok && a == n
	}
	switch e := expected.(type) {
	case string:
		a, ok := actual.(string)
		return ok && a == e
	case bool:
		a, ok := actual.(bool)
		return ok && a == e
	case nil:
		return actual == nil
	default:
		return false
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}
