package shared

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/antibyte/minipl/pkg/configuration"
	"github.com/antibyte/minipl/pkg/minipl"
)

// ErrorInfo is the JSON form of a failed run.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// NewErrorInfo converts err; *minipl.Error keeps its kind and position.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	var perr *minipl.Error
	if errors.As(err, &perr) {
		return &ErrorInfo{
			Kind:    perr.Kind.String(),
			Message: perr.Error(),
			Line:    perr.Pos.Line,
			Column:  perr.Pos.Column,
		}
	}
	return &ErrorInfo{Kind: minipl.RuntimeError.String(), Message: err.Error()}
}

// RunSettings are the [Interpreter] options shared by the CLI, the HTTP
// API and terminal sessions.
type RunSettings struct {
	ReadIntegers   bool
	MaxIterations  int64
	Timeout        time.Duration
	MaxSourceBytes int
}

// LoadRunSettings reads the [Interpreter] section.
func LoadRunSettings() RunSettings {
	return RunSettings{
		ReadIntegers:   configuration.GetBool("Interpreter", "read_integers", false),
		MaxIterations:  int64(configuration.GetInt("Interpreter", "max_loop_iterations", 0)),
		Timeout:        configuration.GetDuration("Interpreter", "run_timeout", 0),
		MaxSourceBytes: configuration.GetInt("Interpreter", "max_source_kb", 64) * 1024,
	}
}

// ErrSourceTooLarge is returned for programs above max_source_kb.
var ErrSourceTooLarge = errors.New("program source too large")

// CheckSource rejects programs larger than the configured limit.
func (s RunSettings) CheckSource(source string) error {
	if s.MaxSourceBytes > 0 && len(source) > s.MaxSourceBytes {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrSourceTooLarge, len(source), s.MaxSourceBytes)
	}
	return nil
}

// Options converts the settings into interpreter options.
func (s RunSettings) Options() []minipl.Option {
	return []minipl.Option{
		minipl.WithReadIntegers(s.ReadIntegers),
		minipl.WithMaxIterations(s.MaxIterations),
	}
}

// Outcome is everything a finished run produced.
type Outcome struct {
	Stdout   string
	Result   minipl.Value
	Globals  map[string]any
	Err      error
	Duration time.Duration
}

// Run executes source against stdin, capturing the output. The run stops
// when ctx is done or the configured timeout passes. Extra options are
// applied after the settings.
func Run(ctx context.Context, settings RunSettings, source string, stdin io.Reader, extra ...minipl.Option) *Outcome {
	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}
	if stdin == nil {
		stdin = strings.NewReader("")
	}

	var out bytes.Buffer
	opts := append(settings.Options(),
		minipl.WithContext(ctx),
		minipl.WithInput(stdin),
		minipl.WithOutput(&out),
	)
	opts = append(opts, extra...)

	start := time.Now()
	interp := minipl.New(source, opts...)
	result, err := interp.Interpret()

	return &Outcome{
		Stdout:   out.String(),
		Result:   result,
		Globals:  GlobalsToMap(interp.Globals()),
		Err:      err,
		Duration: time.Since(start),
	}
}

// GlobalsToMap converts interpreter values to plain Go values.
func GlobalsToMap(globals map[string]minipl.Value) map[string]any {
	out := make(map[string]any, len(globals))
	for name, v := range globals {
		out[name] = v.Interface()
	}
	return out
}
