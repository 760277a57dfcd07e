package minipl

import (
	"context"
	"io"
)

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithInput sets the reader consumed by read statements.
func WithInput(r io.Reader) Option {
	return func(i *Interpreter) {
		if r != nil {
			i.input = r
		}
	}
}

// WithOutput sets the writer print statements write to.
func WithOutput(w io.Writer) Option {
	return func(i *Interpreter) {
		if w != nil {
			i.output = w
		}
	}
}

// WithContext makes the run stop with ErrCancelled once ctx is done.
// The context is checked before every statement and loop iteration.
func WithContext(ctx context.Context) Option {
	return func(i *Interpreter) {
		if ctx != nil {
			i.ctx = ctx
		}
	}
}

// WithReadIntegers stores the parsed number when reading into an int
// variable instead of the raw input text.
func WithReadIntegers(enabled bool) Option {
	return func(i *Interpreter) {
		i.readIntegers = enabled
	}
}

// WithMaxIterations caps the total number of loop iterations of a run.
// Zero or a negative value means no limit.
func WithMaxIterations(n int64) Option {
	return func(i *Interpreter) {
		i.maxIterations = n
	}
}
