package hologram

import (
	"fmt"
	"io"
	"os"
)

// LogLevel controls how much an optimizer reports while it runs.
type LogLevel int

const (
	// LogNoop produces no output.
	LogNoop LogLevel = -1
	// LogLast prints one summary line when the run ends.
	LogLast LogLevel = 0
	// LogTrace prints the objective at every iteration (or sweep).
	LogTrace LogLevel = 99
)

// Logger handles optimizer progress output.
// Msg must be safe for use by the goroutine running the optimizer.
type Logger struct {
	Level LogLevel
	Msg   io.Writer
}

func (l *Logger) enable(level LogLevel) bool {
	return l != nil && l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	w := l.Msg
	if w == nil {
		w = os.Stdout
	}
	_, _ = fmt.Fprintf(w, format, a...)
}

// trace reports one iteration of a run.
func (l *Logger) trace(algo string, iter int, objective float64) {
	if l.enable(LogTrace) {
		l.log("%s: iter %4d  objective % .9e\n", algo, iter, objective)
	}
}

// last reports the final state of a run.
func (l *Logger) last(r Result) {
	if l.enable(LogLast) {
		l.log("%s: %s after %d iterations, objective % .9e\n", r.Algorithm, r.Status, r.Iterations, r.Objective)
	}
}
