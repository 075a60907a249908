// Package debug sets up the console logger used by the command line tools.
package debug

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// NewLogger writes human readable lines to w. Every event carries the
// package, file and line that logged it.
func NewLogger(w io.Writer, level zerolog.Level, colorize bool) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    !colorize,
		TimeFormat: "15:04:05.000",
	}
	return zerolog.New(out).
		Level(level).
		Hook(CallerHook{WithColor: colorize}).
		With().
		Timestamp().
		Logger()
}

// CallerHook adds a "caller" field naming where the event was logged.
type CallerHook struct {
	WithColor bool
}

// callerSkip reaches past zerolog's own frames to the logging call site.
const callerSkip = 3

func (c CallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	pc, file, line, ok := runtime.Caller(callerSkip)
	if !ok {
		return
	}
	pkg, _ := SplitFuncName(runtime.FuncForPC(pc).Name())
	e.Str("caller", FormatCaller(pkg, file, line, c.WithColor))
}

// SplitFuncName splits a runtime function name such as
// "github.com/a/b.(*T).M" into its package path and function part.
func SplitFuncName(name string) (pkg, function string) {
	lastSlash := max(strings.LastIndexByte(name, '/'), 0)
	firstDot := strings.IndexByte(name[lastSlash:], '.')
	if firstDot < 0 {
		return name, ""
	}
	firstDot += lastSlash
	return name[:firstDot], name[firstDot+1:]
}

func FormatCaller(pkg, path string, number int, colorize bool) string {
	p := FileNameOfPath(path)
	if colorize {
		p = color.New(color.Bold).Sprint(p)
		num := color.New(color.FgHiRed, color.Bold).Sprintf("%d", number)
		sep := color.New(color.Faint).Sprint(":")
		return fmt.Sprintf("%s%s%s%s%s", pkg, sep, p, sep, num)
	}
	return fmt.Sprintf("%s:%s:%d", pkg, p, number)
}

func FileNameOfPath(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Since formats the time elapsed since start for a duration field.
func Since(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}
