package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger writes "HH:MM:SS.ms"-stamped lines to w at level and above.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs how long a step took.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs the formatted message with the elapsed time, e.g.
// "Ran 300 layout iterations (412ms)".
func (p *progress) done(format string, args ...any) {
	p.logger.Info(fmt.Sprintf(format, args...), "elapsed", time.Since(p.start).Round(time.Millisecond))
}

type ctxKey struct{}

// withLogger attaches l to ctx, prefixed with the running command's name
// when one is given.
func withLogger(ctx context.Context, l *log.Logger, command ...string) context.Context {
	if len(command) > 0 && command[0] != "" && command[0] != appName {
		l = l.WithPrefix(command[0])
	}
	return context.WithValue(ctx, ctxKey{}, l)
}

// loggerFromContext returns the attached logger, or one that discards.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*log.Logger); ok {
		return l
	}
	return log.NewWithOptions(io.Discard, log.Options{})
}
