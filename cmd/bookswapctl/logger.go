package main

import (
	"context"
	"io"
	"log/slog"

	glog "github.com/goliatone/go-logger/glog"
)

// cliLogger satisfies glog.Logger on top of log/slog's text handler.
type cliLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func newCLILogger(w io.Writer, verbose bool) glog.Logger {
	if !verbose {
		return glog.Nop()
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &cliLogger{logger: slog.New(handler), ctx: context.Background()}
}

func (l *cliLogger) Trace(msg string, args ...any) { l.logger.DebugContext(l.ctx, msg, args...) }
func (l *cliLogger) Debug(msg string, args ...any) { l.logger.DebugContext(l.ctx, msg, args...) }
func (l *cliLogger) Info(msg string, args ...any)  { l.logger.InfoContext(l.ctx, msg, args...) }
func (l *cliLogger) Warn(msg string, args ...any)  { l.logger.WarnContext(l.ctx, msg, args...) }
func (l *cliLogger) Error(msg string, args ...any) { l.logger.ErrorContext(l.ctx, msg, args...) }

// Fatal logs at error level tagged fatal=true and returns; the command's RunE
// error decides the exit code.
func (l *cliLogger) Fatal(msg string, args ...any) {
	l.logger.With("fatal", true).ErrorContext(l.ctx, msg, args...)
}

func (l *cliLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	return &cliLogger{logger: l.logger, ctx: ctx}
}

var _ glog.Logger = (*cliLogger)(nil)
