package rules

import (
	"context"
	"log/slog"
	"time"
)

// LogEvent describes one evaluation attempt.
type LogEvent struct {
	Engine   string
	Expr     string
	Scope    string
	Duration time.Duration
	Err      error
}

// Logger records evaluation events.
type Logger interface {
	LogEvaluation(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogEvaluation implements Logger.
func (f LoggerFunc) LogEvaluation(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvaluation(LogEvent) {}

// SlogLogger forwards evaluation events to a slog.Logger. Successful
// evaluations are logged at debug, failures at warn.
func SlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return LoggerFunc(func(event LogEvent) {
		level := slog.LevelDebug
		attrs := []slog.Attr{
			slog.String("engine", event.Engine),
			slog.String("expr", event.Expr),
			slog.String("scope", event.Scope),
			slog.Duration("duration", event.Duration),
		}
		if event.Err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("error", event.Err.Error()))
		}
		logger.LogAttrs(context.Background(), level, "rule evaluated", attrs...)
	})
}

// Logged wraps an evaluator so every Evaluate call is reported to logger.
func Logged(e Evaluator, logger Logger) Evaluator {
	if e == nil {
		return nil
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &loggedEvaluator{next: e, logger: logger}
}

type loggedEvaluator struct {
	next   Evaluator
	logger Logger
}

func (l *loggedEvaluator) Evaluate(ctx Context, expr string) (any, error) {
	start := time.Now()
	value, err := l.next.Evaluate(ctx, expr)
	l.logger.LogEvaluation(LogEvent{
		Engine:   EngineName(l.next),
		Expr:     expr,
		Scope:    ctx.scopeLabel(),
		Duration: time.Since(start),
		Err:      err,
	})
	return value, err
}

func (l *loggedEvaluator) Compile(expr string) (Compiled, error) {
	return l.next.Compile(expr)
}
