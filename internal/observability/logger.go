package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the production JSON logger. service, when set, is attached to every entry.
func NewLogger(level string, service string) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	var opts []zap.Option
	if service = strings.TrimSpace(service); service != "" {
		opts = append(opts, zap.Fields(zap.String("service", service)))
	}

	logger, err := cfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		return zapcore.InfoLevel, nil
	}

	parsed, err := zapcore.ParseLevel(normalized)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return parsed, nil
}

type logScopeKey struct{}

// logScope carries the fields every log line of one trigger or request shares.
type logScope struct {
	correlationID string
	trigger       string
}

func scopeFrom(ctx context.Context) logScope {
	if ctx == nil {
		return logScope{}
	}
	scope, _ := ctx.Value(logScopeKey{}).(logScope)
	return scope
}

func withScope(ctx context.Context, scope logScope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, logScopeKey{}, scope)
}

// WithCorrelationID tags ctx with the id of the trigger message or HTTP request being handled.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	scope := scopeFrom(ctx)
	scope.correlationID = correlationID
	return withScope(ctx, scope)
}

// WithTrigger tags ctx with the trigger kind whose handler is running.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	scope := scopeFrom(ctx)
	scope.trigger = trigger
	return withScope(ctx, scope)
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	id := scopeFrom(ctx).correlationID
	return id, id != ""
}

// WithContextLogger returns logger with the correlation id and trigger kind found in ctx.
func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}

	scope := scopeFrom(ctx)
	fields := make([]zap.Field, 0, 2)
	if scope.correlationID != "" {
		fields = append(fields, zap.String("correlationId", scope.correlationID))
	}
	if scope.trigger != "" {
		fields = append(fields, zap.String("trigger", scope.trigger))
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}
