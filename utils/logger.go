package utils

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/grafana/loki-client-go/loki"
	slogloki "github.com/samber/slog-loki/v3"
)

const serviceName = "placement-pulse-api"

type ctxKey string

const slogFields ctxKey = "slog_fields"

// ContextHandler adds attributes stored with WithLogAttrs to every record
type ContextHandler struct {
	slog.Handler
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(attrsFromContext(ctx)...)
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// WithLogAttrs returns a copy of ctx carrying attrs for every log call made with it
func WithLogAttrs(parent context.Context, attrs ...slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	existing := attrsFromContext(parent)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)

	return context.WithValue(parent, slogFields, merged)
}

func attrsFromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(slogFields).([]slog.Attr); ok {
		return v
	}
	return nil
}

// NewLogger builds the application logger. Records go to Loki when lokiURL is
// set and to stdout as JSON otherwise.
func NewLogger(lokiURL, goEnv string) *slog.Logger {
	level := slog.LevelDebug
	if goEnv == "production" {
		level = slog.LevelInfo
	}

	if lokiURL == "" {
		return localLogger(level)
	}

	lokiConfig, err := loki.NewDefaultConfig(lokiURL)
	if err != nil {
		return localLogger(level)
	}
	client, err := loki.New(lokiConfig)
	if err != nil {
		return localLogger(level)
	}

	return slog.New(slogloki.Option{
		Level:  level,
		Client: client,
		AttrFromContext: []func(ctx context.Context) []slog.Attr{
			attrsFromContext,
		},
	}.NewLokiHandler()).With("service", serviceName)
}

func localLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(&ContextHandler{Handler: handler}).With("service", serviceName)
}

// NopLogger discards everything; used where no logger was injected
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
