// Package telemetry builds the daemon's logger and tracer provider. The
// logger fans a single log/slog.Logger out to two sinks: a zap-backed
// handler doing the actual console/file logging (matching every other
// package in this module, which all take a *slog.Logger constructed
// here), and, when a LoggerProvider is passed, an OpenTelemetry log
// bridge so a future collector can pick up the same records without a
// second instrumentation pass. The
// tracer provider defaults to a no-op exporter: spans are created (see
// internal/cli/dispatcher's per-command span) but go nowhere until an
// operator wires a real processor in, matching this module's "no
// metrics/tracing backend required to run" posture.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process-wide slog.Logger: a zap core at the
// requested level, fanned out to an OTel log bridge when lp is non-nil
// so records are available to tracing/log correlation without a second
// call site. With a nil lp only the zap core is used. serviceName tags
// every OTel-bridged record with its resource identity.
func NewLogger(levelName, serviceName string, lp *sdklog.LoggerProvider) (*slog.Logger, error) {
	level := zapLevel(levelName)

	zcfg := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zl, err := zcfg.Build()
	if err != nil {
		return nil, err
	}

	handlers := []slog.Handler{&zapHandler{core: zl.Core(), attrs: nil}}
	if lp != nil {
		handlers = append(handlers, otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(lp)))
	}
	return slog.New(newMultiHandler(handlers...)), nil
}

func zapLevel(name string) zapcore.Level {
	switch name {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewLoggerProvider returns a log.LoggerProvider with zero processors
// attached: every emitted record is dropped. This keeps the OTel log
// bridge wired into NewLogger without requiring an exporter dependency
// this module doesn't otherwise need; an operator who wants records to
// leave the process attaches a processor via sdklog.WithProcessor at
// this single call site.
func NewLoggerProvider() *sdklog.LoggerProvider {
	return sdklog.NewLoggerProvider()
}

// NewTracerProvider returns a trace.TracerProvider identifying this
// process as serviceName. Like NewLoggerProvider, it starts with no
// span processor attached — spans are created and discarded until one
// is appended.
func NewTracerProvider(serviceName string) (trace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(sdktrace.WithResource(res)), nil
}

// zapHandler implements slog.Handler over a zapcore.Core directly,
// avoiding a dependency on zap's own (experimental) slog bridge module.
type zapHandler struct {
	core  zapcore.Core
	attrs []zapcore.Field
}

func (h *zapHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.core.Enabled(slogToZapLevel(level))
}

func (h *zapHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]zapcore.Field, 0, r.NumAttrs()+len(h.attrs))
	fields = append(fields, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, zap.Any(a.Key, a.Value.Any()))
		return true
	})
	ce := h.core.Check(zapcore.Entry{
		Level:   slogToZapLevel(r.Level),
		Time:    r.Time,
		Message: r.Message,
	}, nil)
	if ce == nil {
		return nil
	}
	ce.Write(fields...)
	return nil
}

func (h *zapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make([]zapcore.Field, 0, len(attrs))
	for _, a := range attrs {
		fields = append(fields, zap.Any(a.Key, a.Value.Any()))
	}
	return &zapHandler{core: h.core, attrs: append(append([]zapcore.Field{}, h.attrs...), fields...)}
}

func (h *zapHandler) WithGroup(name string) slog.Handler {
	return &zapHandler{core: h.core.With([]zapcore.Field{zap.Namespace(name)}), attrs: h.attrs}
}

func slogToZapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// multiHandler fans out one slog.Record to every sub-handler in turn,
// so a caller gets both console output and the OTel log bridge from a
// single *slog.Logger without either sink knowing about the other.
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) *multiHandler {
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}
