package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName identifies this process in exported logs.
const ServiceName = "flicker"

// Indirections so tests can capture console output.
var (
	osStdout = os.Stdout
	osPipe   = os.Pipe
)

// SlogManager owns the process logger. The text sink and the optional OTel
// sink share one handler chain.
type SlogManager struct {
	logger      *slog.Logger
	context     ContextProvider
	logProvider *sdklog.LoggerProvider
}

// ManagerOption configures a SlogManager.
type ManagerOption func(*SlogManager)

// WithContext injects the attributes returned by p into every record.
func WithContext(p ContextProvider) ManagerOption {
	return func(m *SlogManager) { m.context = p }
}

func NewSlogManager(opts ...ManagerOption) *SlogManager {
	var m SlogManager
	for _, o := range opts {
		o(&m)
	}
	return &m
}

// parseLevel accepts the slog level names in any case. Anything else,
// including the empty string, means info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if level == "" || lvl.UnmarshalText([]byte(level)) != nil {
		return slog.LevelInfo
	}
	return lvl
}

// utcTime renders record timestamps in UTC so logs from devices in
// different zones line up.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
	}
	return a
}

// Setup (re)builds the logger. Text records go to file, or to stdout when
// file is nil, and are also exported through provider when it is set.
// Calling Setup again replaces the previous sinks.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	m.logProvider = provider

	out := file
	if out == nil {
		out = osStdout
	}
	sinks := []slog.Handler{
		slog.NewTextHandler(out, &slog.HandlerOptions{Level: parseLevel(level), ReplaceAttr: utcTime}),
	}
	if provider != nil {
		sinks = append(sinks, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}

	var h slog.Handler = NewMultiHandler(sinks...)
	if m.context != nil {
		h = NewContextHandler(h, m.context)
	}
	m.logger = slog.New(h)
	m.logger.Debug("logger ready", "level", parseLevel(level).String(), "otel", provider != nil)
}

// Logger falls back to slog.Default until Setup has run.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// Component tags records with the emitting subsystem.
func (m *SlogManager) Component(name string) *slog.Logger {
	return m.Logger().With(slog.String("component", name))
}

// Flush pushes buffered OTel records to the exporter. It is a no-op without
// a provider.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider == nil {
		return nil
	}
	return m.logProvider.ForceFlush(ctx)
}
