// Package otel builds the OpenTelemetry log pipeline and hands out meters
// for the composer and dispatcher instruments.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ErrNoSink is returned when OTel is enabled with neither a writer nor an
// endpoint to export to.
var ErrNoSink = errors.New("otel: enabled without a log writer or endpoint")

// Config selects the exporters. LogWriter receives JSON records, Endpoint
// (host:port) receives OTLP over HTTP. Either may be empty, not both.
type Config struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	LogWriter    io.Writer
	Endpoint     string
	Insecure     bool
}

// Provider is inert when disabled: no logger provider, no-op meters.
type Provider struct {
	enabled bool
	logs    *sdklog.LoggerProvider
}

func New(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	ctx := context.Background()
	var opts []sdklog.LoggerProviderOption

	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("otel: writer exporter: %w", err)
		}
		opts = append(opts, sdklog.WithProcessor(batch(exp, cfg.BatchTimeout)))
	}
	if cfg.Endpoint != "" {
		exp, err := otlpExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdklog.WithProcessor(batch(exp, cfg.BatchTimeout)))
	}
	if len(opts) == 0 {
		return nil, ErrNoSink
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("otel: resource: %w", err)
	}
	opts = append(opts, sdklog.WithResource(res))

	return &Provider{enabled: true, logs: sdklog.NewLoggerProvider(opts...)}, nil
}

func otlpExporter(ctx context.Context, cfg Config) (sdklog.Exporter, error) {
	opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	exp, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otel: otlp exporter: %w", err)
	}
	return exp, nil
}

// batch wraps exp in a batch processor. A zero timeout keeps the SDK default.
func batch(exp sdklog.Exporter, timeout time.Duration) sdklog.Processor {
	if timeout <= 0 {
		return sdklog.NewBatchProcessor(exp)
	}
	return sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(timeout))
}

// LoggerProvider feeds the otelslog bridge. Nil when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider { return p.logs }

// Enabled reports whether the pipeline was built.
func (p *Provider) Enabled() bool { return p.enabled }

// Meter returns the global meter when enabled and a no-op meter otherwise.
func (p *Provider) Meter(name string) metric.Meter {
	if !p.enabled {
		return noop.Meter{}
	}
	return otel.Meter(name)
}

// Flush exports pending records without stopping the pipeline.
func (p *Provider) Flush(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.ForceFlush(ctx); err != nil {
		return fmt.Errorf("otel: flush: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the exporters. The provider must not be used
// afterwards.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.Shutdown(ctx); err != nil {
		return fmt.Errorf("otel: shutdown: %w", err)
	}
	return nil
}
