// Package otel exports traces to an OTLP collector. When no endpoint is
// configured the module is inert and the global tracer stays a no-op,
// so instrumented code never has to check whether tracing is on.
package otel

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"

	"github.com/parleyhq/parley/internal/core"
)

func init() {
	core.RegisterModule(&Module{})
}

// Module wires an OTLP HTTP trace exporter into the global tracer
// provider for the process lifetime.
type Module struct {
	config Config
	logger *slog.Logger

	provider *sdktrace.TracerProvider
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "observability.otel",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	if m.config.Endpoint == "" {
		m.logger.Info("no collector endpoint configured, tracing disabled")
	}
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter. It builds the exporter pipeline and
// installs it as the global tracer provider. An unreachable collector
// does not fail startup; the batch processor retries in the background.
func (m *Module) Start() error {
	if m.config.Endpoint == "" {
		return nil
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(m.config.Endpoint),
	}
	if m.config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		// Exporter construction only fails on bad options. Degrade to
		// no tracing rather than blocking the whole process.
		m.logger.Warn("creating trace exporter failed, tracing disabled", "error", err)
		return nil
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", m.config.ServiceName),
	}
	if m.config.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", m.config.Environment))
	}

	m.provider = sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter)),
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(m.config.sampleRatio()))),
	)
	otel.SetTracerProvider(m.provider)

	m.logger.Info("tracing enabled",
		"endpoint", m.config.Endpoint,
		"service", m.config.ServiceName,
		"sample_ratio", m.config.sampleRatio(),
	)
	return nil
}

// Stop implements core.Stopper. It flushes pending spans within the
// configured timeout.
func (m *Module) Stop(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	flushCtx, cancel := context.WithTimeout(ctx, m.config.parsedFlushTimeout())
	defer cancel()
	return m.provider.Shutdown(flushCtx)
}
