// Package telemetry configures OpenTelemetry trace and metric export over OTLP.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staff-portal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

// ShutdownFunc flushes and stops the exporters.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Enabled reports whether any OTLP endpoint is configured.
func Enabled(cfg config.TelemetryConfig) bool {
	return cfg.OTLPEndpoint != "" || cfg.OTLPTracesEndpoint != "" || cfg.OTLPMetricsEndpoint != ""
}

// Init installs the global propagator and, when an endpoint is configured,
// tracer and meter providers exporting over OTLP.
func Init(ctx context.Context, appEnv string, cfg config.TelemetryConfig, logger *zap.Logger) (ShutdownFunc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !Enabled(cfg) {
		logger.Info("OpenTelemetry export disabled: no OTLP endpoint configured")
		return noopShutdown, nil
	}

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("deployment.environment", appEnv),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	traceEndpoint, metricEndpoint := endpoints(cfg)

	var traceExporter trace.SpanExporter
	var metricExporter metric.Exporter
	switch cfg.OTLPProtocol {
	case "http/protobuf", "http":
		traceExporter, metricExporter, err = httpExporters(ctx, cfg, traceEndpoint, metricEndpoint)
	default:
		traceExporter, metricExporter, err = grpcExporters(ctx, cfg, traceEndpoint, metricEndpoint)
	}
	if err != nil {
		return nil, err
	}

	traceProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
	)
	metricProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(
			metricExporter,
			metric.WithInterval(cfg.MetricExportInterval),
		)),
	)

	otel.SetTracerProvider(traceProvider)
	otel.SetMeterProvider(metricProvider)

	logger.Info("OpenTelemetry export enabled",
		zap.String("protocol", cfg.OTLPProtocol),
		zap.String("traces_endpoint", traceEndpoint),
		zap.String("metrics_endpoint", metricEndpoint),
	)

	return func(shutdownCtx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		defer cancel()
		return errors.Join(
			traceProvider.Shutdown(shutdownCtx),
			metricProvider.Shutdown(shutdownCtx),
		)
	}, nil
}

// endpoints resolves the per-signal endpoints, falling back to the shared one.
func endpoints(cfg config.TelemetryConfig) (traces, metrics string) {
	traces, metrics = cfg.OTLPEndpoint, cfg.OTLPEndpoint
	if cfg.OTLPTracesEndpoint != "" {
		traces = cfg.OTLPTracesEndpoint
	}
	if cfg.OTLPMetricsEndpoint != "" {
		metrics = cfg.OTLPMetricsEndpoint
	}
	return traces, metrics
}

func httpExporters(ctx context.Context, cfg config.TelemetryConfig, traceEndpoint, metricEndpoint string) (trace.SpanExporter, metric.Exporter, error) {
	traceOptions := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(traceEndpoint),
		otlptracehttp.WithHeaders(cfg.OTLPHeaders),
		otlptracehttp.WithTimeout(cfg.ExportTimeout),
	}
	metricOptions := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(metricEndpoint),
		otlpmetrichttp.WithHeaders(cfg.OTLPHeaders),
		otlpmetrichttp.WithTimeout(cfg.ExportTimeout),
	}
	if cfg.OTLPInsecure {
		traceOptions = append(traceOptions, otlptracehttp.WithInsecure())
		metricOptions = append(metricOptions, otlpmetrichttp.WithInsecure())
	}

	traceExporter, err := otlptracehttp.New(ctx, traceOptions...)
	if err != nil {
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}
	metricExporter, err := otlpmetrichttp.New(ctx, metricOptions...)
	if err != nil {
		return nil, nil, fmt.Errorf("create metric exporter: %w", err)
	}
	return traceExporter, metricExporter, nil
}

func grpcExporters(ctx context.Context, cfg config.TelemetryConfig, traceEndpoint, metricEndpoint string) (trace.SpanExporter, metric.Exporter, error) {
	traceOptions := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(traceEndpoint),
		otlptracegrpc.WithHeaders(cfg.OTLPHeaders),
		otlptracegrpc.WithTimeout(cfg.ExportTimeout),
	}
	metricOptions := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(metricEndpoint),
		otlpmetricgrpc.WithHeaders(cfg.OTLPHeaders),
		otlpmetricgrpc.WithTimeout(cfg.ExportTimeout),
	}
	if cfg.OTLPInsecure {
		traceOptions = append(traceOptions, otlptracegrpc.WithInsecure())
		metricOptions = append(metricOptions, otlpmetricgrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOptions...)
	if err != nil {
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx, metricOptions...)
	if err != nil {
		return nil, nil, fmt.Errorf("create metric exporter: %w", err)
	}
	return traceExporter, metricExporter, nil
}
