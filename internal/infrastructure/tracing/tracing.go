// Package tracing installs the process-wide OpenTelemetry tracer provider.
// Packages start spans through otel.Tracer; this package only owns setup.
package tracing

import (
	"context"
	"fmt"

	"github.com/hilthontt/interchange/internal/infrastructure/configs"
	"github.com/hilthontt/interchange/internal/infrastructure/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

type ShutdownFunc = func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup wires traces to the OTLP/HTTP collector named in cfg. Disabled
// tracing leaves the global no-op provider in place. Exporter errors, which
// otel reports asynchronously, go to logger.
func Setup(ctx context.Context, cfg configs.TracingConfig, logger *zap.SugaredLogger) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter for %s: %w", cfg.Endpoint, err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)

	errLogger := logging.With(logger, logging.Internal, logging.Startup)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		errLogger.Warnw("otel error", "error", err)
	}))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	errLogger.Infow("tracing enabled", "endpoint", cfg.Endpoint, "sampleRatio", cfg.SampleRatio)
	return tp.Shutdown, nil
}
