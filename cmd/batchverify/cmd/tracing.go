package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "batchverify"

// setupTracing installs a global tracer provider which exports spans to the OTLP gRPC
// collector at endpoint. The returned function flushes pending spans and stops the provider.
func setupTracing(ctx context.Context, log zerolog.Logger, endpoint string, sampleRatio float64) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create otlp trace exporter: %w", err)
	}

	provider := newTracerProvider(sdktrace.WithBatcher(exporter), sampleRatio)
	otel.SetTracerProvider(provider)
	log.Info().Str("endpoint", endpoint).Float64("sample_ratio", sampleRatio).Msg("tracing enabled")

	return provider.Shutdown, nil
}

func newTracerProvider(processor sdktrace.TracerProviderOption, sampleRatio float64) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
}
