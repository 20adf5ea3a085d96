package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"crm-functions/internal/common/config"
)

// Config selects the service name and trace export.
type Config struct {
	ServiceName    string
	Environment    string
	TracingEnabled bool
	JaegerEndpoint string
	SampleRatio    float64
}

// ConfigFrom builds an observability Config from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ServiceName:    cfg.Observability.ServiceName,
		Environment:    cfg.App.Environment,
		TracingEnabled: cfg.Observability.TracingEnabled,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		SampleRatio:    cfg.Observability.SampleRatio,
	}
}

// newTracerProvider returns nil when tracing is off.
func newTracerProvider(cfg Config) (*sdktrace.TracerProvider, error) {
	if !cfg.TracingEnabled {
		return nil, nil
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}

	if cfg.JaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}
