package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config selects the identity and sampling of the process-wide tracer
// provider.
type Config struct {
	// ServiceName names the process in exported spans. Empty falls back to
	// "veles".
	ServiceName string

	// ServiceVersion is attached as the service.version resource attribute
	// when set.
	ServiceVersion string

	// SampleRatio is the parent-based head sampling ratio in [0, 1]. Values
	// outside the range clamp; zero and below mean sample everything.
	SampleRatio float64
}

var (
	setupOnce sync.Once
	setupErr  error

	providerMu sync.RWMutex
	provider   *sdktrace.TracerProvider
)

// Init builds and installs the global tracer provider. Subsequent calls are
// no-ops and return the first result.
func Init(cfg Config) error {
	setupOnce.Do(func() {
		name := cfg.ServiceName
		if name == "" {
			name = "veles"
		}

		attrs := []attribute.KeyValue{semconv.ServiceName(name)}
		if cfg.ServiceVersion != "" {
			attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
		}
		res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
		if err != nil {
			setupErr = err
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(
				sdktrace.TraceIDRatioBased(sampleRatio(cfg.SampleRatio)),
			)),
			sdktrace.WithResource(res),
		)

		providerMu.Lock()
		provider = tp
		providerMu.Unlock()

		otel.SetTracerProvider(tp)
	})

	return setupErr
}

func sampleRatio(r float64) float64 {
	if r <= 0 || r > 1 {
		return 1
	}
	return r
}

// Shutdown flushes and stops the installed tracer provider. A no-op when
// Init never ran.
func Shutdown(ctx context.Context) error {
	providerMu.RLock()
	tp := provider
	providerMu.RUnlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan opens a span on the named tracer and mirrors its trace id into
// the runtime trace context when none is set yet, so log fields and exported
// spans share one id.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		sc := span.SpanContext()
		if sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}
