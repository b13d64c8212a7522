package tracing

import (
	"context"
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init initializes the Jaeger tracer and installs it globally. When tracing is
// disabled the global no-op tracer stays in place.
func Init(cfg config.TracingConfig) (opentracing.Tracer, io.Closer, error) {
	if !cfg.Enabled {
		return opentracing.GlobalTracer(), nopCloser{}, nil
	}

	sampler := &jaegercfg.SamplerConfig{
		Type:  jaeger.SamplerTypeProbabilistic,
		Param: cfg.SamplingRate,
	}
	if cfg.SamplingRate >= 1 {
		sampler = &jaegercfg.SamplerConfig{Type: jaeger.SamplerTypeConst, Param: 1}
	}

	tcfg := &jaegercfg.Configuration{
		ServiceName: cfg.ServiceName,
		Sampler:     sampler,
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans:          false,
			CollectorEndpoint: cfg.JaegerEndpoint,
		},
	}

	tracer, closer, err := tcfg.NewTracer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}

// StartSpan starts a new span with the given operation name
func StartSpan(ctx context.Context, operationName string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, operationName)
}

// FinishSpan records err, if any, and finishes the span
func FinishSpan(span opentracing.Span, err error) {
	if span == nil {
		return
	}
	LogError(span, err)
	span.Finish()
}

// LogError logs an error to the span
func LogError(span opentracing.Span, err error) {
	if span != nil && err != nil {
		span.SetTag("error", true)
		span.LogKV("error", err.Error())
	}
}

// SetTag sets a tag on the span
func SetTag(span opentracing.Span, key string, value interface{}) {
	if span != nil {
		span.SetTag(key, value)
	}
}
