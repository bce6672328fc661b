package observability

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Skryldev/sql-connector/db"
)

// QueryTracer turns statements into client spans. Plug it in with
// db.NewTracingHook.
type QueryTracer struct {
	tracer trace.Tracer
	system string
}

// NewQueryTracer creates spans with tracer. system is the db.system
// attribute, e.g. "postgresql".
func NewQueryTracer(tracer trace.Tracer, system string) *QueryTracer {
	return &QueryTracer{tracer: tracer, system: system}
}

// StartSpan implements db.Tracer.
func (t *QueryTracer) StartSpan(ctx context.Context, query string, start time.Time) context.Context {
	ctx, _ = t.tracer.Start(ctx, "db."+StatementKind(query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(start),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.statement", query),
		),
	)
	return ctx
}

// EndSpan implements db.Tracer.
func (t *QueryTracer) EndSpan(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NewWriterTracerProvider exports spans as JSON to w. The CLI uses it for
// --trace.
func NewWriterTracerProvider(w io.Writer, serviceName string) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSyncer(exporter),
	), nil
}

var _ db.Tracer = (*QueryTracer)(nil)
