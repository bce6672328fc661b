package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Skryldev/sql-connector/db"
)

func TestStatementKind(t *testing.T) {
	cases := map[string]string{
		"SELECT 1":                    "select",
		"  INSERT INTO x VALUES (1)":  "insert",
		"update x set a = 1":          "update",
		"DELETE FROM x":               "delete",
		"WITH t AS (SELECT 1) SELECT": "other",
		"":                            "other",
	}
	for query, want := range cases {
		assert.Equal(t, want, StatementKind(query), query)
	}
}

func TestQueryMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewQueryMetrics(reg)

	m.RecordQuery("SELECT 1", 2*time.Millisecond, true)
	m.RecordQuery("SELECT 2", time.Millisecond, false)
	m.RecordQuery("INSERT INTO x VALUES (1)", time.Millisecond, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.total.WithLabelValues("select", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.total.WithLabelValues("select", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.total.WithLabelValues("insert", "success")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestOperationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOperationMetrics(reg)

	m.ObserveOperation("CreateUser", time.Millisecond, nil)
	m.ObserveOperation("CreateUser", time.Millisecond, errors.New("boom"))
	m.ObserveOperation("IsUserExists", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.total.WithLabelValues("CreateUser", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.total.WithLabelValues("CreateUser", "error")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.total))
}

func TestNewQueryMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewQueryMetrics(reg)
	assert.Panics(t, func() { NewQueryMetrics(reg) })
}

func TestQueryTracer_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := NewQueryTracer(tp.Tracer("test"), "sqlite")

	start := time.Now().Add(-time.Second)
	ctx := tracer.StartSpan(context.Background(), "SELECT 1", start)
	tracer.EndSpan(ctx, nil)

	ctx = tracer.StartSpan(context.Background(), "DELETE FROM x", time.Now())
	tracer.EndSpan(ctx, errors.New("locked"))

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "db.select", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.WithinDuration(t, start, spans[0].StartTime(), time.Millisecond)
	assert.Contains(t, spans[0].Attributes(), attribute.String("db.system", "sqlite"))
	assert.Contains(t, spans[0].Attributes(), attribute.String("db.statement", "SELECT 1"))

	assert.Equal(t, "db.delete", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Len(t, spans[1].Events(), 1)
}

func TestHooksEndToEnd(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewQueryMetrics(reg)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	database, err := db.Open(db.Config{
		DSN:          ":memory:",
		DriverName:   "sqlite3",
		MaxOpenConns: 1,
		Hooks: []db.Hook{
			db.NewMetricsHook(metrics),
			db.NewTracingHook(NewQueryTracer(tp.Tracer("test"), "sqlite")),
		},
	})
	require.NoError(t, err)
	defer database.Close()

	ctx := context.Background()
	_, err = database.Exec(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	_, err = database.Exec(ctx, "INSERT INTO t (id) VALUES (1)")
	require.NoError(t, err)
	_, err = database.Exec(ctx, "INSERT INTO t (id) VALUES (1)")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.total.WithLabelValues("insert", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.total.WithLabelValues("insert", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.total.WithLabelValues("other", "success")))
	assert.Len(t, sr.Ended(), 3)
}

func TestNewWriterTracerProvider(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewWriterTracerProvider(&buf, "sql-connector")
	require.NoError(t, err)

	tracer := NewQueryTracer(tp.Tracer("test"), "postgresql")
	tracer.EndSpan(tracer.StartSpan(context.Background(), "UPDATE x SET a = 1", time.Now()), nil)
	require.NoError(t, tp.Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"Name": "db.update"`)
	assert.Contains(t, out, "sql-connector")
}
