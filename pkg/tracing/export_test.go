package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/psantana5/buildtime-profiler/pkg/logging"
)

func TestExportSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	p := NewProvider(tp, "btprof-test")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []SpanRecord{
		{Name: "session", Start: base, End: base.Add(time.Second), Parent: -1},
		{Name: "module core", Start: base.Add(10 * time.Millisecond), End: base.Add(500 * time.Millisecond), Parent: 0,
			Attributes: map[string]string{"module": "g:core:1"}},
		{Name: "compile", Start: base.Add(20 * time.Millisecond), End: base.Add(140 * time.Millisecond), Parent: 1, Failed: true},
	}
	require.NoError(t, p.ExportSpans(context.Background(), records))

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	byName := make(map[string]tracetest.SpanStub)
	for _, s := range spans {
		byName[s.Name] = s
	}
	session, module, compile := byName["session"], byName["module core"], byName["compile"]

	assert.False(t, session.Parent.IsValid())
	assert.Equal(t, session.SpanContext.SpanID(), module.Parent.SpanID())
	assert.Equal(t, module.SpanContext.SpanID(), compile.Parent.SpanID())
	assert.Equal(t, session.SpanContext.TraceID(), compile.SpanContext.TraceID())
	assert.Equal(t, 120*time.Millisecond, compile.EndTime.Sub(compile.StartTime))
	assert.Equal(t, "Error", compile.Status.Code.String())
}

func TestExportSpansRejectsForwardParent(t *testing.T) {
	p := NewProvider(sdktrace.NewTracerProvider(), "btprof-test")
	err := p.ExportSpans(context.Background(), []SpanRecord{{Name: "orphan", Parent: 0}})
	assert.Error(t, err)
}

func TestInitTracerDisabled(t *testing.T) {
	p, err := InitTracer(context.Background(), Config{ServiceName: "btprof"}, logging.Nop())
	require.NoError(t, err)
	require.NotNil(t, p.Tracer())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestExportSpansStartsNewTrace(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	p := NewProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)), "btprof-test")

	ctx, caller := p.StartSpan(context.Background(), "publish.traces")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, p.ExportSpans(ctx, []SpanRecord{{Name: "session", Start: base, End: base.Add(time.Second), Parent: -1}}))
	SetError(ctx, errors.New("late"))
	caller.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	session, outer := spans[0], spans[1]
	assert.Equal(t, "session", session.Name)
	assert.False(t, session.Parent.IsValid())
	assert.NotEqual(t, outer.SpanContext.TraceID(), session.SpanContext.TraceID())
	assert.Equal(t, codes.Error, outer.Status.Code)
}
