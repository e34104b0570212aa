package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanRecord is a span that already happened. Parent is the index of the
// parent record, or -1 for a root. Parents must precede their children.
type SpanRecord struct {
	Name       string
	Start      time.Time
	End        time.Time
	Parent     int
	Failed     bool
	Attributes map[string]string
}

// ExportSpans replays recorded spans with their original timestamps. Root
// records start a new trace even when ctx carries a span.
func (p *Provider) ExportSpans(ctx context.Context, records []SpanRecord) error {
	contexts := make([]context.Context, len(records))
	for i, rec := range records {
		parent := ctx
		if rec.Parent >= 0 {
			if rec.Parent >= i {
				return fmt.Errorf("span %q: parent %d does not precede it", rec.Name, rec.Parent)
			}
			parent = contexts[rec.Parent]
		}

		attrs := make([]attribute.KeyValue, 0, len(rec.Attributes))
		for k, v := range rec.Attributes {
			attrs = append(attrs, attribute.String(k, v))
		}

		opts := []trace.SpanStartOption{
			trace.WithTimestamp(rec.Start),
			trace.WithAttributes(attrs...),
		}
		if rec.Parent < 0 {
			// the build is its own trace, never a child of the caller's span
			opts = append(opts, trace.WithNewRoot())
		}
		spanCtx, span := p.tracer.Start(parent, rec.Name, opts...)
		if rec.Failed {
			span.SetStatus(codes.Error, "failed")
		}
		span.End(trace.WithTimestamp(rec.End))
		contexts[i] = spanCtx
	}
	return nil
}
