package runner

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WithMetrics attaches Prometheus instrumentation; nil disables it.
func (r *Runner) WithMetrics(m *Metrics) *Runner {
	r.metrics = m
	return r
}

// WithTracer attaches an OpenTelemetry tracer for a span per node
// execution, parented to a run-level span (SPEC_FULL.md section B).
// Never required for core control flow: a nil tracer leaves spans
// uncreated.
func (r *Runner) WithTracer(t trace.Tracer) *Runner {
	r.tracer = t
	return r
}

// startRunSpan opens the run-level span that every node span is
// parented to, a no-op when no tracer is configured.
func (r *Runner) startRunSpan(ctx context.Context, threadID string) (context.Context, trace.Span) {
	if r.tracer == nil {
		return ctx, nil
	}
	ctx, span := r.tracer.Start(ctx, "agentmap.run", trace.WithAttributes(
		attribute.String("agentmap.thread_id", threadID),
	))
	return ctx, span
}

// startNodeSpan opens a child span for one node execution.
func (r *Runner) startNodeSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if r.tracer == nil {
		return ctx, nil
	}
	return r.tracer.Start(ctx, "agentmap.node."+name, trace.WithAttributes(
		attribute.String("agentmap.node_name", name),
	))
}

func endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
