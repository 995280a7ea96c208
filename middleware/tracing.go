package middleware

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingHooks opens one span per node execution and one span per workflow
// execution, grounded on the teacher's internal/infrastructure/monitoring
// trace.go span-per-node approach but re-expressed as two plain Hook
// functions instead of ExecutionObserver methods.
type TracingHooks struct {
	tracer trace.Tracer

	mu         sync.Mutex
	execSpans  map[string]trace.Span
	nodeSpans  map[string]trace.Span
	nodeSpanCx map[string]context.Context
}

// NewTracingHooks builds hooks against the named tracer from the global
// otel TracerProvider (set by the host via otel.SetTracerProvider).
func NewTracingHooks(tracerName string) *TracingHooks {
	return &TracingHooks{
		tracer:     otel.Tracer(tracerName),
		execSpans:  map[string]trace.Span{},
		nodeSpans:  map[string]trace.Span{},
		nodeSpanCx: map[string]context.Context{},
	}
}

// ExecutionHook returns the Hook managing one span per WorkflowExecution,
// started at execution_started and ended at the terminal event.
func (t *TracingHooks) ExecutionHook() Hook {
	return func(ctx context.Context, ev Event) {
		t.mu.Lock()
		defer t.mu.Unlock()
		switch ev.Kind {
		case EventExecutionStarted:
			_, span := t.tracer.Start(ctx, "workflow_execution",
				trace.WithAttributes(
					attribute.String("workflow_id", ev.WorkflowID),
					attribute.String("execution_id", ev.ExecutionID),
				))
			t.execSpans[ev.ExecutionID] = span
		case EventExecutionCompleted, EventExecutionSuspended:
			if span, ok := t.execSpans[ev.ExecutionID]; ok {
				span.SetStatus(codes.Ok, "")
				span.End()
				delete(t.execSpans, ev.ExecutionID)
			}
		case EventExecutionFailed:
			if span, ok := t.execSpans[ev.ExecutionID]; ok {
				span.SetStatus(codes.Error, ev.ErrorMessage)
				span.End()
				delete(t.execSpans, ev.ExecutionID)
			}
		}
	}
}

// NodeHook returns the Hook managing one span per node run, parented to the
// execution span when one is tracked.
func (t *TracingHooks) NodeHook() Hook {
	return func(ctx context.Context, ev Event) {
		t.mu.Lock()
		defer t.mu.Unlock()
		key := ev.ExecutionID + "/" + ev.NodeKey
		switch ev.Kind {
		case EventNodeStarting:
			parent := ctx
			if execSpan, ok := t.execSpans[ev.ExecutionID]; ok {
				parent = trace.ContextWithSpan(ctx, execSpan)
			}
			spanCtx, span := t.tracer.Start(parent, "node:"+ev.NodeType,
				trace.WithAttributes(
					attribute.String("node_key", ev.NodeKey),
					attribute.String("node_type", ev.NodeType),
				))
			t.nodeSpans[key] = span
			t.nodeSpanCx[key] = spanCtx
		case EventNodeCompleted:
			if span, ok := t.nodeSpans[key]; ok {
				span.SetAttributes(attribute.String("output_port", ev.OutputPort))
				span.SetStatus(codes.Ok, "")
				span.End()
				delete(t.nodeSpans, key)
				delete(t.nodeSpanCx, key)
			}
		case EventNodeFailed:
			if span, ok := t.nodeSpans[key]; ok {
				span.SetStatus(codes.Error, ev.ErrorMessage)
				span.End()
				delete(t.nodeSpans, key)
				delete(t.nodeSpanCx, key)
			}
		case EventNodeSuspended:
			if span, ok := t.nodeSpans[key]; ok {
				span.SetAttributes(attribute.Bool("suspended", true))
				span.End()
				delete(t.nodeSpans, key)
				delete(t.nodeSpanCx, key)
			}
		}
	}
}
