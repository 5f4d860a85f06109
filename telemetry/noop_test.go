package telemetry_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/AnthusAI/Tactus/telemetry"
)

func TestNoopImplementationsNeverPanic(t *testing.T) {
	ctx := context.Background()

	var logger telemetry.Logger = telemetry.NewNoopLogger()
	logger.Debug(ctx, "debug", "k", "v")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error", "err", "boom")

	var metrics telemetry.Metrics = telemetry.NewNoopMetrics()
	metrics.IncCounter("turns", 1, "agent=planner")
	metrics.RecordTimer("tool_latency", time.Millisecond, "tool=shout")
	metrics.RecordGauge("queue_depth", 0)

	var tracer telemetry.Tracer = telemetry.NewNoopTracer()
	spanCtx, span := tracer.Start(ctx, "agent_turn")
	if spanCtx == nil {
		t.Fatal("NoopTracer.Start returned a nil context")
	}
	span.AddEvent("started")
	span.SetStatus(codes.Ok, "")
	span.RecordError(nil)
	span.End()
}
