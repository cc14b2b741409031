// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("textflow.pipeline")
	meter  = otel.Meter("textflow.pipeline")
)

var (
	evalLatency       metric.Float64Histogram
	blocksEvaluated   metric.Int64Counter
	blocksChanged     metric.Int64Counter
	blockFailures     metric.Int64Counter
	resolutionsTotal  metric.Int64Counter
	resolutionLatency metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error
		if evalLatency, err = meter.Float64Histogram(
			"pipeline_evaluate_duration_seconds",
			metric.WithDescription("Duration of one evaluation pass"),
			metric.WithUnit("s"),
		); err != nil {
			metricsErr = err
			return
		}
		if blocksEvaluated, err = meter.Int64Counter(
			"pipeline_blocks_evaluated_total",
			metric.WithDescription("Blocks run through the transform registry"),
		); err != nil {
			metricsErr = err
			return
		}
		if blocksChanged, err = meter.Int64Counter(
			"pipeline_blocks_changed_total",
			metric.WithDescription("Blocks whose output changed"),
		); err != nil {
			metricsErr = err
			return
		}
		if blockFailures, err = meter.Int64Counter(
			"pipeline_block_failures_total",
			metric.WithDescription("Transform failures by kind"),
		); err != nil {
			metricsErr = err
			return
		}
		if resolutionsTotal, err = meter.Int64Counter(
			"pipeline_resolutions_total",
			metric.WithDescription("Async block resolutions by outcome"),
		); err != nil {
			metricsErr = err
			return
		}
		resolutionLatency, metricsErr = meter.Float64Histogram(
			"pipeline_resolution_duration_seconds",
			metric.WithDescription("Duration of async block resolutions"),
			metric.WithUnit("s"),
		)
	})
	return metricsErr
}

func startEvaluateSpan(ctx context.Context, blocks int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Evaluator.Evaluate",
		trace.WithAttributes(attribute.Int("pipeline.blocks", blocks)),
	)
}

func startResolveSpan(ctx context.Context, id string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Evaluator.Resolve",
		trace.WithAttributes(attribute.String("pipeline.block_id", id)),
	)
}

func recordEvaluateMetrics(ctx context.Context, d time.Duration, evaluated, changed int) {
	if err := initMetrics(); err != nil {
		return
	}
	evalLatency.Record(ctx, d.Seconds())
	blocksEvaluated.Add(ctx, int64(evaluated))
	blocksChanged.Add(ctx, int64(changed))
}

func recordBlockFailure(ctx context.Context, kind string) {
	if err := initMetrics(); err != nil {
		return
	}
	blockFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func recordResolution(ctx context.Context, d time.Duration, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	resolutionsTotal.Add(ctx, 1, attrs)
	resolutionLatency.Record(ctx, d.Seconds(), attrs)
}
