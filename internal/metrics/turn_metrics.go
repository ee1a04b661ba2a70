package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("code-editor")

// TurnMetrics provides metrics collection for conversation turns.
// A nil *TurnMetrics is valid and records nothing.
type TurnMetrics struct {
	turnsStartedCounter   metric.Int64Counter
	turnsCompletedCounter metric.Int64Counter
	turnsFailedCounter    metric.Int64Counter
	turnDurationHistogram metric.Float64Histogram
	turnsActiveGauge      metric.Int64UpDownCounter
	changesAppliedCounter metric.Int64Counter
}

// NewTurnMetrics creates a new turn metrics collector
func NewTurnMetrics() (*TurnMetrics, error) {
	turnsStartedCounter, err := meter.Int64Counter(
		"code_editor.turns.started",
		metric.WithDescription("Total number of conversation turns submitted"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		return nil, err
	}

	turnsCompletedCounter, err := meter.Int64Counter(
		"code_editor.turns.completed",
		metric.WithDescription("Total number of turns that ended without an error"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		return nil, err
	}

	turnsFailedCounter, err := meter.Int64Counter(
		"code_editor.turns.failed",
		metric.WithDescription("Total number of turns that ended with a provider or apply error"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		return nil, err
	}

	turnDurationHistogram, err := meter.Float64Histogram(
		"code_editor.turn.duration",
		metric.WithDescription("Duration of a conversation turn in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	turnsActiveGauge, err := meter.Int64UpDownCounter(
		"code_editor.turns.active",
		metric.WithDescription("Number of turns currently waiting on a provider or applying changes"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		return nil, err
	}

	changesAppliedCounter, err := meter.Int64Counter(
		"code_editor.changes.applied",
		metric.WithDescription("Total number of file changes written to the file store"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	return &TurnMetrics{
		turnsStartedCounter:   turnsStartedCounter,
		turnsCompletedCounter: turnsCompletedCounter,
		turnsFailedCounter:    turnsFailedCounter,
		turnDurationHistogram: turnDurationHistogram,
		turnsActiveGauge:      turnsActiveGauge,
		changesAppliedCounter: changesAppliedCounter,
	}, nil
}

// RecordTurnStarted records a new turn for the given provider
func (tm *TurnMetrics) RecordTurnStarted(ctx context.Context, provider string) {
	if tm == nil {
		return
	}
	tm.turnsStartedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider.id", provider),
		),
	)
	tm.turnsActiveGauge.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider.id", provider),
		),
	)
}

// RecordTurnCompleted records a turn that ended with the given outcome
func (tm *TurnMetrics) RecordTurnCompleted(ctx context.Context, provider, outcome string, duration time.Duration) {
	if tm == nil {
		return
	}
	tm.turnsCompletedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider.id", provider),
			attribute.String("outcome", outcome),
		),
	)
	tm.turnDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("provider.id", provider),
			attribute.String("status", "completed"),
		),
	)
	tm.turnsActiveGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("provider.id", provider),
		),
	)
}

// RecordTurnFailed records a failed turn
func (tm *TurnMetrics) RecordTurnFailed(ctx context.Context, provider, errorType string, duration time.Duration) {
	if tm == nil {
		return
	}
	tm.turnsFailedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider.id", provider),
			attribute.String("error.type", errorType),
		),
	)
	tm.turnDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("provider.id", provider),
			attribute.String("status", "failed"),
		),
	)
	tm.turnsActiveGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("provider.id", provider),
		),
	)
}

// RecordChangesApplied records how many changes a batch wrote
func (tm *TurnMetrics) RecordChangesApplied(ctx context.Context, applied int) {
	if tm == nil || applied <= 0 {
		return
	}
	tm.changesAppliedCounter.Add(ctx, int64(applied))
}
