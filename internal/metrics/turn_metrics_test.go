package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnMetrics_Creation(t *testing.T) {
	t.Run("successfully create turn metrics", func(t *testing.T) {
		metrics, err := NewTurnMetrics()
		require.NoError(t, err)
		assert.NotNil(t, metrics)
		assert.NotNil(t, metrics.turnsStartedCounter)
		assert.NotNil(t, metrics.turnsCompletedCounter)
		assert.NotNil(t, metrics.turnsFailedCounter)
		assert.NotNil(t, metrics.turnDurationHistogram)
		assert.NotNil(t, metrics.turnsActiveGauge)
		assert.NotNil(t, metrics.changesAppliedCounter)
	})
}

func TestTurnMetrics_Lifecycle(t *testing.T) {
	metrics, err := NewTurnMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("record completed turn", func(t *testing.T) {
		assert.NotPanics(t, func() {
			metrics.RecordTurnStarted(ctx, "openai")
			metrics.RecordChangesApplied(ctx, 3)
			metrics.RecordTurnCompleted(ctx, "openai", "applied", 2*time.Second)
		})
	})

	t.Run("record failed turn", func(t *testing.T) {
		assert.NotPanics(t, func() {
			metrics.RecordTurnStarted(ctx, "anthropic")
			metrics.RecordTurnFailed(ctx, "anthropic", "provider_error", 500*time.Millisecond)
		})
	})

	t.Run("record zero changes", func(t *testing.T) {
		assert.NotPanics(t, func() {
			metrics.RecordChangesApplied(ctx, 0)
		})
	})
}

func TestTurnMetrics_NilReceiver(t *testing.T) {
	var metrics *TurnMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		metrics.RecordTurnStarted(ctx, "gemini")
		metrics.RecordChangesApplied(ctx, 1)
		metrics.RecordTurnCompleted(ctx, "gemini", "no_changes", time.Second)
		metrics.RecordTurnFailed(ctx, "gemini", "timeout", time.Second)
	})
}
