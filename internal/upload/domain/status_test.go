package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateForwardTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusFailed},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
	}
	for _, tc := range cases {
		decision := Evaluate(tc.from, tc.to)
		assert.True(t, decision.Allowed, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, CodeOK, decision.Code)
	}
}

func TestEvaluateSelfTransitionIsIdempotent(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		decision := Evaluate(s, s)
		assert.True(t, decision.Allowed, "%s -> %s", s, s)
		assert.Equal(t, CodeIdempotent, decision.Code)
	}
}

func TestEvaluatePendingCannotSkipProcessing(t *testing.T) {
	decision := Evaluate(StatusPending, StatusCompleted)
	assert.False(t, decision.Allowed)
	assert.Equal(t, CodeSkippedProcessing, decision.Code)
}

func TestEvaluateProcessingCannotRegress(t *testing.T) {
	decision := Evaluate(StatusProcessing, StatusPending)
	assert.False(t, decision.Allowed)
	assert.Equal(t, CodeRegression, decision.Code)
}

func TestEvaluateTerminalStatesReject(t *testing.T) {
	for _, to := range []Status{StatusPending, StatusProcessing, StatusFailed} {
		decision := Evaluate(StatusCompleted, to)
		assert.False(t, decision.Allowed, "COMPLETED -> %s", to)
		assert.Equal(t, CodeTerminal, decision.Code)
	}
	for _, to := range []Status{StatusPending, StatusProcessing, StatusCompleted} {
		decision := Evaluate(StatusFailed, to)
		assert.False(t, decision.Allowed, "FAILED -> %s", to)
		assert.Equal(t, CodeTerminal, decision.Code)
	}
}

func TestEvaluateUnknownStatusPreservesText(t *testing.T) {
	decision := Evaluate(Status("ARCHIVED"), StatusProcessing)
	assert.False(t, decision.Allowed)
	assert.Equal(t, CodeUnknownTransition, decision.Code)
	assert.Contains(t, decision.Reason, `"ARCHIVED"`)
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
