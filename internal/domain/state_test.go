package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_WithDoesNotMutateOriginal(t *testing.T) {
	original := NewState()
	withClaims := With(original, KeyClaims, []Claim{{PharmacyID: "PH001"}})

	_, ok := Get(original, KeyClaims)
	assert.False(t, ok, "original state must not see the new value")

	claims, ok := Get(withClaims, KeyClaims)
	require.True(t, ok)
	assert.Len(t, claims, 1)
}

func TestState_GetReturnsDeepCopy(t *testing.T) {
	state := With(NewState(), KeyFindings, map[string][]Finding{
		"coverage": {{EntityID: "PH001", Score: 0.9}},
	})

	findings, ok := Get(state, KeyFindings)
	require.True(t, ok)

	// Mutating the returned copy must not leak back into the state.
	findings["coverage"][0].Score = 0.1
	findings["rogue"] = []Finding{}

	again, ok := Get(state, KeyFindings)
	require.True(t, ok)
	assert.Equal(t, 0.9, again["coverage"][0].Score)
	assert.NotContains(t, again, "rogue")
}

func TestState_RunContextRoundTrip(t *testing.T) {
	started := time.Now()
	state := NewState().WithRunContext(RunContext{RunID: "abc123", StartedAt: started})

	rc, ok := state.GetRunContext()
	require.True(t, ok)
	assert.Equal(t, "abc123", rc.RunID)
	assert.True(t, rc.StartedAt.Equal(started))
}

func TestState_GetRunContextMissing(t *testing.T) {
	_, ok := NewState().GetRunContext()
	assert.False(t, ok)
}
