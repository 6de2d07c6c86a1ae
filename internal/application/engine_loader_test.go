package application

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validEngineYAML = `
version: "1.0.0"
metadata:
  name: test-engine
  description: Engine for loader tests.
pool:
  limit: 4
weights:
  coverage: 0.6
  network: 0.4
units:
  - id: coverage
    type: coverage
    parameters:
      flagged_occ_codes: [0, 1, 3]
  - id: network
    type: network
`

func newTestLoader(t *testing.T) *EngineLoader {
	t.Helper()
	loader, err := NewEngineLoader(NewDefaultUnitRegistry())
	require.NoError(t, err)
	return loader
}

func TestEngineLoader_LoadValidConfig(t *testing.T) {
	loader := newTestLoader(t)

	engine, err := loader.LoadFromReader(context.Background(), strings.NewReader(validEngineYAML))
	require.NoError(t, err)

	assert.Equal(t, "test-engine", engine.Config.Metadata.Name)
	assert.Equal(t, 4, engine.PoolLimit)
	require.Len(t, engine.Units, 2)
	assert.Equal(t, "coverage", engine.Units[0].Name())
	assert.Equal(t, "network", engine.Units[1].Name())

	weights, err := engine.Weights()
	require.NoError(t, err)
	assert.InDelta(t, 0.6, weights.Weight("coverage"), 1e-9)
	assert.InDelta(t, 0.4, weights.Weight("network"), 1e-9)
}

func TestEngineLoader_CachesByContentHash(t *testing.T) {
	loader := newTestLoader(t)
	ctx := context.Background()

	first, err := loader.LoadFromReader(ctx, strings.NewReader(validEngineYAML))
	require.NoError(t, err)
	second, err := loader.LoadFromReader(ctx, strings.NewReader(validEngineYAML))
	require.NoError(t, err)

	assert.Same(t, first, second, "identical configs compile once")
}

func TestEngineLoader_WeightsIndependentPerCall(t *testing.T) {
	loader := newTestLoader(t)

	engine, err := loader.LoadFromReader(context.Background(), strings.NewReader(validEngineYAML))
	require.NoError(t, err)

	w1, err := engine.Weights()
	require.NoError(t, err)
	w2, err := engine.Weights()
	require.NoError(t, err)

	require.NoError(t, w1.Update(map[string]float64{"coverage": 5}))
	assert.InDelta(t, 0.6, w2.Weight("coverage"), 1e-9,
		"runtime updates on one vector must not leak into the cached engine")
}

func TestEngineLoader_RejectsUnknownUnitType(t *testing.T) {
	loader := newTestLoader(t)

	bad := strings.Replace(validEngineYAML, "type: network", "type: crystal_ball", 1)
	_, err := loader.LoadFromReader(context.Background(), strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestEngineLoader_RejectsDuplicateUnitIDs(t *testing.T) {
	loader := newTestLoader(t)

	bad := strings.Replace(validEngineYAML, "id: network", "id: coverage", 1)
	_, err := loader.LoadFromReader(context.Background(), strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate unit id")
}

func TestEngineLoader_RejectsWeightForUnknownUnit(t *testing.T) {
	loader := newTestLoader(t)

	bad := strings.Replace(validEngineYAML, "network: 0.4", "phantom: 0.4", 1)
	_, err := loader.LoadFromReader(context.Background(), strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown unit")
}

func TestEngineLoader_RejectsBadVersion(t *testing.T) {
	loader := newTestLoader(t)

	bad := strings.Replace(validEngineYAML, `version: "1.0.0"`, `version: "latest"`, 1)
	_, err := loader.LoadFromReader(context.Background(), strings.NewReader(bad))
	require.Error(t, err)
}

func TestEngineLoader_DefaultWeightsWhenOmitted(t *testing.T) {
	loader := newTestLoader(t)

	yaml := `
version: "1.0.0"
metadata:
  name: no-weights
units:
  - id: coverage
    type: coverage
`
	engine, err := loader.LoadFromReader(context.Background(), strings.NewReader(yaml))
	require.NoError(t, err)

	weights, err := engine.Weights()
	require.NoError(t, err)
	assert.InDelta(t, 0.25, weights.Weight("coverage"), 1e-9)
	assert.InDelta(t, 0.15, weights.Weight("network"), 1e-9)
}

func TestDefaultUnitRegistry_SupportedTypes(t *testing.T) {
	registry := NewDefaultUnitRegistry()
	assert.Equal(t,
		[]string{"coverage", "high_dollar", "network", "patient_flip", "rejection"},
		registry.SupportedTypes())
}

func TestDefaultUnitRegistry_RejectsDuplicateRegistration(t *testing.T) {
	registry := NewDefaultUnitRegistry()
	err := registry.RegisterUnitFactory("coverage", nil)
	assert.Error(t, err)
}

func TestDefaultUnitRegistry_UnknownType(t *testing.T) {
	registry := NewDefaultUnitRegistry()
	_, err := registry.CreateUnit("crystal_ball", "cb", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown unit type")
}
