package units

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxguard/rxguard/internal/domain"
)

func cashClaims(pharmacy string, n int) []domain.Claim {
	claims := make([]domain.Claim, n)
	for i := range claims {
		claims[i] = domain.Claim{PharmacyID: pharmacy, CoverageType: "Cash", OCC: -1}
	}
	return claims
}

func coveredClaims(pharmacy string, n int) []domain.Claim {
	claims := make([]domain.Claim, n)
	for i := range claims {
		claims[i] = domain.Claim{PharmacyID: pharmacy, CoverageType: "Well Covered", OCC: -1}
	}
	return claims
}

func TestCoverageUnit_ScoreLadder(t *testing.T) {
	unit, err := NewCoverageUnit("coverage", DefaultCoverageConfig())
	require.NoError(t, err)

	tests := []struct {
		name      string
		flagged   int
		total     int
		wantScore float64
	}{
		{"all cash", 100, 100, 1.0},
		{"eighty percent", 80, 100, 0.8},
		{"sixty percent", 60, 100, 0.6},
		{"thirty percent", 30, 100, 0.3},
		{"one flagged", 1, 100, 0.1},
		{"clean", 0, 100, 0.0},
		{"exactly ninety", 90, 100, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := append(cashClaims("PH1", tt.flagged), coveredClaims("PH1", tt.total-tt.flagged)...)

			findings, err := unit.Run(context.Background(), claims)
			require.NoError(t, err)
			require.Len(t, findings, 1)
			assert.Equal(t, tt.wantScore, findings[0].Score)
			assert.Equal(t, "PH1", findings[0].EntityID)
		})
	}
}

func TestCoverageUnit_OCCCodesFlagged(t *testing.T) {
	unit, err := NewCoverageUnit("coverage", DefaultCoverageConfig())
	require.NoError(t, err)

	claims := []domain.Claim{
		{PharmacyID: "PH1", CoverageType: "Well Covered", OCC: 0},
		{PharmacyID: "PH1", CoverageType: "Well Covered", OCC: 1},
		{PharmacyID: "PH1", CoverageType: "Well Covered", OCC: 3},
		{PharmacyID: "PH1", CoverageType: "Well Covered", OCC: 2},
		{PharmacyID: "PH1", CoverageType: "Well Covered", OCC: -1},
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	// 3 of 5 flagged: 60%, score 0.6. Code 2 and the absent code are clean.
	assert.Equal(t, 0.6, findings[0].Score)
	assert.Equal(t, 3, findings[0].Detail["flagged_claims"])
}

func TestCoverageUnit_OnePerPharmacySorted(t *testing.T) {
	unit, err := NewCoverageUnit("coverage", DefaultCoverageConfig())
	require.NoError(t, err)

	claims := append(cashClaims("ZETA", 2), cashClaims("ALPHA", 2)...)

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "ALPHA", findings[0].EntityID)
	assert.Equal(t, "ZETA", findings[1].EntityID)
}

func TestCoverageUnit_EmptyDataset(t *testing.T) {
	unit, err := NewCoverageUnit("coverage", DefaultCoverageConfig())
	require.NoError(t, err)

	findings, err := unit.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestCreateCoverageUnit_Config(t *testing.T) {
	unit, err := CreateCoverageUnit("coverage", map[string]any{
		"flagged_occ_codes": []any{2, 4},
	})
	require.NoError(t, err)

	claims := []domain.Claim{
		{PharmacyID: "PH1", CoverageType: "Well Covered", OCC: 2},
		{PharmacyID: "PH1", CoverageType: "Well Covered", OCC: 0},
	}
	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 1, findings[0].Detail["flagged_claims"], "code 0 no longer flagged under override")
}

func TestNewCoverageUnit_EmptyName(t *testing.T) {
	_, err := NewCoverageUnit("", DefaultCoverageConfig())
	assert.ErrorIs(t, err, ErrEmptyUnitName)
}
