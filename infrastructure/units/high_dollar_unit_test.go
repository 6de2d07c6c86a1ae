package units

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxguard/rxguard/internal/domain"
)

func TestHighDollarUnit_SilentWithoutHighDollarClaims(t *testing.T) {
	unit, err := NewHighDollarUnit("high_dollar", DefaultHighDollarConfig())
	require.NoError(t, err)

	claims := []domain.Claim{
		{PharmacyID: "PH1", CopayCost: 10, OOPCost: 20, OriginalCost: 100},
		{PharmacyID: "PH2", CopayCost: 50, OOPCost: 100, OriginalCost: 500},
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	assert.Empty(t, findings, "pharmacies without high-dollar claims produce no findings")
}

func TestHighDollarUnit_AnyThresholdQualifies(t *testing.T) {
	unit, err := NewHighDollarUnit("high_dollar", DefaultHighDollarConfig())
	require.NoError(t, err)

	tests := []struct {
		name  string
		claim domain.Claim
	}{
		{"copay", domain.Claim{PharmacyID: "PH1", CopayCost: 201}},
		{"oop", domain.Claim{PharmacyID: "PH1", OOPCost: 501}},
		{"fee", domain.Claim{PharmacyID: "PH1", CopayFeeCost: 201}},
		{"original", domain.Claim{PharmacyID: "PH1", OriginalCost: 1001}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, err := unit.Run(context.Background(), []domain.Claim{tt.claim})
			require.NoError(t, err)
			assert.Len(t, findings, 1)
		})
	}
}

func TestHighDollarUnit_MaximalFactorsScoreOne(t *testing.T) {
	unit, err := NewHighDollarUnit("high_dollar", DefaultHighDollarConfig())
	require.NoError(t, err)

	// 10 cash claims at $1500 each: volume >= 10, total >= 10000,
	// average >= 1000, cash share >= 80. All four factors max out.
	var claims []domain.Claim
	for i := 0; i < 10; i++ {
		claims = append(claims, domain.Claim{
			PharmacyID:   "PH1",
			CoverageType: "Cash",
			OriginalCost: 1500,
		})
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 1.0, findings[0].Score)
	assert.Contains(t, findings[0].Reason, "CRITICAL")
}

func TestHighDollarUnit_PartialFactors(t *testing.T) {
	unit, err := NewHighDollarUnit("high_dollar", DefaultHighDollarConfig())
	require.NoError(t, err)

	// 2 insured claims at $1100: volume factor 0.10, total $2200 factor
	// 0.10, average $1100 factor 0.25, cash share 0 factor 0.
	claims := []domain.Claim{
		{PharmacyID: "PH1", CoverageType: "Well Covered", OriginalCost: 1100},
		{PharmacyID: "PH1", CoverageType: "Well Covered", OriginalCost: 1100},
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.InDelta(t, 0.45, findings[0].Score, 1e-9)
}

func TestCreateHighDollarUnit_ThresholdOverride(t *testing.T) {
	unit, err := CreateHighDollarUnit("high_dollar", map[string]any{
		"copay_threshold": 50.0,
	})
	require.NoError(t, err)

	findings, err := unit.Run(context.Background(), []domain.Claim{
		{PharmacyID: "PH1", CopayCost: 60},
	})
	require.NoError(t, err)
	assert.Len(t, findings, 1, "claim qualifies under lowered threshold")
}
