package units

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxguard/rxguard/internal/domain"
)

func TestRejectionUnit_SilentWithoutRejections(t *testing.T) {
	unit, err := NewRejectionUnit("rejection")
	require.NoError(t, err)

	claims := []domain.Claim{
		{PharmacyID: "PH1", CoverageType: "Well Covered"},
		{PharmacyID: "PH1", CoverageType: "Cash"},
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	assert.Empty(t, findings, "zero rejections means no finding, not score zero")
}

func TestRejectionUnit_IndicatorSources(t *testing.T) {
	unit, err := NewRejectionUnit("rejection")
	require.NoError(t, err)

	tests := []struct {
		name  string
		claim domain.Claim
	}{
		{"primary code", domain.Claim{PharmacyID: "PH1", PrimaryRejectCode1: "75"}},
		{"secondary primary code", domain.Claim{PharmacyID: "PH1", PrimaryRejectCode2: "70"}},
		{"pa code", domain.Claim{PharmacyID: "PH1", PARejectionCode1: "PA1"}},
		{"status rejected", domain.Claim{PharmacyID: "PH1", LatestPAStatusDesc: "Claim REJECTED by plan"}},
		{"status denied", domain.Claim{PharmacyID: "PH1", LatestPAStatusDesc: "request Denied"}},
		{"status failed", domain.Claim{PharmacyID: "PH1", LatestPAStatusDesc: "adjudication failed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, err := unit.Run(context.Background(), []domain.Claim{tt.claim})
			require.NoError(t, err)
			assert.Len(t, findings, 1)
		})
	}
}

func TestRejectionUnit_ApprovedStatusNotFlagged(t *testing.T) {
	unit, err := NewRejectionUnit("rejection")
	require.NoError(t, err)

	findings, err := unit.Run(context.Background(), []domain.Claim{
		{PharmacyID: "PH1", LatestPAStatusDesc: "Approved"},
	})
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestRejectionUnit_DensityScore(t *testing.T) {
	unit, err := NewRejectionUnit("rejection")
	require.NoError(t, err)

	// 25 rejected of 50 claims: density 50% (0.4), volume 25 >= 20 (0.3),
	// total 50 >= 50 (0.3). Caps at 1.0.
	var claims []domain.Claim
	for i := 0; i < 25; i++ {
		claims = append(claims, domain.Claim{PharmacyID: "PH1", PrimaryRejectCode1: "75"})
	}
	for i := 0; i < 25; i++ {
		claims = append(claims, domain.Claim{PharmacyID: "PH1"})
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 1.0, findings[0].Score)
	assert.Equal(t, 25, findings[0].Detail["rejected_claims"])
}

func TestRejectionUnit_LowDensity(t *testing.T) {
	unit, err := NewRejectionUnit("rejection")
	require.NoError(t, err)

	// 1 rejected of 100: density 1% (0), volume 1 (0), total 100 (0.3).
	var claims []domain.Claim
	claims = append(claims, domain.Claim{PharmacyID: "PH1", PrimaryRejectCode1: "75"})
	for i := 0; i < 99; i++ {
		claims = append(claims, domain.Claim{PharmacyID: "PH1"})
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.InDelta(t, 0.3, findings[0].Score, 1e-9)
}
