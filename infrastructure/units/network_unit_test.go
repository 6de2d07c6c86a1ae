package units

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxguard/rxguard/internal/domain"
)

func networkClaims(pharmacy, groupType string, inNetwork bool, n int) []domain.Claim {
	claims := make([]domain.Claim, n)
	for i := range claims {
		claims[i] = domain.Claim{
			PharmacyID:       pharmacy,
			NetworkPharmacy:  inNetwork,
			NetworkGroupType: groupType,
			OCC:              -1,
		}
	}
	return claims
}

func TestNetworkUnit_BaseAnomalyScore(t *testing.T) {
	unit, err := NewNetworkUnit("network", DefaultNetworkConfig())
	require.NoError(t, err)

	// 10 claims, all non-network, no group type: share factor 0.4,
	// missing type factor 0.3, volume factor 0.1.
	findings, err := unit.Run(context.Background(), networkClaims("PH1", "", false, 10))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.InDelta(t, 0.8, findings[0].Score, 1e-9)
	assert.Contains(t, findings[0].Reason, "HIGH_RISK")
	assert.Equal(t, 10, findings[0].Detail["non_network_claims"])
}

func TestNetworkUnit_InNetworkPharmacyScoresZero(t *testing.T) {
	unit, err := NewNetworkUnit("network", DefaultNetworkConfig())
	require.NoError(t, err)

	findings, err := unit.Run(context.Background(), networkClaims("PH1", "National Chain", true, 20))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 0.0, findings[0].Score)
	assert.Equal(t, "LOW: normal network patterns", findings[0].Reason)
}

func TestNetworkUnit_IndependentWithNonNetworkMajority(t *testing.T) {
	unit, err := NewNetworkUnit("network", DefaultNetworkConfig())
	require.NoError(t, err)

	// 3 independent-pharmacy claims, all non-network: share 0.4, type 0.2.
	findings, err := unit.Run(context.Background(), networkClaims("PH1", "Independent", false, 3))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.InDelta(t, 0.6, findings[0].Score, 1e-9)
}

func TestNetworkUnit_PeerBlend(t *testing.T) {
	unit, err := NewNetworkUnit("network", DefaultNetworkConfig())
	require.NoError(t, err)

	// Base score 0.4 (2 claims, all non-network, no other factors).
	claims := networkClaims("PH1", "Independent", false, 2)
	combined := []domain.Finding{
		{EntityID: "PH1", Score: 0.9, SourceUnit: "coverage"},
		{EntityID: "PH1", Score: 0.7, SourceUnit: "rejection"},
		{EntityID: "OTHER", Score: 1.0, SourceUnit: "coverage"},
	}

	findings, err := unit.RunWithFindings(context.Background(), claims, combined)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	// 0.3*0.4 + 0.7*mean(0.9, 0.7) = 0.68.
	assert.InDelta(t, 0.68, findings[0].Score, 1e-9)
	assert.Equal(t, 0.4, findings[0].Detail["network_score"])
	assert.Equal(t, 0.8, findings[0].Detail["peer_score"])
	assert.Equal(t, 2, findings[0].Detail["peer_findings"])
	assert.Contains(t, findings[0].Reason, "2 peer findings")
}

func TestNetworkUnit_NoPeersKeepsBaseScore(t *testing.T) {
	unit, err := NewNetworkUnit("network", DefaultNetworkConfig())
	require.NoError(t, err)

	claims := networkClaims("PH1", "Independent", false, 2)
	combined := []domain.Finding{
		{EntityID: "OTHER", Score: 1.0, SourceUnit: "coverage"},
	}

	findings, err := unit.RunWithFindings(context.Background(), claims, combined)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.InDelta(t, 0.4, findings[0].Score, 1e-9)
	assert.NotContains(t, findings[0].Detail, "peer_score")
}

func TestNetworkUnit_RunMatchesEmptyCombined(t *testing.T) {
	unit, err := NewNetworkUnit("network", DefaultNetworkConfig())
	require.NoError(t, err)

	claims := append(
		networkClaims("ZETA", "", false, 10),
		networkClaims("ALPHA", "National Chain", true, 10)...,
	)

	standalone, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	combined, err := unit.RunWithFindings(context.Background(), claims, nil)
	require.NoError(t, err)

	assert.Equal(t, combined, standalone)
	require.Len(t, standalone, 2)
	assert.Equal(t, "ALPHA", standalone[0].EntityID)
	assert.Equal(t, "ZETA", standalone[1].EntityID)
}

func TestNewNetworkUnit_RejectsInvalidShare(t *testing.T) {
	_, err := NewNetworkUnit("network", NetworkConfig{NetworkShare: 1.5})
	assert.Error(t, err)
}
