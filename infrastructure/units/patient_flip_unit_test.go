package units

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxguard/rxguard/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func flipClaim(pharmacy, patient, ndc, coverage string, submitted time.Time) domain.Claim {
	return domain.Claim{
		PharmacyID:    pharmacy,
		PatientID:     patient,
		ProductNDC:    ndc,
		CoverageType:  coverage,
		DateSubmitted: submitted,
		OCC:           -1,
	}
}

func TestPatientFlipUnit_DetectsRejectedFlip(t *testing.T) {
	unit, err := NewPatientFlipUnit("patient_flip", DefaultPatientFlipConfig())
	require.NoError(t, err)

	rejected := flipClaim("PH1", "P1", "NDC1", "Well Covered", day(0))
	rejected.PrimaryRejectCode1 = "75"
	claims := []domain.Claim{
		rejected,
		flipClaim("PH1", "P1", "NDC1", "Cash", day(5)),
		flipClaim("PH1", "P1", "NDC1", "Cash", day(10)),
		flipClaim("PH1", "P1", "NDC1", "Cash", day(15)),
		flipClaim("PH1", "P1", "NDC1", "Cash", day(20)),
		flipClaim("PH1", "P1", "NDC1", "Cash", day(25)),
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	require.Len(t, findings, 1)

	// 5 cash flips of 6 claims: ratio > 0.8, strongest score.
	assert.Equal(t, "PH1", findings[0].EntityID)
	assert.Equal(t, 1.0, findings[0].Score)
	assert.Equal(t, 5, findings[0].Detail["total_flips"])
}

func TestPatientFlipUnit_NoRejectionIsWeaklySuspicious(t *testing.T) {
	unit, err := NewPatientFlipUnit("patient_flip", DefaultPatientFlipConfig())
	require.NoError(t, err)

	claims := []domain.Claim{
		flipClaim("PH1", "P1", "NDC1", "Well Covered", day(0)),
		flipClaim("PH1", "P1", "NDC1", "Cash", day(5)),
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 0.3, findings[0].Score)
	assert.Contains(t, findings[0].Reason, "without rejection indicators")
}

func TestPatientFlipUnit_HighCopayCountsAsRejectionProxy(t *testing.T) {
	unit, err := NewPatientFlipUnit("patient_flip", DefaultPatientFlipConfig())
	require.NoError(t, err)

	expensive := flipClaim("PH1", "P1", "NDC1", "Well Covered", day(0))
	expensive.CopayCost = 150
	claims := []domain.Claim{
		expensive,
		flipClaim("PH1", "P1", "NDC1", "Cash", day(5)),
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	// 1 flip of 2 claims: ratio 0.5, score 0.6.
	assert.Equal(t, 0.6, findings[0].Score)
}

func TestPatientFlipUnit_CashBeforeInsuranceIsNotAFlip(t *testing.T) {
	unit, err := NewPatientFlipUnit("patient_flip", DefaultPatientFlipConfig())
	require.NoError(t, err)

	rejected := flipClaim("PH1", "P1", "NDC1", "Well Covered", day(10))
	rejected.PrimaryRejectCode1 = "75"
	claims := []domain.Claim{
		flipClaim("PH1", "P1", "NDC1", "Cash", day(0)),
		rejected,
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestPatientFlipUnit_OneFindingPerPharmacy(t *testing.T) {
	unit, err := NewPatientFlipUnit("patient_flip", DefaultPatientFlipConfig())
	require.NoError(t, err)

	// Two distinct patient flips at the same pharmacy: one strong
	// (rejected), one weak (no rejection). The finding carries the
	// strongest pattern and counts both.
	strong := flipClaim("PH1", "P1", "NDC1", "Well Covered", day(0))
	strong.PARejectionCode1 = "PA75"
	claims := []domain.Claim{
		strong,
		flipClaim("PH1", "P1", "NDC1", "Cash", day(5)),
		flipClaim("PH1", "P2", "NDC2", "Well Covered", day(0)),
		flipClaim("PH1", "P2", "NDC2", "Cash", day(5)),
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 2, findings[0].Detail["flip_patterns"])
	assert.Equal(t, 0.6, findings[0].Score, "strongest pattern wins")
}

func TestPatientFlipUnit_SingleClaimGroupsSkipped(t *testing.T) {
	unit, err := NewPatientFlipUnit("patient_flip", DefaultPatientFlipConfig())
	require.NoError(t, err)

	claims := []domain.Claim{
		flipClaim("PH1", "P1", "NDC1", "Cash", day(0)),
		flipClaim("PH1", "P2", "NDC2", "Well Covered", day(0)),
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestPatientFlipUnit_IrrelevantCoverageIgnored(t *testing.T) {
	unit, err := NewPatientFlipUnit("patient_flip", DefaultPatientFlipConfig())
	require.NoError(t, err)

	claims := []domain.Claim{
		flipClaim("PH1", "P1", "NDC1", "Medicare Part D", day(0)),
		flipClaim("PH1", "P1", "NDC1", "Medicare Part D", day(5)),
	}

	findings, err := unit.Run(context.Background(), claims)
	require.NoError(t, err)
	assert.Empty(t, findings)
}
