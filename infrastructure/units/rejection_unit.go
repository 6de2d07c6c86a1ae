package units

import (
	"context"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rxguard/rxguard/internal/domain"
	"github.com/rxguard/rxguard/internal/ports"
)

var _ ports.ScoringUnit = (*RejectionUnit)(nil)

// RejectionUnit detects pharmacies with a high density of rejected
// claims, a marker for adjudication gaming. A claim counts as rejected
// when it carries any rejection indicator: a primary reject code, a PA
// rejection code, or a PA status containing a rejection term. Pharmacies
// with zero rejections are silent, not scored zero.
//
// RejectionUnit is stateless and safe for concurrent execution.
type RejectionUnit struct {
	name   string
	tracer trace.Tracer
}

// NewRejectionUnit creates a RejectionUnit. The unit has no tunable
// parameters; the rejection indicators come from the claim schema.
func NewRejectionUnit(name string) (*RejectionUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	return &RejectionUnit{
		name:   name,
		tracer: otel.Tracer("rejection-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *RejectionUnit) Name() string { return u.name }

// Validate checks that the unit is properly configured.
func (u *RejectionUnit) Validate() error {
	if u.name == "" {
		return ErrEmptyUnitName
	}
	return nil
}

// Run scores each pharmacy with at least one rejected claim by three
// additive factors: rejection percentage, rejection volume, and total
// claim volume.
func (u *RejectionUnit) Run(ctx context.Context, claims []domain.Claim) ([]domain.Finding, error) {
	_, span := u.tracer.Start(ctx, "RejectionUnit.Run",
		trace.WithAttributes(
			attribute.String("unit.type", "rejection"),
			attribute.String("unit.id", u.name),
			attribute.Int("claims", len(claims)),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups := groupByPharmacy(claims)
	findings := make([]domain.Finding, 0, len(groups))

	for _, pharmacy := range sortedPharmacies(groups) {
		group := groups[pharmacy]

		var rejected int
		for _, c := range group {
			if hasRejectionIndicator(c) {
				rejected++
			}
		}
		if rejected == 0 {
			continue
		}

		rejectionPercent := float64(rejected) / float64(len(group)) * 100
		score := rejectionScore(len(group), rejected, rejectionPercent)

		findings = append(findings, domain.Finding{
			EntityID:   pharmacy,
			Score:      score,
			Reason:     rejectionReason(score),
			SourceUnit: u.name,
			Detail: map[string]any{
				"total_claims":      len(group),
				"rejected_claims":   rejected,
				"rejection_percent": math.Round(rejectionPercent*100) / 100,
			},
		})
	}

	span.SetAttributes(attribute.Int("findings", len(findings)))
	return findings, nil
}

// rejectionScore is the three-factor additive model: density contributes
// up to 0.4, rejection volume and claim volume up to 0.3 each.
func rejectionScore(totalClaims, rejectedClaims int, rejectionPercent float64) float64 {
	var score float64

	switch {
	case rejectionPercent >= 50:
		score += 0.4
	case rejectionPercent >= 30:
		score += 0.3
	case rejectionPercent >= 20:
		score += 0.2
	case rejectionPercent >= 10:
		score += 0.1
	}

	switch {
	case rejectedClaims >= 20:
		score += 0.3
	case rejectedClaims >= 10:
		score += 0.2
	case rejectedClaims >= 5:
		score += 0.1
	}

	switch {
	case totalClaims >= 50:
		score += 0.3
	case totalClaims >= 20:
		score += 0.2
	case totalClaims >= 10:
		score += 0.1
	}

	return math.Min(score, 1.0)
}

func rejectionReason(score float64) string {
	switch {
	case score >= 0.9:
		return "CRITICAL: extremely high rejection rate with large volume"
	case score >= 0.8:
		return "HIGH_RISK: high rejection density indicating potential gaming"
	case score >= 0.6:
		return "MEDIUM_HIGH: elevated rejection patterns"
	case score >= 0.4:
		return "MEDIUM: moderate rejection density"
	case score >= 0.2:
		return "LOW_MEDIUM: some rejection patterns detected"
	default:
		return "LOW: minimal rejection activity"
	}
}

// CreateRejectionUnit builds a RejectionUnit from a flexible
// configuration map. The unit accepts no parameters; the map is ignored.
func CreateRejectionUnit(id string, _ map[string]any) (*RejectionUnit, error) {
	return NewRejectionUnit(id)
}
