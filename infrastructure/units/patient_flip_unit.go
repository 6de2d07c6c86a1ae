package units

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rxguard/rxguard/internal/domain"
	"github.com/rxguard/rxguard/internal/ports"
)

var _ ports.ScoringUnit = (*PatientFlipUnit)(nil)

// PatientFlipUnit detects the insurance-to-cash flip: a patient fills a
// product through insurance, the claim is rejected, and subsequent fills
// of the same product at the same pharmacy are run as cash. Claims are
// grouped by patient, product, and pharmacy; a group exhibits a flip
// when it holds both insurance and cash claims, the earliest cash claim
// postdates the earliest insurance claim, and an insurance claim carries
// a rejection indicator.
//
// A pharmacy receives at most one finding carrying its strongest flip
// pattern; the pattern and flip counts ride in the finding detail.
// Pharmacies with no flip patterns are silent.
//
// PatientFlipUnit is stateless and safe for concurrent execution.
type PatientFlipUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config PatientFlipConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// PatientFlipConfig controls flip pattern detection.
type PatientFlipConfig struct {
	// HighCopayThreshold treats an insurance claim with a copay above this
	// amount as a rejection proxy, catching flips whose rejection codes
	// were stripped upstream.
	HighCopayThreshold float64 `yaml:"high_copay_threshold" json:"high_copay_threshold" validate:"gte=0"`
}

// DefaultPatientFlipConfig returns the shipped flip detection settings.
func DefaultPatientFlipConfig() PatientFlipConfig {
	return PatientFlipConfig{HighCopayThreshold: 100}
}

// NewPatientFlipUnit creates a PatientFlipUnit with validated
// configuration.
func NewPatientFlipUnit(name string, config PatientFlipConfig) (*PatientFlipUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &PatientFlipUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("patient-flip-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *PatientFlipUnit) Name() string { return u.name }

// Validate checks that the unit is properly configured.
func (u *PatientFlipUnit) Validate() error {
	if u.name == "" {
		return ErrEmptyUnitName
	}
	return validate.Struct(u.config)
}

// flipPattern is one detected flip in a patient-product-pharmacy group.
type flipPattern struct {
	score     float64
	reason    string
	flipCount int
}

// Run detects flip patterns across all patient-product-pharmacy groups
// and emits one finding per pharmacy with any, carrying the strongest
// pattern's score.
func (u *PatientFlipUnit) Run(ctx context.Context, claims []domain.Claim) ([]domain.Finding, error) {
	_, span := u.tracer.Start(ctx, "PatientFlipUnit.Run",
		trace.WithAttributes(
			attribute.String("unit.type", "patient_flip"),
			attribute.String("unit.id", u.name),
			attribute.Int("claims", len(claims)),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Only cash and insurance claims participate; other coverage labels
	// cannot form either side of a flip.
	groups := make(map[string][]domain.Claim)
	for _, c := range claims {
		if !isCashCoverage(c.CoverageType) && !isInsuranceCoverage(c.CoverageType) {
			continue
		}
		key := c.PatientID + "\x00" + c.ProductNDC + "\x00" + c.PharmacyID
		groups[key] = append(groups[key], c)
	}

	patternsByPharmacy := make(map[string][]flipPattern)
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		pattern, ok := u.analyzeGroup(group)
		if !ok {
			continue
		}
		pharmacy := group[0].PharmacyID
		patternsByPharmacy[pharmacy] = append(patternsByPharmacy[pharmacy], pattern)
	}

	pharmacies := make([]string, 0, len(patternsByPharmacy))
	for pharmacy := range patternsByPharmacy {
		pharmacies = append(pharmacies, pharmacy)
	}
	sort.Strings(pharmacies)

	findings := make([]domain.Finding, 0, len(pharmacies))
	for _, pharmacy := range pharmacies {
		patterns := patternsByPharmacy[pharmacy]

		strongest := patterns[0]
		totalFlips := 0
		for _, p := range patterns {
			totalFlips += p.flipCount
			if p.score > strongest.score {
				strongest = p
			}
		}

		findings = append(findings, domain.Finding{
			EntityID:   pharmacy,
			Score:      strongest.score,
			Reason:     strongest.reason,
			SourceUnit: u.name,
			Detail: map[string]any{
				"flip_patterns": len(patterns),
				"total_flips":   totalFlips,
			},
		})
	}

	span.SetAttributes(attribute.Int("findings", len(findings)))
	return findings, nil
}

// analyzeGroup inspects one patient-product-pharmacy group for the flip
// sequence. The returned pattern is valid only when ok is true.
func (u *PatientFlipUnit) analyzeGroup(group []domain.Claim) (flipPattern, bool) {
	var insurance, cash []domain.Claim
	for _, c := range group {
		switch {
		case isInsuranceCoverage(c.CoverageType):
			insurance = append(insurance, c)
		case isCashCoverage(c.CoverageType):
			cash = append(cash, c)
		}
	}
	if len(insurance) == 0 || len(cash) == 0 {
		return flipPattern{}, false
	}

	earliestInsurance := insurance[0].DateSubmitted
	for _, c := range insurance[1:] {
		if c.DateSubmitted.Before(earliestInsurance) {
			earliestInsurance = c.DateSubmitted
		}
	}
	earliestCash := cash[0].DateSubmitted
	for _, c := range cash[1:] {
		if c.DateSubmitted.Before(earliestCash) {
			earliestCash = c.DateSubmitted
		}
	}
	if !earliestCash.After(earliestInsurance) {
		return flipPattern{}, false
	}

	flipCount := len(cash)
	if !u.insuranceRejected(insurance) {
		// The sequence alone is suspicious even without a visible
		// rejection, but only weakly so.
		return flipPattern{
			score:     0.3,
			reason:    "SUSPICIOUS: insurance-to-cash pattern without rejection indicators",
			flipCount: flipCount,
		}, true
	}

	flipRatio := float64(flipCount) / float64(len(group))
	score, reason := flipScore(flipRatio)
	return flipPattern{score: score, reason: reason, flipCount: flipCount}, true
}

// insuranceRejected reports whether any insurance claim in the group
// carries a rejection indicator, counting a high copay as a proxy.
func (u *PatientFlipUnit) insuranceRejected(insurance []domain.Claim) bool {
	for _, c := range insurance {
		if hasRejectionIndicator(c) || c.LatestPAStatusCode != "" {
			return true
		}
		if c.CopayCost > u.config.HighCopayThreshold {
			return true
		}
	}
	return false
}

func flipScore(flipRatio float64) (float64, string) {
	switch {
	case flipRatio > 0.8:
		return 1.0, "HIGH_RISK: >80% claims are cash flips"
	case flipRatio > 0.6:
		return 0.8, "MEDIUM_HIGH: >60% claims are cash flips"
	case flipRatio > 0.4:
		return 0.6, "MEDIUM: >40% claims are cash flips"
	case flipRatio > 0.2:
		return 0.4, "LOW_MEDIUM: >20% claims are cash flips"
	default:
		return 0.2, "LOW: some cash flips detected"
	}
}

// CreatePatientFlipUnit builds a PatientFlipUnit from a flexible
// configuration map, typically decoded from YAML.
func CreatePatientFlipUnit(id string, config map[string]any) (*PatientFlipUnit, error) {
	unitConfig := DefaultPatientFlipConfig()

	if v, ok := config["high_copay_threshold"].(float64); ok {
		unitConfig.HighCopayThreshold = v
	}

	return NewPatientFlipUnit(id, unitConfig)
}
