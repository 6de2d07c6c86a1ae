package units

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rxguard/rxguard/internal/domain"
	"github.com/rxguard/rxguard/internal/ports"
)

var _ ports.ScoringUnit = (*CoverageUnit)(nil)

// CoverageUnit detects pharmacies whose claim mix is dominated by cash or
// uncovered transactions, the signature of claims steered away from
// insurance adjudication. A claim is flagged when its coverage label is
// cash/uncovered or its other-coverage code is one of the suspicious
// values; the pharmacy's score follows a fixed ladder over the flagged
// percentage of its claims.
//
// CoverageUnit is stateless and safe for concurrent execution.
type CoverageUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config CoverageConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// CoverageConfig controls the coverage pattern detection thresholds.
type CoverageConfig struct {
	// FlaggedOCCCodes are the other-coverage codes treated as suspicious.
	// Negative claim codes (absent from the source row) never match.
	FlaggedOCCCodes []int `yaml:"flagged_occ_codes" json:"flagged_occ_codes" validate:"max=20"`
}

// DefaultCoverageConfig returns the shipped coverage detection settings:
// other-coverage codes 0, 1, and 3 are suspicious.
func DefaultCoverageConfig() CoverageConfig {
	return CoverageConfig{FlaggedOCCCodes: []int{0, 1, 3}}
}

// NewCoverageUnit creates a CoverageUnit with validated configuration.
// It returns ErrEmptyUnitName if name is empty.
func NewCoverageUnit(name string, config CoverageConfig) (*CoverageUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &CoverageUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("coverage-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *CoverageUnit) Name() string { return u.name }

// Validate checks that the unit is properly configured.
func (u *CoverageUnit) Validate() error {
	if u.name == "" {
		return ErrEmptyUnitName
	}
	return validate.Struct(u.config)
}

// Run scores every pharmacy in the snapshot by the share of its claims
// that are cash, uncovered, or carry a suspicious other-coverage code.
// Every pharmacy with at least one claim receives a finding; a pharmacy
// with no flagged claims scores 0.
func (u *CoverageUnit) Run(ctx context.Context, claims []domain.Claim) ([]domain.Finding, error) {
	_, span := u.tracer.Start(ctx, "CoverageUnit.Run",
		trace.WithAttributes(
			attribute.String("unit.type", "coverage"),
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

		var flagged int
		for _, c := range group {
			if isCashCoverage(c.CoverageType) || u.occFlagged(c.OCC) {
				flagged++
			}
		}

		flaggedPercent := float64(flagged) / float64(len(group)) * 100
		score, reason := coverageScore(flaggedPercent)

		findings = append(findings, domain.Finding{
			EntityID:   pharmacy,
			Score:      score,
			Reason:     reason,
			SourceUnit: u.name,
			Detail: map[string]any{
				"total_claims":    len(group),
				"flagged_claims":  flagged,
				"flagged_percent": math.Round(flaggedPercent*100) / 100,
			},
		})
	}

	span.SetAttributes(attribute.Int("findings", len(findings)))
	return findings, nil
}

func (u *CoverageUnit) occFlagged(occ int) bool {
	if occ < 0 {
		return false
	}
	for _, code := range u.config.FlaggedOCCCodes {
		if occ == code {
			return true
		}
	}
	return false
}

// coverageScore maps the flagged claim percentage onto the fixed score
// ladder. Boundaries are exclusive: exactly 90% scores 0.8, not 1.0.
func coverageScore(flaggedPercent float64) (float64, string) {
	switch {
	case flaggedPercent > 90:
		return 1.0, "HIGH_RISK: >90% flagged claims"
	case flaggedPercent > 75:
		return 0.8, "MEDIUM_HIGH: >75% flagged claims"
	case flaggedPercent > 50:
		return 0.6, "MEDIUM: >50% flagged claims"
	case flaggedPercent > 25:
		return 0.3, "LOW_MEDIUM: >25% flagged claims"
	case flaggedPercent > 0:
		return 0.1, "LOW: some flagged claims"
	default:
		return 0.0, "normal coverage mix"
	}
}

// CreateCoverageUnit builds a CoverageUnit from a flexible configuration
// map, typically decoded from YAML.
func CreateCoverageUnit(id string, config map[string]any) (*CoverageUnit, error) {
	unitConfig := DefaultCoverageConfig()

	if codes, ok := config["flagged_occ_codes"].([]any); ok {
		unitConfig.FlaggedOCCCodes = unitConfig.FlaggedOCCCodes[:0]
		for _, raw := range codes {
			switch v := raw.(type) {
			case int:
				unitConfig.FlaggedOCCCodes = append(unitConfig.FlaggedOCCCodes, v)
			case float64:
				unitConfig.FlaggedOCCCodes = append(unitConfig.FlaggedOCCCodes, int(v))
			default:
				return nil, fmt.Errorf("flagged_occ_codes must contain integers, got %T", raw)
			}
		}
	}

	return NewCoverageUnit(id, unitConfig)
}
