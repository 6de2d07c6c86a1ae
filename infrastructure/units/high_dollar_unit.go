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

var _ ports.ScoringUnit = (*HighDollarUnit)(nil)

// HighDollarUnit detects pharmacies with concentrations of unusually
// expensive claims, a marker for rebate abuse. It first filters the
// snapshot down to high-dollar claims, then scores each pharmacy that
// has any by four additive factors: claim volume, total cost, average
// cost, and the cash share of those claims. Pharmacies with no
// high-dollar claims are silent, not scored zero.
//
// HighDollarUnit is stateless and safe for concurrent execution.
type HighDollarUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config HighDollarConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// HighDollarConfig sets the dollar thresholds that qualify a claim as
// high-dollar. A claim qualifies when any one threshold is exceeded.
type HighDollarConfig struct {
	// CopayThreshold flags claims whose copay exceeds this amount.
	CopayThreshold float64 `yaml:"copay_threshold" json:"copay_threshold" validate:"gte=0"`

	// OOPThreshold flags claims whose out-of-pocket cost exceeds this amount.
	OOPThreshold float64 `yaml:"oop_threshold" json:"oop_threshold" validate:"gte=0"`

	// FeeThreshold flags claims whose copay fee exceeds this amount.
	FeeThreshold float64 `yaml:"fee_threshold" json:"fee_threshold" validate:"gte=0"`

	// OriginalCostThreshold flags claims whose original cost exceeds this
	// amount.
	OriginalCostThreshold float64 `yaml:"original_cost_threshold" json:"original_cost_threshold" validate:"gte=0"`
}

// DefaultHighDollarConfig returns the shipped high-dollar thresholds:
// copay over $200, out-of-pocket over $500, fee over $200, or original
// cost over $1000.
func DefaultHighDollarConfig() HighDollarConfig {
	return HighDollarConfig{
		CopayThreshold:        200,
		OOPThreshold:          500,
		FeeThreshold:          200,
		OriginalCostThreshold: 1000,
	}
}

// NewHighDollarUnit creates a HighDollarUnit with validated configuration.
func NewHighDollarUnit(name string, config HighDollarConfig) (*HighDollarUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &HighDollarUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("high-dollar-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *HighDollarUnit) Name() string { return u.name }

// Validate checks that the unit is properly configured.
func (u *HighDollarUnit) Validate() error {
	if u.name == "" {
		return ErrEmptyUnitName
	}
	return validate.Struct(u.config)
}

// Run filters the snapshot to high-dollar claims and scores each
// pharmacy holding any by the four-factor additive model. The score is
// capped at 1.0.
func (u *HighDollarUnit) Run(ctx context.Context, claims []domain.Claim) ([]domain.Finding, error) {
	_, span := u.tracer.Start(ctx, "HighDollarUnit.Run",
		trace.WithAttributes(
			attribute.String("unit.type", "high_dollar"),
			attribute.String("unit.id", u.name),
			attribute.Int("claims", len(claims)),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var highDollar []domain.Claim
	for _, c := range claims {
		if u.isHighDollar(c) {
			highDollar = append(highDollar, c)
		}
	}
	span.SetAttributes(attribute.Int("high_dollar_claims", len(highDollar)))
	if len(highDollar) == 0 {
		return []domain.Finding{}, nil
	}

	groups := groupByPharmacy(highDollar)
	findings := make([]domain.Finding, 0, len(groups))

	for _, pharmacy := range sortedPharmacies(groups) {
		group := groups[pharmacy]

		var totalCost float64
		var cashClaims int
		for _, c := range group {
			totalCost += c.OriginalCost
			if isCashCoverage(c.CoverageType) {
				cashClaims++
			}
		}
		avgCost := totalCost / float64(len(group))
		cashPercent := float64(cashClaims) / float64(len(group)) * 100

		score := highDollarScore(len(group), totalCost, avgCost, cashPercent)

		findings = append(findings, domain.Finding{
			EntityID:   pharmacy,
			Score:      score,
			Reason:     highDollarReason(score),
			SourceUnit: u.name,
			Detail: map[string]any{
				"high_dollar_claims": len(group),
				"total_cost":         math.Round(totalCost*100) / 100,
				"avg_claim_cost":     math.Round(avgCost*100) / 100,
				"cash_percent":       math.Round(cashPercent*100) / 100,
			},
		})
	}

	span.SetAttributes(attribute.Int("findings", len(findings)))
	return findings, nil
}

func (u *HighDollarUnit) isHighDollar(c domain.Claim) bool {
	return c.CopayCost > u.config.CopayThreshold ||
		c.OOPCost > u.config.OOPThreshold ||
		c.CopayFeeCost > u.config.FeeThreshold ||
		c.OriginalCost > u.config.OriginalCostThreshold
}

// highDollarScore is the four-factor additive model. Each factor
// contributes at most 0.25.
func highDollarScore(totalClaims int, totalCost, avgCost, cashPercent float64) float64 {
	var score float64

	switch {
	case totalClaims >= 10:
		score += 0.25
	case totalClaims >= 5:
		score += 0.15
	case totalClaims >= 2:
		score += 0.10
	}

	switch {
	case totalCost >= 10000:
		score += 0.25
	case totalCost >= 5000:
		score += 0.15
	case totalCost >= 2000:
		score += 0.10
	}

	switch {
	case avgCost >= 1000:
		score += 0.25
	case avgCost >= 500:
		score += 0.15
	case avgCost >= 300:
		score += 0.10
	}

	switch {
	case cashPercent >= 80:
		score += 0.25
	case cashPercent >= 60:
		score += 0.15
	case cashPercent >= 40:
		score += 0.10
	}

	return math.Min(score, 1.0)
}

func highDollarReason(score float64) string {
	switch {
	case score >= 0.9:
		return "CRITICAL: high volume, high cost, and high cash percentage"
	case score >= 0.8:
		return "HIGH_RISK: high-dollar claims with suspicious patterns"
	case score >= 0.6:
		return "MEDIUM_HIGH: elevated high-dollar claim activity"
	case score >= 0.4:
		return "MEDIUM: moderate high-dollar claim patterns"
	case score >= 0.2:
		return "LOW_MEDIUM: some high-dollar claims detected"
	default:
		return "LOW: minimal high-dollar claim activity"
	}
}

// CreateHighDollarUnit builds a HighDollarUnit from a flexible
// configuration map, typically decoded from YAML.
func CreateHighDollarUnit(id string, config map[string]any) (*HighDollarUnit, error) {
	unitConfig := DefaultHighDollarConfig()

	if v, ok := config["copay_threshold"].(float64); ok {
		unitConfig.CopayThreshold = v
	}
	if v, ok := config["oop_threshold"].(float64); ok {
		unitConfig.OOPThreshold = v
	}
	if v, ok := config["fee_threshold"].(float64); ok {
		unitConfig.FeeThreshold = v
	}
	if v, ok := config["original_cost_threshold"].(float64); ok {
		unitConfig.OriginalCostThreshold = v
	}

	return NewHighDollarUnit(id, unitConfig)
}
