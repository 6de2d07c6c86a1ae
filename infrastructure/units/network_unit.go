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

var (
	_ ports.ScoringUnit   = (*NetworkUnit)(nil)
	_ ports.CombiningUnit = (*NetworkUnit)(nil)
)

// NetworkUnit detects pharmacies whose claims fall outside the plan's
// pharmacy network in anomalous proportions. As a combining unit it runs
// in the serial second phase: its base network anomaly score is blended
// with the mean score its peers assigned the same pharmacy, so a
// non-network pharmacy that other detectors also flag rises sharply.
//
// NetworkUnit is stateless and safe for concurrent execution.
type NetworkUnit struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config NetworkConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// NetworkConfig controls the blend between the unit's own network
// anomaly score and the peer consensus.
type NetworkConfig struct {
	// NetworkShare is the weight of the base network anomaly score in the
	// enhanced blend; the peer mean receives the complement.
	NetworkShare float64 `yaml:"network_share" json:"network_share" validate:"gte=0,lte=1"`
}

// DefaultNetworkConfig returns the shipped blend: 30% network anomaly,
// 70% peer consensus.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{NetworkShare: 0.3}
}

// NewNetworkUnit creates a NetworkUnit with validated configuration.
func NewNetworkUnit(name string, config NetworkConfig) (*NetworkUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &NetworkUnit{
		name:   name,
		config: config,
		tracer: otel.Tracer("network-unit"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (u *NetworkUnit) Name() string { return u.name }

// Validate checks that the unit is properly configured.
func (u *NetworkUnit) Validate() error {
	if u.name == "" {
		return ErrEmptyUnitName
	}
	return validate.Struct(u.config)
}

// Run produces the base network anomaly analysis without peer
// enhancement. The pool normally calls RunWithFindings instead; Run
// exists for standalone use and yields the same findings as
// RunWithFindings with an empty combined set.
func (u *NetworkUnit) Run(ctx context.Context, claims []domain.Claim) ([]domain.Finding, error) {
	return u.RunWithFindings(ctx, claims, nil)
}

// RunWithFindings scores every pharmacy by its network anomaly pattern,
// blended with the mean score its peers assigned it. Pharmacies no peer
// flagged keep their base anomaly score unblended.
func (u *NetworkUnit) RunWithFindings(ctx context.Context, claims []domain.Claim, combined []domain.Finding) ([]domain.Finding, error) {
	_, span := u.tracer.Start(ctx, "NetworkUnit.RunWithFindings",
		trace.WithAttributes(
			attribute.String("unit.type", "network"),
			attribute.String("unit.id", u.name),
			attribute.Int("claims", len(claims)),
			attribute.Int("combined_findings", len(combined)),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	peerScores := make(map[string][]float64)
	for _, f := range combined {
		peerScores[f.EntityID] = append(peerScores[f.EntityID], f.Score)
	}

	groups := groupByPharmacy(claims)
	findings := make([]domain.Finding, 0, len(groups))

	for _, pharmacy := range sortedPharmacies(groups) {
		group := groups[pharmacy]

		var networkClaims int
		networkType := ""
		for _, c := range group {
			if c.NetworkPharmacy {
				networkClaims++
			}
			if networkType == "" && c.NetworkGroupType != "" {
				networkType = c.NetworkGroupType
			}
		}
		nonNetworkClaims := len(group) - networkClaims
		nonNetworkPercent := float64(nonNetworkClaims) / float64(len(group)) * 100

		baseScore := networkAnomalyScore(len(group), nonNetworkPercent, networkType)

		score := baseScore
		reason := networkReason(baseScore)
		detail := map[string]any{
			"total_claims":        len(group),
			"network_claims":      networkClaims,
			"non_network_claims":  nonNetworkClaims,
			"non_network_percent": math.Round(nonNetworkPercent*100) / 100,
			"network_group_type":  networkType,
		}

		if peers := peerScores[pharmacy]; len(peers) > 0 {
			var sum float64
			for _, s := range peers {
				sum += s
			}
			peerMean := sum / float64(len(peers))

			score = u.config.NetworkShare*baseScore + (1-u.config.NetworkShare)*peerMean
			reason = enhancedNetworkReason(score, len(peers), highPeerCount(peers))
			detail["network_score"] = math.Round(baseScore*1000) / 1000
			detail["peer_score"] = math.Round(peerMean*1000) / 1000
			detail["peer_findings"] = len(peers)
		}

		findings = append(findings, domain.Finding{
			EntityID:   pharmacy,
			Score:      math.Round(score*1000) / 1000,
			Reason:     reason,
			SourceUnit: u.name,
			Detail:     detail,
		})
	}

	span.SetAttributes(attribute.Int("findings", len(findings)))
	return findings, nil
}

// networkAnomalyScore is the three-factor additive model over the
// non-network claim share, network type anomalies, and claim volume.
func networkAnomalyScore(totalClaims int, nonNetworkPercent float64, networkType string) float64 {
	var score float64

	switch {
	case nonNetworkPercent >= 80:
		score += 0.4
	case nonNetworkPercent >= 60:
		score += 0.3
	case nonNetworkPercent >= 40:
		score += 0.2
	case nonNetworkPercent >= 20:
		score += 0.1
	}

	switch {
	case networkType == "" && totalClaims > 5:
		score += 0.3
	case (networkType == "Independent" || networkType == "Small Chain") && nonNetworkPercent > 50:
		score += 0.2
	}

	switch {
	case totalClaims >= 50 && nonNetworkPercent > 30:
		score += 0.3
	case totalClaims >= 20 && nonNetworkPercent > 50:
		score += 0.2
	case totalClaims >= 10 && nonNetworkPercent > 70:
		score += 0.1
	}

	return math.Min(score, 1.0)
}

func highPeerCount(peers []float64) int {
	var n int
	for _, s := range peers {
		if s >= 0.8 {
			n++
		}
	}
	return n
}

func networkReason(score float64) string {
	switch {
	case score >= 0.9:
		return "CRITICAL: high non-network activity with suspicious patterns"
	case score >= 0.8:
		return "HIGH_RISK: elevated non-network claim patterns"
	case score >= 0.6:
		return "MEDIUM_HIGH: unusual network distribution"
	case score >= 0.4:
		return "MEDIUM: some network anomalies detected"
	case score >= 0.2:
		return "LOW_MEDIUM: minor network pattern variations"
	default:
		return "LOW: normal network patterns"
	}
}

func enhancedNetworkReason(score float64, peerFindings, highPeers int) string {
	switch {
	case score >= 0.9:
		return fmt.Sprintf("CRITICAL: non-network pharmacy with %d high-risk peer findings", highPeers)
	case score >= 0.8:
		return fmt.Sprintf("HIGH_RISK: non-network pharmacy with %d peer findings (%d high-risk)", peerFindings, highPeers)
	case score >= 0.6:
		return fmt.Sprintf("MEDIUM_HIGH: network anomaly with %d peer findings", peerFindings)
	case score >= 0.4:
		return "MEDIUM: some network and peer concerns"
	case score >= 0.2:
		return "LOW_MEDIUM: minor network and peer issues"
	default:
		return "LOW: minimal network and peer concerns"
	}
}

// CreateNetworkUnit builds a NetworkUnit from a flexible configuration
// map, typically decoded from YAML.
func CreateNetworkUnit(id string, config map[string]any) (*NetworkUnit, error) {
	unitConfig := DefaultNetworkConfig()

	if v, ok := config["network_share"].(float64); ok {
		unitConfig.NetworkShare = v
	}

	return NewNetworkUnit(id, unitConfig)
}
