package domain

import "time"

// Finding is one scoring unit's opinion about one pharmacy. A unit
// produces at most one Finding per pharmacy per run, and a Finding is
// never mutated after its unit returns it.
type Finding struct {
	// EntityID is the pharmacy this finding is about.
	EntityID string `json:"entity_id"`

	// Score is the unit's risk assessment in [0, 1].
	Score float64 `json:"score"`

	// Reason is the unit's human-readable justification for the score.
	Reason string `json:"reason"`

	// SourceUnit names the unit that produced this finding.
	SourceUnit string `json:"source_unit"`

	// Detail carries unit-specific supporting values (counts, percentages)
	// used for reporting; opaque to the aggregation engine.
	Detail map[string]any `json:"detail,omitempty"`
}

// RiskLevel classifies a final aggregated score into an ordinal band.
type RiskLevel string

// Risk bands, boundary-inclusive on the lower edge.
const (
	RiskHigh    RiskLevel = "HIGH"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskLow     RiskLevel = "LOW"
	RiskVeryLow RiskLevel = "VERY_LOW"
)

// RiskLevelForScore maps a final score onto its risk band. The bands are
// a pure step function: >=0.8 HIGH, >=0.6 MEDIUM, >=0.4 LOW, else VERY_LOW.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score >= 0.8:
		return RiskHigh
	case score >= 0.6:
		return RiskMedium
	case score >= 0.4:
		return RiskLow
	default:
		return RiskVeryLow
	}
}

// AggregatedScore is the composite risk assessment for one pharmacy,
// derived from its findings, the global finding population, and the
// weight vector in force at aggregation time. Field names are a stable
// export contract; downstream consumers bind to them.
type AggregatedScore struct {
	// EntityID is the scored pharmacy.
	EntityID string `json:"entity_id"`

	// WeightedScore is the weight-normalized sum of unit scores. Units
	// that did not report contribute nothing; the sum is deliberately not
	// renormalized over the reporting subset.
	WeightedScore float64 `json:"weighted_score"`

	// ConsistencyScore measures cross-unit agreement, one of
	// {0.1, 0.3, 0.5, 0.9}.
	ConsistencyScore float64 `json:"consistency_score"`

	// OutlierScore is the sigmoid-transformed z-score of this pharmacy's
	// mean unit score against the global score population, in (0, 1).
	OutlierScore float64 `json:"outlier_score"`

	// FinalScore is 0.7*weighted + 0.2*consistency + 0.1*outlier.
	FinalScore float64 `json:"final_score"`

	// RiskLevel is the band FinalScore falls into.
	RiskLevel RiskLevel `json:"risk_level"`

	// ContributingUnits lists the units that reported a finding for this
	// pharmacy, sorted for deterministic output.
	ContributingUnits []string `json:"contributing_units"`

	// Explanation is the rendered audit string for this score.
	Explanation string `json:"explanation"`

	// Rank is the dense 1-based position after sorting by FinalScore
	// descending; assigned by the finalize stage.
	Rank int `json:"rank"`

	// Pharmacy descriptor fields carried from the claim data for reporting.
	PharmacyName     string `json:"pharmacy_name"`
	PharmacyCity     string `json:"pharmacy_city"`
	PharmacyState    string `json:"pharmacy_state"`
	TransactionCount int    `json:"transaction_count"`
}

// UnitReport summarizes one unit's contribution to a run.
type UnitReport struct {
	// Findings is the number of findings the unit produced.
	Findings int `json:"findings"`

	// AvgScore is the mean of the unit's finding scores, 0 when it
	// produced none.
	AvgScore float64 `json:"avg_score"`

	// HighRiskFindings counts the unit's findings with score >= 0.8.
	HighRiskFindings int `json:"high_risk_findings"`

	// Failed reports whether the unit's execution errored and its
	// contribution was defaulted to an empty finding list.
	Failed bool `json:"failed"`
}

// CrossUnitPatterns counts agreement patterns observed across units.
type CrossUnitPatterns struct {
	// ConflictingSignals counts pharmacies where at least one unit scored
	// >= 0.8 while another scored < 0.4.
	ConflictingSignals int `json:"conflicting_signals"`

	// HighConsistency counts pharmacies where three or more units agreed
	// on a high (>= 0.8) or low (< 0.4) assessment.
	HighConsistency int `json:"high_consistency"`

	// DoubleFlags counts pharmacies scored >= 0.8 by both the coverage
	// and patient-flip units.
	DoubleFlags int `json:"double_flags"`
}

// RunInsights is the run-level summary exposed alongside the ranked scores.
type RunInsights struct {
	// TotalEntities is the number of pharmacies in the aggregation domain.
	TotalEntities int `json:"total_entities"`

	// RiskCounts is the number of pharmacies per risk band.
	RiskCounts map[RiskLevel]int `json:"risk_counts"`

	// UnitReports summarizes each unit's contribution, keyed by unit name.
	UnitReports map[string]UnitReport `json:"unit_reports"`

	// Patterns counts cross-unit agreement patterns.
	Patterns CrossUnitPatterns `json:"patterns"`

	// Recommendations are operator hints derived from the counters.
	Recommendations []string `json:"recommendations,omitempty"`
}

// RunResult is the complete outcome of one scoring run. A run always
// produces a RunResult; degraded stages surface only as reduced counts,
// never as a missing result.
type RunResult struct {
	// RunID identifies the run.
	RunID string `json:"run_id"`

	// StartedAt and Duration describe the run's execution window.
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	// Scores is the ranked aggregated score list, highest risk first.
	Scores []AggregatedScore `json:"scores"`

	// Findings is the raw per-unit finding map.
	Findings map[string][]Finding `json:"findings"`

	// Insights is the run-level summary.
	Insights *RunInsights `json:"insights"`
}
