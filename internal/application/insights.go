package application

import (
	"math"
	"sort"

	"github.com/rxguard/rxguard/internal/domain"
)

// Recommendation trigger thresholds, tuned for batch sizes in the
// hundreds of pharmacies.
const (
	recommendHighRiskCount    = 10
	recommendMediumRiskCount  = 20
	recommendConflictingCount = 5
	recommendConsistencyCount = 10
)

// BuildInsights derives the run-level summary from the ranked scores and
// the raw per-unit finding map. failedUnits names the units whose
// execution errored; they appear in the unit reports with Failed set and
// zeroed statistics. Deterministic for fixed inputs: recommendations are
// appended in a fixed order and unit reports are keyed, not ordered.
func BuildInsights(scores []domain.AggregatedScore, findings map[string][]domain.Finding, failedUnits []string) *domain.RunInsights {
	insights := &domain.RunInsights{
		TotalEntities: len(scores),
		RiskCounts:    make(map[domain.RiskLevel]int, 4),
		UnitReports:   make(map[string]domain.UnitReport, len(findings)),
	}

	for _, s := range scores {
		insights.RiskCounts[s.RiskLevel]++
	}

	failed := make(map[string]bool, len(failedUnits))
	for _, unit := range failedUnits {
		failed[unit] = true
	}
	for unit, list := range findings {
		insights.UnitReports[unit] = unitReport(list, failed[unit])
	}

	insights.Patterns = crossUnitPatterns(scores, findings)
	insights.Recommendations = recommendations(insights)
	return insights
}

func unitReport(findings []domain.Finding, failed bool) domain.UnitReport {
	report := domain.UnitReport{Findings: len(findings), Failed: failed}
	if len(findings) == 0 {
		return report
	}

	var sum float64
	for _, f := range findings {
		sum += f.Score
		if f.Score >= highSignalThreshold {
			report.HighRiskFindings++
		}
	}
	report.AvgScore = round3(sum / float64(len(findings)))
	return report
}

// crossUnitPatterns counts agreement patterns per pharmacy: conflicting
// signals (a high and a low assessment from different units), high
// consistency (three or more units agreeing on one direction), and
// double flags (coverage and patient-flip both high, the strongest
// compound indicator of cash-conversion fraud).
func crossUnitPatterns(scores []domain.AggregatedScore, findings map[string][]domain.Finding) domain.CrossUnitPatterns {
	byEntity := indexFindings(findings)

	var patterns domain.CrossUnitPatterns
	for _, s := range scores {
		unitFindings := byEntity[s.EntityID]
		if len(unitFindings) == 0 {
			continue
		}

		var high, low int
		for _, f := range unitFindings {
			if f.Score >= highSignalThreshold {
				high++
			}
			if f.Score < lowSignalThreshold {
				low++
			}
		}

		if high > 0 && low > 0 {
			patterns.ConflictingSignals++
		}
		if high >= 3 || low >= 3 {
			patterns.HighConsistency++
		}

		coverage, hasCoverage := unitFindings[domain.UnitCoverage]
		flip, hasFlip := unitFindings[domain.UnitPatientFlip]
		if hasCoverage && hasFlip &&
			coverage.Score >= highSignalThreshold && flip.Score >= highSignalThreshold {
			patterns.DoubleFlags++
		}
	}
	return patterns
}

func recommendations(insights *domain.RunInsights) []string {
	var recs []string
	if insights.RiskCounts[domain.RiskHigh] > recommendHighRiskCount {
		recs = append(recs, "high number of high-risk pharmacies detected, consider manual review")
	}
	if insights.RiskCounts[domain.RiskMedium] > recommendMediumRiskCount {
		recs = append(recs, "many medium-risk pharmacies, consider adjusting thresholds")
	}
	if insights.Patterns.ConflictingSignals > recommendConflictingCount {
		recs = append(recs, "multiple conflicting signals detected, review unit weights")
	}
	if insights.Patterns.HighConsistency > recommendConsistencyCount {
		recs = append(recs, "high cross-unit agreement detected, consider increasing confidence threshold")
	}

	failedUnits := make([]string, 0, len(insights.UnitReports))
	for unit, report := range insights.UnitReports {
		if report.Failed {
			failedUnits = append(failedUnits, unit)
		}
	}
	sort.Strings(failedUnits)
	for _, unit := range failedUnits {
		recs = append(recs, "scoring unit "+unit+" failed this run, its signal is missing from all scores")
	}
	return recs
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
