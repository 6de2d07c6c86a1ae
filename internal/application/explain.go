package application

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rxguard/rxguard/internal/domain"
)

// Transaction thresholds for the explanation's high-dollar clause. These
// mirror the high-dollar unit's primary filters so the explanation and
// the finding agree on what "high-dollar" means.
const (
	explainCopayThreshold = 200.0
	explainOOPThreshold   = 500.0
)

// BuildExplanation renders the audit string for one pharmacy's composite
// score. It buckets contributing units into high (>= 0.8) and medium
// ([0.6, 0.8)) clauses carrying the units' own reason strings, appends
// transaction-level percentages when claim rows are available, and falls
// back to a fixed neutral message when nothing applies. Pure function of
// its inputs; unit names are iterated in sorted order so the rendered
// string is stable across runs.
func BuildExplanation(unitScores map[string]float64, unitReasons map[string]string, claims []domain.Claim) string {
	units := make([]string, 0, len(unitScores))
	for unit := range unitScores {
		units = append(units, unit)
	}
	sort.Strings(units)

	var highReasons, mediumReasons []string
	for _, unit := range units {
		score := unitScores[unit]
		switch {
		case score >= 0.8:
			highReasons = append(highReasons, reasonOrDefault(unitReasons, unit, "high risk"))
		case score >= 0.6:
			mediumReasons = append(mediumReasons, reasonOrDefault(unitReasons, unit, "medium risk"))
		}
	}

	var parts []string
	if len(highReasons) > 0 {
		parts = append(parts, fmt.Sprintf("HIGH RISK from %d units: %s",
			len(highReasons), strings.Join(highReasons, ", ")))
	}
	if len(mediumReasons) > 0 {
		parts = append(parts, fmt.Sprintf("MEDIUM RISK from %d units: %s",
			len(mediumReasons), strings.Join(mediumReasons, ", ")))
	}

	if clause := transactionClause(claims); clause != "" {
		parts = append(parts, clause)
	}

	if len(parts) == 0 {
		return "no significant fraud indicators detected"
	}
	return strings.Join(parts, " | ")
}

func reasonOrDefault(reasons map[string]string, unit, fallback string) string {
	if r, ok := reasons[unit]; ok && r != "" {
		return r
	}
	return fallback
}

// transactionClause summarizes the pharmacy's claim rows: the share of
// cash or uncovered claims and the share of high-dollar claims, each
// included only when non-zero. Returns "" when no claims are available
// or neither share applies.
func transactionClause(claims []domain.Claim) string {
	if len(claims) == 0 {
		return ""
	}

	var cash, highDollar int
	for _, c := range claims {
		if isCashOrUncovered(c.CoverageType) {
			cash++
		}
		if c.CopayCost > explainCopayThreshold || c.OOPCost > explainOOPThreshold {
			highDollar++
		}
	}

	total := float64(len(claims))
	var insights []string
	if cash > 0 {
		insights = append(insights, fmt.Sprintf("%.1f%% cash/not covered claims", float64(cash)/total*100))
	}
	if highDollar > 0 {
		insights = append(insights, fmt.Sprintf("%.1f%% high-dollar claims", float64(highDollar)/total*100))
	}
	if len(insights) == 0 {
		return ""
	}
	return "transaction analysis: " + strings.Join(insights, ", ")
}

// isCashOrUncovered reports whether the coverage label marks a claim the
// plan did not pay for.
func isCashOrUncovered(coverageType string) bool {
	switch coverageType {
	case "Cash", "Not Covered":
		return true
	}
	return false
}
