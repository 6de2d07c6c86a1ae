// Package export renders run results for downstream consumers: stable
// JSON for programmatic use and CSV or a terminal table for operators.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rxguard/rxguard/internal/domain"
)

// csvHeader is the stable column contract for exported score lists.
var csvHeader = []string{
	"rank", "entity_id", "pharmacy_name", "pharmacy_city", "pharmacy_state",
	"final_score", "risk_level", "weighted_score", "consistency_score",
	"outlier_score", "transaction_count", "contributing_units", "explanation",
}

// WriteJSON encodes the complete run result as indented JSON.
func WriteJSON(w io.Writer, result *domain.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// WriteCSV writes the ranked score list as CSV with a fixed header.
// Contributing units are joined with ";" inside their cell.
func WriteCSV(w io.Writer, scores []domain.AggregatedScore) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, s := range scores {
		record := []string{
			strconv.Itoa(s.Rank),
			s.EntityID,
			s.PharmacyName,
			s.PharmacyCity,
			s.PharmacyState,
			formatScore(s.FinalScore),
			string(s.RiskLevel),
			formatScore(s.WeightedScore),
			formatScore(s.ConsistencyScore),
			formatScore(s.OutlierScore),
			strconv.Itoa(s.TransactionCount),
			strings.Join(s.ContributingUnits, ";"),
			s.Explanation,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteTable renders a compact operator summary of the top scores and
// the run insights.
func WriteTable(w io.Writer, result *domain.RunResult, limit int) error {
	if limit <= 0 || limit > len(result.Scores) {
		limit = len(result.Scores)
	}

	fmt.Fprintf(w, "run %s: %d pharmacies scored in %s\n\n",
		result.RunID, len(result.Scores), result.Duration.Round(1e6))

	fmt.Fprintf(w, "%-5s %-12s %-30s %-8s %-9s %s\n",
		"RANK", "PHARMACY", "NAME", "SCORE", "RISK", "UNITS")
	for _, s := range result.Scores[:limit] {
		fmt.Fprintf(w, "%-5d %-12s %-30s %-8s %-9s %s\n",
			s.Rank, s.EntityID, truncate(s.PharmacyName, 30),
			formatScore(s.FinalScore), s.RiskLevel,
			strings.Join(s.ContributingUnits, ","))
	}

	if result.Insights != nil {
		fmt.Fprintf(w, "\nrisk bands: HIGH=%d MEDIUM=%d LOW=%d VERY_LOW=%d\n",
			result.Insights.RiskCounts[domain.RiskHigh],
			result.Insights.RiskCounts[domain.RiskMedium],
			result.Insights.RiskCounts[domain.RiskLow],
			result.Insights.RiskCounts[domain.RiskVeryLow])
		for _, rec := range result.Insights.Recommendations {
			fmt.Fprintf(w, "note: %s\n", rec)
		}
	}
	return nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
