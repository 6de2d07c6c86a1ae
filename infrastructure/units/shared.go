// Package units provides the built-in fraud scoring units that implement
// the ports.ScoringUnit interface for the pharmacy claim scoring engine.
package units

import (
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"

	"github.com/rxguard/rxguard/internal/domain"
)

// Common errors returned by scoring units.
var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an
	// empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// foldCaser performs Unicode-aware case folding for case-insensitive
// matching of coverage labels and adjudication status text.
var foldCaser = cases.Fold()

// groupByPharmacy indexes the claim snapshot by pharmacy id. Iterate the
// result via sortedPharmacies for deterministic finding order.
func groupByPharmacy(claims []domain.Claim) map[string][]domain.Claim {
	groups := make(map[string][]domain.Claim)
	for _, c := range claims {
		groups[c.PharmacyID] = append(groups[c.PharmacyID], c)
	}
	return groups
}

// sortedPharmacies returns the group keys in sorted order.
func sortedPharmacies(groups map[string][]domain.Claim) []string {
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// isCashCoverage reports whether the coverage label marks a claim the plan
// did not pay for.
func isCashCoverage(coverageType string) bool {
	switch foldCaser.String(coverageType) {
	case "cash", "not covered":
		return true
	}
	return false
}

// isInsuranceCoverage reports whether the coverage label marks a claim
// adjudicated through insurance.
func isInsuranceCoverage(coverageType string) bool {
	switch foldCaser.String(coverageType) {
	case "well covered", "covered - hd":
		return true
	}
	return false
}

// rejectionStatusTerms are the adjudication status substrings treated as
// rejection indicators, compared after case folding.
var rejectionStatusTerms = []string{"reject", "denied", "failed"}

// statusIndicatesRejection reports whether the PA status description
// contains a rejection term, case-insensitively.
func statusIndicatesRejection(statusDesc string) bool {
	if statusDesc == "" {
		return false
	}
	folded := foldCaser.String(statusDesc)
	for _, term := range rejectionStatusTerms {
		if strings.Contains(folded, term) {
			return true
		}
	}
	return false
}

// hasRejectionIndicator reports whether a claim carries any rejection
// signal: a primary reject code, a PA rejection code, or a PA status
// description containing a rejection term.
func hasRejectionIndicator(c domain.Claim) bool {
	if c.PrimaryRejectCode1 != "" || c.PrimaryRejectCode2 != "" {
		return true
	}
	if c.PARejectionCode1 != "" || c.PARejectionCode2 != "" {
		return true
	}
	return statusIndicatesRejection(c.LatestPAStatusDesc)
}
