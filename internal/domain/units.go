package domain

// Canonical scoring unit names. These key the per-unit finding map, the
// weight vector, and the unit reports in the run insights.
const (
	UnitCoverage    = "coverage"
	UnitHighDollar  = "high_dollar"
	UnitRejection   = "rejection"
	UnitPatientFlip = "patient_flip"
	UnitNetwork     = "network"
)

// DefaultWeights is the shipped weight distribution over the canonical
// unit set. Overridable per deployment through the engine configuration
// and at runtime through the weights update operation.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		UnitCoverage:    0.25,
		UnitHighDollar:  0.20,
		UnitRejection:   0.20,
		UnitPatientFlip: 0.20,
		UnitNetwork:     0.15,
	}
}
