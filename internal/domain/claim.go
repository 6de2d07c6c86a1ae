package domain

import "time"

// Claim represents one observed pharmacy transaction. Claims are loaded
// once per run and are read-only for every scoring unit; the engine never
// mutates a Claim after the load stage hands it to the pipeline.
type Claim struct {
	// PharmacyID is the stable key identifying the scored entity.
	PharmacyID string `json:"pharmacy_id"`

	// PharmacyName, PharmacyCity, and PharmacyState describe the pharmacy
	// for reporting; they do not participate in scoring.
	PharmacyName  string `json:"pharmacy_name"`
	PharmacyCity  string `json:"pharmacy_city"`
	PharmacyState string `json:"pharmacy_state"`

	// PatientID identifies the patient for patient-level pattern analysis.
	PatientID string `json:"patient_id"`

	// ProductNDC and ProductName identify the dispensed product.
	ProductNDC  string `json:"product_ndc"`
	ProductName string `json:"product_name"`

	// CoverageType is the categorical coverage label for this claim
	// (e.g. "Cash", "Not Covered", "Well Covered", "Covered - HD").
	CoverageType string `json:"coverage_type"`

	// OCC is the other-coverage code reported on the claim. Negative
	// values indicate the code was absent from the source row.
	OCC int `json:"occ"`

	// Cost fields in dollars.
	CopayCost    float64 `json:"copay_cost"`
	OOPCost      float64 `json:"oop_cost"`
	CopayFeeCost float64 `json:"copay_fee_cost"`
	OriginalCost float64 `json:"original_cost"`

	// DateSubmitted is when the claim was submitted.
	DateSubmitted time.Time `json:"date_submitted"`

	// NetworkPharmacy reports whether the dispensing pharmacy is in
	// network for this claim.
	NetworkPharmacy bool `json:"is_network_pharmacy"`

	// NetworkGroupType is the pharmacy's network group classification
	// (e.g. "Independent", "Small Chain"); empty when unknown.
	NetworkGroupType string `json:"network_pharmacy_group_type"`

	// Rejection indicators carried from the adjudication trail.
	PrimaryRejectCode1 string `json:"claim_cob_primary_reject_code1"`
	PrimaryRejectCode2 string `json:"claim_cob_primary_reject_code2"`
	PARejectionCode1   string `json:"pa_rejection_code_1"`
	PARejectionCode2   string `json:"pa_rejection_code_2"`
	LatestPAStatusCode string `json:"latest_pa_status_code"`
	LatestPAStatusDesc string `json:"latest_pa_status_desc"`
}
