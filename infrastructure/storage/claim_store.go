package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rxguard/rxguard/internal/domain"
	"github.com/rxguard/rxguard/internal/ports"
)

var _ ports.ClaimLoader = (*SQLClaimStore)(nil)

// SQLClaimStore loads the claim snapshot from a SQL Server copay detail
// table. It implements ports.ClaimLoader over database/sql, so tests can
// substitute a mock driver and deployments can point it at any
// SQL-compatible warehouse.
type SQLClaimStore struct {
	db     *sql.DB
	table  string
	limit  int
	logger zerolog.Logger
}

// NewSQLClaimStore creates a claim store reading from the given table.
// limit caps the rows loaded per run; zero disables the cap.
func NewSQLClaimStore(db *sql.DB, table string, limit int, logger zerolog.Logger) *SQLClaimStore {
	if table == "" {
		table = defaultTable
	}
	return &SQLClaimStore{db: db, table: table, limit: limit, logger: logger}
}

// Open connects to the warehouse described by cfg and verifies the
// connection before returning a store bound to it.
func Open(ctx context.Context, cfg *Config, logger zerolog.Logger) (*SQLClaimStore, *sql.DB, error) {
	db, err := sql.Open("sqlserver", cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open warehouse connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping warehouse: %w", err)
	}
	return NewSQLClaimStore(db, cfg.Table, cfg.Limit, logger), db, nil
}

// claimColumns are the source columns consumed by the scoring units, in
// scan order.
var claimColumns = []string{
	"pharmacy_number",
	"pharmacy_name",
	"pharmacy_city",
	"pharmacy_state",
	"patient_id",
	"product_ndc",
	"product_name",
	"coverage_type",
	"occ",
	"copay_cost",
	"oop_cost",
	"copay_fee_cost",
	"original_cost",
	"date_submitted",
	"is_network_pharmacy",
	"network_pharmacy_group_type",
	"claim_cob_primary_reject_code1",
	"claim_cob_primary_reject_code2",
	"pa_rejection_code_1",
	"pa_rejection_code_2",
	"latest_pa_status_code",
	"latest_pa_status_desc",
}

// Load reads the claim snapshot for one run. Rows with NULL fields map
// to the domain zero values, except the other-coverage code where NULL
// becomes -1 to distinguish "absent" from code 0.
func (s *SQLClaimStore) Load(ctx context.Context) ([]domain.Claim, error) {
	query := s.buildQuery()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	var claims []domain.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim row: %w", err)
		}
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claim rows: %w", err)
	}

	s.logger.Info().
		Int("claims", len(claims)).
		Dur("elapsed", time.Since(start)).
		Str("table", s.table).
		Msg("claim snapshot loaded")
	return claims, nil
}

func (s *SQLClaimStore) buildQuery() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.limit > 0 {
		fmt.Fprintf(&b, "TOP %d ", s.limit)
	}
	b.WriteString(strings.Join(claimColumns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(s.table)
	return b.String()
}

func scanClaim(rows *sql.Rows) (domain.Claim, error) {
	var (
		c             domain.Claim
		name          sql.NullString
		city          sql.NullString
		state         sql.NullString
		productName   sql.NullString
		coverageType  sql.NullString
		occ           sql.NullInt64
		copay         sql.NullFloat64
		oop           sql.NullFloat64
		fee           sql.NullFloat64
		original      sql.NullFloat64
		dateSubmitted sql.NullTime
		network       sql.NullString
		networkType   sql.NullString
		reject1       sql.NullString
		reject2       sql.NullString
		paReject1     sql.NullString
		paReject2     sql.NullString
		paStatusCode  sql.NullString
		paStatusDesc  sql.NullString
	)

	err := rows.Scan(
		&c.PharmacyID, &name, &city, &state,
		&c.PatientID, &c.ProductNDC, &productName,
		&coverageType, &occ,
		&copay, &oop, &fee, &original,
		&dateSubmitted,
		&network, &networkType,
		&reject1, &reject2, &paReject1, &paReject2,
		&paStatusCode, &paStatusDesc,
	)
	if err != nil {
		return domain.Claim{}, err
	}

	c.PharmacyName = name.String
	c.PharmacyCity = city.String
	c.PharmacyState = state.String
	c.ProductName = productName.String
	c.CoverageType = coverageType.String
	c.CopayCost = copay.Float64
	c.OOPCost = oop.Float64
	c.CopayFeeCost = fee.Float64
	c.OriginalCost = original.Float64
	c.DateSubmitted = dateSubmitted.Time
	c.NetworkPharmacy = network.String == "Y"
	c.NetworkGroupType = networkType.String
	c.PrimaryRejectCode1 = reject1.String
	c.PrimaryRejectCode2 = reject2.String
	c.PARejectionCode1 = paReject1.String
	c.PARejectionCode2 = paReject2.String
	c.LatestPAStatusCode = paStatusCode.String
	c.LatestPAStatusDesc = paStatusDesc.String

	c.OCC = -1
	if occ.Valid {
		c.OCC = int(occ.Int64)
	}
	return c, nil
}
