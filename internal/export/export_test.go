package export

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxguard/rxguard/internal/domain"
)

func sampleResult() *domain.RunResult {
	return &domain.RunResult{
		RunID:     "ab12cd34",
		StartedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Scores: []domain.AggregatedScore{
			{
				EntityID:          "PH1",
				PharmacyName:      "Main St Pharmacy",
				PharmacyCity:      "Austin",
				PharmacyState:     "TX",
				WeightedScore:     0.74,
				ConsistencyScore:  0.9,
				OutlierScore:      0.5,
				FinalScore:        0.748,
				RiskLevel:         domain.RiskMedium,
				ContributingUnits: []string{"coverage", "rejection"},
				Explanation:       "MEDIUM RISK from 2 units: high risk, high risk",
				Rank:              1,
				TransactionCount:  42,
			},
			{
				EntityID:         "PH2",
				PharmacyName:     "Corner Drugs",
				FinalScore:       0.31,
				RiskLevel:        domain.RiskVeryLow,
				Rank:             2,
				TransactionCount: 7,
			},
		},
		Findings: map[string][]domain.Finding{},
		Insights: &domain.RunInsights{
			TotalEntities: 2,
			RiskCounts: map[domain.RiskLevel]int{
				domain.RiskMedium:  1,
				domain.RiskVeryLow: 1,
			},
			Recommendations: []string{"review weight allocation"},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteJSON(&buf, sampleResult()))

	var decoded domain.RunResult
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &decoded))
	assert.Equal(t, "ab12cd34", decoded.RunID)
	require.Len(t, decoded.Scores, 2)
	assert.Equal(t, domain.RiskMedium, decoded.Scores[0].RiskLevel)
}

func TestWriteCSV(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteCSV(&buf, sampleResult().Scores))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{
		"1", "PH1", "Main St Pharmacy", "Austin", "TX",
		"0.748", "MEDIUM", "0.740", "0.900", "0.500",
		"42", "coverage;rejection",
		"MEDIUM RISK from 2 units: high risk, high risk",
	}, records[1])
	assert.Equal(t, "2", records[2][0])
}

func TestWriteCSV_EmptyScores(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1, "header only")
}

func TestWriteTable(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteTable(&buf, sampleResult(), 10))

	out := buf.String()
	assert.Contains(t, out, "run ab12cd34: 2 pharmacies scored")
	assert.Contains(t, out, "PH1")
	assert.Contains(t, out, "coverage,rejection")
	assert.Contains(t, out, "risk bands: HIGH=0 MEDIUM=1 LOW=0 VERY_LOW=1")
	assert.Contains(t, out, "note: review weight allocation")
}

func TestWriteTable_LimitsRows(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteTable(&buf, sampleResult(), 1))

	out := buf.String()
	assert.Contains(t, out, "PH1")
	assert.NotContains(t, out, "PH2")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 30))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
