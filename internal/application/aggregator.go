package application

import (
	"math"
	"sort"

	"github.com/rxguard/rxguard/internal/domain"
)

// Fixed blend constants for the final composite score. Raw weighted
// evidence dominates; cross-unit agreement is a moderate corrective and
// population-relative standing a minor one.
const (
	weightedShare    = 0.7
	consistencyShare = 0.2
	outlierShare     = 0.1
)

// Consistency buckets. The consistency score is always exactly one of
// these four values.
const (
	consistencyConflicting  = 0.3
	consistencyHigh         = 0.9
	consistencyLow          = 0.1
	consistencyInconclusive = 0.5
)

// Agreement thresholds shared by the consistency score and the
// cross-unit pattern counters.
const (
	highSignalThreshold = 0.8
	lowSignalThreshold  = 0.4
)

// Aggregator merges the per-unit finding sets of one run into a ranked
// composite score per pharmacy. Aggregation is a pure function of the
// finding sets and the weight vector in force: re-running it over the
// same inputs reproduces identical output.
type Aggregator struct {
	weights *domain.WeightVector
}

// NewAggregator creates an aggregator bound to the given weight vector.
// The vector is read at aggregation time; callers must not update it
// concurrently with an in-flight run.
func NewAggregator(weights *domain.WeightVector) *Aggregator {
	return &Aggregator{weights: weights}
}

// Weights exposes the aggregator's weight vector for the control surface.
func (a *Aggregator) Weights() *domain.WeightVector { return a.weights }

// Aggregate computes one AggregatedScore per pharmacy that appears in at
// least one unit's findings. Pharmacies flagged by no unit are excluded
// entirely; there are no synthetic zero-score entries. The returned list
// is sorted by final score descending with a dense 1-based rank.
func (a *Aggregator) Aggregate(findings map[string][]domain.Finding, claims []domain.Claim) []domain.AggregatedScore {
	byEntity := indexFindings(findings)
	if len(byEntity) == 0 {
		return []domain.AggregatedScore{}
	}

	globalMean, globalStd := scorePopulationStats(findings)
	claimsByEntity := indexClaims(claims)

	entities := make([]string, 0, len(byEntity))
	for entity := range byEntity {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	scores := make([]domain.AggregatedScore, 0, len(entities))
	for _, entity := range entities {
		unitFindings := byEntity[entity]

		units := make([]string, 0, len(unitFindings))
		for unit := range unitFindings {
			units = append(units, unit)
		}
		sort.Strings(units)

		var weighted float64
		unitScores := make(map[string]float64, len(units))
		unitReasons := make(map[string]string, len(units))
		for _, unit := range units {
			f := unitFindings[unit]
			weighted += f.Score * a.weights.Weight(unit)
			unitScores[unit] = f.Score
			unitReasons[unit] = f.Reason
		}

		consistency := consistencyScore(unitScores)
		outlier := outlierScore(unitScores, globalMean, globalStd)
		final := weightedShare*weighted + consistencyShare*consistency + outlierShare*outlier

		entityClaims := claimsByEntity[entity]
		score := domain.AggregatedScore{
			EntityID:          entity,
			WeightedScore:     weighted,
			ConsistencyScore:  consistency,
			OutlierScore:      outlier,
			FinalScore:        final,
			RiskLevel:         domain.RiskLevelForScore(final),
			ContributingUnits: units,
			Explanation:       BuildExplanation(unitScores, unitReasons, entityClaims),
			TransactionCount:  len(entityClaims),
		}
		if len(entityClaims) > 0 {
			score.PharmacyName = entityClaims[0].PharmacyName
			score.PharmacyCity = entityClaims[0].PharmacyCity
			score.PharmacyState = entityClaims[0].PharmacyState
		}
		scores = append(scores, score)
	}

	SortAndRank(scores)
	return scores
}

// SortAndRank orders scores by final score descending, breaking ties by
// entity id for deterministic output, and assigns a dense 1-based rank.
// It is idempotent; the finalize stage re-applies it after any late
// mutation of the score list.
func SortAndRank(scores []domain.AggregatedScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].FinalScore != scores[j].FinalScore {
			return scores[i].FinalScore > scores[j].FinalScore
		}
		return scores[i].EntityID < scores[j].EntityID
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
}

// indexFindings builds the per-entity, per-unit finding index. Units
// produce at most one finding per entity; if a unit misbehaves and emits
// duplicates, the first finding wins.
func indexFindings(findings map[string][]domain.Finding) map[string]map[string]domain.Finding {
	byEntity := make(map[string]map[string]domain.Finding)
	for unit, list := range findings {
		for _, f := range list {
			perUnit, ok := byEntity[f.EntityID]
			if !ok {
				perUnit = make(map[string]domain.Finding)
				byEntity[f.EntityID] = perUnit
			}
			if _, exists := perUnit[unit]; exists {
				continue
			}
			perUnit[unit] = f
		}
	}
	return byEntity
}

// indexClaims groups the claim snapshot by pharmacy, built once per run
// so per-entity lookups stay linear in the number of claims.
func indexClaims(claims []domain.Claim) map[string][]domain.Claim {
	byEntity := make(map[string][]domain.Claim)
	for _, c := range claims {
		byEntity[c.PharmacyID] = append(byEntity[c.PharmacyID], c)
	}
	return byEntity
}

// consistencyScore categorizes the agreement among the units that scored
// one pharmacy. Fewer than two contributing units is inconclusive; a mix
// of high and low signals is conflicting; otherwise the dominant signal
// direction decides.
func consistencyScore(unitScores map[string]float64) float64 {
	if len(unitScores) < 2 {
		return consistencyInconclusive
	}

	var high, low bool
	for _, s := range unitScores {
		if s >= highSignalThreshold {
			high = true
		}
		if s < lowSignalThreshold {
			low = true
		}
	}

	switch {
	case high && low:
		return consistencyConflicting
	case high:
		return consistencyHigh
	case low:
		return consistencyLow
	default:
		return consistencyInconclusive
	}
}

// outlierScore maps the pharmacy's mean unit score onto (0, 1) via a
// sigmoid-transformed z-score against the pooled population of every
// finding score in the run. A zero population deviation yields the
// neutral 0.5: there is no distribution to be an outlier against.
func outlierScore(unitScores map[string]float64, globalMean, globalStd float64) float64 {
	if globalStd == 0 || len(unitScores) == 0 {
		return 0.5
	}

	var sum float64
	for _, s := range unitScores {
		sum += s
	}
	entityMean := sum / float64(len(unitScores))

	z := (entityMean - globalMean) / globalStd
	return 1 / (1 + math.Exp(-z))
}

// scorePopulationStats computes the mean and population standard
// deviation over every score from every finding across every unit in
// the run.
func scorePopulationStats(findings map[string][]domain.Finding) (mean, std float64) {
	var sum float64
	var n int
	for _, list := range findings {
		for _, f := range list {
			sum += f.Score
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)

	var sq float64
	for _, list := range findings {
		for _, f := range list {
			d := f.Score - mean
			sq += d * d
		}
	}
	std = math.Sqrt(sq / float64(n))
	return mean, std
}
