package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rxguard/rxguard/internal/domain"
	"github.com/rxguard/rxguard/internal/ports"
)

// Pipeline stage names, used in logs, metrics labels, and stage errors.
const (
	stageLoad      = "load"
	stageExecute   = "execute_units"
	stageAggregate = "aggregate"
	stageFinalize  = "finalize"
)

// Orchestrator drives one scoring run through its four stages: load the
// claim snapshot, execute the scoring units, aggregate the findings, and
// finalize the ranked result with run-level insights.
//
// The run is fail-soft. Every stage executes behind a boundary that
// catches errors and panics, substitutes the stage's safe-empty output,
// and lets the remaining stages proceed. A run therefore always yields a
// RunResult; degradation shows up as reduced counts and logged stage
// errors, never as a missing result.
type Orchestrator struct {
	loader     ports.ClaimLoader
	pool       *ExecutionPool
	aggregator *Aggregator
	metrics    ports.MetricsCollector
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewOrchestrator wires the pipeline from its collaborators. The metrics
// collector may not be nil; pass a no-op implementation when metrics are
// not wanted.
func NewOrchestrator(
	loader ports.ClaimLoader,
	pool *ExecutionPool,
	aggregator *Aggregator,
	metrics ports.MetricsCollector,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		loader:     loader,
		pool:       pool,
		aggregator: aggregator,
		metrics:    metrics,
		logger:     logger,
		tracer:     otel.Tracer("pipeline"),
	}
}

// stage is one pipeline step. run produces the next state; fallback
// writes the stage's safe-empty output into the state when run fails.
type stage struct {
	name     string
	run      func(context.Context, domain.State) (domain.State, error)
	fallback func(domain.State) domain.State
}

// Run executes one complete scoring run and returns its result. Run
// never returns an error: stage failures are absorbed at the stage
// boundary and reflected in the result's counts and insights.
func (o *Orchestrator) Run(ctx context.Context) *domain.RunResult {
	runID := newRunID()
	startedAt := time.Now()

	ctx, span := o.tracer.Start(ctx, "Pipeline.Run",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	logger := o.logger.With().Str("run_id", runID).Logger()
	logger.Info().Msg("scoring run started")

	state := domain.NewState().WithRunContext(domain.RunContext{
		RunID:     runID,
		StartedAt: startedAt,
	})

	for _, st := range o.stages() {
		state = o.runStage(ctx, logger, state, st)
	}

	result := o.assembleResult(runID, startedAt, state)
	o.recordRunMetrics(result)

	logger.Info().
		Int("entities", len(result.Scores)).
		Dur("duration", result.Duration).
		Msg("scoring run completed")
	return result
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{
			name: stageLoad,
			run: func(ctx context.Context, s domain.State) (domain.State, error) {
				claims, err := o.loader.Load(ctx)
				if err != nil {
					return s, err
				}
				return domain.With(s, domain.KeyClaims, claims), nil
			},
			fallback: func(s domain.State) domain.State {
				return domain.With(s, domain.KeyClaims, []domain.Claim{})
			},
		},
		{
			name: stageExecute,
			run: func(ctx context.Context, s domain.State) (domain.State, error) {
				claims, _ := domain.Get(s, domain.KeyClaims)
				if len(claims) == 0 {
					o.logger.Warn().Msg("empty claim dataset, units will produce no findings")
				}
				findings, failed := o.pool.Execute(ctx, claims)
				s = domain.With(s, domain.KeyFindings, findings)
				return domain.With(s, domain.KeyUnitFailures, failed), nil
			},
			fallback: func(s domain.State) domain.State {
				s = domain.With(s, domain.KeyFindings, map[string][]domain.Finding{})
				return domain.With(s, domain.KeyUnitFailures, []string{})
			},
		},
		{
			name: stageAggregate,
			run: func(_ context.Context, s domain.State) (domain.State, error) {
				findings, _ := domain.Get(s, domain.KeyFindings)
				claims, _ := domain.Get(s, domain.KeyClaims)
				scores := o.aggregator.Aggregate(findings, claims)
				return domain.With(s, domain.KeyScores, scores), nil
			},
			fallback: func(s domain.State) domain.State {
				return domain.With(s, domain.KeyScores, []domain.AggregatedScore{})
			},
		},
		{
			name: stageFinalize,
			run: func(_ context.Context, s domain.State) (domain.State, error) {
				scores, _ := domain.Get(s, domain.KeyScores)
				findings, _ := domain.Get(s, domain.KeyFindings)
				failed, _ := domain.Get(s, domain.KeyUnitFailures)

				SortAndRank(scores)
				insights := BuildInsights(scores, findings, failed)

				s = domain.With(s, domain.KeyScores, scores)
				return domain.With(s, domain.KeyInsights, insights), nil
			},
			fallback: func(s domain.State) domain.State {
				return domain.With(s, domain.KeyInsights, &domain.RunInsights{
					RiskCounts:  map[domain.RiskLevel]int{},
					UnitReports: map[string]domain.UnitReport{},
				})
			},
		},
	}
}

// runStage executes one stage behind the error and panic boundary. On
// failure the stage's fallback writes its safe-empty output into the
// incoming state, so downstream stages always find their inputs present.
func (o *Orchestrator) runStage(ctx context.Context, logger zerolog.Logger, state domain.State, st stage) domain.State {
	start := time.Now()

	next, err := func() (s domain.State, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return st.run(ctx, state)
	}()

	o.metrics.RecordLatency("pipeline_stage", time.Since(start), map[string]string{"stage": st.name})

	if err != nil {
		stageErr := &domain.StageError{Stage: st.name, Err: err}
		logger.Error().Err(stageErr).Str("stage", st.name).Msg("pipeline stage failed, continuing with safe default")
		o.metrics.RecordCounter("pipeline_stage_failures", 1, map[string]string{"stage": st.name})
		return st.fallback(state)
	}
	return next
}

func (o *Orchestrator) assembleResult(runID string, startedAt time.Time, state domain.State) *domain.RunResult {
	scores, _ := domain.Get(state, domain.KeyScores)
	findings, _ := domain.Get(state, domain.KeyFindings)
	insights, _ := domain.Get(state, domain.KeyInsights)

	if scores == nil {
		scores = []domain.AggregatedScore{}
	}
	if findings == nil {
		findings = map[string][]domain.Finding{}
	}

	return &domain.RunResult{
		RunID:     runID,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Scores:    scores,
		Findings:  findings,
		Insights:  insights,
	}
}

func (o *Orchestrator) recordRunMetrics(result *domain.RunResult) {
	o.metrics.RecordLatency("scoring_run", result.Duration, nil)
	o.metrics.RecordGauge("scored_entities", float64(len(result.Scores)), nil)

	if result.Insights == nil {
		return
	}
	for _, level := range []domain.RiskLevel{domain.RiskHigh, domain.RiskMedium, domain.RiskLow, domain.RiskVeryLow} {
		o.metrics.RecordGauge("risk_band_population",
			float64(result.Insights.RiskCounts[level]),
			map[string]string{"level": string(level)})
	}
	for _, unit := range o.failedUnitNames(result.Insights) {
		o.metrics.RecordCounter("unit_failures", 1, map[string]string{"unit": unit})
	}
}

func (o *Orchestrator) failedUnitNames(insights *domain.RunInsights) []string {
	var failed []string
	for unit, report := range insights.UnitReports {
		if report.Failed {
			failed = append(failed, unit)
		}
	}
	return failed
}

// newRunID returns a 16-character random hex identifier.
func newRunID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
