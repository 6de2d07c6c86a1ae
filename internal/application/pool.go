// Package application wires the scoring units, the execution pool, the
// aggregation engine, and the pipeline orchestrator into a single-process
// fraud scoring engine.
package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rxguard/rxguard/internal/domain"
	"github.com/rxguard/rxguard/internal/ports"
)

// defaultPoolLimit bounds concurrent unit executions when no explicit
// limit is configured. The unit set is small, so a limit at least the
// size of the set keeps the fan-out fully parallel without unbounded
// goroutine growth.
const defaultPoolLimit = 8

// ExecutionPool runs every registered scoring unit over a shared
// read-only claim snapshot and collects a finding list per unit.
//
// Execution is two-phase. Phase one fans out all independent units
// concurrently, bounded by a semaphore. Phase two runs units that
// consume their peers' combined output (ports.CombiningUnit) serially
// afterward, feeding them the pooled phase-one findings. Combining
// units cannot join the fan-out: their auxiliary input does not exist
// until the fan-out completes.
//
// Failures are isolated per unit. An error or panic inside one unit
// records an empty finding list for that unit and never delays or
// aborts the others.
type ExecutionPool struct {
	units  []ports.ScoringUnit
	limit  int
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewExecutionPool creates a pool over the given unit set. A limit of
// zero or less selects defaultPoolLimit.
func NewExecutionPool(units []ports.ScoringUnit, limit int, logger zerolog.Logger) *ExecutionPool {
	if limit <= 0 {
		limit = defaultPoolLimit
	}
	return &ExecutionPool{
		units:  units,
		limit:  limit,
		logger: logger,
		tracer: otel.Tracer("execution-pool"),
	}
}

// Execute runs all units against the claim snapshot and returns the
// per-unit finding map plus the names of units whose execution failed.
// Every registered unit has an entry in the returned map; failed units
// map to an empty list. Execute blocks until all units complete.
func (p *ExecutionPool) Execute(ctx context.Context, claims []domain.Claim) (map[string][]domain.Finding, []string) {
	ctx, span := p.tracer.Start(ctx, "ExecutionPool.Execute",
		trace.WithAttributes(
			attribute.Int("units", len(p.units)),
			attribute.Int("claims", len(claims)),
		))
	defer span.End()

	var independent []ports.ScoringUnit
	var combining []ports.CombiningUnit
	for _, unit := range p.units {
		if cu, ok := unit.(ports.CombiningUnit); ok {
			combining = append(combining, cu)
			continue
		}
		independent = append(independent, unit)
	}

	findings := make(map[string][]domain.Finding, len(p.units))
	var failed []string

	resultChan := make(chan unitResult, len(independent))
	semaphore := make(chan struct{}, p.limit)
	var wg sync.WaitGroup

	// Phase one: fan out the independent units over the shared snapshot.
	for _, unit := range independent {
		wg.Add(1)
		go func(u ports.ScoringUnit) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				resultChan <- unitResult{unit: u.Name(), err: ctx.Err()}
				return
			}

			resultChan <- p.runIsolated(ctx, u.Name(), func() ([]domain.Finding, error) {
				return u.Run(ctx, claims)
			})
		}(unit)
	}

	wg.Wait()
	close(resultChan)

	for res := range resultChan {
		if res.err != nil {
			p.logger.Error().Err(res.err).Str("unit", res.unit).Msg("scoring unit failed")
			findings[res.unit] = []domain.Finding{}
			failed = append(failed, res.unit)
			continue
		}
		findings[res.unit] = res.findings
	}

	// Phase two: combining units consume the pooled phase-one findings.
	combined := flattenFindings(findings)
	for _, unit := range combining {
		res := p.runIsolated(ctx, unit.Name(), func() ([]domain.Finding, error) {
			return unit.RunWithFindings(ctx, claims, combined)
		})
		if res.err != nil {
			p.logger.Error().Err(res.err).Str("unit", res.unit).Msg("combining unit failed")
			findings[res.unit] = []domain.Finding{}
			failed = append(failed, res.unit)
			continue
		}
		findings[res.unit] = res.findings
	}

	sort.Strings(failed)
	span.SetAttributes(attribute.Int("failed_units", len(failed)))
	return findings, failed
}

// unitResult carries one unit's outcome out of the fan-out.
type unitResult struct {
	unit     string
	findings []domain.Finding
	err      error
}

// runIsolated executes one unit behind a panic boundary so a misbehaving
// unit cannot take down the run.
func (p *ExecutionPool) runIsolated(ctx context.Context, name string, run func() ([]domain.Finding, error)) (res unitResult) {
	res.unit = name
	defer func() {
		if r := recover(); r != nil {
			res.err = &domain.UnitExecutionError{Unit: name, Err: fmt.Errorf("panic: %v", r)}
			res.findings = nil
		}
	}()

	_, span := p.tracer.Start(ctx, "ScoringUnit.Run",
		trace.WithAttributes(attribute.String("unit", name)))
	defer span.End()

	findings, err := run()
	if err != nil {
		res.err = &domain.UnitExecutionError{Unit: name, Err: err}
		return res
	}
	res.findings = findings
	return res
}

// flattenFindings pools every unit's findings into one slice, in
// deterministic unit-name order, for combining units and population
// statistics.
func flattenFindings(findings map[string][]domain.Finding) []domain.Finding {
	names := make([]string, 0, len(findings))
	for name := range findings {
		names = append(names, name)
	}
	sort.Strings(names)

	var combined []domain.Finding
	for _, name := range names {
		combined = append(combined, findings[name]...)
	}
	return combined
}
