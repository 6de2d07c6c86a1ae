// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/rxguard/rxguard/internal/domain"
)

// ScoringUnit is the contract every scoring agent satisfies. Given the
// full read-only claim dataset, a unit produces zero or more findings,
// each naming one pharmacy, a score in [0, 1], and a reason string.
// A unit produces at most one finding per pharmacy per run; pharmacies
// it does not flag simply have no finding from it.
// Units must be stateless and thread-safe; the execution pool runs them
// concurrently over a shared dataset snapshot.
type ScoringUnit interface {
	// Name returns the unique identifier for this unit.
	// The name keys the unit's finding list, its weight, and its insight
	// entry.
	Name() string

	// Run analyzes the dataset and returns the unit's findings. An error
	// isolates to this unit: the pool records an empty finding list and
	// the run continues. Units must not mutate the claims slice.
	//
	// The context parameter allows for cancellation propagation; units
	// should respect cancellation and return promptly.
	Run(ctx context.Context, claims []domain.Claim) ([]domain.Finding, error)

	// Validate checks if the unit is properly configured and ready for
	// execution. It is typically called during engine construction.
	Validate() error
}

// CombiningUnit is a scoring unit that refines its output with the
// combined findings of its peers. The pool runs combining units in a
// serial second phase, after the independent fan-out completes, so the
// combined findings are real rather than a placeholder.
type CombiningUnit interface {
	ScoringUnit

	// RunWithFindings analyzes the dataset together with the pooled
	// findings of every unit that ran in the first phase.
	RunWithFindings(ctx context.Context, claims []domain.Claim, combined []domain.Finding) ([]domain.Finding, error)
}

// UnitFactory creates a scoring unit from an identifier and a flexible
// configuration map, typically decoded from YAML.
type UnitFactory func(id string, config map[string]any) (ScoringUnit, error)

// UnitRegistry provides factory-based construction of scoring units by
// type name, allowing the engine configuration to declare its unit set
// declaratively.
type UnitRegistry interface {
	// CreateUnit builds a unit of the given type with the given id and
	// configuration.
	CreateUnit(unitType, id string, config map[string]any) (ScoringUnit, error)

	// RegisterUnitFactory adds a factory for a custom unit type.
	RegisterUnitFactory(unitType string, factory UnitFactory) error

	// SupportedTypes lists the registered unit type names.
	SupportedTypes() []string
}
