package application

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rxguard/rxguard/infrastructure/units"
	"github.com/rxguard/rxguard/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.UnitRegistry = (*DefaultUnitRegistry)(nil)

// DefaultUnitRegistry implements the UnitRegistry interface providing
// factory-based construction of scoring units by type name. It ships
// with the five built-in fraud detectors pre-registered and supports
// dynamic registration of custom unit factories.
type DefaultUnitRegistry struct {
	// factories maps unit type strings to their factory functions.
	factories map[string]ports.UnitFactory
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
}

// NewDefaultUnitRegistry creates a unit registry with the built-in
// scoring unit types pre-registered: coverage, high_dollar, rejection,
// patient_flip, and network.
func NewDefaultUnitRegistry() *DefaultUnitRegistry {
	registry := &DefaultUnitRegistry{
		factories: make(map[string]ports.UnitFactory),
	}
	registry.registerBuiltinFactories()
	return registry
}

func (r *DefaultUnitRegistry) registerBuiltinFactories() {
	r.factories["coverage"] = func(id string, config map[string]any) (ports.ScoringUnit, error) {
		return units.CreateCoverageUnit(id, config)
	}
	r.factories["high_dollar"] = func(id string, config map[string]any) (ports.ScoringUnit, error) {
		return units.CreateHighDollarUnit(id, config)
	}
	r.factories["rejection"] = func(id string, config map[string]any) (ports.ScoringUnit, error) {
		return units.CreateRejectionUnit(id, config)
	}
	r.factories["patient_flip"] = func(id string, config map[string]any) (ports.ScoringUnit, error) {
		return units.CreatePatientFlipUnit(id, config)
	}
	r.factories["network"] = func(id string, config map[string]any) (ports.ScoringUnit, error) {
		return units.CreateNetworkUnit(id, config)
	}
}

// CreateUnit builds a scoring unit of the given type with the given id
// and configuration. It returns an error when the type is unknown or
// the factory rejects the configuration.
func (r *DefaultUnitRegistry) CreateUnit(unitType, id string, config map[string]any) (ports.ScoringUnit, error) {
	r.mu.RLock()
	factory, exists := r.factories[unitType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown unit type %q, supported types: %v", unitType, r.SupportedTypes())
	}

	unit, err := factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("create %s unit %q: %w", unitType, id, err)
	}
	return unit, nil
}

// RegisterUnitFactory adds a factory for a custom unit type. Registering
// over an existing type is an error; built-in types cannot be replaced.
func (r *DefaultUnitRegistry) RegisterUnitFactory(unitType string, factory ports.UnitFactory) error {
	if unitType == "" {
		return fmt.Errorf("unit type must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for unit type %q must not be nil", unitType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[unitType]; exists {
		return fmt.Errorf("unit type %q is already registered", unitType)
	}
	r.factories[unitType] = factory
	return nil
}

// SupportedTypes lists the registered unit type names, sorted.
func (r *DefaultUnitRegistry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
