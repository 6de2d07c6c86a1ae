package application

import (
	"gopkg.in/yaml.v3"
)

// EngineConfig is the declarative specification for a scoring engine:
// which units run, their parameters, the unit weights, and the execution
// pool bounds. It is the primary configuration entry point, typically
// loaded from a YAML file at startup.
type EngineConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across updates.
	Version string `yaml:"version" validate:"required,semver"`

	// Metadata contains descriptive information about this engine
	// configuration for organization and operational management.
	Metadata Metadata `yaml:"metadata" validate:"required"`

	// Pool configures the unit execution pool.
	Pool PoolConfig `yaml:"pool"`

	// Weights maps unit ids to their raw aggregation weights. Weights are
	// normalized at engine construction; units omitted here default to
	// weight zero. An empty map selects the built-in defaults.
	Weights map[string]float64 `yaml:"weights" validate:"omitempty,dive,gte=0"`

	// Units defines the scoring units that will execute in this engine,
	// each with its own type and parameters.
	Units []UnitConfig `yaml:"units" validate:"required,min=1,dive"`
}

// Metadata provides descriptive information about an engine configuration.
type Metadata struct {
	// Name is the human-readable identifier for this configuration and
	// must be unique within the deployment scope.
	Name string `yaml:"name" validate:"required,min=1,max=255"`

	// Description explains the configuration's purpose and intended use.
	Description string `yaml:"description" validate:"max=1000"`

	// Labels are arbitrary key-value pairs for integration with external
	// systems and custom categorization.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// PoolConfig bounds the unit execution pool.
type PoolConfig struct {
	// Limit is the maximum number of units executing concurrently in the
	// fan-out phase. Zero selects the built-in default.
	Limit int `yaml:"limit" validate:"omitempty,min=1,max=64"`
}

// UnitConfig is the specification for a single scoring unit within an
// engine configuration.
type UnitConfig struct {
	// ID is the unique identifier for this unit within the engine. The id
	// keys the unit's finding list, its weight, and its insight entry.
	ID string `yaml:"id" validate:"required,min=1,max=100"`

	// Type specifies the scoring unit implementation to instantiate,
	// determining the available parameters and detection behavior.
	Type string `yaml:"type" validate:"required,oneof=coverage high_dollar rejection patient_flip network custom"`

	// Parameters contains type-specific configuration as flexible YAML
	// that the unit factory validates against its own schema.
	Parameters yaml.Node `yaml:"parameters"`
}

// parameterMap decodes the unit's flexible parameters node into the map
// form consumed by unit factories. A missing node yields an empty map.
func (uc *UnitConfig) parameterMap() (map[string]any, error) {
	params := make(map[string]any)
	if uc.Parameters.Kind == 0 {
		return params, nil
	}
	if err := uc.Parameters.Decode(&params); err != nil {
		return nil, err
	}
	return params, nil
}
