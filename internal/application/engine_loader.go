package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/rxguard/rxguard/internal/domain"
	"github.com/rxguard/rxguard/internal/ports"
)

// Engine is a compiled engine configuration: the instantiated unit set,
// the raw weight snapshot, and the pool bounds. Engines produced by the
// loader are cached and shared; callers must treat them as read-only and
// derive their own mutable WeightVector via Weights().
type Engine struct {
	// Config is the validated source configuration.
	Config *EngineConfig

	// Units are the instantiated scoring units, in configuration order.
	Units []ports.ScoringUnit

	// PoolLimit is the configured fan-out concurrency bound, zero when
	// the configuration leaves it to the pool default.
	PoolLimit int

	// weights is the raw configured weight map before normalization.
	weights map[string]float64
}

// Weights builds a fresh normalized weight vector from the engine's
// configured weights. Each call returns an independent vector, so
// runtime weight updates on one engine instance never leak into the
// cached configuration.
func (e *Engine) Weights() (*domain.WeightVector, error) {
	return domain.NewWeightVector(e.weights)
}

// EngineLoader parses, validates, and caches engine configurations,
// transforming declarative YAML specifications into executable engines.
// Identical configurations compile once: compiled engines are cached by
// the SHA256 hash of the normalized config, and singleflight collapses
// concurrent loads of the same hash.
type EngineLoader struct {
	// validator performs struct field validation and custom rules for
	// engine configurations.
	validator *validator.Validate

	// unitRegistry provides factory methods for creating scoring units
	// based on their type and parameters.
	unitRegistry ports.UnitRegistry

	// cache stores compiled engines indexed by SHA256 hash of the
	// normalized source config. Cached engines MUST NOT be mutated.
	cache map[string]*Engine

	// cacheMu guards cache.
	cacheMu sync.RWMutex

	// sf prevents duplicate compilation when multiple goroutines request
	// the same configuration simultaneously.
	sf singleflight.Group
}

var semverPattern = regexp.MustCompile(`^v?\d+\.\d+\.\d+$`)

// NewEngineLoader creates an engine loader with validation capabilities
// and an empty cache.
func NewEngineLoader(unitRegistry ports.UnitRegistry) (*EngineLoader, error) {
	v := validator.New()
	if err := v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
		return semverPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &EngineLoader{
		validator:    v,
		unitRegistry: unitRegistry,
		cache:        make(map[string]*Engine),
	}, nil
}

// LoadFromFile loads and compiles an engine from a YAML file. The
// returned engine is a pointer to a cached instance and must not be
// mutated.
func (el *EngineLoader) LoadFromFile(ctx context.Context, path string) (*Engine, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return el.load(ctx, data)
}

// LoadFromReader loads and compiles an engine from any io.Reader,
// applying the same caching and validation as LoadFromFile.
func (el *EngineLoader) LoadFromReader(ctx context.Context, r io.Reader) (*Engine, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return el.load(ctx, data)
}

func (el *EngineLoader) load(ctx context.Context, data []byte) (*Engine, error) {
	config, err := el.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Hash the normalized config rather than the raw bytes so formatting
	// differences do not defeat the cache.
	hash, err := el.configHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := el.sf.Do(hash, func() (any, error) {
		if engine, ok := el.cachedEngine(hash); ok {
			return engine, nil
		}

		if err := el.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		engine, err := el.buildEngine(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to build engine: %w", err)
		}

		el.cacheEngine(hash, engine)
		return engine, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Engine), nil
}

func (el *EngineLoader) parseYAML(data []byte) (*EngineConfig, error) {
	var config EngineConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (el *EngineLoader) configHash(config *EngineConfig) (string, error) {
	normalized, err := yaml.Marshal(config)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

// validateConfig runs struct validation plus the semantic rules that
// cannot be expressed as field tags: unique unit ids and weights that
// reference configured units only.
func (el *EngineLoader) validateConfig(config *EngineConfig) error {
	if err := el.validator.Struct(config); err != nil {
		return err
	}

	ids := make(map[string]bool, len(config.Units))
	for _, uc := range config.Units {
		if ids[uc.ID] {
			return fmt.Errorf("%w: duplicate unit id %q", domain.ErrInvalidConfiguration, uc.ID)
		}
		ids[uc.ID] = true
	}

	for unit := range config.Weights {
		if !ids[unit] {
			return fmt.Errorf("%w: weight references unknown unit %q", domain.ErrInvalidConfiguration, unit)
		}
	}
	return nil
}

func (el *EngineLoader) buildEngine(_ context.Context, config *EngineConfig) (*Engine, error) {
	units := make([]ports.ScoringUnit, 0, len(config.Units))
	for _, uc := range config.Units {
		params, err := uc.parameterMap()
		if err != nil {
			return nil, fmt.Errorf("unit %q: invalid parameters: %w", uc.ID, err)
		}

		unit, err := el.unitRegistry.CreateUnit(uc.Type, uc.ID, params)
		if err != nil {
			return nil, err
		}
		if err := unit.Validate(); err != nil {
			return nil, fmt.Errorf("unit %q: %w", uc.ID, err)
		}
		units = append(units, unit)
	}

	weights := config.Weights
	if len(weights) == 0 {
		weights = domain.DefaultWeights()
	}

	return &Engine{
		Config:    config,
		Units:     units,
		PoolLimit: config.Pool.Limit,
		weights:   weights,
	}, nil
}

func (el *EngineLoader) cachedEngine(hash string) (*Engine, bool) {
	el.cacheMu.RLock()
	defer el.cacheMu.RUnlock()
	engine, ok := el.cache[hash]
	return engine, ok
}

func (el *EngineLoader) cacheEngine(hash string, engine *Engine) {
	el.cacheMu.Lock()
	defer el.cacheMu.Unlock()
	el.cache[hash] = engine
}
