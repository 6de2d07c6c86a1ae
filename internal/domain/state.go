// Package domain contains pure, dependency-free domain models and types
// for the fraud scoring engine.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"time"
)

// Key represents a type-safe generic key for accessing values in State.
// The type parameter T ensures compile-time type safety when getting and
// setting values, eliminating the need for runtime type assertions.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
// This function is provided for creating keys outside of the domain package.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Predefined state keys used throughout a scoring run.
// Each key is strongly typed to ensure type safety at compile time.
var (
	// KeyClaims stores the raw claim dataset shared by all scoring units.
	KeyClaims = Key[[]Claim]{"claims"}

	// KeyFindings stores the per-unit finding sets keyed by unit name.
	KeyFindings = Key[map[string][]Finding]{"findings"}

	// KeyUnitFailures stores the names of units whose execution failed and
	// whose contribution was replaced with an empty finding list.
	KeyUnitFailures = Key[[]string]{"unit_failures"}

	// KeyScores stores the ranked aggregated scores produced by aggregation.
	KeyScores = Key[[]AggregatedScore]{"scores"}

	// KeyInsights stores the run-level insights derived from the scores and
	// the per-unit finding sets.
	KeyInsights = Key[*RunInsights]{"insights"}

	// Run context keys tracked across the pipeline for logging and tracing.

	// KeyRunID stores a unique identifier for this scoring run.
	KeyRunID = Key[string]{"run.id"}

	// KeyRunStartedAt stores the wall-clock start time of the run.
	KeyRunStartedAt = Key[time.Time]{"run.started_at"}
)

// deepCopyValue creates a deep copy of a value so State remains immutable.
// It handles slices, maps, and other reference types that would otherwise
// allow external modification of State data.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	// time.Time is immutable and can be returned directly.
	if val, ok := value.(time.Time); ok {
		return val
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			newSlice.Index(i).Set(reflect.ValueOf(deepCopyValue(v.Index(i).Interface())))
		}
		return newSlice.Interface()

	case reflect.Map:
		newMap := reflect.MakeMap(v.Type())
		for _, key := range v.MapKeys() {
			copiedKey := deepCopyValue(key.Interface())
			copiedValue := deepCopyValue(v.MapIndex(key).Interface())
			newMap.SetMapIndex(reflect.ValueOf(copiedKey), reflect.ValueOf(copiedValue))
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return v.Interface()
		}
		newPtr := reflect.New(v.Elem().Type())
		newPtr.Elem().Set(reflect.ValueOf(deepCopyValue(v.Elem().Interface())))
		return newPtr.Interface()

	case reflect.Struct:
		// Shallow copy for unexported fields, deep copy for exported ones.
		newStruct := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if newStruct.Field(i).CanSet() {
				newStruct.Field(i).Set(reflect.ValueOf(deepCopyValue(v.Field(i).Interface())))
			}
		}
		return newStruct.Interface()

	default:
		// Primitive types are returned as-is since they are copied by value.
		return value
	}
}

// State is the immutable value threaded through the scoring pipeline.
// Each stage receives the previous stage's State, takes ownership of it,
// and produces a new State value; the original is never mutated. This
// copy-on-write contract makes concurrent reads safe without locks.
type State struct {
	// data holds the key-value pairs that make up the state.
	// It is unexported to maintain immutability guarantees.
	data map[string]any
}

// NewState creates a new empty State.
// The returned State is ready to use and can be safely shared across
// goroutines.
func NewState() State {
	return State{
		data: make(map[string]any),
	}
}

// Get retrieves a value from the State with compile-time type safety.
// It returns the value and a boolean indicating whether the key exists
// and contains a value of the correct type. The returned value is a deep
// copy to maintain immutability.
//
// Example:
//
//	claims, ok := Get(state, KeyClaims)
//	if !ok {
//	    // handle missing value
//	}
//	// claims is typed as []Claim, no type assertion needed
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}

	copied := deepCopyValue(value)
	val, ok := copied.(T)
	return val, ok
}

// With creates a new State with the specified key-value pair added or
// updated. It implements copy-on-write semantics, returning a new State
// instance while leaving the original unchanged. This function is the
// primary way stages hand data to their successors.
//
// Example:
//
//	next := With(state, KeyClaims, claims)
func With[T any](s State, key Key[T], value T) State {
	newData := maps.Clone(s.data)
	newData[key.name] = deepCopyValue(value)
	return State{data: newData}
}

// WithMultiple creates a new State with multiple key-value pairs added
// or updated. It is more efficient than chaining multiple With calls as
// it performs a single clone operation. The updates map uses string keys
// for flexibility when updating multiple values at once.
func (s State) WithMultiple(updates map[string]any) State {
	newData := maps.Clone(s.data)
	for k, v := range updates {
		newData[k] = deepCopyValue(v)
	}
	return State{data: newData}
}

// Keys returns all keys present in the State.
// The returned slice is safe to modify without affecting the original State.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// String returns a string representation of the State for debugging purposes.
func (s State) String() string {
	return fmt.Sprintf("State%v", s.data)
}

// RunContext contains metadata about the current scoring run that flows
// through the State across pipeline stages. It provides consistent access
// to run metadata for logging and observability.
type RunContext struct {
	// RunID is the unique identifier for this scoring run.
	RunID string

	// StartedAt records when the run began.
	StartedAt time.Time
}

// WithRunContext creates a new State with run context metadata included.
// It should be called once at the start of pipeline execution.
func (s State) WithRunContext(rc RunContext) State {
	return s.WithMultiple(map[string]any{
		KeyRunID.name:        rc.RunID,
		KeyRunStartedAt.name: rc.StartedAt,
	})
}

// GetRunContext extracts run context metadata from the State.
// It returns the context and a boolean indicating whether all required
// fields are present.
func (s State) GetRunContext() (RunContext, bool) {
	runID, ok1 := Get(s, KeyRunID)
	startedAt, ok2 := Get(s, KeyRunStartedAt)
	if !ok1 || !ok2 {
		return RunContext{}, false
	}
	return RunContext{RunID: runID, StartedAt: startedAt}, true
}
