// Package models holds the typed statistical payloads served by the Data
// Garden regional data endpoint and the registry that resolves a declared
// model type name to one of them.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownModelType is returned when a type name has no registered variant.
	ErrUnknownModelType = errors.New("unknown model type")

	// ErrInvalidModelPayload is returned when a payload fails the variant's
	// structural validation.
	ErrInvalidModelPayload = errors.New("invalid model payload")
)

// Model is a typed statistical payload for one region, period and source.
type Model interface {
	// ModelName returns the canonical, upper-case type name of the variant.
	ModelName() string

	// Validate checks the decoded values.
	Validate() error
}

// Constructor returns a new zero value of a variant, ready to be decoded into.
type Constructor func() Model

// ResolveError describes a record whose model could not be resolved.
type ResolveError struct {
	ModelType string
	Payload   json.RawMessage
	Err       error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve model %q: %v", e.ModelType, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Registry maps upper-cased model type names to constructors.
//
// A Registry is not safe for concurrent Register calls; resolve-only use from
// several goroutines is fine once registration is done.
type Registry struct {
	variants map[string]Constructor
	strict   bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithStrictFields rejects payload fields the variant does not declare.
// By default they are ignored, as the service adds fields over time.
func WithStrictFields() RegistryOption {
	return func(r *Registry) {
		r.strict = true
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{variants: make(map[string]Constructor)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultRegistry returns a new registry holding the built-in variants.
func DefaultRegistry(opts ...RegistryOption) *Registry {
	r := NewRegistry(opts...)
	r.Register(TypePopulation, func() Model { return &Population{} })
	r.Register(TypeDemographics, func() Model { return &Demographics{} })
	r.Register(TypeEconomics, func() Model { return &Economics{} })
	r.Register(TypeHealth, func() Model { return &Health{} })
	r.Register(TypeWeather, func() Model { return &Weather{} })
	return r
}

// builtin backs the package-level helpers and is never mutated.
var builtin = DefaultRegistry()

// normalize returns the lookup key for a type name.
func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Register adds or replaces the variant for name.
func (r *Registry) Register(name string, c Constructor) {
	if c == nil {
		panic("models: nil constructor for " + name)
	}
	r.variants[normalize(name)] = c
}

// Lookup returns the constructor registered for name, case-insensitively.
func (r *Registry) Lookup(name string) (Constructor, bool) {
	c, ok := r.variants[normalize(name)]
	return c, ok
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.variants))
	for name := range r.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve builds the variant registered for typeName from payload.
//
// An empty or null payload yields the variant's zero value. Values of the
// wrong JSON type and failed Validate checks make the payload invalid; fields
// the variant does not declare are skipped unless the registry is strict.
func (r *Registry) Resolve(typeName string, payload json.RawMessage) (Model, error) {
	construct, ok := r.Lookup(typeName)
	if !ok {
		return nil, &ResolveError{ModelType: typeName, Payload: payload, Err: ErrUnknownModelType}
	}

	model := construct()

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		if r.strict {
			dec.DisallowUnknownFields()
		}
		if err := dec.Decode(model); err != nil {
			return nil, &ResolveError{
				ModelType: typeName,
				Payload:   payload,
				Err:       fmt.Errorf("%w: %v", ErrInvalidModelPayload, err),
			}
		}
		if dec.More() {
			return nil, &ResolveError{
				ModelType: typeName,
				Payload:   payload,
				Err:       fmt.Errorf("%w: trailing data after object", ErrInvalidModelPayload),
			}
		}
	}

	if err := model.Validate(); err != nil {
		return nil, &ResolveError{
			ModelType: typeName,
			Payload:   payload,
			Err:       fmt.Errorf("%w: %v", ErrInvalidModelPayload, err),
		}
	}

	return model, nil
}

// Resolve resolves typeName against the built-in variants.
func Resolve(typeName string, payload json.RawMessage) (Model, error) {
	return builtin.Resolve(typeName, payload)
}

// Names returns the built-in type names in sorted order.
func Names() []string {
	return builtin.Names()
}
