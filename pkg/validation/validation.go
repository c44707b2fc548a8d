// Package validation implements the Payload Validator (C7 in spec.md
// §4.6): JSON-schema validation with compiled schemas memoized by schema
// identity, grounded on the firewall package's santhosh-tekuri/jsonschema
// compile-once pattern.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/resilientcore/execbridge/pkg/errs"
)

// Validator compiles and memoizes JSON schemas by identity (spec.md §4.6:
// "compile the JSON schema once, memoized by schema-object identity").
// Go has no notion of object identity a map key can carry across calls, so
// identity is the caller-supplied schemaID string — typically
// "<connectorId>:<operationId>" — which is what every caller actually has
// at the call site anyway.
type Validator struct {
	mu       sync.Mutex
	compiled *lru.Cache[string, *jsonschema.Schema]
}

// New builds a Validator with an LRU cache of compiled schemas. capacity
// bounds memory; 256 comfortably covers every connector's operation set.
func New(capacity int) *Validator {
	if capacity <= 0 {
		capacity = 256
	}
	cache, _ := lru.New[string, *jsonschema.Schema](capacity)
	return &Validator{compiled: cache}
}

// compile compiles and caches schemaJSON under schemaID, or returns the
// cached schema if schemaID was already compiled.
func (v *Validator) compile(schemaID, schemaJSON string) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.compiled.Get(schemaID); ok {
		return s, nil
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	resourceURL := "mem://execbridge/" + schemaID
	if err := c.AddResource(resourceURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("loading schema %q: %w", schemaID, err)
	}
	schema, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %q: %w", schemaID, err)
	}
	v.compiled.Add(schemaID, schema)
	return schema, nil
}

// ValidatePayload implements spec.md §4.6's validatePayload<T>(schema,
// payload): compile (or reuse) schemaJSON under schemaID, validate payload
// against it, and on success decode payload into T.
func ValidatePayload[T any](v *Validator, schemaID, schemaJSON string, payload any) (T, error) {
	var zero T

	schema, err := v.compile(schemaID, schemaJSON)
	if err != nil {
		return zero, errs.Wrap(errs.KindValidation, 0, err)
	}

	if err := schema.Validate(payload); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			return zero, errs.New(errs.KindValidation, 400, "%s", formatValidationError(verr))
		}
		return zero, errs.Wrap(errs.KindValidation, 400, err)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return zero, errs.Wrap(errs.KindValidation, 0, fmt.Errorf("re-encoding validated payload: %w", err))
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, errs.Wrap(errs.KindValidation, 0, fmt.Errorf("decoding validated payload: %w", err))
	}
	return out, nil
}

// formatValidationError concatenates every {instancePath: message} leaf in
// the validation error tree (spec.md §4.6: "throw with a concatenated
// error report containing each {instancePath: message}").
func formatValidationError(verr *jsonschema.ValidationError) string {
	var lines []string
	collectLeaves(verr, &lines)
	return strings.Join(lines, "; ")
}

func collectLeaves(verr *jsonschema.ValidationError, out *[]string) {
	if len(verr.Causes) == 0 {
		*out = append(*out, fmt.Sprintf("%s: %s", verr.InstanceLocation, verr.Message))
		return
	}
	for _, cause := range verr.Causes {
		collectLeaves(cause, out)
	}
}
