// Package connector holds the process-wide ConnectorEntry registry
// (spec.md §3): static per-connector metadata plus the rate-limit rules and
// dynamic-option configs every other component looks up by connector id.
package connector

import (
	"strings"
	"sync"

	"github.com/resilientcore/execbridge/pkg/dynamicoptions"
	"github.com/resilientcore/execbridge/pkg/ratelimit"
)

// Availability mirrors spec.md §3's connector lifecycle tags.
type Availability string

const (
	AvailabilityGA      Availability = "ga"
	AvailabilityBeta    Availability = "beta"
	AvailabilityPrivate Availability = "private"
)

// Authentication describes how a connector signs requests. It is catalog
// metadata: adapters build their auth headers from the credential bag and
// do not read it.
type Authentication struct {
	Scheme string // "oauth2", "api_key", "basic"
	Scopes []string
}

// ActionSpec and TriggerSpec are the registry's declared operation
// surfaces; the handler registry (pkg/registry) is the actual dispatch
// table, this is the catalog metadata shown to callers (e.g. route
// /api/registry/capabilities in pkg/httpapi).
type ActionSpec struct {
	OperationID string
	DisplayName string
}

type TriggerSpec struct {
	OperationID string
	DisplayName string
}

// Entry is one ConnectorEntry (spec.md §3).
type Entry struct {
	ID                   string
	DisplayName          string
	Category             string
	PricingTier          string
	Availability         Availability
	Lifecycle            string
	Scopes               []string
	Authentication       Authentication
	Actions              []ActionSpec
	Triggers             []TriggerSpec
	DynamicOptionConfigs []dynamicoptions.Config
	RateLimitRules       ratelimit.Rules
}

// Registry is the process-wide, read-mostly ConnectorEntry store (spec.md
// §3: "Owned by a process-wide registry initialized at startup").
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds or replaces a connector entry, keyed by its lowercased id.
func (r *Registry) Register(entry *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[strings.ToLower(entry.ID)] = entry
}

// Get looks up a connector entry by id.
func (r *Registry) Get(connectorID string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[strings.ToLower(connectorID)]
	return e, ok
}

// List returns every registered entry, for the capabilities route.
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// DynamicOptionsLookup adapts this Registry into a
// dynamicoptions.Registry: it resolves a connector's
// dynamicOptionConfigs[] entry by parameterPath and binds it to the
// handler the caller supplies per connector (C9 doesn't know how to build
// adapters, so the handler lookup is delegated via handlerFor).
type DynamicOptionsLookup struct {
	Connectors *Registry
	HandlerFor func(connectorID, handlerID string) (dynamicoptions.Handler, bool)
}

func (l DynamicOptionsLookup) Lookup(connectorID, operationType, operationID, parameterPath string) (dynamicoptions.Config, dynamicoptions.Handler, bool) {
	entry, ok := l.Connectors.Get(connectorID)
	if !ok {
		return dynamicoptions.Config{}, nil, false
	}
	for _, cfg := range entry.DynamicOptionConfigs {
		if cfg.ParameterPath != parameterPath {
			continue
		}
		handler, ok := l.HandlerFor(connectorID, cfg.HandlerID)
		if !ok {
			return dynamicoptions.Config{}, nil, false
		}
		return cfg, handler, true
	}
	return dynamicoptions.Config{}, nil, false
}
