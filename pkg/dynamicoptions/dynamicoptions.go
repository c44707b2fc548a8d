// Package dynamicoptions implements the Dynamic Options Service (C9 in
// spec.md §4.8): dependency-checked, per-key TTL-cached resolution of
// paginated {value,label,data} option lists for workflow node parameters.
package dynamicoptions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/resilientcore/execbridge/pkg/credentials"
	"github.com/resilientcore/execbridge/pkg/errs"
)

// Option is one entry in a resolved dynamic-option list (spec.md §3).
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Data  any    `json:"data,omitempty"`
}

// Result is the normalized shape a handler invocation produces, and what
// gets cached (spec.md §4.8 step 5).
type Result struct {
	Success    bool     `json:"success"`
	Options    []Option `json:"options"`
	NextCursor string   `json:"nextCursor,omitempty"`
	TotalCount int      `json:"totalCount,omitempty"`
	Error      string   `json:"error,omitempty"`
	Cached     bool     `json:"cached,omitempty"`
}

// Config is one connector's dynamicOptionConfigs[] entry (spec.md §3:
// "ConnectorEntry.dynamicOptionConfigs entries").
type Config struct {
	HandlerID     string
	ParameterPath string
	DependsOn     []string
	LabelField    string
	ValueField    string
	SearchParam   string
	CacheTTLMs    int64
}

// Handler is an adapter's getDynamicOptions(handlerId, context) method
// (spec.md §4.8 step 4).
type Handler func(ctx context.Context, creds *credentials.Bag, handlerID string, reqCtx map[string]any) (*Result, error)

// Request is the public getDynamicOptions({...}) input (spec.md §4.8).
type Request struct {
	ConnectorID    string
	ConnectionID   string
	Credentials    *credentials.Bag
	OperationType  string
	OperationID    string
	ParameterPath  string
	Context        map[string]any
	CacheTTLMsOvrd int64
	ForceRefresh   bool
	AdditionalCfg  map[string]any
}

// Cache is the pluggable storage backend for cached results. The default
// implementation is an in-memory map; Redis is an opt-in distributed
// implementation of the same interface (spec.md §5: "Dynamic-options cache
// is process-wide ... entries are immutable once written and expire by
// wall-clock TTL").
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool)
	Set(ctx context.Context, key string, result *Result, ttl time.Duration) error
}

// memoryCache is the default in-process Cache, a plain mutex-guarded map.
// An LRU isn't used here (unlike the schema-compile cache in pkg/validation)
// because entries expire on their own TTL and unbounded connector/parameter
// key space in practice stays small. Expired entries are skipped on Get
// but not removed from the map.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result  *Result
	expires time.Time
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]cacheEntry)}
}

func (c *memoryCache) Get(_ context.Context, key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.result, true
}

func (c *memoryCache) Set(_ context.Context, key string, result *Result, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, expires: time.Now().Add(ttl)}
	return nil
}

// Registry looks up a connector's dynamic-option Config and Handler, the
// collaborator C9 needs to resolve (operationType, operationId,
// parameterPath) to a concrete handler (spec.md §4.8 step 1).
type Registry interface {
	Lookup(connectorID, operationType, operationID, parameterPath string) (Config, Handler, bool)
}

// Service implements C9's getDynamicOptions entry point.
type Service struct {
	registry Registry
	cache    Cache
}

// New builds a Service with the in-memory cache. Pass an explicit Cache via
// NewWithCache to use a distributed backend (e.g. Redis).
func New(registry Registry) *Service {
	return NewWithCache(registry, newMemoryCache())
}

func NewWithCache(registry Registry, cache Cache) *Service {
	return &Service{registry: registry, cache: cache}
}

// GetDynamicOptions implements spec.md §4.8's getDynamicOptions(...).
func (s *Service) GetDynamicOptions(ctx context.Context, req Request) (*Result, error) {
	cfg, handler, ok := s.registry.Lookup(req.ConnectorID, req.OperationType, req.OperationID, req.ParameterPath)
	if !ok {
		return nil, errs.New(errs.KindValidation, 404, "no dynamic-option config for %s/%s/%s/%s",
			req.ConnectorID, req.OperationType, req.OperationID, req.ParameterPath)
	}

	if missing := missingDependencies(cfg.DependsOn, req.Context); len(missing) > 0 {
		return nil, errs.New(errs.KindValidation, 400, "missing required dependencies: %v", missing)
	}

	key := cacheKey(req.ConnectorID, req.ConnectionID, cfg.HandlerID, req.Context)

	ttlMs := cfg.CacheTTLMs
	if req.CacheTTLMsOvrd > 0 {
		ttlMs = req.CacheTTLMsOvrd
	}

	if !req.ForceRefresh {
		if cached, ok := s.cache.Get(ctx, key); ok {
			out := *cached
			out.Cached = true
			return &out, nil
		}
	}

	result, err := handler(ctx, req.Credentials, cfg.HandlerID, req.Context)
	if err != nil {
		return nil, err
	}

	if result.Success && ttlMs > 0 {
		_ = s.cache.Set(ctx, key, result, time.Duration(ttlMs)*time.Millisecond)
	}

	return result, nil
}

// missingDependencies implements spec.md §4.8 step 2: all dependsOn keys
// must be present and non-empty in context.dependencies.
func missingDependencies(dependsOn []string, reqCtx map[string]any) []string {
	deps, _ := reqCtx["dependencies"].(map[string]any)
	var missing []string
	for _, key := range dependsOn {
		v, ok := deps[key]
		if !ok || v == "" || v == nil {
			missing = append(missing, key)
		}
	}
	return missing
}

// cacheKey implements spec.md §4.8 step 3's hash(connectorId, connectionId,
// handlerId, context), grounded on the teacher pack's sha256-over-JSON
// cache-key convention (Mindburn-Labs-helm's pack resolver).
func cacheKey(connectorID, connectionID, handlerID string, reqCtx map[string]any) string {
	normalized := normalizeForHash(reqCtx)
	data, _ := json.Marshal([]any{connectorID, connectionID, handlerID, normalized})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

// normalizeForHash sorts map keys recursively so semantically identical
// context objects hash identically regardless of construction order.
func normalizeForHash(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(keys)*2)
		for _, k := range keys {
			out = append(out, k, normalizeForHash(val[k]))
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeForHash(e)
		}
		return out
	default:
		return v
	}
}
