// Package registry implements the Handler Registry (C6 in spec.md §4.5):
// a case-insensitive operationId -> handler map per adapter instance, with
// alias support and a uniform dispatch entry point.
package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/resilientcore/execbridge/pkg/envelope"
)

// Handler is the shape every registered operation implements.
type Handler func(ctx context.Context, params map[string]any) *envelope.Raw

// Registry holds one adapter instance's operationId -> Handler bindings.
// No state is shared across calls except what the handlers themselves
// close over (spec.md §4.5: "No state is shared across calls except the
// credential bag and governor/manager singletons").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func New() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// RegisterHandler binds a single operationId, lowercased for lookup.
func (r *Registry) RegisterHandler(id string, fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[strings.ToLower(id)] = fn
}

// RegisterHandlers binds a batch of operationId -> Handler pairs.
func (r *Registry) RegisterHandlers(handlers map[string]Handler) {
	for id, fn := range handlers {
		r.RegisterHandler(id, fn)
	}
}

// RegisterAliasHandlers binds alias -> an existing method name looked up by
// reflection on adapter. It fails fast (returns an error) if the method is
// absent or has an incompatible signature, matching spec.md §4.5's
// "looks up methodName on the adapter instance and fails fast if absent".
func (r *Registry) RegisterAliasHandlers(adapter any, aliases map[string]string) error {
	v := reflect.ValueOf(adapter)
	for alias, methodName := range aliases {
		m := v.MethodByName(methodName)
		if !m.IsValid() {
			return fmt.Errorf("registry: alias %q references unknown method %q", alias, methodName)
		}
		fn, ok := m.Interface().(func(context.Context, map[string]any) *envelope.Raw)
		if !ok {
			return fmt.Errorf("registry: method %q does not implement the handler signature", methodName)
		}
		r.RegisterHandler(alias, fn)
	}
	return nil
}

// Execute implements spec.md §4.5's execute(operationId, params) dispatch:
// lowercase lookup, "unknown handler" envelope on miss, and panic recovery
// converted into a failure envelope rather than crashing the caller.
func (r *Registry) Execute(ctx context.Context, operationID string, params map[string]any) (resp *envelope.Raw) {
	r.mu.RLock()
	handler, ok := r.handlers[strings.ToLower(operationID)]
	r.mu.RUnlock()

	if !ok {
		return envelope.Fail[any](fmt.Sprintf("Unknown function handler: %s", operationID), 0)
	}

	defer func() {
		if rec := recover(); rec != nil {
			resp = envelope.FailTransport[any](fmt.Sprintf("handler panic: %v", rec))
		}
	}()

	return handler(ctx, params)
}

// Has reports whether operationId is registered, using the same
// case-insensitive lookup as Execute.
func (r *Registry) Has(operationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[strings.ToLower(operationID)]
	return ok
}
