// Package adapterkit is the shared declarative-binding layer every
// concrete connector adapter is built from (spec.md §1: "Each adapter is a
// thin declarative binding of operationId → {method, path builder, payload
// shaper, auth header selector} layered on the pipeline").
package adapterkit

import (
	"context"
	"net/http"

	"github.com/resilientcore/execbridge/pkg/envelope"
	"github.com/resilientcore/execbridge/pkg/pipeline"
	"github.com/resilientcore/execbridge/pkg/registry"
)

// Operation declares one operationId's binding: how to build the endpoint
// and body from the caller's params, and which HTTP method to use. Path
// and Body are plain functions rather than template strings so adapters
// can express arbitrary per-operation parameter handling, matching the
// variety seen across the teacher's per-provider adapters.
type Operation struct {
	Method string
	Path   func(params map[string]any) string
	Body   func(params map[string]any) any
}

// Build turns a map of operationId -> Operation into registry.Handler
// bindings against p, suitable for registry.RegisterHandlers.
func Build(p *pipeline.Pipeline, operations map[string]Operation) map[string]registry.Handler {
	handlers := make(map[string]registry.Handler, len(operations))
	for id, op := range operations {
		op := op
		handlers[id] = func(ctx context.Context, params map[string]any) *envelope.Raw {
			method := op.Method
			if method == "" {
				method = http.MethodGet
			}
			endpoint := op.Path(params)
			var body any
			if op.Body != nil {
				body = op.Body(params)
			}
			return p.Request(ctx, method, endpoint, body, nil)
		}
	}
	return handlers
}

// StringParam reads a string parameter, returning "" if absent or of the
// wrong type — the convention every adapter's Path/Body closures use.
func StringParam(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
