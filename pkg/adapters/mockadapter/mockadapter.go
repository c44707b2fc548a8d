// Package mockadapter simulates a third-party provider's transport
// behavior for exercising the execution core's rate limiting, retry, and
// allowlist logic without a real network dependency. It replaces the
// teacher's legacy/mock.MockAdapter: rather than implementing a whole
// per-adapter ProviderAdapter surface, it only needs to plug an
// http.RoundTripper into pipeline.Config.HTTPClient, since rate limiting,
// retries, and allowlisting are now centralized in the shared pipeline.
package mockadapter

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/resilientcore/execbridge/pkg/adapters/adapterkit"
	"github.com/resilientcore/execbridge/pkg/pipeline"
	"github.com/resilientcore/execbridge/pkg/registry"
)

// Config mirrors the knobs of the teacher's mock adapter.
type Config struct {
	// RequestsUntilRateLimit is the number of requests that succeed before
	// the transport starts returning 429. Zero means never rate limit
	// unless AlwaysRateLimit is set.
	RequestsUntilRateLimit int

	// AlwaysRateLimit forces every request to return 429, for exercising
	// retry/backoff behavior immediately.
	AlwaysRateLimit bool

	// RandomDelayEnabled sleeps up to 500ms per request to simulate
	// network latency.
	RandomDelayEnabled bool

	// RandomErrorChance is the probability (0.0-1.0) that a request fails
	// at the transport level rather than returning an HTTP response.
	RandomErrorChance float64
}

// RoundTripper is an http.RoundTripper implementing Config's simulation.
// Install it via pipeline.Config.HTTPClient: &http.Client{Transport: rt}.
type RoundTripper struct {
	cfg Config

	mu    sync.Mutex
	count int
}

func NewRoundTripper(cfg Config) *RoundTripper {
	return &RoundTripper{cfg: cfg}
}

func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.cfg.RandomDelayEnabled {
		time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)
	}
	if rt.cfg.RandomErrorChance > 0 && rand.Float64() < rt.cfg.RandomErrorChance {
		return nil, errors.New("mockadapter: simulated transport error")
	}

	rt.mu.Lock()
	rt.count++
	count := rt.count
	rt.mu.Unlock()

	if rt.cfg.AlwaysRateLimit || (rt.cfg.RequestsUntilRateLimit > 0 && count > rt.cfg.RequestsUntilRateLimit) {
		return rt.response(req, http.StatusTooManyRequests, `{"error":"rate limited"}`), nil
	}

	body := `{"success":true}`
	if strings.Contains(req.URL.Path, "special") {
		body = `{"message":"special endpoint success"}`
	}
	return rt.response(req, http.StatusOK, body), nil
}

func (rt *RoundTripper) response(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Request:    req,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
	}
}

// Requests reports how many requests this transport has observed.
func (rt *RoundTripper) Requests() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.count
}

// NewClient builds an *http.Client backed by a fresh RoundTripper, for
// direct assignment to pipeline.Config.HTTPClient.
func NewClient(cfg Config) (*http.Client, *RoundTripper) {
	rt := NewRoundTripper(cfg)
	return &http.Client{Transport: rt}, rt
}

// Operations exercises two generic endpoints useful for pipeline-level
// scenario tests (spec.md §8 S1's rate-limit/recovery scenario): a plain
// resource fetch and a "special" endpoint whose body differs.
var Operations = map[string]adapterkit.Operation{
	"get_resource": {
		Method: http.MethodGet,
		Path:   func(params map[string]any) string { return "/mock/resource/" + adapterkit.StringParam(params, "id") },
	},
	"get_special": {
		Method: http.MethodGet,
		Path:   func(params map[string]any) string { return "/mock/special" },
	},
}

func RegisterHandlers(p *pipeline.Pipeline, reg *registry.Registry) {
	reg.RegisterHandlers(adapterkit.Build(p, Operations))
}
