// Package ratelimit implements the Rate Limit Governor (C2 in spec.md §4.2):
// a per-scope token bucket plus concurrency semaphore, fed by vendor
// rate-limit headers and penalized on 429 / Retry-After.
//
// The token bucket is golang.org/x/time/rate (grounded on
// Mindburn-Labs-helm's pkg/arc/connector.go, which wraps the same package
// around a per-connector limiter) rather than the teacher's hand-rolled
// timestamp slice (resilient-bridge's GitHubAdapter.isRateLimited).
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/resilientcore/execbridge/pkg/envelope"
)

// Scope is the key dimension rate-limit state accumulates under.
type Scope string

const (
	ScopeConnector    Scope = "connector"
	ScopeConnection   Scope = "connection"
	ScopeOrganization Scope = "organization"
)

// Rules is the per-connector rate-limit configuration (spec.md §3
// RateLimitRules): concurrency cap, scope tag, window, tokens-per-window,
// and header-name overrides.
type Rules struct {
	ConcurrencyLimit int
	Scope            Scope
	WindowSecs       int64
	TokensPerWindow  int
	HeaderOverrides  map[string]string // canonical name ("limit"|"remaining"|"reset"|"retry-after") -> header name
}

// Identity selects which scope key a given request falls under.
type Identity struct {
	ConnectorID    string
	ConnectionID   string
	OrganizationID string
}

func (id Identity) key(scope Scope) string {
	switch scope {
	case ScopeConnection:
		return "connection:" + id.ConnectionID
	case ScopeOrganization:
		return "organization:" + id.OrganizationID
	default:
		return "connector:" + id.ConnectorID
	}
}

const maxBackoffLevel = 6
const penaltyCap = 60 * time.Second

// scopeState holds all process-wide mutable state for one scope key.
type scopeState struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	sem          chan struct{}
	penaltyUntil time.Time
	backoffLevel int
	lastInfo     *envelope.RateLimitInfo
}

// Governor is the process-wide rate-limit state holder. One Governor is
// typically owned by one Request Pipeline (spec.md §9 "Cyclic references").
type Governor struct {
	mu     sync.Mutex
	scopes map[string]*scopeState
	log    zerolog.Logger
	now    func() time.Time
	jitter func() float64 // returns a value in [0,1); overridable for tests
}

func New(log zerolog.Logger) *Governor {
	return &Governor{
		scopes: make(map[string]*scopeState),
		log:    log,
		now:    time.Now,
		jitter: defaultJitter,
	}
}

func (g *Governor) stateFor(key string, rules Rules) *scopeState {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.scopes[key]
	if ok {
		return st
	}

	var limiter *rate.Limiter
	if rules.TokensPerWindow > 0 && rules.WindowSecs > 0 {
		r := rate.Limit(float64(rules.TokensPerWindow) / float64(rules.WindowSecs))
		limiter = rate.NewLimiter(r, maxInt(rules.TokensPerWindow, 1))
	}

	capacity := rules.ConcurrencyLimit
	if capacity <= 0 {
		capacity = 1 << 20 // effectively unbounded: "permissive" per spec.md §4.2
	}
	st = &scopeState{
		limiter: limiter,
		sem:     make(chan struct{}, capacity),
	}
	g.scopes[key] = st
	return st
}

// Release returns the semaphore slot acquired by Acquire.
type Release func()

// AcquireResult mirrors spec.md §4.2's acquire({...}) -> {release, waitMs, attempts}.
type AcquireResult struct {
	Release  Release
	WaitMs   int64
	Attempts int
}

// Acquire blocks until the scope's penalty has expired, a semaphore slot is
// free, and a bucket token is available (spec.md §4.2 acquire protocol).
// If rules has no TokensPerWindow configured, the governor is permissive:
// it admits immediately and only tracks header-derived state.
func (g *Governor) Acquire(ctx context.Context, id Identity, rules Rules) (*AcquireResult, error) {
	key := id.key(rules.Scope)
	st := g.stateFor(key, rules)

	start := g.now()
	attempts := 0

	for {
		attempts++
		st.mu.Lock()
		wait := st.penaltyUntil.Sub(g.now())
		st.mu.Unlock()
		if wait > 0 {
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}
		break
	}

	select {
	case st.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		<-st.sem
	}

	if st.limiter != nil {
		if err := st.limiter.Wait(ctx); err != nil {
			release()
			return nil, err
		}
	}

	waitMs := g.now().Sub(start).Milliseconds()
	return &AcquireResult{Release: release, WaitMs: waitMs, Attempts: attempts}, nil
}

// ObserveResponse is the built-in response middleware described in spec.md
// §4.1 step 7 / §4.2 "Header feedback": it updates the scope's
// RateLimitInfo from response headers and schedules a penalty on 429 or a
// positive Retry-After.
func (g *Governor) ObserveResponse(id Identity, rules Rules, statusCode int, headers map[string]string) *envelope.RateLimitInfo {
	key := id.key(rules.Scope)
	st := g.stateFor(key, rules)

	info := ParseHeaders(headers, rules.HeaderOverrides, g.now())

	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastInfo = info

	retryAfterPositive := info.RetryAfterMs != nil && *info.RetryAfterMs > 0
	if statusCode == 429 || retryAfterPositive {
		if statusCode == 429 {
			if st.backoffLevel < maxBackoffLevel {
				st.backoffLevel++
			}
		} else if st.backoffLevel < 1 {
			st.backoffLevel = 1
		}

		var base time.Duration
		if retryAfterPositive {
			base = time.Duration(*info.RetryAfterMs) * time.Millisecond
		} else {
			base = time.Duration(1000*(1<<uint(st.backoffLevel-1))) * time.Millisecond
			if base > penaltyCap {
				base = penaltyCap
			}
		}

		jitterFactor := 0.75 + g.jitter()*0.5 // in [0.75, 1.25]
		penalty := time.Duration(float64(base) * jitterFactor)
		st.penaltyUntil = g.now().Add(penalty)

		g.log.Warn().
			Str("scope", key).
			Dur("penalty", penalty).
			Int("backoffLevel", st.backoffLevel).
			Msg("rate limit governor scheduling penalty")
	} else {
		st.backoffLevel = 0
	}

	return info
}

// Snapshot returns a copy of the last known RateLimitInfo for a scope key,
// or nil if nothing has been observed yet.
func (g *Governor) Snapshot(id Identity, scope Scope) *envelope.RateLimitInfo {
	key := id.key(scope)
	g.mu.Lock()
	st, ok := g.scopes[key]
	g.mu.Unlock()
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.lastInfo == nil {
		return nil
	}
	cp := *st.lastInfo
	return &cp
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func defaultJitter() float64 {
	return pseudoRand()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
