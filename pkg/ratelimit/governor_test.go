package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testGovernor() *Governor {
	g := New(zerolog.Nop())
	g.jitter = func() float64 { return 0 } // pin jitter to the low end of [0.75,1.25] for determinism
	return g
}

func TestAcquireConcurrencyCap(t *testing.T) {
	g := testGovernor()
	rules := Rules{ConcurrencyLimit: 2, Scope: ScopeConnector}
	id := Identity{ConnectorID: "github"}

	var active, maxActive int32
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.Acquire(context.Background(), id, rules)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			res.Release()
		}()
	}
	wg.Wait()

	if maxActive > 2 {
		t.Fatalf("expected at most 2 concurrent acquires, saw %d", maxActive)
	}
}

func TestObserveResponsePenaltyOnRetryAfter(t *testing.T) {
	g := testGovernor()
	rules := Rules{Scope: ScopeConnector}
	id := Identity{ConnectorID: "vendor"}

	g.ObserveResponse(id, rules, 429, map[string]string{"retry-after": "1"})

	start := time.Now()
	res, err := g.Acquire(context.Background(), id, rules)
	if err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start)
	res.Release()

	// jitter pinned to 0 -> factor 0.75, so expect ~750ms wait.
	if elapsed < 700*time.Millisecond {
		t.Fatalf("expected acquire to be delayed by the penalty, only waited %v", elapsed)
	}
}

func TestBackoffLevelMonotonicUnderRepeated429(t *testing.T) {
	g := testGovernor()
	rules := Rules{Scope: ScopeConnector}
	id := Identity{ConnectorID: "vendor"}
	key := id.key(rules.Scope)

	var durations []time.Duration
	for i := 0; i < 4; i++ {
		g.ObserveResponse(id, rules, 429, map[string]string{})
		g.mu.Lock()
		st := g.scopes[key]
		g.mu.Unlock()
		st.mu.Lock()
		durations = append(durations, time.Until(st.penaltyUntil))
		st.penaltyUntil = time.Time{} // clear so the next ObserveResponse isn't blocked by Acquire semantics
		st.mu.Unlock()
	}

	for i := 1; i < len(durations); i++ {
		if durations[i] < durations[i-1] {
			t.Fatalf("expected non-decreasing backoff, got %v then %v", durations[i-1], durations[i])
		}
	}
}

func TestBackoffResetsOnNonPenalizedResponse(t *testing.T) {
	g := testGovernor()
	rules := Rules{Scope: ScopeConnector}
	id := Identity{ConnectorID: "vendor"}
	key := id.key(rules.Scope)

	g.ObserveResponse(id, rules, 429, map[string]string{})
	g.ObserveResponse(id, rules, 200, map[string]string{"x-ratelimit-remaining": "10"})

	g.mu.Lock()
	st := g.scopes[key]
	g.mu.Unlock()
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.backoffLevel != 0 {
		t.Fatalf("expected backoff level reset to 0, got %d", st.backoffLevel)
	}
}

func TestParseHeadersResetMagnitudeHeuristic(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		val  string
		want func(got int64) bool
	}{
		{"absolute_ms", "2000000000000", func(got int64) bool { return got == 2000000000000 }},
		{"absolute_sec", "2000000000", func(got int64) bool { return got == 2000000000*1000 }},
		{"relative_ms", "5000000", func(got int64) bool { return got == now.UnixMilli()+5000000 }},
		{"relative_sec", "30", func(got int64) bool { return got == now.UnixMilli()+30000 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			info := ParseHeaders(map[string]string{"x-ratelimit-reset": c.val}, nil, now)
			if info.ResetTime == nil {
				t.Fatal("expected ResetTime to be set")
			}
			if !c.want(*info.ResetTime) {
				t.Fatalf("unexpected reset time %d", *info.ResetTime)
			}
		})
	}
}

func TestParseHeadersOverridePrecedence(t *testing.T) {
	now := time.Now()
	headers := map[string]string{
		"x-ratelimit-remaining": "10",
		"x-custom-remaining":    "3",
	}
	info := ParseHeaders(headers, map[string]string{"remaining": "x-custom-remaining"}, now)
	if info.Remaining == nil || *info.Remaining != 3 {
		t.Fatalf("expected override header to win, got %+v", info.Remaining)
	}
}
