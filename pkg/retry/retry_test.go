package retry

import (
	"context"
	"testing"
	"time"

	"github.com/resilientcore/execbridge/pkg/envelope"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

// S6 — retry ladder: statuses [503, 502, 200].
func TestWithRetriesLadder(t *testing.T) {
	statuses := []int{503, 502, 200}
	call := 0
	var retryCount int
	var delays []time.Duration

	policy := DefaultPolicy()
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	policy.OnRetry = func(attempt int, resp *envelope.APIResponse[any], err error) {
		retryCount++
	}

	resp, err := WithRetries(context.Background(), func(ctx context.Context) (*envelope.APIResponse[any], error) {
		code := statuses[call]
		call++
		if code >= 200 && code < 300 {
			return envelope.Ok[any]("ok", code, nil), nil
		}
		return envelope.Fail[any]("server error", code), nil
	}, policy)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || resp.StatusCode != 200 {
		t.Fatalf("expected eventual success, got %+v", resp)
	}
	if call != 3 {
		t.Fatalf("expected 3 attempts, got %d", call)
	}
	if retryCount != 2 {
		t.Fatalf("expected onRetry called twice, got %d", retryCount)
	}
	if len(delays) != 2 || delays[0] != 500*time.Millisecond || delays[1] != time.Second {
		t.Fatalf("expected delays [500ms, 1s], got %v", delays)
	}
}

func TestWithRetriesExhausted(t *testing.T) {
	policy := DefaultPolicy()
	policy.Sleep = noSleep
	calls := 0
	resp, _ := WithRetries(context.Background(), func(ctx context.Context) (*envelope.APIResponse[any], error) {
		calls++
		return envelope.Fail[any]("boom", 500), nil
	}, policy)

	if resp.Success {
		t.Fatal("expected failure after exhausting retries")
	}
	if calls != policy.Retries+1 {
		t.Fatalf("expected %d attempts, got %d", policy.Retries+1, calls)
	}
}

func TestWithRetriesNonRetriableStatus(t *testing.T) {
	policy := DefaultPolicy()
	policy.Sleep = noSleep
	calls := 0
	resp, _ := WithRetries(context.Background(), func(ctx context.Context) (*envelope.APIResponse[any], error) {
		calls++
		return envelope.Fail[any]("bad request", 400), nil
	}, policy)

	if calls != 1 {
		t.Fatalf("expected no retries for a 4xx, got %d calls", calls)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("expected original status preserved, got %d", resp.StatusCode)
	}
}

func TestWithRetriesTransportException(t *testing.T) {
	policy := DefaultPolicy()
	policy.Sleep = noSleep
	calls := 0
	resp, err := WithRetries(context.Background(), func(ctx context.Context) (*envelope.APIResponse[any], error) {
		calls++
		if calls < 2 {
			return nil, context.DeadlineExceeded
		}
		return envelope.Ok[any]("ok", 200, nil), nil
	}, policy)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success after exception converts to retriable envelope, got %+v", resp)
	}
}

func TestDefaultShouldRetry(t *testing.T) {
	cases := []struct {
		status int
		ok     bool
		want   bool
	}{
		{0, false, true},
		{429, false, true},
		{500, false, true},
		{599, false, true},
		{400, false, false},
		{404, false, false},
		{200, true, false},
	}
	for _, c := range cases {
		resp := &envelope.APIResponse[any]{Success: c.ok, StatusCode: c.status}
		if got := DefaultShouldRetry(resp); got != c.want {
			t.Errorf("status=%d ok=%v: got %v want %v", c.status, c.ok, got, c.want)
		}
	}
}
