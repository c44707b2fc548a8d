package metrics

import "testing"

func TestNoopSinkDoesNotPanic(t *testing.T) {
	var s Sink = NoopSink{}
	s.ObserveRequest("github", 200, false)
	s.ObservePenalty("connector", "github", 1.5)
	s.ObserveTokenRefresh("github", true)
}

func TestStatusCodeLabel(t *testing.T) {
	cases := map[int]string{0: "transport_error", 200: "200", 429: "429", 503: "503"}
	for in, want := range cases {
		if got := statusCodeLabel(in); got != want {
			t.Fatalf("statusCodeLabel(%d) = %q, want %q", in, got, want)
		}
	}
}
