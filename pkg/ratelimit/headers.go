package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/resilientcore/execbridge/pkg/envelope"
)

// headerCandidates lists, in precedence order, the header names checked for
// each canonical rate-limit field (spec.md §4.2 "Header feedback"):
// per-connector overrides first, then x-ratelimit-*, then x-rate-limit-*,
// then ratelimit-* aliases.
var headerCandidates = map[string][]string{
	"limit":       {"x-ratelimit-limit", "x-rate-limit-limit", "ratelimit-limit"},
	"remaining":   {"x-ratelimit-remaining", "x-rate-limit-remaining", "ratelimit-remaining"},
	"reset":       {"x-ratelimit-reset", "x-rate-limit-reset", "ratelimit-reset"},
	"retry-after": {"retry-after"},
}

// ParseHeaders extracts a RateLimitInfo from lowercase response headers,
// applying per-connector overrides before the default alias list.
func ParseHeaders(headers map[string]string, overrides map[string]string, now time.Time) *envelope.RateLimitInfo {
	lookup := func(canonical string) (string, bool) {
		if overrides != nil {
			if name, ok := overrides[canonical]; ok {
				if v, ok := headers[strings.ToLower(name)]; ok && v != "" {
					return v, true
				}
			}
		}
		for _, name := range headerCandidates[canonical] {
			if v, ok := headers[name]; ok && v != "" {
				return v, true
			}
		}
		return "", false
	}

	info := &envelope.RateLimitInfo{}

	if v, ok := lookup("limit"); ok {
		if i, err := strconv.Atoi(v); err == nil {
			info.Limit = &i
		}
	}
	if v, ok := lookup("remaining"); ok {
		if i, err := strconv.Atoi(v); err == nil {
			info.Remaining = &i
		}
	}
	if v, ok := lookup("reset"); ok {
		if ms, ok := interpretReset(v, now); ok {
			info.ResetTime = &ms
		}
	}
	if v, ok := lookup("retry-after"); ok {
		if ms, ok := interpretRetryAfter(v, now); ok {
			info.RetryAfterMs = &ms
		}
	}

	return info
}

// interpretReset implements the magnitude heuristic from spec.md §4.2:
//
//	> 1e12  -> absolute epoch ms
//	> 1e9   -> absolute epoch seconds (x1000)
//	>= 1e6  -> relative ms from now
//	>= 0    -> relative seconds from now
//
// Non-numeric values are parsed as an HTTP-date.
func interpretReset(v string, now time.Time) (int64, bool) {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		switch {
		case n > 1e12:
			return int64(n), true
		case n > 1e9:
			return int64(n * 1000), true
		case n >= 1e6:
			return now.UnixMilli() + int64(n), true
		case n >= 0:
			return now.UnixMilli() + int64(n*1000), true
		}
	}
	if t, err := http.ParseTime(v); err == nil {
		return t.UnixMilli(), true
	}
	return 0, false
}

// interpretRetryAfter implements spec.md §4.2's Retry-After rule: numeric
// values are seconds, otherwise parse as an HTTP-date.
func interpretRetryAfter(v string, now time.Time) (int64, bool) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			secs = 0
		}
		return int64(secs * 1000), true
	}
	if t, err := http.ParseTime(v); err == nil {
		ms := t.UnixMilli() - now.UnixMilli()
		if ms < 0 {
			ms = 0
		}
		return ms, true
	}
	return 0, false
}
