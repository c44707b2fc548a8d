// Package audit implements the audit sink collaborator the allowlist gate
// (C1) writes to on denial (spec.md §4.9 rule 5). The core only requires
// that denials are recorded; it does not await batching or delivery
// (spec.md §5 "Shared resources").
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/resilientcore/execbridge/pkg/allowlist"
)

// Event wraps an allowlist.AuditRecord with an id and timestamp, the shape
// persisted/forwarded by a durable sink.
type Event struct {
	ID        string
	Timestamp time.Time
	Record    allowlist.AuditRecord
}

// LogSink is a zerolog-backed allowlist.Sink: every denial is logged as a
// structured warning, matching the teacher's convention of logging
// security-relevant rejections rather than silently swallowing them.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) RecordDenial(rec allowlist.AuditRecord) {
	s.log.Warn().
		Str("attemptedHost", rec.AttemptedHost).
		Str("attemptedUrl", rec.AttemptedURL).
		Str("reason", rec.Reason).
		Str("organizationId", rec.OrganizationID).
		Str("connectionId", rec.ConnectionID).
		Str("userId", rec.UserID).
		Msg("network allowlist denial")
}

// MemorySink additionally retains every denial event in process memory,
// bounded to the most recent `capacity` entries, so tests and an admin
// route can inspect recent denials without a durable store.
type MemorySink struct {
	mu       sync.Mutex
	capacity int
	events   []Event
	log      zerolog.Logger
}

func NewMemorySink(log zerolog.Logger, capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemorySink{log: log, capacity: capacity}
}

func (s *MemorySink) RecordDenial(rec allowlist.AuditRecord) {
	s.log.Warn().
		Str("attemptedHost", rec.AttemptedHost).
		Str("reason", rec.Reason).
		Msg("network allowlist denial")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{ID: uuid.NewString(), Timestamp: time.Now(), Record: rec})
	if len(s.events) > s.capacity {
		s.events = s.events[len(s.events)-s.capacity:]
	}
}

// Recent returns the most recently recorded denial events, oldest first.
func (s *MemorySink) Recent() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
