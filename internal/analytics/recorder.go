// Package analytics keeps an append-only log of processed requests and
// answers filtered aggregate queries over it.
package analytics

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luna-svc/luna/internal/mcp"
)

// Sink receives a copy of every record, typically for durable storage.
// Sink errors are logged and never propagate to the request path.
type Sink interface {
	WriteRecord(rec mcp.AnalyticsRecord) error
}

// Filter narrows an aggregate query. Zero-value fields are ignored.
// WindowDays <= 0 means no time bound.
type Filter struct {
	SessionID  string
	UserID     string
	WindowDays int
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Recorder is the in-memory request log. Record never fails the caller.
type Recorder struct {
	sink  Sink // optional
	clock Clock

	mu      sync.Mutex
	records []mcp.AnalyticsRecord
}

// NewRecorder creates a Recorder. sink may be nil.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink, clock: realClock{}}
}

// NewRecorderWithClock creates a Recorder with a custom clock (for testing).
func NewRecorderWithClock(sink Sink, clock Clock) *Recorder {
	return &Recorder{sink: sink, clock: clock}
}

// Record appends one entry to the log. A missing ID or timestamp is filled
// in. Sink failures are logged and swallowed so recording never breaks the
// request path.
func (r *Recorder) Record(rec mcp.AnalyticsRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.clock.Now().UTC()
	}

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	if r.sink != nil {
		if err := r.sink.WriteRecord(rec); err != nil {
			slog.Warn("failed to persist analytics record", "request_id", rec.RequestID, "error", err)
		}
	}
}

// Len returns the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Aggregate computes summary statistics over the records matching the
// filter. An empty match yields the zero-value stats with a non-nil
// breakdown map.
func (r *Recorder) Aggregate(f Filter) mcp.AggregateStats {
	var cutoff time.Time
	if f.WindowDays > 0 {
		cutoff = r.clock.Now().AddDate(0, 0, -f.WindowDays)
	}

	stats := mcp.AggregateStats{TaskTypeBreakdown: make(map[string]int)}
	var successes int
	var totalTime float64

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if f.SessionID != "" && rec.SessionID != f.SessionID {
			continue
		}
		if f.UserID != "" && rec.UserID != f.UserID {
			continue
		}
		if !cutoff.IsZero() && rec.CreatedAt.Before(cutoff) {
			continue
		}

		stats.TotalRequests++
		stats.TotalTokens += rec.TokensUsed
		stats.TaskTypeBreakdown[string(rec.TaskType)]++
		totalTime += rec.ResponseTime
		if rec.Success {
			successes++
		}
	}

	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(successes) / float64(stats.TotalRequests) * 100
		stats.AvgResponseTime = totalTime / float64(stats.TotalRequests)
	}
	return stats
}
