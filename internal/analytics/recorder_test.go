package analytics

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/luna-svc/luna/internal/mcp"
)

type failingSink struct {
	calls int
}

func (s *failingSink) WriteRecord(_ mcp.AnalyticsRecord) error {
	s.calls++
	return errors.New("disk full")
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

func record(userID, sessionID string, taskType mcp.TaskType, success bool, seconds float64, tokens int) mcp.AnalyticsRecord {
	return mcp.AnalyticsRecord{
		UserID:       userID,
		SessionID:    sessionID,
		TaskType:     taskType,
		Success:      success,
		ResponseTime: seconds,
		TokensUsed:   tokens,
	}
}

func TestAggregate_EmptyLogIsZero(t *testing.T) {
	r := NewRecorder(nil)
	stats := r.Aggregate(Filter{UserID: "user-1"})

	if stats.TotalRequests != 0 || stats.SuccessRate != 0 || stats.AvgResponseTime != 0 || stats.TotalTokens != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
	if stats.TaskTypeBreakdown == nil {
		t.Fatal("breakdown map must not be nil")
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	r := NewRecorder(nil)
	r.Record(record("user-1", "", mcp.TaskCodeGeneration, true, 1.0, 100))
	r.Record(record("user-1", "", mcp.TaskDebugging, false, 3.0, 50))

	first := r.Aggregate(Filter{UserID: "user-1"})
	second := r.Aggregate(Filter{UserID: "user-1"})
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregate not idempotent: %+v vs %+v", first, second)
	}
}

func TestAggregate_Computation(t *testing.T) {
	r := NewRecorder(nil)
	r.Record(record("user-1", "", mcp.TaskCodeGeneration, true, 1.0, 100))
	r.Record(record("user-1", "", mcp.TaskCodeGeneration, true, 2.0, 200))
	r.Record(record("user-1", "", mcp.TaskDebugging, false, 3.0, 60))

	stats := r.Aggregate(Filter{UserID: "user-1"})
	if stats.TotalRequests != 3 {
		t.Fatalf("expected 3 requests, got %d", stats.TotalRequests)
	}
	if stats.TotalTokens != 360 {
		t.Fatalf("expected 360 tokens, got %d", stats.TotalTokens)
	}
	if stats.AvgResponseTime != 2.0 {
		t.Fatalf("expected avg 2.0, got %f", stats.AvgResponseTime)
	}
	if want := 2.0 / 3.0 * 100; stats.SuccessRate < want-0.01 || stats.SuccessRate > want+0.01 {
		t.Fatalf("expected success rate ~%.2f, got %f", want, stats.SuccessRate)
	}
	if stats.TaskTypeBreakdown["code_generation"] != 2 || stats.TaskTypeBreakdown["debugging"] != 1 {
		t.Fatalf("unexpected breakdown: %v", stats.TaskTypeBreakdown)
	}
}

func TestAggregate_FilterBySessionAndUser(t *testing.T) {
	r := NewRecorder(nil)
	r.Record(record("user-1", "sess-a", mcp.TaskCodeGeneration, true, 1, 10))
	r.Record(record("user-1", "sess-b", mcp.TaskCodeGeneration, true, 1, 10))
	r.Record(record("user-2", "sess-a", mcp.TaskCodeGeneration, true, 1, 10))

	if got := r.Aggregate(Filter{SessionID: "sess-a"}).TotalRequests; got != 2 {
		t.Fatalf("session filter: expected 2, got %d", got)
	}
	if got := r.Aggregate(Filter{UserID: "user-1"}).TotalRequests; got != 2 {
		t.Fatalf("user filter: expected 2, got %d", got)
	}
	if got := r.Aggregate(Filter{UserID: "user-1", SessionID: "sess-a"}).TotalRequests; got != 1 {
		t.Fatalf("combined filter: expected 1, got %d", got)
	}
}

func TestAggregate_TimeWindow(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	r := NewRecorderWithClock(nil, fakeClock{now: now})

	old := record("user-1", "", mcp.TaskCodeGeneration, true, 1, 10)
	old.CreatedAt = now.AddDate(0, 0, -10)
	r.Record(old)

	recent := record("user-1", "", mcp.TaskCodeGeneration, true, 1, 10)
	recent.CreatedAt = now.AddDate(0, 0, -2)
	r.Record(recent)

	if got := r.Aggregate(Filter{UserID: "user-1", WindowDays: 7}).TotalRequests; got != 1 {
		t.Fatalf("window filter: expected 1, got %d", got)
	}
	if got := r.Aggregate(Filter{UserID: "user-1"}).TotalRequests; got != 2 {
		t.Fatalf("no window: expected 2, got %d", got)
	}
}

func TestRecord_FillsIDAndTimestamp(t *testing.T) {
	r := NewRecorder(nil)
	r.Record(mcp.AnalyticsRecord{UserID: "user-1", TaskType: mcp.TaskTesting})

	if r.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", r.Len())
	}
	r.mu.Lock()
	rec := r.records[0]
	r.mu.Unlock()
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Fatalf("missing generated fields: %+v", rec)
	}
}

func TestRecord_SinkFailureIsSwallowed(t *testing.T) {
	sink := &failingSink{}
	r := NewRecorder(sink)

	r.Record(record("user-1", "", mcp.TaskCodeGeneration, true, 1, 10))

	if sink.calls != 1 {
		t.Fatalf("sink should be called once, got %d", sink.calls)
	}
	if r.Len() != 1 {
		t.Fatal("record must be kept despite sink failure")
	}
}

func TestRecord_ConcurrentAppends(t *testing.T) {
	r := NewRecorder(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record(record("user-1", "", mcp.TaskCodeGeneration, true, 1, 1))
		}()
	}
	wg.Wait()

	if got := r.Aggregate(Filter{UserID: "user-1"}).TotalRequests; got != 50 {
		t.Fatalf("expected 50 records, got %d", got)
	}
}
