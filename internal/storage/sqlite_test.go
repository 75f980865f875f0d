package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/luna-svc/luna/internal/mcp"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesMigrations(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("listing migrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Fatalf("expected migration 1 applied, got %v", versions)
	}
}

func TestInteraction_SaveAndGet(t *testing.T) {
	s := openTestStore(t)

	in := Interaction{
		RequestID:    "req-1",
		SessionID:    "sess-1",
		UserID:       "user-1",
		TaskType:     "code_generation",
		Language:     "go",
		Success:      true,
		ResponseTime: 1.25,
		TokensUsed:   42,
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := s.SaveInteraction(in); err != nil {
		t.Fatalf("saving interaction: %v", err)
	}

	recent, err := s.RecentInteractions(10)
	if err != nil {
		t.Fatalf("listing interactions: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 interaction, got %d", len(recent))
	}
	if recent[0].ID == "" {
		t.Fatal("save must generate an id")
	}

	got, err := s.GetInteraction(recent[0].ID)
	if err != nil {
		t.Fatalf("getting interaction: %v", err)
	}
	if got.RequestID != "req-1" || got.UserID != "user-1" || got.TokensUsed != 42 {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("timestamp mismatch: %v vs %v", got.CreatedAt, in.CreatedAt)
	}
}

func TestInteraction_GetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetInteraction("nonexistent-id")
	if !errors.Is(err, mcp.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInteraction_RecentOrderAndLimit(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := s.SaveInteraction(Interaction{
			RequestID: fmt.Sprintf("req-%d", i),
			UserID:    "user-1",
			TaskType:  "debugging",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("saving interaction %d: %v", i, err)
		}
	}

	recent, err := s.RecentInteractions(3)
	if err != nil {
		t.Fatalf("listing interactions: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 interactions, got %d", len(recent))
	}
	if recent[0].RequestID != "req-4" || recent[2].RequestID != "req-2" {
		t.Fatalf("unexpected order: %s .. %s", recent[0].RequestID, recent[2].RequestID)
	}
}

func TestWriteRecord_PersistsAsInteraction(t *testing.T) {
	s := openTestStore(t)

	err := s.WriteRecord(mcp.AnalyticsRecord{
		ID:           "rec-1",
		RequestID:    "req-1",
		SessionID:    "sess-1",
		UserID:       "user-1",
		TaskType:     mcp.TaskTesting,
		Success:      true,
		ResponseTime: 0.5,
		TokensUsed:   7,
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("writing record: %v", err)
	}

	got, err := s.GetInteraction("rec-1")
	if err != nil {
		t.Fatalf("getting interaction: %v", err)
	}
	if got.TaskType != "testing" || got.TokensUsed != 7 {
		t.Fatalf("record mapping mismatch: %+v", got)
	}
}

func TestAutomationJob_CreateFillsDefaults(t *testing.T) {
	s := openTestStore(t)

	created, err := s.CreateAutomationJob(AutomationJob{Name: "job", Type: "manual"})
	if err != nil {
		t.Fatalf("creating job: %v", err)
	}
	if created.ID == "" {
		t.Fatal("create must generate an id")
	}
	if created.Status != JobStatusActive {
		t.Fatalf("expected default active status, got %q", created.Status)
	}
	if created.ConfigJSON != "{}" {
		t.Fatalf("expected empty config object, got %q", created.ConfigJSON)
	}
}

func TestAutomationJob_Roundtrip(t *testing.T) {
	s := openTestStore(t)

	created, err := s.CreateAutomationJob(AutomationJob{
		Name:        "nightly digest",
		Description: "summarize findings",
		Type:        "scheduled",
		Status:      JobStatusPaused,
		ConfigJSON:  `{"schedule":"0 2 * * *"}`,
		LastRun:     time.Date(2025, 5, 31, 2, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("creating job: %v", err)
	}

	got, err := s.GetAutomationJob(created.ID)
	if err != nil {
		t.Fatalf("getting job: %v", err)
	}
	if got.Name != "nightly digest" || got.Status != JobStatusPaused {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if !got.LastRun.Equal(created.LastRun) {
		t.Fatalf("last_run mismatch: %v vs %v", got.LastRun, created.LastRun)
	}
}

func TestAutomationJob_Update(t *testing.T) {
	s := openTestStore(t)

	created, err := s.CreateAutomationJob(AutomationJob{Name: "job", Type: "manual"})
	if err != nil {
		t.Fatalf("creating job: %v", err)
	}

	created.Name = "renamed job"
	created.Status = JobStatusDisabled
	if err := s.UpdateAutomationJob(created); err != nil {
		t.Fatalf("updating job: %v", err)
	}

	got, err := s.GetAutomationJob(created.ID)
	if err != nil {
		t.Fatalf("getting job: %v", err)
	}
	if got.Name != "renamed job" || got.Status != JobStatusDisabled {
		t.Fatalf("update not persisted: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Fatalf("updated_at not refreshed: %v vs %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestAutomationJob_UpdateMissing(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateAutomationJob(AutomationJob{ID: "nonexistent-id", Name: "x"})
	if !errors.Is(err, mcp.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAutomationJob_Delete(t *testing.T) {
	s := openTestStore(t)

	created, err := s.CreateAutomationJob(AutomationJob{Name: "job", Type: "manual"})
	if err != nil {
		t.Fatalf("creating job: %v", err)
	}
	if err := s.DeleteAutomationJob(created.ID); err != nil {
		t.Fatalf("deleting job: %v", err)
	}
	if _, err := s.GetAutomationJob(created.ID); !errors.Is(err, mcp.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteAutomationJob(created.ID); !errors.Is(err, mcp.ErrNotFound) {
		t.Fatalf("second delete should report ErrNotFound, got %v", err)
	}
}

func TestSeedDemoJobs_Idempotent(t *testing.T) {
	s := openTestStore(t)

	if err := s.SeedDemoJobs(); err != nil {
		t.Fatalf("seeding: %v", err)
	}
	jobs, err := s.ListAutomationJobs()
	if err != nil {
		t.Fatalf("listing jobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 seeded jobs, got %d", len(jobs))
	}

	if err := s.SeedDemoJobs(); err != nil {
		t.Fatalf("second seeding: %v", err)
	}
	jobs, err = s.ListAutomationJobs()
	if err != nil {
		t.Fatalf("listing jobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("seeding must not duplicate, got %d jobs", len(jobs))
	}
}
