package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/merchant-categorizer/internal/domain"
	"github.com/dvloznov/merchant-categorizer/internal/jobs"
)

func TestStore_SaveAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	job := &jobs.CategorizeJob{JobID: "job-1", Status: jobs.JobStatusPending}
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	// Later changes by the caller must not leak into the store.
	job.Status = jobs.JobStatusRunning

	got, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != jobs.JobStatusPending {
		t.Errorf("Expected status pending, got %q", got.Status)
	}

	if err := store.SaveJob(ctx, &jobs.CategorizeJob{}); err == nil {
		t.Error("Expected error for job without ID")
	}
}

func TestStore_GetUnknown(t *testing.T) {
	store := NewStore()

	_, err := store.GetJob(context.Background(), "missing")
	if !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
	err = store.UpdateJobStatus(context.Background(), "missing", jobs.JobStatusFailed, "x")
	if !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_ListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, tc := range []struct {
		id     string
		source string
		status jobs.JobStatus
	}{
		{"a", "api", jobs.JobStatusCompleted},
		{"b", "cli", jobs.JobStatusFailed},
		{"c", "api", jobs.JobStatusCompleted},
		{"d", "api", jobs.JobStatusPending},
	} {
		job := &jobs.CategorizeJob{
			JobID:     tc.id,
			Source:    tc.source,
			Status:    tc.status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Records:   []domain.RawRecord{{Description: "x"}},
		}
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}
	}

	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Expected 4 jobs, got %d", len(all))
	}
	if all[0].JobID != "d" || all[3].JobID != "a" {
		t.Errorf("Expected newest first, got %s..%s", all[0].JobID, all[3].JobID)
	}
	if all[0].Records != nil {
		t.Error("Expected listing to omit record payloads")
	}

	completed, _ := store.ListJobs(ctx, jobs.JobFilter{Source: "api", Status: jobs.JobStatusCompleted})
	if len(completed) != 2 {
		t.Errorf("Expected 2 completed api jobs, got %d", len(completed))
	}

	page, _ := store.ListJobs(ctx, jobs.JobFilter{Offset: 1, Limit: 2})
	if len(page) != 2 || page[0].JobID != "c" {
		t.Errorf("Unexpected page: %+v", page)
	}

	empty, _ := store.ListJobs(ctx, jobs.JobFilter{Offset: 10})
	if len(empty) != 0 {
		t.Errorf("Expected empty page, got %d", len(empty))
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.SaveJob(ctx, &jobs.CategorizeJob{JobID: "job-1", Status: jobs.JobStatusRunning})

	if err := store.UpdateJobStatus(ctx, "job-1", jobs.JobStatusFailed, "queue is closed"); err != nil {
		t.Fatalf("UpdateJobStatus failed: %v", err)
	}
	got, _ := store.GetJob(ctx, "job-1")
	if got.Status != jobs.JobStatusFailed || got.Error != "queue is closed" {
		t.Errorf("Unexpected job: %+v", got)
	}
}

func finishedJob(id string, status jobs.JobStatus, completed time.Time) *jobs.CategorizeJob {
	return &jobs.CategorizeJob{JobID: id, Status: status, CreatedAt: completed, CompletedAt: &completed}
}

func TestStore_EvictsOldestFinished(t *testing.T) {
	store := NewStoreWithLimit(2)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = store.SaveJob(ctx, &jobs.CategorizeJob{JobID: "running", Status: jobs.JobStatusRunning, CreatedAt: base.Add(-time.Hour)})
	_ = store.SaveJob(ctx, finishedJob("old", jobs.JobStatusCompleted, base))
	_ = store.SaveJob(ctx, finishedJob("mid", jobs.JobStatusFailed, base.Add(time.Minute)))
	_ = store.SaveJob(ctx, finishedJob("new", jobs.JobStatusCompleted, base.Add(2*time.Minute)))

	if _, err := store.GetJob(ctx, "old"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("Expected oldest finished job to be evicted, got %v", err)
	}
	for _, id := range []string{"running", "mid", "new"} {
		if _, err := store.GetJob(ctx, id); err != nil {
			t.Errorf("Expected %s to be kept: %v", id, err)
		}
	}
}

func TestStore_Prune(t *testing.T) {
	store := NewStoreWithLimit(0)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = store.SaveJob(ctx, finishedJob("stale", jobs.JobStatusCompleted, base))
	_ = store.SaveJob(ctx, finishedJob("fresh", jobs.JobStatusCompleted, base.Add(2*time.Hour)))
	_ = store.SaveJob(ctx, &jobs.CategorizeJob{JobID: "pending", Status: jobs.JobStatusPending, CreatedAt: base.Add(-time.Hour)})

	if removed := store.Prune(base.Add(time.Hour)); removed != 1 {
		t.Errorf("Expected 1 job pruned, got %d", removed)
	}
	if _, err := store.GetJob(ctx, "stale"); err == nil {
		t.Error("Expected stale job to be pruned")
	}
	if _, err := store.GetJob(ctx, "pending"); err != nil {
		t.Errorf("Expected pending job to survive prune: %v", err)
	}
}
