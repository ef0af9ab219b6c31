package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/cutlinehq/cutline/pkg/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	// Create a mini Redis server for testing
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cache, err := NewCache(mr.Host(), mr.Server().Addr().Port, "", 0)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create cache: %v", err)
	}

	return cache, mr
}

func TestNewCache(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestCache_DocumentOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	document := []byte(`{"version":1,"clips":[]}`)

	if err := cache.SetDocument(ctx, "proj-1", document, time.Minute); err != nil {
		t.Fatalf("SetDocument failed: %v", err)
	}

	got, err := cache.GetDocument(ctx, "proj-1")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if string(got) != string(document) {
		t.Errorf("Expected document %s, got %s", document, got)
	}

	// Cache miss returns nil without error
	missing, err := cache.GetDocument(ctx, "proj-2")
	if err != nil {
		t.Fatalf("GetDocument miss failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil on cache miss, got %s", missing)
	}

	if err := cache.DeleteDocument(ctx, "proj-1"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	got, err = cache.GetDocument(ctx, "proj-1")
	if err != nil {
		t.Fatalf("GetDocument after delete failed: %v", err)
	}
	if got != nil {
		t.Error("Expected nil after delete")
	}
}

func TestCache_ExportJobOperations(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	job := &models.ExportJob{
		ID:        "export-1",
		ProjectID: "proj-1",
		Status:    models.ExportStatusQueued,
	}

	if err := cache.SetExportJob(ctx, job, time.Minute); err != nil {
		t.Fatalf("SetExportJob failed: %v", err)
	}

	got, err := cache.GetExportJob(ctx, "export-1")
	if err != nil {
		t.Fatalf("GetExportJob failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected cached job, got nil")
	}
	if got.Status != models.ExportStatusQueued {
		t.Errorf("Expected status %s, got %s", models.ExportStatusQueued, got.Status)
	}

	missing, err := cache.GetExportJob(ctx, "export-2")
	if err != nil {
		t.Fatalf("GetExportJob miss failed: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil on cache miss")
	}
}

func TestCache_ExportProgress(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()
	progress := ExportProgress{PercentComplete: 37.5, StatusMessage: "rendering"}

	if err := cache.SetExportProgress(ctx, "export-1", progress, time.Minute); err != nil {
		t.Fatalf("SetExportProgress failed: %v", err)
	}

	got, err := cache.GetExportProgress(ctx, "export-1")
	if err != nil {
		t.Fatalf("GetExportProgress failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected progress, got nil")
	}
	if got.PercentComplete != 37.5 {
		t.Errorf("Expected 37.5 percent, got %f", got.PercentComplete)
	}
	if got.StatusMessage != "rendering" {
		t.Errorf("Expected rendering, got %s", got.StatusMessage)
	}
}

func TestCache_RateLimit(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := cache.CheckRateLimit(ctx, "user-1", 3, time.Minute)
		if err != nil {
			t.Fatalf("CheckRateLimit failed: %v", err)
		}
		if !allowed {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	allowed, err := cache.CheckRateLimit(ctx, "user-1", 3, time.Minute)
	if err != nil {
		t.Fatalf("CheckRateLimit failed: %v", err)
	}
	if allowed {
		t.Error("Fourth request should be rejected")
	}
}

func TestCache_Locking(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	acquired, err := cache.AcquireLock(ctx, "export-1", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if !acquired {
		t.Error("First acquire should succeed")
	}

	acquired, err = cache.AcquireLock(ctx, "export-1", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if acquired {
		t.Error("Second acquire should fail while held")
	}

	if err := cache.ReleaseLock(ctx, "export-1"); err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}

	acquired, err = cache.AcquireLock(ctx, "export-1", time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if !acquired {
		t.Error("Acquire after release should succeed")
	}
}

func TestCache_ExportCancelFlag(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	requested, err := cache.ExportCancelRequested(ctx, "job-1")
	if err != nil {
		t.Fatalf("ExportCancelRequested failed: %v", err)
	}
	if requested {
		t.Error("Cancel flag should start unset")
	}

	if err := cache.RequestExportCancel(ctx, "job-1", time.Minute); err != nil {
		t.Fatalf("RequestExportCancel failed: %v", err)
	}

	requested, err = cache.ExportCancelRequested(ctx, "job-1")
	if err != nil {
		t.Fatalf("ExportCancelRequested failed: %v", err)
	}
	if !requested {
		t.Error("Cancel flag should be set after a request")
	}

	requested, err = cache.ExportCancelRequested(ctx, "job-2")
	if err != nil {
		t.Fatalf("ExportCancelRequested failed: %v", err)
	}
	if requested {
		t.Error("Cancel flag for one job must not leak to another")
	}
}

func TestCache_ExportAttempts(t *testing.T) {
	cache, mr := setupTestCache(t)
	defer mr.Close()
	defer cache.Close()

	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := cache.IncrementExportAttempts(ctx, "job-1", time.Minute)
		if err != nil {
			t.Fatalf("IncrementExportAttempts failed: %v", err)
		}
		if got != want {
			t.Errorf("Attempt %d: got %d", want, got)
		}
	}

	got, err := cache.IncrementExportAttempts(ctx, "job-2", time.Minute)
	if err != nil {
		t.Fatalf("IncrementExportAttempts failed: %v", err)
	}
	if got != 1 {
		t.Errorf("Counters must be per job, got %d", got)
	}
}
