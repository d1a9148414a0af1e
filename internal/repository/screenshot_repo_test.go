package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/minqi/snaplore/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&domain.Screenshot{}, &domain.Query{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func sampleEnrichment() *domain.Enrichment {
	return &domain.Enrichment{
		Title:       "Go Blog Post",
		Description: "A post about pipelines",
		Tags:        []string{"go", "blog"},
		Narrative:   "# Go Blog Post\n\nPipelines and cancellation.",
		QuickLink: domain.QuickLink{
			Kind:   domain.QuickLinkDirect,
			Target: "https://go.dev/blog/pipelines",
		},
		VectorID: "11111111-1111-1111-1111-111111111111",
	}
}

func TestCompleteEnrichment(t *testing.T) {
	repo := NewScreenshotRepository(newTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &domain.Screenshot{
		ID:     "s1",
		UserID: "u1",
		Status: domain.StatusPending,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.CompleteEnrichment(ctx, "s1", sampleEnrichment()); err != nil {
		t.Fatalf("CompleteEnrichment failed: %v", err)
	}

	shot, err := repo.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if shot.Status != domain.StatusProcessed {
		t.Errorf("Status = %q, want processed", shot.Status)
	}
	if shot.AITitle != "Go Blog Post" {
		t.Errorf("AITitle = %q", shot.AITitle)
	}
	if shot.QuickLink.Kind != domain.QuickLinkDirect || shot.QuickLink.Target != "https://go.dev/blog/pipelines" {
		t.Errorf("QuickLink = %+v", shot.QuickLink)
	}
	if len(shot.Tags) != 2 || shot.Tags[0] != "go" {
		t.Errorf("Tags = %v", shot.Tags)
	}
	if shot.VectorID != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("VectorID = %q", shot.VectorID)
	}
}

func TestCompleteEnrichmentOnlyTransitionsPending(t *testing.T) {
	repo := NewScreenshotRepository(newTestDB(t))
	ctx := context.Background()

	repo.Create(ctx, &domain.Screenshot{ID: "s1", UserID: "u1", Status: domain.StatusPending})

	if err := repo.CompleteEnrichment(ctx, "s1", sampleEnrichment()); err != nil {
		t.Fatalf("first CompleteEnrichment failed: %v", err)
	}

	second := sampleEnrichment()
	second.Title = "Different Title"
	if err := repo.CompleteEnrichment(ctx, "s1", second); err == nil {
		t.Fatal("second CompleteEnrichment should fail on a processed record")
	}

	shot, _ := repo.GetByID(ctx, "s1")
	if shot.AITitle != "Go Blog Post" {
		t.Errorf("AITitle = %q, processed record was overwritten", shot.AITitle)
	}
}

func TestMarkErrorOnlyTransitionsPending(t *testing.T) {
	repo := NewScreenshotRepository(newTestDB(t))
	ctx := context.Background()

	repo.Create(ctx, &domain.Screenshot{ID: "s1", UserID: "u1", Status: domain.StatusPending})
	if err := repo.CompleteEnrichment(ctx, "s1", sampleEnrichment()); err != nil {
		t.Fatalf("CompleteEnrichment failed: %v", err)
	}

	if err := repo.MarkError(ctx, "s1"); err != nil {
		t.Fatalf("MarkError returned error: %v", err)
	}

	shot, _ := repo.GetByID(ctx, "s1")
	if shot.Status != domain.StatusProcessed {
		t.Errorf("Status = %q, processed record was demoted", shot.Status)
	}
}

func TestGetOwnedScopesByUser(t *testing.T) {
	repo := NewScreenshotRepository(newTestDB(t))
	ctx := context.Background()

	repo.Create(ctx, &domain.Screenshot{ID: "s1", UserID: "u1", Status: domain.StatusPending})

	if _, err := repo.GetOwned(ctx, "s1", "u1"); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
	if _, err := repo.GetOwned(ctx, "s1", "u2"); err == nil {
		t.Error("foreign lookup should fail")
	}
}

func TestListPendingOldestFirst(t *testing.T) {
	db := newTestDB(t)
	repo := NewScreenshotRepository(db)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := repo.Create(ctx, &domain.Screenshot{ID: id, UserID: "u1", Status: domain.StatusPending}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if err := repo.CompleteEnrichment(ctx, "b", sampleEnrichment()); err != nil {
		t.Fatalf("CompleteEnrichment failed: %v", err)
	}

	pending, err := repo.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}
	for _, shot := range pending {
		if shot.ID == "b" {
			t.Error("processed record listed as pending")
		}
	}
}

func TestCountByStatus(t *testing.T) {
	repo := NewScreenshotRepository(newTestDB(t))
	ctx := context.Background()

	repo.Create(ctx, &domain.Screenshot{ID: "a", UserID: "u1", Status: domain.StatusPending})
	repo.Create(ctx, &domain.Screenshot{ID: "b", UserID: "u1", Status: domain.StatusPending})
	repo.CompleteEnrichment(ctx, "a", sampleEnrichment())

	pending, err := repo.CountByStatus(ctx, domain.StatusPending)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	processed, err := repo.CountByStatus(ctx, domain.StatusProcessed)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if pending != 1 || processed != 1 {
		t.Errorf("pending = %d, processed = %d, want 1 and 1", pending, processed)
	}
}
