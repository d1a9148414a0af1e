package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/minqi/snaplore/internal/domain"
	"github.com/minqi/snaplore/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// named per test: gorm pools connections, and a bare :memory: DSN would
	// hand each connection its own empty database
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

type fakeExtractor struct {
	ext *domain.Extraction
	err error
}

func (f *fakeExtractor) Extract(ctx context.Context, image []byte, format string) (*domain.Extraction, error) {
	return f.ext, f.err
}

type fakeResolver struct {
	res *Resolution
}

func (f *fakeResolver) Resolve(ctx context.Context, ext *domain.Extraction) (*Resolution, error) {
	return f.res, nil
}

// disconnectedIndex mimics a vector backend that was unreachable at startup.
type disconnectedIndex struct{}

func (disconnectedIndex) Connected() bool { return false }
func (disconnectedIndex) Upsert(ctx context.Context, entityID, entityType, ownerID string, embedding []float32) (string, error) {
	return "", nil
}
func (disconnectedIndex) Search(ctx context.Context, embedding []float32, ownerIDs []string, entityType string, limit int) ([]repository.VectorHit, error) {
	return nil, nil
}
func (disconnectedIndex) Remove(ctx context.Context, vectorID string) error { return nil }

// unreachable providers fail fast and exercise the degradation paths
func offlineDistiller() *Distiller {
	return NewDistiller(&DistillerConfig{Model: "m", BaseURL: "http://127.0.0.1:1"})
}

func offlineEmbedder() *EmbeddingService {
	return NewEmbeddingService(&EmbeddingServiceConfig{Model: "m", BaseURL: "http://127.0.0.1:1", Dimensions: 4})
}

func newTestEnricher(t *testing.T, db *gorm.DB, index repository.VectorIndex, extractor Extractor) (*EnrichmentService, *repository.ScreenshotRepository) {
	t.Helper()
	shots := repository.NewScreenshotRepository(db)
	resolver := &fakeResolver{res: &Resolution{Narrative: "# Hacker News\n\nA post about B-trees.\n"}}

	svc := NewEnrichmentService(
		shots, index, nil, extractor, resolver,
		offlineDistiller(), offlineEmbedder(),
		&EnrichmentConfig{Workers: 1, QueueSize: 4},
	)
	return svc, shots
}

func seedPending(t *testing.T, shots *repository.ScreenshotRepository, id string) {
	t.Helper()
	err := shots.Create(context.Background(), &domain.Screenshot{
		ID:         id,
		UserID:     "u1",
		StorageKey: "screenshots/u1/" + id + ".png",
		Status:     domain.StatusPending,
		VectorID:   domain.VectorRefNone,
	})
	if err != nil {
		t.Fatalf("failed to seed screenshot: %v", err)
	}
}

func TestProcessDegradedProvidersStillCompletes(t *testing.T) {
	db := newTestDB(t)
	index := repository.NewMemoryIndex()
	svc, shots := newTestEnricher(t, db, index, &fakeExtractor{ext: sampleExtraction()})
	seedPending(t, shots, "s1")

	svc.process(context.Background(), EnrichTask{ScreenshotID: "s1", UserID: "u1", Image: []byte{1}, Format: "png"})

	shot, err := shots.GetByID(context.Background(), "s1")
	if err != nil {
		t.Fatalf("failed to load screenshot: %v", err)
	}
	if shot.Status != domain.StatusProcessed {
		t.Fatalf("Status = %q, want processed", shot.Status)
	}
	// distiller endpoint is unreachable, so the deterministic fallback wins
	if shot.AITitle != fallbackTitle {
		t.Errorf("AITitle = %q, want %q", shot.AITitle, fallbackTitle)
	}
	if shot.QuickLink.Kind != domain.QuickLinkSearchString {
		t.Errorf("QuickLink.Kind = %q, want search_string", shot.QuickLink.Kind)
	}
	if shot.AIDescription != "A forum post about database indexing" {
		t.Errorf("AIDescription = %q", shot.AIDescription)
	}
	if shot.Narrative == "" {
		t.Error("Narrative not stored")
	}
	if shot.VectorID == "" || shot.VectorID == domain.VectorRefNone {
		t.Errorf("VectorID = %q, want a stored reference", shot.VectorID)
	}
	if index.Len() != 1 {
		t.Errorf("index.Len() = %d, want 1", index.Len())
	}
}

func TestProcessExtractionFailureMarksError(t *testing.T) {
	db := newTestDB(t)
	index := repository.NewMemoryIndex()
	svc, shots := newTestEnricher(t, db, index, &fakeExtractor{err: ErrExtractionFailed})
	seedPending(t, shots, "s1")

	svc.process(context.Background(), EnrichTask{ScreenshotID: "s1", UserID: "u1", Image: []byte{1}, Format: "png"})

	shot, err := shots.GetByID(context.Background(), "s1")
	if err != nil {
		t.Fatalf("failed to load screenshot: %v", err)
	}
	if shot.Status != domain.StatusError {
		t.Errorf("Status = %q, want error", shot.Status)
	}
	if index.Len() != 0 {
		t.Errorf("index.Len() = %d, want 0", index.Len())
	}
}

func TestProcessDisconnectedIndexStoresNoReference(t *testing.T) {
	db := newTestDB(t)
	svc, shots := newTestEnricher(t, db, disconnectedIndex{}, &fakeExtractor{ext: sampleExtraction()})
	seedPending(t, shots, "s1")

	svc.process(context.Background(), EnrichTask{ScreenshotID: "s1", UserID: "u1", Image: []byte{1}, Format: "png"})

	shot, err := shots.GetByID(context.Background(), "s1")
	if err != nil {
		t.Fatalf("failed to load screenshot: %v", err)
	}
	if shot.Status != domain.StatusProcessed {
		t.Fatalf("Status = %q, want processed", shot.Status)
	}
	if shot.VectorID != domain.VectorRefNone {
		t.Errorf("VectorID = %q, want %q", shot.VectorID, domain.VectorRefNone)
	}
}

func TestProcessSkipsNonPendingRecords(t *testing.T) {
	db := newTestDB(t)
	index := repository.NewMemoryIndex()
	svc, shots := newTestEnricher(t, db, index, &fakeExtractor{ext: sampleExtraction()})
	seedPending(t, shots, "s1")

	ctx := context.Background()
	svc.process(ctx, EnrichTask{ScreenshotID: "s1", UserID: "u1", Image: []byte{1}, Format: "png"})

	first, _ := shots.GetByID(ctx, "s1")

	// second run finds the record already processed; the terminal write is
	// guarded and the record stays untouched
	svc.process(ctx, EnrichTask{ScreenshotID: "s1", UserID: "u1", Image: []byte{1}, Format: "png"})

	second, _ := shots.GetByID(ctx, "s1")
	if second.Status != domain.StatusProcessed {
		t.Errorf("Status = %q, want processed", second.Status)
	}
	if second.AITitle != first.AITitle || second.Narrative != first.Narrative {
		t.Error("processed record was modified by a second run")
	}
}

func TestWorkerPoolProcessesQueuedTasks(t *testing.T) {
	db := newTestDB(t)
	index := repository.NewMemoryIndex()
	svc, shots := newTestEnricher(t, db, index, &fakeExtractor{ext: sampleExtraction()})
	seedPending(t, shots, "s1")
	seedPending(t, shots, "s2")

	ctx := context.Background()
	svc.Start(ctx)
	svc.Enqueue(EnrichTask{ScreenshotID: "s1", UserID: "u1", Image: []byte{1}, Format: "png"})
	svc.Enqueue(EnrichTask{ScreenshotID: "s2", UserID: "u1", Image: []byte{1}, Format: "png"})
	svc.Stop()

	processed, err := shots.CountByStatus(ctx, domain.StatusProcessed)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if processed != 2 {
		t.Errorf("processed = %d, want 2", processed)
	}
}

func TestBuildEmbeddingText(t *testing.T) {
	got := buildEmbeddingText("Title", "Description", []string{"hacker news", "text"}, "Narrative")
	if got != "Title\nDescription\nhacker news, text\nNarrative" {
		t.Errorf("buildEmbeddingText = %q", got)
	}

	// a fallback title carries no meaning and is excluded
	got = buildEmbeddingText(fallbackTitle, "Description", nil, "")
	if got != "Description" {
		t.Errorf("buildEmbeddingText = %q, want description only", got)
	}
}

func TestBuildEnrichmentTags(t *testing.T) {
	tags := buildEnrichmentTags(sampleExtraction())
	want := []string{"hacker news", "text"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, tags[i], want[i])
		}
	}
}

func TestFormatFromKey(t *testing.T) {
	testCases := []struct {
		key  string
		want string
	}{
		{"screenshots/u1/abc.png", "png"},
		{"screenshots/u1/abc.jpeg", "jpeg"},
		{"no-extension", "png"},
	}
	for _, tc := range testCases {
		if got := formatFromKey(tc.key); got != tc.want {
			t.Errorf("formatFromKey(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

// a sender parked on a full queue must not hit the close in Stop
func TestStopReleasesOverflowSenders(t *testing.T) {
	db := newTestDB(t)
	shots := repository.NewScreenshotRepository(db)
	resolver := &fakeResolver{res: &Resolution{Narrative: "n"}}

	// queue of one, workers never started: the second and third Enqueue
	// park overflow senders on the full channel
	svc := NewEnrichmentService(
		shots, repository.NewMemoryIndex(), nil,
		&fakeExtractor{ext: sampleExtraction()}, resolver,
		offlineDistiller(), offlineEmbedder(),
		&EnrichmentConfig{Workers: 1, QueueSize: 1},
	)
	for i := 0; i < 3; i++ {
		svc.Enqueue(EnrichTask{ScreenshotID: fmt.Sprintf("s%d", i), UserID: "u1"})
	}

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return with senders parked")
	}

	// the queue is closed now; a late Enqueue drops the task instead of
	// sending into the closed channel
	svc.Enqueue(EnrichTask{ScreenshotID: "late", UserID: "u1"})
}

// guard against the pool hanging on Stop
func TestStopReturnsPromptly(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestEnricher(t, db, repository.NewMemoryIndex(), &fakeExtractor{ext: sampleExtraction()})
	svc.Start(context.Background())

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}
