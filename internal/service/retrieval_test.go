package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/minqi/snaplore/internal/domain"
	"github.com/minqi/snaplore/internal/repository"
)

func offlineReranker() *Reranker {
	return NewReranker(&RerankerConfig{Model: "m", BaseURL: "http://127.0.0.1:1"})
}

func offlineAnswerer() *AnswerService {
	return NewAnswerService(&AnswerServiceConfig{Model: "m", BaseURL: "http://127.0.0.1:1"})
}

func newTestRetrieval(t *testing.T, index repository.VectorIndex) (*RetrievalService, *repository.ScreenshotRepository, *repository.QueryRepository) {
	t.Helper()
	db := newTestDB(t)
	shots := repository.NewScreenshotRepository(db)
	queries := repository.NewQueryRepository(db)

	svc := NewRetrievalService(
		shots, queries, index,
		offlineEmbedder(), offlineReranker(), offlineAnswerer(),
		&RetrievalConfig{DefaultLimit: 10, MaxLimit: 50},
	)
	return svc, shots, queries
}

func seedProcessed(t *testing.T, shots *repository.ScreenshotRepository, index repository.VectorIndex, id, userID string, vec []float32) {
	t.Helper()
	ctx := context.Background()

	vectorID, err := index.Upsert(ctx, id, repository.EntityTypeScreenshot, userID, vec)
	if err != nil {
		t.Fatalf("failed to index: %v", err)
	}

	err = shots.Create(ctx, &domain.Screenshot{
		ID:         id,
		UserID:     userID,
		StorageKey: "screenshots/" + userID + "/" + id + ".png",
		Status:     domain.StatusProcessed,
		AITitle:    "Title " + id,
		VectorID:   vectorID,
	})
	if err != nil {
		t.Fatalf("failed to seed screenshot: %v", err)
	}
}

func TestSearchScopesToOwner(t *testing.T) {
	index := repository.NewMemoryIndex()
	svc, shots, queries := newTestRetrieval(t, index)

	seedProcessed(t, shots, index, "mine-1", "u1", []float32{0, 0, 0, 0})
	seedProcessed(t, shots, index, "mine-2", "u1", []float32{0, 0, 0, 0})
	seedProcessed(t, shots, index, "theirs", "u2", []float32{0, 0, 0, 0})

	resp, err := svc.Search(context.Background(), "u1", &SearchRequest{Query: "b-trees"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if resp.Total != 2 {
		t.Fatalf("Total = %d, want 2", resp.Total)
	}
	for _, res := range resp.Results {
		if res.UserID != "u1" {
			t.Errorf("result %s belongs to %s", res.ID, res.UserID)
		}
		// the rerank endpoint is unreachable, so vector order survives with
		// the neutral score
		if res.Score != neutralScore {
			t.Errorf("Score = %v, want %v", res.Score, neutralScore)
		}
	}
	if resp.QueryID == "" {
		t.Error("QueryID missing")
	}

	history, err := queries.ListByUser(context.Background(), "u1", 10, 0)
	if err != nil {
		t.Fatalf("failed to list history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(history))
	}
	if history[0].Text != "b-trees" || history[0].ResultCount != 2 {
		t.Errorf("history row = %+v", history[0])
	}
}

func TestSearchEmptyIndexRecordsQuery(t *testing.T) {
	index := repository.NewMemoryIndex()
	svc, _, queries := newTestRetrieval(t, index)

	resp, err := svc.Search(context.Background(), "u1", &SearchRequest{Query: "anything"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.Total != 0 || len(resp.Results) != 0 {
		t.Errorf("expected no results, got %d", resp.Total)
	}

	history, err := queries.ListByUser(context.Background(), "u1", 10, 0)
	if err != nil {
		t.Fatalf("failed to list history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(history))
	}
	if history[0].ResultCount != 0 {
		t.Errorf("ResultCount = %d, want 0", history[0].ResultCount)
	}

	// screenshot vectors: none; query vectors: one per search
	if index.Len() != 1 {
		t.Errorf("index.Len() = %d, want the query vector only", index.Len())
	}
}

func TestSearchDropsDeletedRecords(t *testing.T) {
	index := repository.NewMemoryIndex()
	svc, shots, _ := newTestRetrieval(t, index)

	seedProcessed(t, shots, index, "kept", "u1", []float32{0, 0, 0, 0})
	seedProcessed(t, shots, index, "gone", "u1", []float32{0, 0, 0, 0})

	// index still references the record, the database no longer has it
	if err := shots.Delete(context.Background(), "gone"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	resp, err := svc.Search(context.Background(), "u1", &SearchRequest{Query: "q"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.Total != 1 || resp.Results[0].ID != "kept" {
		t.Errorf("results = %+v, want only the kept record", resp.Results)
	}
}

func TestSearchLimitClamped(t *testing.T) {
	index := repository.NewMemoryIndex()
	svc, shots, _ := newTestRetrieval(t, index)

	for _, id := range []string{"a", "b", "c"} {
		seedProcessed(t, shots, index, id, "u1", []float32{0, 0, 0, 0})
	}

	resp, err := svc.Search(context.Background(), "u1", &SearchRequest{Query: "q", Limit: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("Total = %d, want 2", resp.Total)
	}
}

func TestAnswerDegradedProvider(t *testing.T) {
	index := repository.NewMemoryIndex()
	svc, shots, _ := newTestRetrieval(t, index)
	seedProcessed(t, shots, index, "a", "u1", []float32{0, 0, 0, 0})

	resp, err := svc.Answer(context.Background(), "u1", &AnswerRequest{Query: "what is this"})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	// provider unreachable: the answer reports the failure without erroring
	if resp.SourcesUsed != 0 || resp.Confidence != 0 {
		t.Errorf("SourcesUsed = %d, Confidence = %v, want zeros", resp.SourcesUsed, resp.Confidence)
	}
	if resp.Answer == "" {
		t.Error("Answer is empty")
	}
	if len(resp.Results) != 1 {
		t.Errorf("len(Results) = %d, want 1", len(resp.Results))
	}
}

func TestHistoryPagination(t *testing.T) {
	index := repository.NewMemoryIndex()
	svc, _, queries := newTestRetrieval(t, index)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		err := queries.Create(ctx, &domain.Query{
			ID:     fmt.Sprintf("q%d", i),
			UserID: "u1",
			Text:   fmt.Sprintf("query %d", i),
		})
		if err != nil {
			t.Fatalf("failed to create query: %v", err)
		}
	}

	page, err := svc.History(ctx, "u1", 2, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("len(page) = %d, want 2", len(page))
	}

	rest, err := svc.History(ctx, "u1", 10, 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(rest) != 3 {
		t.Errorf("len(rest) = %d, want 3", len(rest))
	}
}
