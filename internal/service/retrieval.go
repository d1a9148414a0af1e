package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/minqi/snaplore/internal/domain"
	"github.com/minqi/snaplore/internal/logger"
	"github.com/minqi/snaplore/internal/repository"
)

// RetrievalConfig holds configuration for the retrieval service.
type RetrievalConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// RetrievalService answers semantic queries over a user's screenshots:
// embed the query, search the vector index scoped to the owner, hydrate
// records from the database, then rerank. Every request also leaves a query
// history row and a query vector behind.
type RetrievalService struct {
	shots    *repository.ScreenshotRepository
	queries  *repository.QueryRepository
	index    repository.VectorIndex
	embedder *EmbeddingService
	reranker *Reranker
	answerer *AnswerService

	defaultLimit int
	maxLimit     int
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(
	shots *repository.ScreenshotRepository,
	queries *repository.QueryRepository,
	index repository.VectorIndex,
	embedder *EmbeddingService,
	reranker *Reranker,
	answerer *AnswerService,
	cfg *RetrievalConfig,
) *RetrievalService {
	defaultLimit := 10
	maxLimit := 50
	if cfg != nil {
		if cfg.DefaultLimit > 0 {
			defaultLimit = cfg.DefaultLimit
		}
		if cfg.MaxLimit > 0 {
			maxLimit = cfg.MaxLimit
		}
	}

	return &RetrievalService{
		shots:        shots,
		queries:      queries,
		index:        index,
		embedder:     embedder,
		reranker:     reranker,
		answerer:     answerer,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// SearchRequest represents a semantic search request.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}

// SearchResponse represents the search response.
type SearchResponse struct {
	Results []domain.ScreenshotResult `json:"results"`
	Total   int                       `json:"total"`
	Query   string                    `json:"query"`
	QueryID string                    `json:"query_id"`
}

// Search runs a semantic search over the caller's screenshots.
func (s *RetrievalService) Search(ctx context.Context, userID string, req *SearchRequest) (*SearchResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	queryID := uuid.New().String()
	ctx = logger.SetQueryID(ctx, queryID)
	ctx = logger.SetUserID(ctx, userID)

	logger.CtxInfo(ctx, "Performing search: query=%q, limit=%d", req.Query, limit)

	embedding := s.embedder.EmbedQuery(ctx, req.Query)

	// overfetch so the reranker has candidates to demote
	hits, err := s.index.Search(ctx, embedding, []string{userID}, repository.EntityTypeScreenshot, limit*2)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector index: %w", err)
	}

	results := []domain.ScreenshotResult{}
	if len(hits) > 0 {
		candidates, err := s.hydrate(ctx, hits)
		if err != nil {
			return nil, err
		}
		results = s.reranker.Rerank(ctx, req.Query, candidates, limit)
	}

	s.recordQuery(ctx, queryID, userID, req.Query, len(results), embedding)

	return &SearchResponse{
		Results: results,
		Total:   len(results),
		Query:   req.Query,
		QueryID: queryID,
	}, nil
}

// hydrate fetches records for index hits and restores the hit order. Hits
// whose record has been deleted are dropped.
func (s *RetrievalService) hydrate(ctx context.Context, hits []repository.VectorHit) ([]domain.Screenshot, error) {
	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.EntityID
	}

	shots, err := s.shots.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load search results: %w", err)
	}

	byID := make(map[string]*domain.Screenshot, len(shots))
	for i := range shots {
		byID[shots[i].ID] = &shots[i]
	}

	ordered := make([]domain.Screenshot, 0, len(hits))
	for _, hit := range hits {
		if shot, ok := byID[hit.EntityID]; ok {
			ordered = append(ordered, *shot)
		}
	}
	return ordered, nil
}

// recordQuery persists the query history row and its vector. Both are best
// effort; failures never fail the search.
func (s *RetrievalService) recordQuery(ctx context.Context, queryID, userID, text string, resultCount int, embedding []float32) {
	vectorID := domain.VectorRefNone
	if s.index.Connected() {
		id, err := s.index.Upsert(ctx, queryID, repository.EntityTypeQuery, userID, embedding)
		if err != nil {
			logger.CtxWarn(ctx, "failed to store query vector: %v", err)
		} else if id != "" {
			vectorID = id
		}
	}

	query := &domain.Query{
		ID:          queryID,
		UserID:      userID,
		Text:        text,
		ResultCount: resultCount,
		VectorID:    vectorID,
	}
	if err := s.queries.Create(ctx, query); err != nil {
		logger.CtxWarn(ctx, "failed to record query history: %v", err)
	}
}

// AnswerRequest represents a question to answer from stored screenshots.
type AnswerRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}

// AnswerResponse represents a synthesized answer and the screenshots that
// grounded it.
type AnswerResponse struct {
	Answer      string                    `json:"answer"`
	SourcesUsed int                       `json:"sources_used"`
	Confidence  float64                   `json:"confidence"`
	Results     []domain.ScreenshotResult `json:"results"`
	Query       string                    `json:"query"`
	QueryID     string                    `json:"query_id"`
}

// Answer runs a search and synthesizes an answer from the top results.
func (s *RetrievalService) Answer(ctx context.Context, userID string, req *AnswerRequest) (*AnswerResponse, error) {
	searchResp, err := s.Search(ctx, userID, &SearchRequest{Query: req.Query, Limit: req.Limit})
	if err != nil {
		return nil, err
	}

	answer := s.answerer.Answer(ctx, req.Query, searchResp.Results)

	return &AnswerResponse{
		Answer:      answer.Answer,
		SourcesUsed: answer.SourcesUsed,
		Confidence:  answer.Confidence,
		Results:     searchResp.Results,
		Query:       searchResp.Query,
		QueryID:     searchResp.QueryID,
	}, nil
}

// History lists the caller's past queries, newest first.
func (s *RetrievalService) History(ctx context.Context, userID string, limit, offset int) ([]domain.Query, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.queries.ListByUser(ctx, userID, limit, offset)
}
