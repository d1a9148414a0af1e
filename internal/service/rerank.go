package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/minqi/snaplore/internal/domain"
	"github.com/minqi/snaplore/internal/logger"
	"github.com/minqi/snaplore/internal/prompts"
)

const (
	// backfillScore is assigned to candidates the model forgot to score.
	backfillScore = 0.5
	// neutralScore is assigned to every candidate when reranking fails
	// entirely and vector order is kept.
	neutralScore = 1.0

	maxSnippetRunes = 300
)

// Reranker reorders retrieval candidates with a listwise LLM pass.
type Reranker struct {
	chat *chatClient
}

// RerankerConfig holds configuration for the reranker.
type RerankerConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewReranker creates a new Reranker.
func NewReranker(cfg *RerankerConfig) *Reranker {
	return &Reranker{
		chat: newChatClient(cfg.Model, cfg.APIKey, cfg.BaseURL),
	}
}

// Rerank scores all candidates against the query and returns the top topK,
// best first. Candidates the model skipped are backfilled at 0.5 in their
// original order; a full provider or parse failure keeps the incoming
// vector order with a neutral score of 1.0.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.Screenshot, topK int) []domain.ScreenshotResult {
	if len(candidates) == 0 {
		return []domain.ScreenshotResult{}
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	content, err := r.chat.complete(ctx, prompts.RerankSystemPrompt, buildRerankPrompt(query, candidates), 1000, 0.3)
	if err != nil {
		logger.CtxWarn(ctx, "rerank call failed, keeping vector order: %v", err)
		return neutralOrder(candidates, topK)
	}

	rankings := parseRankings(content, len(candidates))
	if len(rankings) == 0 {
		logger.CtxWarn(ctx, "no parseable rankings, keeping vector order")
		return neutralOrder(candidates, topK)
	}

	scored := make(map[int]float64, len(rankings))
	for _, rk := range rankings {
		if _, seen := scored[rk.index]; !seen {
			scored[rk.index] = rk.score
		}
	}

	results := make([]domain.ScreenshotResult, 0, len(candidates))
	for _, rk := range rankings {
		if score, ok := scored[rk.index]; ok {
			results = append(results, domain.ScreenshotResult{
				Screenshot: candidates[rk.index],
				Score:      score,
			})
			delete(scored, rk.index)
		}
	}

	// backfill candidates the model skipped, in original order
	ranked := make(map[string]struct{}, len(results))
	for _, res := range results {
		ranked[res.ID] = struct{}{}
	}
	for _, c := range candidates {
		if _, ok := ranked[c.ID]; !ok {
			results = append(results, domain.ScreenshotResult{
				Screenshot: c,
				Score:      backfillScore,
			})
		}
	}

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

func neutralOrder(candidates []domain.Screenshot, topK int) []domain.ScreenshotResult {
	results := make([]domain.ScreenshotResult, 0, topK)
	for _, c := range candidates[:topK] {
		results = append(results, domain.ScreenshotResult{
			Screenshot: c,
			Score:      neutralScore,
		})
	}
	return results
}

func buildRerankPrompt(query string, candidates []domain.Screenshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Query: %s\n\n", query)
	b.WriteString("Screenshots to rank:\n\n")

	for i, c := range candidates {
		fmt.Fprintf(&b, "Screenshot %d:\n", i)
		fmt.Fprintf(&b, "Title: %s\n", c.AITitle)
		fmt.Fprintf(&b, "Description: %s\n", c.AIDescription)
		if c.Narrative != "" {
			snippet := c.Narrative
			runes := []rune(snippet)
			if len(runes) > maxSnippetRunes {
				snippet = string(runes[:maxSnippetRunes]) + "..."
			}
			fmt.Fprintf(&b, "Content snippet: %s\n", snippet)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nRank these screenshots by relevance to the query. List them in order with relevance scores.")
	return b.String()
}

type ranking struct {
	index int
	score float64
}

// parseRankings extracts "index: score" lines, dropping malformed lines and
// out-of-range indices, sorted by score descending.
func parseRankings(response string, candidateCount int) []ranking {
	var rankings []ranking

	for _, line := range strings.Split(strings.TrimSpace(response), "\n") {
		idx, score, ok := parseRankingLine(line)
		if !ok || idx < 0 || idx >= candidateCount {
			continue
		}
		rankings = append(rankings, ranking{index: idx, score: score})
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].score > rankings[j].score
	})
	return rankings
}

func parseRankingLine(line string) (int, float64, bool) {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	idx, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}

	// relevance scores live in [0, 1]; models occasionally answer outside it
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}

	return idx, score, true
}
