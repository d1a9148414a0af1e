package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/minqi/snaplore/internal/domain"
	"github.com/minqi/snaplore/internal/logger"
	"github.com/minqi/snaplore/internal/prompts"
)

const (
	defaultContextScreenshots = 5
	maxContextContentRunes    = 1000
)

// AnswerResult is the outcome of answer synthesis. Confidence is the mean
// rerank score of the screenshots used as context.
type AnswerResult struct {
	Answer      string  `json:"answer"`
	SourcesUsed int     `json:"sources_used"`
	Confidence  float64 `json:"confidence"`
}

// AnswerService synthesizes answers grounded exclusively in retrieved
// screenshots.
type AnswerService struct {
	chat *chatClient
}

// AnswerServiceConfig holds configuration for the answer service.
type AnswerServiceConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(cfg *AnswerServiceConfig) *AnswerService {
	return &AnswerService{
		chat: newChatClient(cfg.Model, cfg.APIKey, cfg.BaseURL),
	}
}

// Answer generates an answer from the top results. Provider failure yields
// an error-string answer with zero sources and zero confidence, never an
// error return.
func (s *AnswerService) Answer(ctx context.Context, query string, results []domain.ScreenshotResult) *AnswerResult {
	contextResults := results
	if len(contextResults) > defaultContextScreenshots {
		contextResults = contextResults[:defaultContextScreenshots]
	}

	answer, err := s.chat.complete(ctx, prompts.AnswerSystemPrompt, buildAnswerPrompt(query, contextResults), 1000, 0.5)
	if err != nil {
		logger.CtxWarn(ctx, "answer synthesis failed: %v", err)
		return &AnswerResult{
			Answer:      fmt.Sprintf("Error generating answer: %v", err),
			SourcesUsed: 0,
			Confidence:  0,
		}
	}

	var confidence float64
	if len(contextResults) > 0 {
		var total float64
		for _, res := range contextResults {
			total += res.Score
		}
		confidence = total / float64(len(contextResults))
	}

	return &AnswerResult{
		Answer:      answer,
		SourcesUsed: len(contextResults),
		Confidence:  confidence,
	}
}

func buildAnswerPrompt(query string, results []domain.ScreenshotResult) string {
	var b strings.Builder

	b.WriteString("Based on the following screenshots, please answer this query:\n\n")
	fmt.Fprintf(&b, "Query: %s\n\n", query)
	b.WriteString("Screenshot Context:\n")

	for i, res := range results {
		fmt.Fprintf(&b, "\n--- Screenshot %d (Relevance: %.2f) ---\n", i+1, res.Score)
		fmt.Fprintf(&b, "Title: %s\n", res.AITitle)
		fmt.Fprintf(&b, "Description: %s\n", res.AIDescription)

		if res.Narrative != "" {
			content := res.Narrative
			runes := []rune(content)
			if len(runes) > maxContextContentRunes {
				content = string(runes[:maxContextContentRunes]) + "\n[Content truncated...]"
			}
			fmt.Fprintf(&b, "Content:\n%s\n", content)
		}

		if len(res.Tags) > 0 {
			fmt.Fprintf(&b, "Tags: %s\n", strings.Join(res.Tags, ", "))
		}
	}

	b.WriteString("\nPlease provide a comprehensive answer based ONLY on the information in the screenshots above. If the screenshots don't contain enough information to fully answer the query, clearly state what information is missing.")
	return b.String()
}
