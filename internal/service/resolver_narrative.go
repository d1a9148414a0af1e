package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/minqi/snaplore/internal/domain"
	"github.com/minqi/snaplore/internal/logger"
	"github.com/minqi/snaplore/internal/prompts"
)

const resultsPerSearch = 3

// NarrativeResolver finds the original source through bounded
// search/fetch/verify cycles, then asks the model to compose the final
// markdown narrative. Every provider failure degrades; Resolve never gives
// up on producing a narrative.
type NarrativeResolver struct {
	chat      *chatClient
	search    *WebSearcher
	maxRounds int
}

// NarrativeResolverConfig holds configuration for the narrative resolver.
type NarrativeResolverConfig struct {
	Model     string
	APIKey    string
	BaseURL   string
	MaxRounds int
}

// NewNarrativeResolver creates a new NarrativeResolver.
func NewNarrativeResolver(cfg *NarrativeResolverConfig, search *WebSearcher) *NarrativeResolver {
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 || maxRounds > 3 {
		maxRounds = 3
	}
	return &NarrativeResolver{
		chat:      newChatClient(cfg.Model, cfg.APIKey, cfg.BaseURL),
		search:    search,
		maxRounds: maxRounds,
	}
}

// Resolve runs up to maxRounds search cycles, then composes the narrative.
func (r *NarrativeResolver) Resolve(ctx context.Context, ext *domain.Extraction) (*Resolution, error) {
	summary := extractionSummary(ext)

	sourceURL, verified := r.findSource(ctx, summary)

	narrative, err := r.composeNarrative(ctx, summary, sourceURL, verified)
	if err != nil {
		logger.CtxWarn(ctx, "narrative composition failed, using fallback: %v", err)
		var fallbackURL string
		if verified {
			fallbackURL = sourceURL
		}
		narrative = fallbackNarrative(ext, fallbackURL)
	}

	return &Resolution{
		Narrative: narrative,
		SourceURL: sourceURL,
		Verified:  verified,
	}, nil
}

// findSource runs the bounded search/fetch/verify loop. It returns the best
// candidate URL and whether a fetched page was verified to match.
func (r *NarrativeResolver) findSource(ctx context.Context, summary string) (string, bool) {
	var attempted []string

	for round := 0; round < r.maxRounds; round++ {
		query, err := r.nextQuery(ctx, summary, attempted)
		if err != nil {
			logger.CtxWarn(ctx, "source query generation failed: %v", err)
			return "", false
		}
		attempted = append(attempted, query)

		results, err := r.search.Search(ctx, query, resultsPerSearch)
		if err != nil {
			logger.CtxWarn(ctx, "web search failed: %v", err)
			continue
		}

		for _, result := range results {
			page, err := r.search.FetchPage(ctx, result.Link)
			if err != nil {
				logger.CtxDebug(ctx, "page fetch failed for %s: %v", result.Link, err)
				continue
			}
			if r.verify(ctx, summary, result.Link, page) {
				return result.Link, true
			}
		}
	}

	return "", false
}

func (r *NarrativeResolver) nextQuery(ctx context.Context, summary string, attempted []string) (string, error) {
	var b strings.Builder
	b.WriteString(prompts.ResolverQueryPrompt)
	b.WriteString("\n\n")
	b.WriteString(summary)
	if len(attempted) > 0 {
		b.WriteString("\n\nAlready tried without success:\n")
		for _, q := range attempted {
			fmt.Fprintf(&b, "- %s\n", q)
		}
		b.WriteString("Produce a different query.")
	}

	query, err := r.chat.complete(ctx, prompts.ResolverSystemPrompt, b.String(), 200, 0.3)
	if err != nil {
		return "", err
	}

	query = strings.TrimSpace(strings.Trim(strings.TrimSpace(query), "\"`"))
	if query == "" {
		return "", fmt.Errorf("empty search query from model")
	}
	return query, nil
}

func (r *NarrativeResolver) verify(ctx context.Context, summary, url, page string) bool {
	user := fmt.Sprintf("%s\n\nScreenshot extraction:\n%s\n\nFetched page (%s):\n%s",
		prompts.ResolverVerifyPrompt, summary, url, page)

	answer, err := r.chat.complete(ctx, prompts.ResolverSystemPrompt, user, 200, 0.1)
	if err != nil {
		logger.CtxDebug(ctx, "verification call failed for %s: %v", url, err)
		return false
	}

	firstLine := answer
	if idx := strings.IndexByte(answer, '\n'); idx != -1 {
		firstLine = answer[:idx]
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(firstLine)), "yes")
}

func (r *NarrativeResolver) composeNarrative(ctx context.Context, summary, sourceURL string, verified bool) (string, error) {
	var b strings.Builder
	b.WriteString(prompts.ResolverNarrativePrompt)
	b.WriteString("\n\nScreenshot extraction:\n")
	b.WriteString(summary)
	if verified && sourceURL != "" {
		fmt.Fprintf(&b, "\nVerified source URL: %s\n", sourceURL)
	} else {
		b.WriteString("\nNo source was verified.\n")
	}

	narrative, err := r.chat.complete(ctx, prompts.ResolverSystemPrompt, b.String(), 1500, 0.3)
	if err != nil {
		return "", err
	}

	narrative = strings.TrimSpace(narrative)
	if narrative == "" {
		return "", fmt.Errorf("empty narrative from model")
	}
	return narrative, nil
}
