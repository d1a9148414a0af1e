package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/minqi/snaplore/internal/domain"
	"github.com/minqi/snaplore/internal/logger"
	"github.com/minqi/snaplore/internal/prompts"
)

// StructuredResolver makes one analysis call and renders the model's
// structured verdict into the shared narrative contract. Cheaper than the
// narrative resolver, no live web access.
type StructuredResolver struct {
	chat *chatClient
}

// StructuredResolverConfig holds configuration for the structured resolver.
type StructuredResolverConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewStructuredResolver creates a new StructuredResolver.
func NewStructuredResolver(cfg *StructuredResolverConfig) *StructuredResolver {
	return &StructuredResolver{
		chat: newChatClient(cfg.Model, cfg.APIKey, cfg.BaseURL),
	}
}

type sourceAnalysis struct {
	SourceURL          string   `json:"source_url"`
	Confidence         string   `json:"confidence"`
	Verified           bool     `json:"verified"`
	AlternativeSources []string `json:"alternative_sources"`
	Reasoning          string   `json:"reasoning"`
}

// Resolve analyses the extraction in a single call and renders the result
// locally. Provider failures degrade to the deterministic fallback.
func (r *StructuredResolver) Resolve(ctx context.Context, ext *domain.Extraction) (*Resolution, error) {
	summary := extractionSummary(ext)
	user := prompts.ResolverStructuredPrompt + "\n\nScreenshot extraction:\n" + summary

	content, err := r.chat.complete(ctx, prompts.ResolverSystemPrompt, user, 800, 0.3)
	if err != nil {
		logger.CtxWarn(ctx, "structured source analysis failed, using fallback: %v", err)
		return &Resolution{Narrative: fallbackNarrative(ext, "")}, nil
	}

	analysis, err := parseSourceAnalysis(content)
	if err != nil {
		logger.CtxWarn(ctx, "unparseable source analysis, using fallback: %v", err)
		return &Resolution{Narrative: fallbackNarrative(ext, "")}, nil
	}

	return &Resolution{
		Narrative: renderAnalysis(ext, analysis),
		SourceURL: analysis.SourceURL,
		Verified:  analysis.Verified,
	}, nil
}

func parseSourceAnalysis(content string) (*sourceAnalysis, error) {
	raw, ok := extractJSONObject(content)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var analysis sourceAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// renderAnalysis produces the same narrative shape the narrative resolver
// emits, so the distiller never sees which variant ran.
func renderAnalysis(ext *domain.Extraction, a *sourceAnalysis) string {
	var b strings.Builder

	subject := ext.Application
	if subject == "" {
		subject = "Screenshot"
	}
	fmt.Fprintf(&b, "# %s\n\n", subject)
	fmt.Fprintf(&b, "%s\n", ext.GeneralDescription)

	if salient := ext.SalientText(); len(salient) > 0 {
		b.WriteString("\n")
		for _, text := range salient {
			fmt.Fprintf(&b, "> %s\n", text)
		}
	}

	b.WriteString("\n")
	if a.SourceURL != "" && (a.Verified || a.Confidence == "high") {
		fmt.Fprintf(&b, "[Source](%s)\n", a.SourceURL)
	} else if a.SourceURL != "" {
		fmt.Fprintf(&b, "Likely source (unverified, %s confidence): %s\n", a.Confidence, a.SourceURL)
	} else {
		b.WriteString("The original source of this content could not be confirmed.\n")
	}

	if len(a.AlternativeSources) > 0 {
		b.WriteString("\nAlternative sources:\n")
		for _, alt := range a.AlternativeSources {
			fmt.Fprintf(&b, "- %s\n", alt)
		}
	}

	if a.Reasoning != "" {
		fmt.Fprintf(&b, "\n%s\n", a.Reasoning)
	}

	return b.String()
}
