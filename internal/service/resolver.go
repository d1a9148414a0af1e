package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/minqi/snaplore/internal/domain"
)

// Resolution is the outcome of source resolution: a markdown narrative
// documenting the screenshot, plus the verified source URL when one was
// found.
type Resolution struct {
	Narrative string
	SourceURL string
	Verified  bool
}

// SourceResolver turns an extraction into a narrative with an optional
// verified web source. Implementations absorb their own failures and
// degrade to a locally composed narrative; the returned error is reserved
// for programming mistakes, not provider weather.
type SourceResolver interface {
	Resolve(ctx context.Context, ext *domain.Extraction) (*Resolution, error)
}

// extractionSummary renders the extraction as prompt context.
func extractionSummary(ext *domain.Extraction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Application: %s\n", ext.Application)
	fmt.Fprintf(&b, "Description: %s\n", ext.GeneralDescription)
	if ext.HighlightText != "" {
		fmt.Fprintf(&b, "Highlighted text: %q\n", ext.HighlightText)
	}

	for _, part := range ext.Parts {
		fmt.Fprintf(&b, "\nSection (%s, %s): %s\n", part.Kind, part.Location, part.Description)
		for _, c := range part.Contents {
			fmt.Fprintf(&b, "- %s: %s\n", c.Key, c.Value)
		}
	}

	return b.String()
}

// fallbackNarrative composes a deterministic narrative when every provider
// path has failed. It quotes the salient extracted text verbatim and states
// that no source was confirmed.
func fallbackNarrative(ext *domain.Extraction, sourceURL string) string {
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
	if sourceURL != "" {
		fmt.Fprintf(&b, "[Source](%s)\n", sourceURL)
	} else {
		b.WriteString("The original source of this content could not be confirmed.\n")
	}

	return b.String()
}
