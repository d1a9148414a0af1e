package service

import (
	"strings"
	"testing"

	"github.com/minqi/snaplore/internal/domain"
)

func sampleExtraction() *domain.Extraction {
	return &domain.Extraction{
		GeneralDescription: "A forum post about database indexing",
		Application:        "Hacker News",
		HighlightText:      "B-trees are everywhere",
		Parts: []domain.Part{
			{
				Description: "post body",
				Kind:        domain.PartKindText,
				Location:    "center",
				Contents: []domain.Content{
					{Key: "author", Value: "pg"},
					{Key: "body", Value: "B-trees are everywhere"},
				},
			},
		},
	}
}

func TestFallbackNarrativeUnconfirmed(t *testing.T) {
	narrative := fallbackNarrative(sampleExtraction(), "")

	if !strings.HasPrefix(narrative, "# Hacker News\n") {
		t.Errorf("narrative heading missing, got %q", narrative[:40])
	}
	if !strings.Contains(narrative, "A forum post about database indexing") {
		t.Error("narrative missing description")
	}
	if !strings.Contains(narrative, "> B-trees are everywhere") {
		t.Error("narrative missing quoted salient text")
	}
	if !strings.Contains(narrative, "could not be confirmed") {
		t.Error("narrative missing unconfirmed statement")
	}
	if strings.Contains(narrative, "[Source]") {
		t.Error("narrative should not link a source")
	}
}

func TestFallbackNarrativeWithSource(t *testing.T) {
	narrative := fallbackNarrative(sampleExtraction(), "https://news.ycombinator.com/item?id=1")

	if !strings.Contains(narrative, "[Source](https://news.ycombinator.com/item?id=1)") {
		t.Error("narrative missing source link")
	}
	if strings.Contains(narrative, "could not be confirmed") {
		t.Error("narrative should not claim unconfirmed when a source is given")
	}
}

func TestFallbackNarrativeNoApplication(t *testing.T) {
	ext := sampleExtraction()
	ext.Application = ""
	narrative := fallbackNarrative(ext, "")

	if !strings.HasPrefix(narrative, "# Screenshot\n") {
		t.Errorf("expected generic heading, got %q", narrative[:20])
	}
}

func TestExtractionSummary(t *testing.T) {
	summary := extractionSummary(sampleExtraction())

	for _, want := range []string{
		"Application: Hacker News",
		"Description: A forum post about database indexing",
		`Highlighted text: "B-trees are everywhere"`,
		"Section (text, center): post body",
		"- author: pg",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}

func TestSalientTextPrefersHighlight(t *testing.T) {
	ext := sampleExtraction()
	salient := ext.SalientText()
	if len(salient) == 0 || salient[0] != "B-trees are everywhere" {
		t.Errorf("salient = %v, want highlight first", salient)
	}

	ext.HighlightText = ""
	salient = ext.SalientText()
	if len(salient) == 0 || salient[0] != "pg" {
		t.Errorf("salient = %v, want content values", salient)
	}
}
