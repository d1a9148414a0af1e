package service

import (
	"errors"
	"testing"

	"github.com/minqi/snaplore/internal/domain"
)

func TestParseExtraction(t *testing.T) {
	content := `{
		"general_description": "A tweet about Go generics",
		"application": "Twitter",
		"parts": [
			{
				"description": "tweet body",
				"kind": "text",
				"location": "center",
				"contents": [
					{"key": "author", "value": "@rob_pike"},
					{"key": "body", "value": "Generics are here."}
				]
			},
			{
				"description": "attached chart",
				"kind": "image",
				"location": "bottom",
				"contents": []
			}
		],
		"highlight_text": "Generics are here."
	}`

	ext, err := parseExtraction(content)
	if err != nil {
		t.Fatalf("parseExtraction failed: %v", err)
	}

	if ext.GeneralDescription != "A tweet about Go generics" {
		t.Errorf("GeneralDescription = %q", ext.GeneralDescription)
	}
	if ext.Application != "Twitter" {
		t.Errorf("Application = %q", ext.Application)
	}
	if len(ext.Parts) != 2 {
		t.Fatalf("len(Parts) = %d, want 2", len(ext.Parts))
	}
	if ext.Parts[0].Kind != domain.PartKindText {
		t.Errorf("Parts[0].Kind = %q, want text", ext.Parts[0].Kind)
	}
	if ext.Parts[1].Kind != domain.PartKindImage {
		t.Errorf("Parts[1].Kind = %q, want image", ext.Parts[1].Kind)
	}
	if len(ext.Parts[0].Contents) != 2 || ext.Parts[0].Contents[0].Value != "@rob_pike" {
		t.Errorf("Parts[0].Contents = %+v", ext.Parts[0].Contents)
	}
	if ext.HighlightText != "Generics are here." {
		t.Errorf("HighlightText = %q", ext.HighlightText)
	}
}

func TestParseExtractionDefaultsApplication(t *testing.T) {
	ext, err := parseExtraction(`{"general_description": "A blank settings page"}`)
	if err != nil {
		t.Fatalf("parseExtraction failed: %v", err)
	}
	if ext.Application != "Screenshot" {
		t.Errorf("Application = %q, want Screenshot", ext.Application)
	}
}

func TestParseExtractionFailures(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "no json", content: "I cannot read this image."},
		{name: "missing general_description", content: `{"application": "Safari"}`},
		{name: "malformed json", content: `{"general_description": `},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseExtraction(tc.content)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrExtractionFailed) {
				t.Errorf("error %v is not ErrExtractionFailed", err)
			}
		})
	}
}

func TestNormalizePartKind(t *testing.T) {
	if got := normalizePartKind("image"); got != domain.PartKindImage {
		t.Errorf("normalizePartKind(image) = %q", got)
	}
	for _, kind := range []string{"text", "video", ""} {
		if got := normalizePartKind(kind); got != domain.PartKindText {
			t.Errorf("normalizePartKind(%q) = %q, want text", kind, got)
		}
	}
}
