package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/minqi/snaplore/internal/domain"
	"github.com/minqi/snaplore/internal/prompts"
)

// ErrExtractionFailed marks a screenshot whose content could not be read.
// This failure is fatal to the enrichment run.
var ErrExtractionFailed = errors.New("extraction failed")

// Extractor reads a screenshot into a structured extraction.
type Extractor interface {
	Extract(ctx context.Context, image []byte, format string) (*domain.Extraction, error)
}

// VLMExtractor implements Extractor over an OpenAI-compatible vision model.
type VLMExtractor struct {
	chat *chatClient
}

// VLMExtractorConfig holds configuration for the vision extractor.
type VLMExtractorConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewVLMExtractor creates a new VLMExtractor.
func NewVLMExtractor(cfg *VLMExtractorConfig) *VLMExtractor {
	return &VLMExtractor{
		chat: newChatClient(cfg.Model, cfg.APIKey, cfg.BaseURL),
	}
}

// wire shape of the vision model's JSON answer
type extractionPayload struct {
	GeneralDescription string `json:"general_description"`
	Application        string `json:"application"`
	Parts              []struct {
		Description string `json:"description"`
		Kind        string `json:"kind"`
		Location    string `json:"location"`
		Contents    []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"contents"`
	} `json:"parts"`
	HighlightText string `json:"highlight_text"`
}

// Extract reads the screenshot and returns its structured extraction.
// Any malformed model output is reported as ErrExtractionFailed.
func (e *VLMExtractor) Extract(ctx context.Context, image []byte, format string) (*domain.Extraction, error) {
	base64Image := base64.StdEncoding.EncodeToString(image)
	dataURL := fmt.Sprintf("data:%s;base64,%s", getMIMEType(format), base64Image)

	content, err := e.chat.completeVision(ctx, prompts.ExtractorSystemPrompt, prompts.ExtractorUserPrompt, dataURL, 8000, 0.1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	return parseExtraction(content)
}

func parseExtraction(content string) (*domain.Extraction, error) {
	raw, ok := extractJSONObject(content)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrExtractionFailed)
	}

	var payload extractionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	if payload.GeneralDescription == "" {
		return nil, fmt.Errorf("%w: missing general_description", ErrExtractionFailed)
	}

	// a missing application is tolerated; the description is not
	application := payload.Application
	if application == "" {
		application = "Screenshot"
	}

	ext := &domain.Extraction{
		GeneralDescription: payload.GeneralDescription,
		Application:        application,
		HighlightText:      payload.HighlightText,
	}

	for _, p := range payload.Parts {
		part := domain.Part{
			Description: p.Description,
			Kind:        normalizePartKind(p.Kind),
			Location:    p.Location,
		}
		for _, c := range p.Contents {
			part.Contents = append(part.Contents, domain.Content{
				Key:   c.Key,
				Value: c.Value,
			})
		}
		ext.Parts = append(ext.Parts, part)
	}

	return ext, nil
}

func normalizePartKind(kind string) string {
	if kind == domain.PartKindImage {
		return domain.PartKindImage
	}
	return domain.PartKindText
}
