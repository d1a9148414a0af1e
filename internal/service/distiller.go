package service

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/minqi/snaplore/internal/domain"
	"github.com/minqi/snaplore/internal/logger"
	"github.com/minqi/snaplore/internal/prompts"
)

// fallbackTitle is the deterministic title used when distillation cannot
// produce anything usable.
const fallbackTitle = "Processing Error"

// Distillate carries the canonical fields distilled from a narrative.
type Distillate struct {
	Title     string
	QuickLink domain.QuickLink
}

// decode outcomes, from best to worst
type decodeOutcome int

const (
	decodeOK decodeOutcome = iota
	decodeDegraded
	decodeFailed
)

// Distiller extracts {title, quick link} from a narrative. It never fails:
// the decoder chain ends in a deterministic fallback, so enrichment always
// receives a usable distillate.
type Distiller struct {
	chat *chatClient
}

// DistillerConfig holds configuration for the distiller.
type DistillerConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewDistiller creates a new Distiller.
func NewDistiller(cfg *DistillerConfig) *Distiller {
	return &Distiller{
		chat: newChatClient(cfg.Model, cfg.APIKey, cfg.BaseURL),
	}
}

// Distill produces the canonical fields for a narrative.
func (d *Distiller) Distill(ctx context.Context, narrative string) *Distillate {
	content, err := d.chat.complete(ctx, prompts.DistillerSystemPrompt, prompts.DistillerUserPrompt+narrative, 500, 0.3)
	if err != nil {
		logger.CtxWarn(ctx, "distillation call failed, using fallback: %v", err)
		return fallbackDistillate(narrative)
	}

	distillate, outcome := decodeDistillate(content)
	switch outcome {
	case decodeDegraded:
		logger.CtxDebug(ctx, "distillate recovered from embedded JSON")
	case decodeFailed:
		logger.CtxWarn(ctx, "unparseable distillation output, using fallback")
		return fallbackDistillate(narrative)
	}

	return distillate
}

// wire shape of the distiller's JSON answer
type distillatePayload struct {
	Title     string `json:"title"`
	QuickLink struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	} `json:"quick_link"`
}

// decodeDistillate runs the decoder chain: strict JSON first, then a brace
// scan for an embedded object.
func decodeDistillate(content string) (*Distillate, decodeOutcome) {
	trimmed := strings.TrimSpace(content)

	var payload distillatePayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
		if d, ok := distillateFromPayload(&payload); ok {
			return d, decodeOK
		}
	}

	raw, ok := extractJSONObject(content)
	if !ok {
		return nil, decodeFailed
	}
	payload = distillatePayload{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, decodeFailed
	}
	if d, ok := distillateFromPayload(&payload); ok {
		return d, decodeDegraded
	}
	return nil, decodeFailed
}

func distillateFromPayload(payload *distillatePayload) (*Distillate, bool) {
	title := strings.TrimSpace(payload.Title)
	value := strings.TrimSpace(payload.QuickLink.Value)
	if title == "" || value == "" {
		return nil, false
	}

	kind := payload.QuickLink.Kind
	if kind == domain.QuickLinkDirect && !isHTTPURL(value) {
		// a direct link must be a real URL; demote to a search string
		kind = domain.QuickLinkSearchString
	}
	if kind != domain.QuickLinkDirect && kind != domain.QuickLinkSearchString {
		kind = domain.QuickLinkSearchString
	}

	return &Distillate{
		Title: title,
		QuickLink: domain.QuickLink{
			Kind:   kind,
			Target: value,
		},
	}, true
}

// fallbackDistillate is the terminal link of the decoder chain. The search
// string is taken from the narrative's first content line so the record
// stays findable even after a failed distillation.
func fallbackDistillate(narrative string) *Distillate {
	search := firstContentLine(narrative)
	if search == "" {
		search = "screenshot content"
	}

	return &Distillate{
		Title: fallbackTitle,
		QuickLink: domain.QuickLink{
			Kind:   domain.QuickLinkSearchString,
			Target: search,
		},
	}
}

func firstContentLine(narrative string) string {
	for _, line := range strings.Split(narrative, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "#>*- "))
		if line != "" {
			runes := []rune(line)
			if len(runes) > 100 {
				line = string(runes[:100])
			}
			return line
		}
	}
	return ""
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
