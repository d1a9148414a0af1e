package domain

// Part kinds within an extraction.
const (
	PartKindText  = "text"
	PartKindImage = "image"
)

// Content is one key/value pair pulled verbatim from a screenshot region.
type Content struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Part is one visually distinct region of a screenshot.
type Part struct {
	Description string    `json:"description"`
	Kind        string    `json:"kind"`
	Location    string    `json:"location"`
	Contents    []Content `json:"contents"`
}

// Extraction is the structured reading of a screenshot produced by the
// vision model. It is pipeline-internal and never persisted; all values are
// carried verbatim in the language they appear in.
type Extraction struct {
	GeneralDescription string `json:"general_description"`
	Application        string `json:"application"`
	Parts              []Part `json:"parts"`
	HighlightText      string `json:"highlight_text"`
}

// SalientText concatenates the text the extraction considers most
// identifying: the highlight first, then part contents.
func (e *Extraction) SalientText() []string {
	var out []string
	if e.HighlightText != "" {
		out = append(out, e.HighlightText)
	}
	for _, p := range e.Parts {
		for _, c := range p.Contents {
			if c.Value != "" {
				out = append(out, c.Value)
			}
		}
	}
	return out
}
