package model

import "strings"

// SourceDocument is one ingested news source a candidate article was synthesized from.
// It is owned by the ingestion pipeline and treated as read-only here.
type SourceDocument struct {
	Name          string `json:"name"`                     // Publisher or feed name
	Title         string `json:"title"`                    // Headline as published
	URL           string `json:"url,omitempty"`            // Canonical article URL (used for enrichment)
	ExtractedText string `json:"extracted_text,omitempty"` // Long-form article text, if extracted
	Description   string `json:"description,omitempty"`    // Feed description / teaser
}

// Content returns the evidence text for the source.
// Long-form extracted text wins over the feed description; synthesis and
// verification must both go through this so they see the same evidence.
func (s SourceDocument) Content() string {
	if strings.TrimSpace(s.ExtractedText) != "" {
		return s.ExtractedText
	}
	return s.Description
}

// FiveWs holds the structured who/what/when/where/why fields of a candidate.
// Nil means the synthesis step did not produce the field.
type FiveWs struct {
	Who   *string `json:"who,omitempty"`
	What  *string `json:"what,omitempty"`
	When  *string `json:"when,omitempty"`
	Where *string `json:"where,omitempty"`
	Why   *string `json:"why,omitempty"`
}

// Field is a labelled five-W value.
type Field struct {
	Label string
	Value string
}

// Present returns the non-blank fields in who/what/when/where/why order.
func (f FiveWs) Present() []Field {
	all := []struct {
		label string
		value *string
	}{
		{"Who", f.Who},
		{"What", f.What},
		{"When", f.When},
		{"Where", f.Where},
		{"Why", f.Why},
	}

	var fields []Field
	for _, e := range all {
		if e.value == nil || strings.TrimSpace(*e.value) == "" {
			continue
		}
		fields = append(fields, Field{Label: e.label, Value: *e.value})
	}
	return fields
}

// CandidateArticle is an LLM-synthesized article awaiting verification.
// Regeneration replaces it wholesale; it is never edited in place.
type CandidateArticle struct {
	Title          string   `json:"title"`
	SummaryBullets []string `json:"summary_bullets"`
	FiveWs         FiveWs   `json:"five_ws"`
}

// IsEmpty reports whether the candidate carries no usable content.
func (c CandidateArticle) IsEmpty() bool {
	if strings.TrimSpace(c.Title) != "" {
		return false
	}
	for _, b := range c.SummaryBullets {
		if strings.TrimSpace(b) != "" {
			return false
		}
	}
	return true
}

// StringPtr returns a pointer to s. Handy for building FiveWs literals.
func StringPtr(s string) *string {
	return &s
}
