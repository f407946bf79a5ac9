// Package synth produces candidate articles from source documents. It backs
// the regeneration step of the verification loop.
package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/verifact/internal/llm"
	"github.com/ppiankov/verifact/internal/model"
	"github.com/ppiankov/verifact/internal/verify"
)

// ErrIncomplete is returned when the model answers without a title or bullets
var ErrIncomplete = errors.New("synthesized article is incomplete")

const instructions = `You are a news editor. Write a short, neutral article that summarizes what the
source articles below report about a single story.

Rules:
- Use only facts stated in the sources. Do not add background knowledge.
- Keep numbers, names, dates, places and quotations exactly as the sources give them.
- When sources disagree, report the version most sources give, or attribute each version.
- Write 3 to 6 summary bullets, one sentence each.
- Leave a five_ws field empty when the sources do not answer it.

Respond with a JSON object only, in this shape:
{
  "title": "headline",
  "summary_bullets": ["sentence", "sentence"],
  "five_ws": {"who": "", "what": "", "when": "", "where": "", "why": ""}
}`

// Synthesizer writes candidate articles with a text-generation provider
type Synthesizer struct {
	provider llm.Provider
	config   model.SynthesisConfig
	logger   *slog.Logger
}

// New creates a synthesizer. logger may be nil.
func New(provider llm.Provider, config model.SynthesisConfig, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Synthesizer{provider: provider, config: config, logger: logger}
}

// Regenerate writes a fresh candidate from sources. It satisfies verify.RegenerateFunc.
func (s *Synthesizer) Regenerate(ctx context.Context, sources []model.SourceDocument) (*model.CandidateArticle, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	resp, err := s.provider.Generate(ctx, llm.GenerateRequest{
		SystemPrompt: instructions,
		Prompt:       BuildPrompt(sources),
		Model:        s.config.Model,
		MaxTokens:    s.config.MaxOutputTokens,
		Temperature:  s.config.Temperature,
		JSON:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	candidate, err := parseCandidate(resp.Text)
	if err != nil {
		s.logger.Warn("unusable synthesis response", "error", err)
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	s.logger.Debug("candidate synthesized", "title", candidate.Title, "bullets", len(candidate.SummaryBullets))
	return candidate, nil
}

// BuildPrompt renders sources with the same cap, priority and budget the
// verifier applies, so both steps see identical evidence.
func BuildPrompt(sources []model.SourceDocument) string {
	var b strings.Builder

	b.WriteString("SOURCE ARTICLES:\n")
	for i, src := range verify.CapSources(sources) {
		fmt.Fprintf(&b, "\n[Source %d] %s\n", i+1, src.Name)
		fmt.Fprintf(&b, "Title: %s\n", src.Title)
		fmt.Fprintf(&b, "Content: %s\n", verify.TruncateContent(src.Content(), verify.MaxSourceChars))
	}

	return b.String()
}

func parseCandidate(text string) (*model.CandidateArticle, error) {
	var candidate model.CandidateArticle
	if err := json.Unmarshal([]byte(llm.StripCodeFences(text)), &candidate); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}

	candidate.Title = strings.TrimSpace(candidate.Title)
	bullets := candidate.SummaryBullets[:0]
	for _, bullet := range candidate.SummaryBullets {
		if bullet = strings.TrimSpace(bullet); bullet != "" {
			bullets = append(bullets, bullet)
		}
	}
	candidate.SummaryBullets = bullets

	if candidate.Title == "" || len(candidate.SummaryBullets) == 0 {
		return nil, ErrIncomplete
	}
	return &candidate, nil
}
