package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/verifact/internal/model"
	"github.com/ppiankov/verifact/internal/verify"
)

// ErrEmptyCandidate is returned for stories that carry nothing to verify
var ErrEmptyCandidate = errors.New("story has no candidate article")

// Enricher fills in article text for sources that only have a URL
type Enricher interface {
	Enrich(ctx context.Context, sources []model.SourceDocument) ([]model.SourceDocument, int)
}

// Classifier assigns authority tiers to sources for the report
type Classifier interface {
	ClassifySources(sources []model.SourceDocument) []model.SourceTier
}

// Pipeline orchestrates verification of one story: optional source
// enrichment, then the verify-and-regenerate loop
type Pipeline struct {
	verifier    *verify.Verifier
	regenerate  verify.RegenerateFunc
	enricher    Enricher
	classifier  Classifier
	maxAttempts int
	logger      *slog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithRegenerator sets the regeneration step. Without one, a failed check rejects the story.
func WithRegenerator(fn verify.RegenerateFunc) Option {
	return func(p *Pipeline) { p.regenerate = fn }
}

// WithEnricher enables source enrichment
func WithEnricher(e Enricher) Option {
	return func(p *Pipeline) { p.enricher = e }
}

// WithClassifier records source authority tiers in each result
func WithClassifier(c Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

// WithMaxAttempts overrides the verifier's configured attempt budget
func WithMaxAttempts(n int) Option {
	return func(p *Pipeline) { p.maxAttempts = n }
}

// WithLogger sets the diagnostic logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a new pipeline around verifier
func NewPipeline(verifier *verify.Verifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		verifier: verifier,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessStory verifies one story and reports what happened to it.
// Verification failures never surface as errors; only unusable input and a
// cancelled or expired context do. A story whose context ends mid-run is
// abandoned rather than reported with a fail-open verdict.
func (p *Pipeline) ProcessStory(ctx context.Context, story model.Story) (*model.StoryResult, error) {
	if story.Candidate.IsEmpty() {
		return nil, fmt.Errorf("story %q: %w", story.ID, ErrEmptyCandidate)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("story %q: %w", story.ID, err)
	}

	start := time.Now()
	log := p.logger.With("story", story.ID)

	// 1. Enrich sources
	sources := story.Sources
	enriched := 0
	if p.enricher != nil {
		sources, enriched = p.enricher.Enrich(ctx, verify.CapSources(story.Sources))
		if enriched > 0 {
			log.Debug("sources enriched", "count", enriched)
		}
	}

	// 2. Verify, regenerating while attempts remain
	outcome := p.verifier.VerifyAndRegenerate(ctx, sources, story.Candidate, p.regenerate, p.maxAttempts)
	if err := ctx.Err(); err != nil {
		log.Warn("story abandoned", "error", err, "attempts", outcome.Attempts)
		return nil, fmt.Errorf("story %q: %w", story.ID, err)
	}

	// 3. Build result
	checked := verify.CapSources(sources)
	result := &model.StoryResult{
		RunID:       uuid.NewString(),
		StoryID:     story.ID,
		Status:      statusOf(outcome),
		Attempts:    outcome.Attempts,
		Regenerated: outcome.Regenerated,
		Candidate:   outcome.Candidate,
		Verdicts:    outcome.Verdicts,
		Sources:     len(checked),
		Enriched:    enriched,
		CheckedAt:   time.Now().UTC(),
		DurationMs:  time.Since(start).Milliseconds(),
	}
	if p.classifier != nil {
		result.SourceTiers = p.classifier.ClassifySources(checked)
	}

	log.Info("story verified",
		"status", result.Status,
		"attempts", result.Attempts,
		"duration_ms", result.DurationMs,
	)

	return result, nil
}

func statusOf(outcome verify.Outcome) model.StoryStatus {
	switch {
	case !outcome.Accepted():
		return model.StatusRejected
	case outcome.Regenerated:
		return model.StatusRegenerated
	default:
		return model.StatusAccepted
	}
}
