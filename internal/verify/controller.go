package verify

import (
	"context"
	"log/slog"

	"github.com/ppiankov/verifact/internal/model"
)

// RegenerateFunc produces a fresh candidate from the original sources.
// A nil candidate, an empty candidate or an error all mean regeneration failed.
type RegenerateFunc func(ctx context.Context, sources []model.SourceDocument) (*model.CandidateArticle, error)

// State is a step of the verify-and-regenerate loop
type State string

const (
	StateChecking     State = "checking"
	StateAccepted     State = "accepted"
	StateRegenerating State = "regenerating"
	StateExhausted    State = "exhausted"
)

// Outcome is the terminal result of VerifyAndRegenerate
type Outcome struct {
	// Candidate is the accepted article, nil when exhausted
	Candidate *model.CandidateArticle

	// Regenerated is true once any check has failed
	Regenerated bool

	// Attempts is the number of checks that ran, or the attempt at which regeneration failed
	Attempts int

	// State is StateAccepted or StateExhausted
	State State

	// Verdicts holds one verdict per check, in order
	Verdicts []model.Verdict
}

// Accepted reports whether a candidate survived verification
func (o Outcome) Accepted() bool {
	return o.State == StateAccepted
}

// VerifyAndRegenerate checks candidate and, while checks fail and attempts
// remain, replaces it with the output of regenerate.
//
// maxAttempts <= 0 uses MaxRetries+1 from the verifier config. The loop has
// no overall deadline; each check is bounded by the per-request timeout.
func (v *Verifier) VerifyAndRegenerate(
	ctx context.Context,
	sources []model.SourceDocument,
	candidate model.CandidateArticle,
	regenerate RegenerateFunc,
	maxAttempts int,
) Outcome {
	if maxAttempts <= 0 {
		maxAttempts = v.config.MaxAttempts()
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	current := candidate
	var verdicts []model.Verdict

	for attempt := 0; ; attempt++ {
		log := v.logger.With("attempt", attempt+1, "max_attempts", maxAttempts)
		log.Debug("verification transition", "state", StateChecking)

		verdict := v.Verify(ctx, sources, current)
		verdicts = append(verdicts, verdict)

		if verdict.Verified {
			log.Info("verification passed", "state", StateAccepted, "fail_open", string(verdict.FailOpen))
			accepted := current
			return Outcome{
				Candidate:   &accepted,
				Regenerated: attempt > 0,
				Attempts:    attempt + 1,
				State:       StateAccepted,
				Verdicts:    verdicts,
			}
		}

		log.Info("verification failed",
			"discrepancies", len(verdict.Discrepancies),
			"summary", verdict.Summary,
		)
		logDiscrepancies(log, verdict.Discrepancies)

		if attempt >= maxAttempts-1 {
			log.Warn("verification attempts exhausted", "state", StateExhausted)
			return Outcome{
				Regenerated: true,
				Attempts:    maxAttempts,
				State:       StateExhausted,
				Verdicts:    verdicts,
			}
		}

		log.Debug("verification transition", "state", StateRegenerating)
		next, err := v.regenerate(ctx, regenerate, sources)
		if err != nil || next == nil || next.IsEmpty() {
			log.Warn("regeneration produced no usable candidate", "state", StateExhausted, "error", err)
			return Outcome{
				Regenerated: true,
				Attempts:    attempt + 1,
				State:       StateExhausted,
				Verdicts:    verdicts,
			}
		}
		current = *next
	}
}

func (v *Verifier) regenerate(ctx context.Context, regenerate RegenerateFunc, sources []model.SourceDocument) (*model.CandidateArticle, error) {
	if regenerate == nil {
		return nil, nil
	}
	return regenerate(ctx, sources)
}

func logDiscrepancies(log *slog.Logger, discrepancies []model.Discrepancy) {
	for _, d := range discrepancies {
		log.Debug("discrepancy",
			"type", string(d.Kind),
			"issue", d.Issue,
			"generated_claim", d.GeneratedClaim,
			"source_fact", d.SourceFact,
		)
	}
}
