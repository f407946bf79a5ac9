package model

import "time"

// Story is one story cluster: the sources and the article synthesized from them.
// This is the input record of the verify and batch commands.
type Story struct {
	ID        string           `json:"id"`
	Sources   []SourceDocument `json:"sources"`
	Candidate CandidateArticle `json:"candidate"`
}

// StoryStatus is the terminal state of a story after verification
type StoryStatus string

const (
	StatusAccepted    StoryStatus = "accepted"    // Original candidate verified
	StatusRegenerated StoryStatus = "regenerated" // A regenerated candidate verified
	StatusRejected    StoryStatus = "rejected"    // Attempts exhausted or regeneration failed
)

// StoryResult is the per-story report
type StoryResult struct {
	RunID       string            `json:"run_id"`
	StoryID     string            `json:"story_id"`
	Status      StoryStatus       `json:"status"`
	Attempts    int               `json:"attempts"`
	Regenerated bool              `json:"regenerated"`
	Candidate   *CandidateArticle `json:"candidate,omitempty"` // Nil when rejected
	Verdicts    []Verdict         `json:"verdicts"`            // One per attempt, in order
	Sources     int               `json:"sources"`
	Enriched    int               `json:"enriched,omitempty"` // Sources whose text was fetched
	SourceTiers []SourceTier      `json:"source_tiers,omitempty"`
	CheckedAt   time.Time         `json:"checked_at"`
	DurationMs  int64             `json:"duration_ms"`
}

// LastVerdict returns the verdict of the final attempt, if any
func (r *StoryResult) LastVerdict() *Verdict {
	if len(r.Verdicts) == 0 {
		return nil
	}
	return &r.Verdicts[len(r.Verdicts)-1]
}

// AuthorityTier classifies how close a source is to the facts it reports
type AuthorityTier string

const (
	TierPrimary   AuthorityTier = "primary"   // Official bodies, wire services, press releases
	TierSecondary AuthorityTier = "secondary" // Established news organisations
	TierTertiary  AuthorityTier = "tertiary"  // Everything else
)

// SourceTier records the authority classification of one verified source
type SourceTier struct {
	Name string        `json:"name"`
	URL  string        `json:"url,omitempty"`
	Tier AuthorityTier `json:"tier"`
}
