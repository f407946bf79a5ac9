// Package verify checks synthesized articles against their sources and drives
// bounded regeneration when a check fails.
//
// Verification fails open: when the text-generation service is unreachable,
// errors, or answers with something that is not a verdict, the candidate is
// treated as verified. The pipeline favours availability over strictness here;
// callers that need strictness must inspect Verdict.FailOpen.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/verifact/internal/cache"
	"github.com/ppiankov/verifact/internal/llm"
	"github.com/ppiankov/verifact/internal/model"
)

// Verifier checks candidates against sources using a text-generation provider.
// It holds no per-call state and is safe for concurrent use.
type Verifier struct {
	provider llm.Provider
	config   model.VerificationConfig
	logger   *slog.Logger
	cache    cache.Cache
	cacheTTL time.Duration
}

// Option configures a Verifier
type Option func(*Verifier)

// WithLogger sets the diagnostic logger
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithCache stores model-produced verdicts. Fail-open verdicts are never stored.
// A ttl of 0 leaves expiry to the cache's defaults.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(v *Verifier) {
		v.cache = c
		v.cacheTTL = ttl
	}
}

// NewVerifier creates a verifier. Temperature is always sent as 0 regardless of config.
func NewVerifier(provider llm.Provider, config model.VerificationConfig, opts ...Option) *Verifier {
	v := &Verifier{
		provider: provider,
		config:   config,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks one candidate against its sources.
//
// It never returns an error: service failures and malformed answers both
// produce a verified verdict with no discrepancies and a diagnostic summary.
func (v *Verifier) Verify(ctx context.Context, sources []model.SourceDocument, candidate model.CandidateArticle) model.Verdict {
	document := BuildDocument(sources, candidate)
	key := cache.VerdictKey(v.provider.Name()+"/"+v.config.Model, Instructions, document)

	if v.cache != nil {
		if cached, ok := v.cachedVerdict(key); ok {
			v.logger.Debug("verdict cache hit", "verified", cached.Verified)
			return cached
		}
	}

	if v.config.Debug {
		v.logger.Debug("verification request",
			"provider", v.provider.Name(),
			"sources", len(CapSources(sources)),
			"document_chars", len(document),
		)
	}

	reqCtx := ctx
	if v.config.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, v.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := v.provider.Generate(reqCtx, llm.GenerateRequest{
		SystemPrompt: Instructions,
		Prompt:       document,
		Model:        v.config.Model,
		MaxTokens:    v.config.MaxOutputTokens,
		Temperature:  0,
		JSON:         true,
	})
	if err != nil {
		level := slog.LevelWarn
		if llm.IsAuthError(err) {
			// Every later call will fail the same way
			level = slog.LevelError
		}
		v.logger.Log(ctx, level, "verification service failed, accepting candidate unverified",
			"provider", v.provider.Name(),
			"error", err,
			"rate_limited", llm.IsRateLimited(err),
			"elapsed", time.Since(start),
		)
		return failOpen(model.FailOpenService, fmt.Sprintf("verification skipped: service error: %v", err))
	}

	if v.config.Debug {
		v.logger.Debug("verification response",
			"model", resp.Model,
			"tokens", resp.TokensUsed,
			"elapsed", time.Since(start),
			"raw", resp.Text,
		)
	}

	verdict, err := parseVerdict(resp.Text)
	if err != nil {
		v.logger.Warn("malformed verification response, accepting candidate unverified",
			"provider", v.provider.Name(),
			"error", err,
		)
		return failOpen(model.FailOpenMalformed, fmt.Sprintf("verification skipped: malformed response: %v", err))
	}

	for _, d := range verdict.Discrepancies {
		if !d.Kind.IsValid() {
			v.logger.Warn("unrecognised discrepancy type", "type", string(d.Kind), "issue", d.Issue)
		}
	}

	if v.cache != nil {
		v.storeVerdict(key, verdict)
	}

	return verdict
}

func failOpen(reason model.FailOpenReason, summary string) model.Verdict {
	return model.Verdict{
		Verified:      true,
		Discrepancies: []model.Discrepancy{},
		Summary:       summary,
		FailOpen:      reason,
	}
}

func (v *Verifier) cachedVerdict(key string) (model.Verdict, bool) {
	data, found := v.cache.Get(key)
	if !found {
		return model.Verdict{}, false
	}
	var verdict model.Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		_ = v.cache.Delete(key)
		return model.Verdict{}, false
	}
	return verdict, true
}

func (v *Verifier) storeVerdict(key string, verdict model.Verdict) {
	data, err := json.Marshal(verdict)
	if err != nil {
		return
	}
	if err := v.cache.Set(key, data, v.cacheTTL); err != nil {
		v.logger.Warn("verdict cache write failed", "error", err)
	}
}
