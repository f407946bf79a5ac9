package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/ppiankov/verifact/internal/cache"
	"github.com/ppiankov/verifact/internal/llm"
	"github.com/ppiankov/verifact/internal/logger"
	"github.com/ppiankov/verifact/internal/model"
	"github.com/ppiankov/verifact/internal/pipeline"
	"github.com/ppiankov/verifact/internal/source"
	"github.com/ppiankov/verifact/internal/synth"
	"github.com/ppiankov/verifact/internal/verify"
	"github.com/ppiankov/verifact/internal/worker"
)

// runOptions are the per-command switches that shape the pipeline
type runOptions struct {
	noRegenerate bool
	fetch        bool
	noCache      bool
	maxAttempts  int
}

// session holds the wired components of one command invocation
type session struct {
	cfg      *model.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
	closers  []io.Closer
}

func (s *session) Close() {
	for _, c := range s.closers {
		_ = c.Close()
	}
}

// newSession loads configuration and wires provider, cache, verifier,
// synthesizer, enricher and authority classifier into a pipeline
func newSession(opts runOptions) (*session, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Logging.Level = "debug"
		cfg.Verification.Debug = true
	}
	if err := requireAPIKey(cfg); err != nil {
		return nil, err
	}

	log, logCloser, err := logger.Init(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	sess := &session{cfg: cfg, logger: log, closers: []io.Closer{logCloser}}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("create provider: %w", err)
	}

	// One limiter shared by provider calls and source fetches, keyed apart
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	limited := llm.NewRateLimited(provider, limiter)

	verifierOpts := []verify.Option{verify.WithLogger(log)}
	if cfg.Cache.Enabled && !opts.noCache {
		// Each layer applies its own TTL
		c := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		verifierOpts = append(verifierOpts, verify.WithCache(c, 0))
	}
	verifier := verify.NewVerifier(limited, cfg.Verification, verifierOpts...)

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithMaxAttempts(opts.maxAttempts),
		pipeline.WithClassifier(source.NewAuthorityClassifier(&cfg.Authority)),
	}
	if !opts.noRegenerate {
		synthesizer := synth.New(limited, cfg.Synthesis, log)
		pipelineOpts = append(pipelineOpts, pipeline.WithRegenerator(synthesizer.Regenerate))
	}
	if opts.fetch {
		enricher := source.NewEnricher(cfg.HTTP, limiter, cfg.Concurrency.FetchWorkers, log)
		pipelineOpts = append(pipelineOpts, pipeline.WithEnricher(enricher))
	}

	sess.pipeline = pipeline.NewPipeline(verifier, pipelineOpts...)

	log.Debug("session ready",
		"provider", provider.Name(),
		"model", cfg.Verification.Model,
		"max_attempts", effectiveAttempts(cfg, opts),
		"fetch", opts.fetch,
		"regenerate", !opts.noRegenerate,
	)
	return sess, nil
}

func effectiveAttempts(cfg *model.Config, opts runOptions) int {
	if opts.maxAttempts > 0 {
		return opts.maxAttempts
	}
	return cfg.Verification.MaxAttempts()
}
