// Package source fills in long-form text for sources that only carry a URL
// and a feed description.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/verifact/internal/model"
)

// ErrDisallowed is returned when robots.txt forbids fetching a URL
var ErrDisallowed = errors.New("disallowed by robots.txt")

// RateLimiter throttles fetches per host
type RateLimiter interface {
	WaitWithDelay(ctx context.Context, rawURL string, additionalDelay time.Duration) error
}

// Enricher fetches source pages and extracts their article text
type Enricher struct {
	fetcher *Fetcher
	robots  *RobotsChecker
	limiter RateLimiter
	workers int
	logger  *slog.Logger
}

// NewEnricher creates an enricher. limiter may be nil. robots.txt is only
// consulted when cfg.RespectRobots is set.
func NewEnricher(cfg model.HTTPConfig, limiter RateLimiter, workers int, logger *slog.Logger) *Enricher {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Enricher{
		fetcher: NewFetcher(cfg),
		limiter: limiter,
		workers: workers,
		logger:  logger,
	}
	if cfg.RespectRobots {
		e.robots = NewRobotsChecker(e.fetcher.Client(), cfg.UserAgent)
	}
	return e
}

// Enrich returns a copy of sources where every source with a URL and no
// extracted text has had its page fetched. Failures leave the source as it
// was. The second return value counts sources that gained text.
func (e *Enricher) Enrich(ctx context.Context, sources []model.SourceDocument) ([]model.SourceDocument, int) {
	out := make([]model.SourceDocument, len(sources))
	copy(out, sources)

	var enriched atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range out {
		if !needsText(out[i]) {
			continue
		}
		g.Go(func() error {
			text, err := e.fetchText(gctx, out[i].URL)
			if err != nil {
				e.logger.Warn("source enrichment failed", "source", out[i].Name, "url", out[i].URL, "error", err)
				return nil
			}
			out[i].ExtractedText = text
			enriched.Add(1)
			e.logger.Debug("source enriched", "source", out[i].Name, "chars", len([]rune(text)))
			return nil
		})
	}

	_ = g.Wait()
	return out, int(enriched.Load())
}

func (e *Enricher) fetchText(ctx context.Context, rawURL string) (string, error) {
	var crawlDelay time.Duration
	if e.robots != nil {
		allowed, delay, err := e.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return "", err
		}
		if !allowed {
			return "", ErrDisallowed
		}
		crawlDelay = delay
	}

	if e.limiter != nil {
		if err := e.limiter.WaitWithDelay(ctx, rawURL, crawlDelay); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}

	result, err := e.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return "", err
	}

	article, err := ExtractArticle(result.HTML)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(article.Text) == "" {
		return "", errors.New("no article text found")
	}
	return article.Text, nil
}

func needsText(s model.SourceDocument) bool {
	return s.URL != "" && strings.TrimSpace(s.ExtractedText) == ""
}
