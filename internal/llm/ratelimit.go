package llm

import (
	"context"
	"fmt"
)

// Waiter blocks until a request under key may proceed
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// RateLimited wraps a Provider so every Generate call first waits on a shared limiter.
// All workers of a batch share one instance, so the provider sees one request budget.
type RateLimited struct {
	Provider
	limiter Waiter
	key     string
}

// NewRateLimited wraps p; requests are keyed by the provider name
func NewRateLimited(p Provider, limiter Waiter) *RateLimited {
	return &RateLimited{
		Provider: p,
		limiter:  limiter,
		key:      "llm:" + p.Name(),
	}
}

// Generate waits for the limiter, then delegates
func (r *RateLimited) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := r.limiter.Wait(ctx, r.key); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.Provider.Generate(ctx, req)
}
