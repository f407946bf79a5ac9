package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

const (
	robotsTTL        = time.Hour
	robotsFailureTTL = 5 * time.Minute
)

// robotsEntry is one origin's rules. A nil data means robots.txt could not be
// read, which allows every path until the entry expires.
type robotsEntry struct {
	data    *robotstxt.RobotsData
	expires time.Time
}

// RobotsChecker answers robots.txt questions for source pages. It shares the
// fetcher's client so robots requests go through the same proxy and redirect
// policy, and it fetches each origin's file at most once at a time.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	agent     string // product token matched against User-agent lines

	mu      sync.Mutex
	entries map[string]robotsEntry
	group   singleflight.Group
	now     func() time.Time
}

// NewRobotsChecker creates a checker that fetches robots.txt with client
func NewRobotsChecker(client *http.Client, userAgent string) *RobotsChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		agent:     NormalizeUserAgent(userAgent),
		entries:   make(map[string]robotsEntry),
		now:       time.Now,
	}
}

// CanFetch reports whether rawURL may be fetched and the crawl delay that
// applies to its host. An unreachable robots.txt allows the fetch.
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Host == "" {
		return false, 0, fmt.Errorf("parse URL: no host in %q", rawURL)
	}

	data, err := r.rules(ctx, parsed.Scheme+"://"+parsed.Host)
	if err != nil {
		return false, 0, err
	}
	if data == nil {
		return true, 0, nil
	}

	target := parsed.EscapedPath()
	if target == "" {
		target = "/"
	}
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}

	return data.TestAgent(target, r.agent), data.FindGroup(r.agent).CrawlDelay, nil
}

// rules returns the cached rules for origin, fetching them when missing or expired.
// Only cancellation of ctx is reported as an error.
func (r *RobotsChecker) rules(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	r.mu.Lock()
	entry, ok := r.entries[origin]
	r.mu.Unlock()
	if ok && r.now().Before(entry.expires) {
		return entry.data, nil
	}

	v, err, _ := r.group.Do(origin, func() (any, error) {
		data, err := r.fetch(ctx, origin)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		ttl := robotsTTL
		if err != nil {
			ttl = robotsFailureTTL
		}
		r.mu.Lock()
		r.entries[origin] = robotsEntry{data: data, expires: r.now().Add(ttl)}
		r.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*robotstxt.RobotsData), nil
}

func (r *RobotsChecker) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	if data == nil {
		return nil, errors.New("parse robots.txt: no rules")
	}
	return data, nil
}

// Clear drops every cached robots.txt
func (r *RobotsChecker) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]robotsEntry)
}

// NormalizeUserAgent extracts the product token used for robots.txt matching
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) > 0 {
		return strings.Split(parts[0], "/")[0]
	}
	return ua
}
