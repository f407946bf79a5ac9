package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/verifact/internal/model"
)

const fetchAttempts = 3

// fetchSleepFunc is swapped out in tests
var fetchSleepFunc = time.Sleep

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "fetch: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// ErrNotHTML is returned when the response is not an HTML page
var ErrNotHTML = errors.New("not an HTML document")

// Fetcher fetches HTML content from URLs
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(cfg model.HTTPConfig) *Fetcher {
	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2_000_000
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
	}
}

// Client returns the HTTP client shared with robots.txt lookups
func (f *Fetcher) Client() *http.Client {
	return f.httpClient
}

// FetchResult contains the fetched HTML and metadata
type FetchResult struct {
	HTML        string
	StatusCode  int
	ContentType string
	FinalURL    string
}

// Fetch retrieves HTML content from the given URL
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		HTML:        string(body),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// FetchWithRetry retries transient failures (network errors, 429 and 5xx)
// with linear backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) || ctx.Err() != nil || attempt == fetchAttempts {
			break
		}
		fetchSleepFunc(time.Duration(attempt) * time.Second)
	}
	return nil, lastErr
}

func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var transportErr *transportError
	return errors.As(err, &transportErr)
}
