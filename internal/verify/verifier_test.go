package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/verifact/internal/cache"
	"github.com/ppiankov/verifact/internal/llm"
	"github.com/ppiankov/verifact/internal/model"
)

// scriptedProvider returns canned responses in order, repeating the last one
type scriptedProvider struct {
	mu        sync.Mutex
	responses []scriptedResponse
	requests  []llm.GenerateRequest
}

type scriptedResponse struct {
	text string
	err  error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := len(p.requests)
	p.requests = append(p.requests, req)
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	r := p.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &llm.GenerateResponse{Text: r.text, Model: "scripted-1"}, nil
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func respond(texts ...string) *scriptedProvider {
	p := &scriptedProvider{}
	for _, t := range texts {
		p.responses = append(p.responses, scriptedResponse{text: t})
	}
	return p
}

func verdictJSON(verified bool, discrepancies ...model.Discrepancy) string {
	if discrepancies == nil {
		discrepancies = []model.Discrepancy{}
	}
	data, _ := json.Marshal(map[string]any{
		"verified":      verified,
		"discrepancies": discrepancies,
		"summary":       fmt.Sprintf("verified=%v", verified),
	})
	return string(data)
}

func testConfig() model.VerificationConfig {
	return model.VerificationConfig{
		Model:           "test-model",
		MaxOutputTokens: 1024,
		Timeout:         2 * time.Second,
		MaxRetries:      2,
	}
}

var testSources = []model.SourceDocument{
	{Name: "Reuters", Title: "Acme invests", ExtractedText: "Acme said on Monday it would make a $500 million investment in Ohio."},
}

func TestVerify_Verified(t *testing.T) {
	provider := respond(verdictJSON(true))
	v := NewVerifier(provider, testConfig())

	verdict := v.Verify(context.Background(), testSources, sampleCandidate())

	if !verdict.Verified {
		t.Error("Expected verified verdict")
	}
	if verdict.FailOpen != model.FailOpenNone {
		t.Errorf("Expected no fail-open reason, got %s", verdict.FailOpen)
	}
	if verdict.Discrepancies == nil || len(verdict.Discrepancies) != 0 {
		t.Errorf("Expected empty non-nil discrepancies, got %v", verdict.Discrepancies)
	}
}

func TestVerify_RequestShape(t *testing.T) {
	provider := respond(verdictJSON(true))
	v := NewVerifier(provider, testConfig())

	candidate := sampleCandidate()
	v.Verify(context.Background(), testSources, candidate)

	if provider.calls() != 1 {
		t.Fatalf("Expected exactly one request, got %d", provider.calls())
	}
	req := provider.requests[0]
	if req.Temperature != 0 {
		t.Errorf("Expected temperature 0, got %v", req.Temperature)
	}
	if !req.JSON {
		t.Error("Expected JSON-only output hint")
	}
	if req.MaxTokens != 1024 {
		t.Errorf("Expected max tokens 1024, got %d", req.MaxTokens)
	}
	if req.Model != "test-model" {
		t.Errorf("Expected model override, got %s", req.Model)
	}
	if req.SystemPrompt != Instructions {
		t.Error("Expected verification instructions as system prompt")
	}
	if req.Prompt != BuildDocument(testSources, candidate) {
		t.Error("Expected prompt to be the built document")
	}
}

func TestVerify_CodeFences(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"json fence", "```json\n" + verdictJSON(false, model.Discrepancy{Kind: model.KindWrongDate}) + "\n```"},
		{"bare fence", "```\n" + verdictJSON(false, model.Discrepancy{Kind: model.KindWrongDate}) + "\n```"},
		{"single line", "```json " + verdictJSON(false, model.Discrepancy{Kind: model.KindWrongDate}) + "```"},
		{"surrounding whitespace", "\n\n  " + verdictJSON(false, model.Discrepancy{Kind: model.KindWrongDate}) + "  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(respond(tt.text), testConfig())
			verdict := v.Verify(context.Background(), testSources, sampleCandidate())

			if verdict.FailOpen != model.FailOpenNone {
				t.Fatalf("Expected parsed verdict, got fail-open: %s", verdict.Summary)
			}
			if verdict.Verified || len(verdict.Discrepancies) != 1 || verdict.Discrepancies[0].Kind != model.KindWrongDate {
				t.Errorf("Unexpected verdict: %+v", verdict)
			}
		})
	}
}

func TestVerify_FailOpenMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not json", "The article looks accurate to me."},
		{"truncated json", `{"verified": false, "discrepancies": [`},
		{"missing verified", `{"discrepancies": [], "summary": "fine"}`},
		{"array instead of object", `[{"verified": false}]`},
		{"wrong type", `{"verified": "no"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVerifier(respond(tt.text), testConfig())
			verdict := v.Verify(context.Background(), testSources, sampleCandidate())

			if !verdict.Verified {
				t.Error("Expected fail-open to verified")
			}
			if len(verdict.Discrepancies) != 0 {
				t.Errorf("Expected no discrepancies, got %v", verdict.Discrepancies)
			}
			if verdict.FailOpen != model.FailOpenMalformed {
				t.Errorf("Expected malformed reason, got %q", verdict.FailOpen)
			}
			if !strings.Contains(verdict.Summary, "malformed") {
				t.Errorf("Expected diagnostic summary, got %q", verdict.Summary)
			}
		})
	}
}

func TestVerify_FailOpenServiceError(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptedResponse{
		{err: &llm.APIError{Provider: "scripted", StatusCode: 503, Message: "unavailable"}},
	}}
	v := NewVerifier(provider, testConfig())

	verdict := v.Verify(context.Background(), testSources, sampleCandidate())

	if !verdict.Verified || len(verdict.Discrepancies) != 0 {
		t.Errorf("Expected fail-open verdict, got %+v", verdict)
	}
	if verdict.FailOpen != model.FailOpenService {
		t.Errorf("Expected service reason, got %q", verdict.FailOpen)
	}
}

func TestVerify_FailOpenHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"code": 500, "message": "internal", "status": "INTERNAL"}}`))
	}))
	defer server.Close()

	provider, err := llm.NewGeminiProvider(llm.Config{APIKey: "k", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	v := NewVerifier(provider, testConfig())

	verdict := v.Verify(context.Background(), testSources, sampleCandidate())

	if !verdict.Verified || verdict.FailOpen != model.FailOpenService {
		t.Errorf("Expected service fail-open, got %+v", verdict)
	}
}

func TestVerify_FailOpenTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	provider, _ := llm.NewGeminiProvider(llm.Config{APIKey: "k", BaseURL: server.URL})
	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	v := NewVerifier(provider, cfg)

	start := time.Now()
	verdict := v.Verify(context.Background(), testSources, sampleCandidate())
	elapsed := time.Since(start)

	if !verdict.Verified || verdict.FailOpen != model.FailOpenService {
		t.Errorf("Expected service fail-open on timeout, got %+v", verdict)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Expected Verify to return shortly after the timeout, took %v", elapsed)
	}
}

func TestVerify_FailOpenEmptyResponse(t *testing.T) {
	provider := &scriptedProvider{responses: []scriptedResponse{{err: fmt.Errorf("scripted: %w", llm.ErrEmptyResponse)}}}
	v := NewVerifier(provider, testConfig())

	verdict := v.Verify(context.Background(), testSources, sampleCandidate())
	if !verdict.Verified || verdict.FailOpen != model.FailOpenService {
		t.Errorf("Expected service fail-open, got %+v", verdict)
	}
}

func TestVerify_Idempotent(t *testing.T) {
	d := model.Discrepancy{Kind: model.KindWrongNumber, Issue: "magnitude", GeneratedClaim: "$5 billion", SourceFact: "$500 million"}
	provider := respond(verdictJSON(false, d))
	v := NewVerifier(provider, testConfig())

	first := v.Verify(context.Background(), testSources, sampleCandidate())
	for i := 0; i < 3; i++ {
		again := v.Verify(context.Background(), testSources, sampleCandidate())
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Expected identical verdicts, got %+v and %+v", first, again)
		}
	}

	// Prompts must match too
	for i := 1; i < len(provider.requests); i++ {
		if provider.requests[i].Prompt != provider.requests[0].Prompt {
			t.Fatal("Expected identical prompts across calls")
		}
	}
}

func TestVerify_UnknownKindAccepted(t *testing.T) {
	text := `{"verified": false, "discrepancies": [{"type": "wrong_tone", "issue": "too dramatic", "generated_claim": "x", "source_fact": "y"}], "summary": "s"}`
	v := NewVerifier(respond(text), testConfig())

	verdict := v.Verify(context.Background(), testSources, sampleCandidate())

	if verdict.Verified {
		t.Error("Expected the verdict to be taken as-is")
	}
	if len(verdict.Discrepancies) != 1 || verdict.Discrepancies[0].Kind != "wrong_tone" {
		t.Errorf("Expected unknown kind to be kept verbatim, got %+v", verdict.Discrepancies)
	}
	if verdict.FailOpen != model.FailOpenNone {
		t.Error("Expected unknown kind not to trigger fail-open")
	}
}

// The scenarios below pair a crafted source/candidate with the verdict a
// correctly behaving model returns. They pin the document content the model
// sees and the verdict mapping; live behaviour is covered by the integration tests.
func TestVerify_LenienceScenario(t *testing.T) {
	sources := []model.SourceDocument{
		{Name: "Bloomberg", Title: "Sales jump", ExtractedText: "Quarterly sales increased by 14.8% year on year."},
	}
	candidate := model.CandidateArticle{
		Title:          "Sales jump at retailer",
		SummaryBullets: []string{"Nearly 15% increase in quarterly sales"},
	}

	provider := respond(verdictJSON(true))
	v := NewVerifier(provider, testConfig())
	verdict := v.Verify(context.Background(), sources, candidate)

	prompt := provider.requests[0].Prompt
	if !strings.Contains(prompt, "increased by 14.8%") || !strings.Contains(prompt, "Nearly 15% increase") {
		t.Fatal("Expected both the source fact and the paraphrase in the document")
	}
	if !strings.Contains(provider.requests[0].SystemPrompt, "minor rounding") {
		t.Error("Expected rounding to be listed as not flaggable")
	}
	if !verdict.Verified || len(verdict.Discrepancies) != 0 {
		t.Errorf("Expected paraphrase to be accepted, got %+v", verdict)
	}
}

func TestVerify_DetectionScenarios(t *testing.T) {
	tests := []struct {
		kind      model.DiscrepancyKind
		source    string
		generated string
	}{
		{model.KindWrongNumber, "Acme announced a $500 million investment.", "Acme announced a $5 billion investment"},
		{model.KindWrongName, "CEO Jane Smith announced the deal.", "CEO John Doe announced the deal"},
		{model.KindInventedFact, "The company opened a new office.", "The company opened a new office and laid off 300 staff"},
		{model.KindOppositeMeaning, "The senate rejected the bill.", "The senate approved the bill"},
		{model.KindFakeQuote, "The minister declined to comment.", `The minister said "we will win"`},
		{model.KindWrongDate, "The summit took place on 3 March 2025.", "The summit took place on 3 May 2025"},
		{model.KindWrongLocation, "The earthquake struck northern Chile.", "The earthquake struck northern Peru"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if !tt.kind.IsValid() {
				t.Fatalf("kind %s not recognised", tt.kind)
			}
			if !strings.Contains(Instructions, string(tt.kind)) {
				t.Errorf("Expected instructions to define %s", tt.kind)
			}

			sources := []model.SourceDocument{{Name: "Wire", Title: "Report", ExtractedText: tt.source}}
			candidate := model.CandidateArticle{Title: "Report", SummaryBullets: []string{tt.generated}}

			d := model.Discrepancy{Kind: tt.kind, Issue: "mismatch", GeneratedClaim: tt.generated, SourceFact: tt.source}
			provider := respond(verdictJSON(false, d))
			v := NewVerifier(provider, testConfig())

			verdict := v.Verify(context.Background(), sources, candidate)

			prompt := provider.requests[0].Prompt
			if !strings.Contains(prompt, tt.source) || !strings.Contains(prompt, tt.generated) {
				t.Fatal("Expected source fact and generated claim in the document")
			}
			if verdict.Verified {
				t.Fatal("Expected verification to fail")
			}
			if len(verdict.Discrepancies) != 1 || verdict.Discrepancies[0].Kind != tt.kind {
				t.Errorf("Expected one %s discrepancy, got %+v", tt.kind, verdict.Discrepancies)
			}
		})
	}
}

func TestVerify_CacheHit(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	provider := respond(verdictJSON(false, model.Discrepancy{Kind: model.KindWrongName}))
	v := NewVerifier(provider, testConfig(), WithCache(c, time.Minute))

	first := v.Verify(context.Background(), testSources, sampleCandidate())
	second := v.Verify(context.Background(), testSources, sampleCandidate())

	if provider.calls() != 1 {
		t.Errorf("Expected cached second call, provider called %d times", provider.calls())
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected cached verdict to match, got %+v and %+v", first, second)
	}
}

func TestVerify_FailOpenNotCached(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	provider := &scriptedProvider{responses: []scriptedResponse{
		{err: errors.New("connection refused")},
		{text: verdictJSON(false, model.Discrepancy{Kind: model.KindWrongName})},
	}}
	v := NewVerifier(provider, testConfig(), WithCache(c, time.Minute))

	first := v.Verify(context.Background(), testSources, sampleCandidate())
	second := v.Verify(context.Background(), testSources, sampleCandidate())

	if first.FailOpen != model.FailOpenService {
		t.Fatalf("Expected first call to fail open, got %+v", first)
	}
	if second.Verified {
		t.Error("Expected second call to reach the provider instead of a cached fail-open")
	}
	if provider.calls() != 2 {
		t.Errorf("Expected 2 provider calls, got %d", provider.calls())
	}
}

func TestVerify_CorruptCacheEntryIgnored(t *testing.T) {
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	provider := respond(verdictJSON(true))
	cfg := testConfig()
	v := NewVerifier(provider, cfg, WithCache(c, time.Minute))

	key := cache.VerdictKey("scripted/"+cfg.Model, Instructions, BuildDocument(testSources, sampleCandidate()))
	_ = c.Set(key, []byte("not json"), 0)

	verdict := v.Verify(context.Background(), testSources, sampleCandidate())

	if provider.calls() != 1 {
		t.Errorf("Expected provider call after corrupt cache entry, got %d", provider.calls())
	}
	if !verdict.Verified || verdict.FailOpen != model.FailOpenNone {
		t.Errorf("Unexpected verdict: %+v", verdict)
	}
}
