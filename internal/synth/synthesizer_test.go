package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/verifact/internal/llm"
	"github.com/ppiankov/verifact/internal/model"
)

type mockProvider struct {
	text string
	err  error
	req  llm.GenerateRequest
	ctx  context.Context
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	m.req = req
	m.ctx = ctx
	if m.err != nil {
		return nil, m.err
	}
	return &llm.GenerateResponse{Text: m.text}, nil
}

var sources = []model.SourceDocument{
	{Name: "Reuters", Title: "Acme invests", ExtractedText: "Acme will invest $500 million in Ohio.", Description: "ignored"},
	{Name: "AP", Title: "Battery plant", Description: "Acme plans a plant"},
}

func TestRegenerate(t *testing.T) {
	provider := &mockProvider{text: "```json\n" + `{
  "title": " Acme to build Ohio battery plant ",
  "summary_bullets": ["Acme will invest $500 million", "  ", "The plant is in Ohio"],
  "five_ws": {"who": "Acme", "where": "Ohio", "why": ""}
}` + "\n```"}
	s := New(provider, model.SynthesisConfig{Model: "m", MaxOutputTokens: 512, Temperature: 0.4, Timeout: time.Second}, nil)

	candidate, err := s.Regenerate(context.Background(), sources)
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}

	if candidate.Title != "Acme to build Ohio battery plant" {
		t.Errorf("Unexpected title %q", candidate.Title)
	}
	if len(candidate.SummaryBullets) != 2 {
		t.Errorf("Expected blank bullets to be dropped, got %v", candidate.SummaryBullets)
	}
	fields := candidate.FiveWs.Present()
	if len(fields) != 2 || fields[0].Label != "Who" || fields[1].Label != "Where" {
		t.Errorf("Unexpected five Ws: %+v", fields)
	}

	if provider.req.Temperature != 0.4 || !provider.req.JSON || provider.req.MaxTokens != 512 || provider.req.Model != "m" {
		t.Errorf("Unexpected request: %+v", provider.req)
	}
	if _, ok := provider.ctx.Deadline(); !ok {
		t.Error("Expected the configured timeout to bound the call")
	}
}

func TestRegenerate_Failures(t *testing.T) {
	tests := []struct {
		name     string
		provider *mockProvider
		wantErr  error
	}{
		{"service error", &mockProvider{err: &llm.APIError{Provider: "mock", StatusCode: 500, Message: "boom"}}, nil},
		{"not json", &mockProvider{text: "Here is your article"}, nil},
		{"no title", &mockProvider{text: `{"title": "", "summary_bullets": ["a"]}`}, ErrIncomplete},
		{"no bullets", &mockProvider{text: `{"title": "t", "summary_bullets": []}`}, ErrIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate, err := New(tt.provider, model.SynthesisConfig{}, nil).Regenerate(context.Background(), sources)
			if err == nil || candidate != nil {
				t.Fatalf("Expected (nil, err), got (%v, %v)", candidate, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	var many []model.SourceDocument
	for i := 1; i <= 12; i++ {
		many = append(many, model.SourceDocument{Name: fmt.Sprintf("s%d", i), Description: strings.Repeat("x", 2000)})
	}

	prompt := BuildPrompt(many)

	if strings.Count(prompt, "[Source ") != 10 {
		t.Errorf("Expected 10 sources, got %d", strings.Count(prompt, "[Source "))
	}
	if !strings.Contains(prompt, "Content: "+strings.Repeat("x", 1500)+"...\n") {
		t.Error("Expected content truncated to 1500 characters")
	}

	prompt = BuildPrompt(sources)
	if !strings.Contains(prompt, "Acme will invest $500 million in Ohio.") || strings.Contains(prompt, "ignored") {
		t.Error("Expected extracted text to win over description")
	}
}
