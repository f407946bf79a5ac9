package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/verifact/internal/model"
)

// mockProcessor implements StoryProcessor
type mockProcessor struct {
	shouldError bool
	delay       func(id string) time.Duration
}

func (m *mockProcessor) ProcessStory(ctx context.Context, story model.Story) (*model.StoryResult, error) {
	d := 10 * time.Millisecond
	if m.delay != nil {
		d = m.delay(story.ID)
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if m.shouldError {
		return nil, errors.New("verify error")
	}
	return &model.StoryResult{StoryID: story.ID, Status: model.StatusAccepted}, nil
}

func stories(ids ...string) []model.Story {
	out := make([]model.Story, len(ids))
	for i, id := range ids {
		out[i] = model.Story{ID: id, Candidate: model.CandidateArticle{Title: "t " + id}}
	}
	return out
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stories")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessStories(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{}, 2, 0)

	results := processor.ProcessStories(context.Background(), stories("a", "b", "c"))

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.StoryID, res.Error)
		}
		if res.Result == nil || res.Result.StoryID != res.StoryID {
			t.Errorf("expected result for %s", res.StoryID)
		}
	}
}

func TestBatchProcessor_InputOrder(t *testing.T) {
	// Earlier stories finish last
	processor := NewBatchProcessor(&mockProcessor{delay: func(id string) time.Duration {
		var n int
		_, _ = fmt.Sscanf(id, "s%d", &n)
		return time.Duration(20-n) * 5 * time.Millisecond
	}}, 8, 0)

	var ids []string
	for i := 0; i < 20; i++ {
		ids = append(ids, fmt.Sprintf("s%d", i))
	}

	results := processor.ProcessStories(context.Background(), stories(ids...))

	for i, res := range results {
		if res.StoryID != ids[i] || res.Index != i {
			t.Errorf("position %d: expected %s, got %s", i, ids[i], res.StoryID)
		}
	}
}

func TestBatchProcessor_ManyStoriesFewWorkers(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{delay: func(string) time.Duration { return 0 }}, 1, 0)

	var ids []string
	for i := 0; i < 50; i++ {
		ids = append(ids, fmt.Sprintf("s%d", i))
	}

	done := make(chan []*StoryOutcome)
	go func() { done <- processor.ProcessStories(context.Background(), stories(ids...)) }()

	select {
	case results := <-done:
		if len(results) != 50 {
			t.Errorf("expected 50 results, got %d", len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not complete")
	}
}

func TestBatchProcessor_Error(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{shouldError: true}, 2, 0)

	results := processor.ProcessStories(context.Background(), stories("a"))

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Result != nil {
		t.Error("expected nil result on error")
	}
}

func TestBatchProcessor_Timeout(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{delay: func(string) time.Duration { return time.Second }}, 1, 20*time.Millisecond)

	results := processor.ProcessStories(context.Background(), stories("slow"))

	if !errors.Is(results[0].Error, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", results[0].Error)
	}
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	processor := NewBatchProcessor(&mockProcessor{}, 1, 0)
	results := processor.ProcessStories(ctx, stories("a", "b", "c"))

	if len(results) != 3 {
		t.Fatalf("expected a slot per story, got %d", len(results))
	}
	for _, res := range results {
		if res.Error == nil {
			t.Errorf("expected error for %s after cancellation", res.StoryID)
		}
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{}, 2, 0)

	results := processor.ProcessStories(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadStoriesFromFile_JSONLines(t *testing.T) {
	content := `{"id": "a", "candidate": {"title": "A"}}
# comment

{"id": "b", "sources": [{"name": "Reuters", "extracted_text": "x"}], "candidate": {"title": "B"}}
{"id": "a", "candidate": {"title": "A again"}}
`
	got, err := ReadStoriesFromFile(writeTemp(t, content))
	if err != nil {
		t.Fatalf("ReadStoriesFromFile failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 stories after deduplication, got %d", len(got))
	}
	if got[0].ID != "a" || got[0].Candidate.Title != "A" {
		t.Errorf("expected first occurrence of a to win, got %+v", got[0])
	}
	if got[1].ID != "b" || len(got[1].Sources) != 1 || got[1].Sources[0].Name != "Reuters" {
		t.Errorf("unexpected second story: %+v", got[1])
	}
}

func TestReadStoriesFromFile_JSONArray(t *testing.T) {
	content := `[
  {"id": "x", "candidate": {"title": "X", "summary_bullets": ["one"]}},
  {"id": "y", "candidate": {"title": "Y"}}
]`
	got, err := ReadStoriesFromFile(writeTemp(t, content))
	if err != nil {
		t.Fatalf("ReadStoriesFromFile failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "x" || got[1].ID != "y" {
		t.Errorf("unexpected stories: %+v", got)
	}
	if len(got[0].Candidate.SummaryBullets) != 1 {
		t.Error("expected summary bullets to decode")
	}
}

func TestReadStoriesFromFile_Errors(t *testing.T) {
	if _, err := ReadStoriesFromFile("non_existent_file.jsonl"); err == nil {
		t.Error("expected error for non-existent file")
	}

	if _, err := ReadStoriesFromFile(writeTemp(t, "{\"id\": \"a\"}\n{broken\n")); err == nil {
		t.Error("expected error for malformed line")
	}

	if _, err := ReadStoriesFromFile(writeTemp(t, "[{\"id\": 1}]")); err == nil {
		t.Error("expected error for malformed array")
	}
}

func TestReadStoriesFromFile_Empty(t *testing.T) {
	got, err := ReadStoriesFromFile(writeTemp(t, "  \n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected 0 stories, got %d", len(got))
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeTemp(t, "{\"id\": \"a\"}\n{\"id\": \"b\"}\n")
	processor := NewBatchProcessor(&mockProcessor{}, 2, 0)

	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}

	if _, err := processor.ProcessFile(context.Background(), "no_such_file.jsonl"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestStoryOutcome_GetError(t *testing.T) {
	r1 := &StoryOutcome{StoryID: "a"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("verify failed")
	r2 := &StoryOutcome{StoryID: "a", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}
