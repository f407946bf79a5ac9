package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/verifact/internal/model"
)

// StoryProcessor defines the interface for verifying one story
type StoryProcessor interface {
	ProcessStory(ctx context.Context, story model.Story) (*model.StoryResult, error)
}

// VerifyJob represents one story queued for verification
type VerifyJob struct {
	Index     int
	Story     model.Story
	Processor StoryProcessor
	Timeout   time.Duration
}

// Execute executes the verification job
func (j *VerifyJob) Execute(ctx context.Context) Result {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	result, err := j.Processor.ProcessStory(ctx, j.Story)
	if err != nil {
		return &StoryOutcome{Index: j.Index, StoryID: j.Story.ID, Error: err}
	}
	return &StoryOutcome{Index: j.Index, StoryID: j.Story.ID, Result: result}
}

// StoryOutcome is the result of a verification job
type StoryOutcome struct {
	Index   int
	StoryID string
	Result  *model.StoryResult
	Error   error
}

// GetError returns the error from the job
func (r *StoryOutcome) GetError() error {
	return r.Error
}

// BatchProcessor verifies multiple stories concurrently
type BatchProcessor struct {
	processor   StoryProcessor
	concurrency int
	timeout     time.Duration
}

// NewBatchProcessor creates a new batch processor. timeout bounds each story; 0 means no bound.
func NewBatchProcessor(processor StoryProcessor, concurrency int, timeout time.Duration) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// ProcessStories verifies stories concurrently and returns outcomes in input order.
// Stories not started before ctx is cancelled carry ctx.Err().
func (b *BatchProcessor) ProcessStories(ctx context.Context, stories []model.Story) []*StoryOutcome {
	outcomes := make([]*StoryOutcome, len(stories))
	if len(stories) == 0 {
		return outcomes
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	go func() {
		for i, story := range stories {
			if !pool.Submit(&VerifyJob{Index: i, Story: story, Processor: b.processor, Timeout: b.timeout}) {
				break
			}
		}
		pool.CloseAndWait()
	}()

	for result := range pool.Results() {
		outcome := result.(*StoryOutcome)
		outcomes[outcome.Index] = outcome
	}

	for i, outcome := range outcomes {
		if outcome == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			outcomes[i] = &StoryOutcome{Index: i, StoryID: stories[i].ID, Error: fmt.Errorf("not processed: %w", err)}
		}
	}

	return outcomes
}

// ProcessFile reads stories from a file and verifies them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*StoryOutcome, error) {
	stories, err := ReadStoriesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read stories: %w", err)
	}

	return b.ProcessStories(ctx, stories), nil
}

// ReadStoriesFromFile reads stories from a JSON array or a JSON Lines file.
// Blank lines and lines starting with '#' are skipped in JSON Lines input.
// Stories with a repeated non-empty ID are dropped after the first.
func ReadStoriesFromFile(filePath string) ([]model.Story, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	var stories []model.Story
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return []model.Story{}, nil
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &stories); err != nil {
			return nil, fmt.Errorf("parse JSON array: %w", err)
		}
	default:
		stories, err = readJSONLines(trimmed)
		if err != nil {
			return nil, err
		}
	}

	return dedupStories(stories), nil
}

func readJSONLines(data []byte) ([]model.Story, error) {
	var stories []model.Story

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())

		// Skip empty lines and comments
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		var story model.Story
		if err := json.Unmarshal(line, &story); err != nil {
			return nil, fmt.Errorf("parse line %d: %w", lineNo, err)
		}
		stories = append(stories, story)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return stories, nil
}

func dedupStories(stories []model.Story) []model.Story {
	out := make([]model.Story, 0, len(stories))
	seen := make(map[string]bool)
	for _, s := range stories {
		if s.ID != "" {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
		}
		out = append(out, s)
	}
	return out
}
