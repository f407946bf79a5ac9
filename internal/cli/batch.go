package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/verifact/internal/model"
	"github.com/ppiankov/verifact/internal/pipeline"
	"github.com/ppiankov/verifact/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	storyTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify many stories from a file in parallel",
	Long: `Batch verifies every story in a file concurrently:
- Read stories from a JSON array or a JSON Lines file (one story per line)
- Verify stories in parallel with a configurable worker count
- Regenerate failing articles, sharing one provider rate limit
- Write a JSON and Markdown report per story

Example:
  verifact batch stories.jsonl
  verifact batch stories.jsonl --concurrency 8 --output-dir ./reports
  verifact batch stories.json --timeout 30m --story-timeout 3m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "stories verified in parallel (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./verifact-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for the batch")
	batchCmd.Flags().DurationVar(&storyTimeout, "story-timeout", 5*time.Minute, "timeout for one story, regeneration included")

	// Shared with verify
	batchCmd.Flags().BoolVar(&noRegenerate, "no-regenerate", false, "check only; reject instead of regenerating")
	batchCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "total checks allowed per story (default: verification.max_retries + 1)")
	batchCmd.Flags().BoolVar(&fetchSources, "fetch", false, "fetch article text for sources that only have a URL")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the verdict cache")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	stories, err := worker.ReadStoriesFromFile(file)
	if err != nil {
		return fmt.Errorf("read stories: %w", err)
	}

	s, err := newSession(runOptions{
		noRegenerate: noRegenerate,
		fetch:        fetchSources,
		noCache:      noCache,
		maxAttempts:  maxAttempts,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	workers := concurrency
	if workers <= 0 {
		workers = s.cfg.Concurrency.Workers
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  verifact batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Stories:      %d\n", len(stories))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Provider:     %s/%s\n", s.cfg.LLM.Provider, s.cfg.Verification.Model)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	processor := worker.NewBatchProcessor(s.pipeline, workers, storyTimeout)
	outcomes := processor.ProcessStories(ctx, stories)

	renderer := pipeline.NewRenderer()
	counts := map[model.StoryStatus]int{}
	failures := 0
	used := map[string]int{}

	for _, outcome := range outcomes {
		name := displayName(outcome.StoryID)
		if outcome.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", name, outcome.Error)
			continue
		}

		result := outcome.Result
		counts[result.Status]++

		slug := uniqueSlug(used, sanitizeFilename(outcome.StoryID, outcome.Index))
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(result, jsonPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", name, err)
			continue
		}
		if err := renderer.RenderMarkdown(result, mdPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", name, err)
			continue
		}

		renderer.RenderSummary(os.Stderr, result)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:        %d stories\n", len(outcomes))
	fmt.Fprintf(os.Stderr, "  Accepted:     %d\n", counts[model.StatusAccepted])
	fmt.Fprintf(os.Stderr, "  Regenerated:  %d\n", counts[model.StatusRegenerated])
	fmt.Fprintf(os.Stderr, "  Rejected:     %d\n", counts[model.StatusRejected])
	fmt.Fprintf(os.Stderr, "  Failures:     %d\n", failures)
	fmt.Fprintf(os.Stderr, "  Output:       %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// sanitizeFilename turns a story ID into a safe file stem
func sanitizeFilename(id string, index int) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s := strings.Trim(replacer.Replace(strings.TrimSpace(id)), ".")

	// Limit length
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}

	if s == "" {
		return fmt.Sprintf("story-%04d", index+1)
	}
	return s
}

func uniqueSlug(used map[string]int, slug string) string {
	used[slug]++
	if n := used[slug]; n > 1 {
		return fmt.Sprintf("%s-%d", slug, n)
	}
	return slug
}
