package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/verifact/internal/model"
	"github.com/ppiankov/verifact/internal/pipeline"
)

var (
	outJSON       string
	outMD         string
	noRegenerate  bool
	maxAttempts   int
	fetchSources  bool
	noCache       bool
	verifyTimeout time.Duration
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <story.json>",
	Short: "Verify a single synthesized article against its sources",
	Long: `Verify checks one story: a candidate article and the source articles it
was written from. If the check finds factual errors the article is
regenerated from the sources and checked again, up to max_retries times.

The story file is a JSON object:
  {"id": "...", "sources": [{"name", "title", "url", "extracted_text", "description"}],
   "candidate": {"title", "summary_bullets", "five_ws": {"who", "what", "when", "where", "why"}}}

Use "-" to read the story from stdin.

Example:
  verifact verify story.json
  verifact verify story.json --json report.json --md report.md
  verifact verify story.json --no-regenerate --fetch`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	// Output flags
	verifyCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (\"-\" for stdout)")
	verifyCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")

	// Loop flags
	verifyCmd.Flags().BoolVar(&noRegenerate, "no-regenerate", false, "check only; reject instead of regenerating")
	verifyCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "total checks allowed (default: verification.max_retries + 1)")
	verifyCmd.Flags().BoolVar(&fetchSources, "fetch", false, "fetch article text for sources that only have a URL")
	verifyCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the verdict cache")
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 5*time.Minute, "overall timeout")
}

func runVerify(cmd *cobra.Command, args []string) error {
	story, err := readStory(args[0], cmd.InOrStdin())
	if err != nil {
		return err
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

	ctx, cancel := context.WithTimeout(cmd.Context(), verifyTimeout)
	defer cancel()

	if verbose {
		fmt.Fprintf(os.Stderr, "Verifying: %s (%d sources)\n", displayName(story.ID), len(story.Sources))
		fmt.Fprintf(os.Stderr, "Provider:  %s/%s\n", s.cfg.LLM.Provider, s.cfg.Verification.Model)
		fmt.Fprintln(os.Stderr)
	}

	result, err := s.pipeline.ProcessStory(ctx, *story)
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	renderer := pipeline.NewRenderer()
	if err := renderOutputs(renderer, result, outJSON, outMD, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	renderer.RenderSummary(os.Stderr, result)

	if result.Status == model.StatusRejected {
		return errRejected
	}
	return nil
}

// errRejected makes the process exit non-zero without printing usage
var errRejected = errors.New("story rejected")

func renderOutputs(r *pipeline.Renderer, result *model.StoryResult, jsonPath, mdPath string, stdout io.Writer) error {
	switch jsonPath {
	case "":
	case "-":
		if err := r.WriteJSON(stdout, result); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
	default:
		if err := r.RenderJSON(result, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := r.RenderMarkdown(result, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}
	return nil
}

func readStory(path string, stdin io.Reader) (*model.Story, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read story: %w", err)
	}

	var story model.Story
	if err := json.Unmarshal(data, &story); err != nil {
		return nil, fmt.Errorf("parse story: %w", err)
	}
	if story.Candidate.IsEmpty() {
		return nil, fmt.Errorf("story %s has no candidate article", displayName(story.ID))
	}
	return &story, nil
}

func displayName(id string) string {
	if id == "" {
		return "(unnamed)"
	}
	return id
}
