package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/verifact/internal/model"
)

// Renderer writes story results as JSON, Markdown and a terminal summary
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// WriteJSON encodes result as indented JSON
func (r *Renderer) WriteJSON(w io.Writer, result *model.StoryResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// RenderJSON writes result to path as JSON
func (r *Renderer) RenderJSON(result *model.StoryResult, path string) error {
	return writeFile(path, func(w io.Writer) error { return r.WriteJSON(w, result) })
}

// RenderMarkdown writes result to path as Markdown
func (r *Renderer) RenderMarkdown(result *model.StoryResult, path string) error {
	return writeFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, r.Markdown(result))
		return err
	})
}

// Markdown renders a human-readable report
func (r *Renderer) Markdown(result *model.StoryResult) string {
	var b strings.Builder

	title := result.StoryID
	if title == "" {
		title = "story"
	}
	fmt.Fprintf(&b, "# Verification report: %s\n\n", title)
	fmt.Fprintf(&b, "- **Status:** %s\n", result.Status)
	fmt.Fprintf(&b, "- **Attempts:** %d\n", result.Attempts)
	fmt.Fprintf(&b, "- **Regenerated:** %t\n", result.Regenerated)
	fmt.Fprintf(&b, "- **Sources:** %d", result.Sources)
	if result.Enriched > 0 {
		fmt.Fprintf(&b, " (%d fetched)", result.Enriched)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- **Checked:** %s\n", result.CheckedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Run:** `%s`\n", result.RunID)

	if c := result.Candidate; c != nil {
		b.WriteString("\n## Accepted article\n\n")
		fmt.Fprintf(&b, "### %s\n\n", c.Title)
		for _, bullet := range c.SummaryBullets {
			fmt.Fprintf(&b, "- %s\n", bullet)
		}
		if fields := c.FiveWs.Present(); len(fields) > 0 {
			b.WriteString("\n| Field | Value |\n|---|---|\n")
			for _, f := range fields {
				fmt.Fprintf(&b, "| %s | %s |\n", f.Label, escapeCell(f.Value))
			}
		}
	}

	if len(result.SourceTiers) > 0 {
		b.WriteString("\n## Sources\n\n| Source | Tier | URL |\n|---|---|---|\n")
		for _, st := range result.SourceTiers {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", escapeCell(st.Name), st.Tier, escapeCell(st.URL))
		}
	}

	if len(result.Verdicts) > 0 {
		b.WriteString("\n## Checks\n")
	}
	for i, v := range result.Verdicts {
		mark := "✓"
		if !v.Verified {
			mark = "✗"
		}
		fmt.Fprintf(&b, "\n### Attempt %d %s\n\n", i+1, mark)
		if v.FailOpen != model.FailOpenNone {
			fmt.Fprintf(&b, "> Accepted without verification (%s)\n\n", v.FailOpen)
		}
		if v.Summary != "" {
			fmt.Fprintf(&b, "%s\n", v.Summary)
		}
		if len(v.Discrepancies) > 0 {
			b.WriteString("\n| Type | Issue | Generated | Source |\n|---|---|---|---|\n")
			for _, d := range v.Discrepancies {
				fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
					d.Kind, escapeCell(d.Issue), escapeCell(d.GeneratedClaim), escapeCell(d.SourceFact))
			}
		}
	}

	return b.String()
}

// RenderSummary prints a short status block
func (r *Renderer) RenderSummary(w io.Writer, result *model.StoryResult) {
	mark := "✓"
	if result.Status == model.StatusRejected {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s: %s after %d attempt(s)\n", mark, displayID(result.StoryID), result.Status, result.Attempts)

	last := result.LastVerdict()
	if last == nil {
		return
	}
	if last.FailOpen != model.FailOpenNone {
		fmt.Fprintf(w, "  ! verification skipped (%s)\n", last.FailOpen)
	}
	for _, d := range last.Discrepancies {
		fmt.Fprintf(w, "  - [%s] %s\n", d.Kind, d.Issue)
	}
}

func displayID(id string) string {
	if id == "" {
		return "(unnamed story)"
	}
	return id
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
