package verify

import (
	"fmt"
	"strings"

	"github.com/ppiankov/verifact/internal/model"
)

const (
	// MaxSources is the number of sources considered. It matches the synthesis
	// step's own cap so verification and synthesis see the same evidence.
	MaxSources = 10

	// MaxSourceChars is the per-source content budget, in characters.
	MaxSourceChars = 1500

	truncationMarker = "..."
)

// BuildDocument renders the comparison document for one (sources, candidate) pair.
//
// Output is a pure function of its inputs: identical inputs produce
// byte-identical documents, which the verdict cache relies on.
func BuildDocument(sources []model.SourceDocument, candidate model.CandidateArticle) string {
	var b strings.Builder

	b.WriteString("SOURCE ARTICLES:\n")
	used := CapSources(sources)
	if len(used) == 0 {
		b.WriteString("\n(no sources provided)\n")
	}
	for i, src := range used {
		fmt.Fprintf(&b, "\n[Source %d] %s\n", i+1, src.Name)
		fmt.Fprintf(&b, "Title: %s\n", src.Title)
		fmt.Fprintf(&b, "Content: %s\n", TruncateContent(src.Content(), MaxSourceChars))
	}

	b.WriteString("\nGENERATED ARTICLE:\n")
	fmt.Fprintf(&b, "Title: %s\n", candidate.Title)
	b.WriteString("Summary:\n")
	for _, bullet := range candidate.SummaryBullets {
		fmt.Fprintf(&b, "- %s\n", bullet)
	}

	if fields := candidate.FiveWs.Present(); len(fields) > 0 {
		b.WriteString("Five Ws:\n")
		for _, f := range fields {
			fmt.Fprintf(&b, "%s: %s\n", f.Label, f.Value)
		}
	}

	return b.String()
}

// CapSources returns at most MaxSources sources, preserving order
func CapSources(sources []model.SourceDocument) []model.SourceDocument {
	if len(sources) > MaxSources {
		return sources[:MaxSources]
	}
	return sources
}

// TruncateContent cuts s to limit characters and marks the cut with an ellipsis.
// Counting is by rune so multi-byte text is never split mid-character.
func TruncateContent(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	count := 0
	for i := range s {
		if count == limit {
			return s[:i] + truncationMarker
		}
		count++
	}
	return s
}
