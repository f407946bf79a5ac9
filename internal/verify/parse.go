package verify

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ppiankov/verifact/internal/llm"
	"github.com/ppiankov/verifact/internal/model"
)

var errMissingVerified = errors.New(`missing "verified" field`)

// rawVerdict is the JSON structure returned by the LLM
type rawVerdict struct {
	Verified      *bool               `json:"verified"`
	Discrepancies []model.Discrepancy `json:"discrepancies"`
	Summary       string              `json:"summary"`
}

// parseVerdict decodes a model answer into a verdict.
// Any error means the answer is unusable and the caller must fail open.
func parseVerdict(content string) (model.Verdict, error) {
	content = llm.StripCodeFences(content)

	var raw rawVerdict
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return model.Verdict{}, fmt.Errorf("invalid JSON object: %w", err)
	}
	if raw.Verified == nil {
		return model.Verdict{}, errMissingVerified
	}

	discrepancies := raw.Discrepancies
	if discrepancies == nil {
		discrepancies = []model.Discrepancy{}
	}

	return model.Verdict{
		Verified:      *raw.Verified,
		Discrepancies: discrepancies,
		Summary:       raw.Summary,
	}, nil
}
