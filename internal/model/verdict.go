package model

// DiscrepancyKind classifies a major factual error in a candidate article
type DiscrepancyKind string

const (
	KindWrongNumber     DiscrepancyKind = "wrong_number"     // Wrong magnitude, amount or count
	KindWrongName       DiscrepancyKind = "wrong_name"       // Wrong person, company or organisation
	KindInventedFact    DiscrepancyKind = "invented_fact"    // Claim with no support in any source
	KindOppositeMeaning DiscrepancyKind = "opposite_meaning" // Reported fact with reversed polarity
	KindFakeQuote       DiscrepancyKind = "fake_quote"       // Quotation not present in the sources
	KindWrongDate       DiscrepancyKind = "wrong_date"       // Wrong date or time period
	KindWrongLocation   DiscrepancyKind = "wrong_location"   // Wrong country, city or place
)

// DiscrepancyKinds lists every recognised kind in a stable order.
var DiscrepancyKinds = []DiscrepancyKind{
	KindWrongNumber,
	KindWrongName,
	KindInventedFact,
	KindOppositeMeaning,
	KindFakeQuote,
	KindWrongDate,
	KindWrongLocation,
}

// IsValid returns true if the kind is a recognised value.
func (k DiscrepancyKind) IsValid() bool {
	switch k {
	case KindWrongNumber, KindWrongName, KindInventedFact, KindOppositeMeaning,
		KindFakeQuote, KindWrongDate, KindWrongLocation:
		return true
	default:
		return false
	}
}

// Discrepancy is one claim in the candidate that contradicts or lacks source support
type Discrepancy struct {
	Kind           DiscrepancyKind `json:"type"`
	Issue          string          `json:"issue"`
	GeneratedClaim string          `json:"generated_claim"`
	SourceFact     string          `json:"source_fact"`
}

// FailOpenReason records why a verdict was produced without a usable model answer
type FailOpenReason string

const (
	FailOpenNone      FailOpenReason = ""
	FailOpenService   FailOpenReason = "service_error"      // Transport, timeout or non-2xx status
	FailOpenMalformed FailOpenReason = "malformed_response" // Response was not a verdict object
)

// Verdict is the outcome of a single verification attempt.
//
// FailOpen is observability only: a verdict with a non-empty FailOpen is
// always Verified with no discrepancies.
type Verdict struct {
	Verified      bool           `json:"verified"`
	Discrepancies []Discrepancy  `json:"discrepancies"`
	Summary       string         `json:"summary"`
	FailOpen      FailOpenReason `json:"fail_open,omitempty"`
}
