package model

import (
	"fmt"
	"strings"
	"time"
)

// Verdict is the user's answer to a surfaced posting.
type Verdict string

// Verdicts.
const (
	VerdictApprove Verdict = "approve"
	VerdictRefuse  Verdict = "refuse"
)

// ParseVerdict converts a string into a Verdict. Both the imperative and the
// past-tense spellings are accepted.
func ParseVerdict(s string) (Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved":
		return VerdictApprove, nil
	case "refuse", "refused":
		return VerdictRefuse, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidVerdict, s)
	}
}

// Sign returns +1 for approve and -1 for refuse.
func (v Verdict) Sign() float64 {
	if v == VerdictApprove {
		return 1
	}
	return -1
}

// Step is the magnitude applied to one feature by a decision.
type Step struct {
	FeatureKey
	Magnitude float64 `json:"magnitude"`
}

// Decision is an immutable, append-only record of a user verdict.
type Decision struct {
	ID          string        `json:"id"`
	Fingerprint Fingerprint   `json:"fingerprint"`
	Verdict     Verdict       `json:"verdict"`
	DecidedAt   time.Time     `json:"decided_at"`
	Features    FeatureRecord `json:"features"`
	// Steps records the unsigned step per feature so a later re-decision can
	// apply an exact delta.
	Steps []Step `json:"steps"`
	// Supersedes is the id of the previous decision on the same fingerprint.
	Supersedes string `json:"supersedes,omitempty"`
}

// Adjustment is one row of a weight delta.
type Adjustment struct {
	FeatureKey
	Weight float64
	Seen   int
}

// Delta is the full set of changes one decision makes to model state. All
// fields are increments.
type Delta struct {
	Adjustments []Adjustment
	// Decisions counts distinct decided fingerprints.
	Decisions int
	Approved  int
	Refused   int
}

// FeatureWeight is one persisted weight row.
type FeatureWeight struct {
	FeatureKey
	Weight float64
	Seen   int
}

// ModelState is the persisted form of the preference model. Approved and
// Refused count fingerprints by their latest verdict.
type ModelState struct {
	Weights   []FeatureWeight
	Decisions int
	Approved  int
	Refused   int
}
