package model

// Fingerprint is the deterministic digest used as the dedup key.
type Fingerprint string

// String implements fmt.Stringer.
func (f Fingerprint) String() string { return string(f) }

// Short returns an abbreviated form for logs.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// Registration is the outcome of registering a posting.
type Registration struct {
	Fingerprint Fingerprint
	// Inserted is false when the fingerprint was already known.
	Inserted bool
	// Flagged marks postings whose identity normalized to nothing; they are
	// kept apart for manual review.
	Flagged bool
}

// RankedResult is a posting paired with its score for one ranking pass.
type RankedResult struct {
	Posting     Posting     `json:"posting"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Score       float64     `json:"score"`
	Rank        int         `json:"rank"`
	Tier        Tier        `json:"tier"`
}

// Tier is a coarse recommendation label derived from the score.
type Tier string

// Recommendation tiers.
const (
	TierHighlyRecommended Tier = "highly recommended"
	TierGoodMatch         Tier = "good match"
	TierDecentMatch       Tier = "decent match"
	TierConsider          Tier = "consider"
)

// TierFor maps a score in [0,100] to its recommendation tier.
func TierFor(score float64) Tier {
	switch {
	case score >= 70:
		return TierHighlyRecommended
	case score >= 50:
		return TierGoodMatch
	case score >= 30:
		return TierDecentMatch
	default:
		return TierConsider
	}
}
