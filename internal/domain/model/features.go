package model

// Group names one of the four feature groups the preference model learns.
type Group string

// Feature groups.
const (
	GroupKeyword  Group = "keyword"
	GroupCompany  Group = "company"
	GroupCategory Group = "category"
	GroupRemote   Group = "remote"
)

// Groups lists the feature groups in a fixed order.
var Groups = []Group{GroupKeyword, GroupCompany, GroupCategory, GroupRemote}

// RemoteYes is the remote-group feature carried by remote postings. On-site
// postings carry no remote feature.
const RemoteYes = "remote"

// FeatureRecord is the structured representation of a posting used for
// scoring. It is always derived from a Posting and never edited by hand.
type FeatureRecord struct {
	// Keywords maps keyword -> frequency within the posting.
	Keywords map[string]int `json:"keywords"`
	// KeywordOrder holds the kept keywords in first-occurrence order.
	KeywordOrder []string `json:"keyword_order"`
	Company      string   `json:"company"`
	Category     Category `json:"category"`
	Remote       bool     `json:"remote"`
	LengthBucket int      `json:"length_bucket"`
}

// FeatureKey addresses a single learned weight.
type FeatureKey struct {
	Group   Group  `json:"group"`
	Feature string `json:"feature"`
}

// Keys enumerates every feature present in the record. Keywords come first in
// first-occurrence order, followed by company, category and remote. Empty
// company or category values are skipped, and so is remote for on-site
// postings.
func (r FeatureRecord) Keys() []FeatureKey {
	keys := make([]FeatureKey, 0, len(r.KeywordOrder)+3)
	for _, kw := range r.KeywordOrder {
		keys = append(keys, FeatureKey{Group: GroupKeyword, Feature: kw})
	}
	if r.Company != "" {
		keys = append(keys, FeatureKey{Group: GroupCompany, Feature: r.Company})
	}
	if r.Category != "" {
		keys = append(keys, FeatureKey{Group: GroupCategory, Feature: string(r.Category)})
	}
	if r.Remote {
		keys = append(keys, FeatureKey{Group: GroupRemote, Feature: RemoteYes})
	}
	return keys
}
