// Package features turns postings into the feature records the preference
// model scores.
package features

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/okian/scout/internal/domain/dedupe"
	"github.com/okian/scout/internal/domain/model"
)

// Description length bucket boundaries, in runes.
var lengthBuckets = []int{200, 1000, 3000}

const minKeywordRunes = 2

// Extractor derives a FeatureRecord from a Posting. It holds no mutable state
// and is safe for concurrent use.
type Extractor struct {
	analyzerName string
	analyzer     analysis.Analyzer
	topK         int
}

// NewExtractor builds an extractor on top of a bleve text analyzer. The
// default is the standard analyzer: unicode tokenization, lower-casing and
// English stop-word removal.
func NewExtractor(opts ...Option) (*Extractor, error) {
	e := &Extractor{
		analyzerName: standard.Name,
		topK:         DefaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}

	a, err := registry.NewCache().AnalyzerNamed(e.analyzerName)
	if err != nil {
		return nil, fmt.Errorf("analyzer %q: %w", e.analyzerName, err)
	}
	e.analyzer = a
	return e, nil
}

// TopK returns the configured keyword limit.
func (e *Extractor) TopK() int { return e.topK }

// Extract computes the feature record for p. It never fails; text that yields
// no usable tokens produces an empty keyword set.
func (e *Extractor) Extract(p model.Posting) model.FeatureRecord {
	kw, order := e.keywords(p.Title + "\n" + p.Description)
	return model.FeatureRecord{
		Keywords:     kw,
		KeywordOrder: order,
		Company:      dedupe.Normalize(p.Company),
		Category:     p.Category,
		Remote:       p.Remote,
		LengthBucket: LengthBucket(p.Description),
	}
}

type termCount struct {
	term  string
	count int
	first int
}

func (e *Extractor) keywords(text string) (map[string]int, []string) {
	counts := make(map[string]*termCount)
	var seen []*termCount

	for _, tok := range e.analyzer.Analyze([]byte(text)) {
		term := string(tok.Term)
		if !keep(term) {
			continue
		}
		tc, ok := counts[term]
		if !ok {
			tc = &termCount{term: term, first: len(seen)}
			counts[term] = tc
			seen = append(seen, tc)
		}
		tc.count++
	}

	sort.SliceStable(seen, func(i, j int) bool {
		if seen[i].count != seen[j].count {
			return seen[i].count > seen[j].count
		}
		return seen[i].first < seen[j].first
	})
	if len(seen) > e.topK {
		seen = seen[:e.topK]
	}

	// kept keywords are reported in first-occurrence order
	sort.Slice(seen, func(i, j int) bool { return seen[i].first < seen[j].first })

	kw := make(map[string]int, len(seen))
	order := make([]string, 0, len(seen))
	for _, tc := range seen {
		kw[tc.term] = tc.count
		order = append(order, tc.term)
	}
	return kw, order
}

func keep(term string) bool {
	if utf8.RuneCountInString(term) < minKeywordRunes {
		return false
	}
	return strings.IndexFunc(term, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0
}

// LengthBucket maps a description to a coarse size class 0..3.
func LengthBucket(description string) int {
	n := utf8.RuneCountInString(description)
	for i, limit := range lengthBuckets {
		if n < limit {
			return i
		}
	}
	return len(lengthBuckets)
}

// Validate reports missing required fields. A malformed posting can still be
// extracted and ranked; callers log the error and carry on.
func Validate(p model.Posting) error {
	var missing []string
	if strings.TrimSpace(p.Source) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(p.ExternalID) == "" {
		missing = append(missing, "external_id")
	}
	if strings.TrimSpace(p.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(p.Company) == "" {
		missing = append(missing, "company")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", model.ErrMalformedPosting, strings.Join(missing, ", "))
	}
	return nil
}
