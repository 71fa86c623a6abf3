// Package source defines where discovered postings come from.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/scout/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for feed files that are neither YAML nor JSON.
var ErrUnsupportedFormat = errors.New("unsupported feed format")

// Source yields postings for one discovery run.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Posting, error)
}

// FileSource reads a list of postings from a YAML or JSON file. The file is
// re-read on every Fetch so an external scraper can rewrite it between runs.
type FileSource struct {
	path string
	name string
	now  func() time.Time
}

// FileOption configures a FileSource.
type FileOption func(*FileSource)

// WithName overrides the source name. Defaults to "file".
func WithName(name string) FileOption {
	return func(s *FileSource) {
		if name != "" {
			s.name = name
		}
	}
}

// WithClock sets the clock used to stamp DiscoveredAt.
func WithClock(now func() time.Time) FileOption {
	return func(s *FileSource) {
		if now != nil {
			s.now = now
		}
	}
}

// NewFileSource creates a source over path.
func NewFileSource(path string, opts ...FileOption) *FileSource {
	s := &FileSource{path: path, name: "file", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *FileSource) Name() string { return s.name }

// Fetch implements Source. Postings without a source are attributed to this
// one; postings without a discovery time get the fetch time.
func (s *FileSource) Fetch(ctx context.Context) ([]model.Posting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", s.path, err)
	}
	postings, err := Decode(s.path, data)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	for i := range postings {
		if postings[i].Source == "" {
			postings[i].Source = s.name
		}
		if postings[i].DiscoveredAt.IsZero() {
			postings[i].DiscoveredAt = now
		}
	}
	return postings, nil
}

// Decode parses a feed by file extension. Both a bare list and a document
// with a top-level "postings" key are accepted.
func Decode(path string, data []byte) ([]model.Posting, error) {
	var doc struct {
		Postings []model.Posting `json:"postings" yaml:"postings"`
	}
	var list []model.Posting

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &list); err == nil {
			return canonical(list), nil
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode feed %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &list); err == nil {
			return canonical(list), nil
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode feed %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return canonical(doc.Postings), nil
}

// canonical rewrites category aliases to their canonical labels. Unknown
// labels are kept as given.
func canonical(postings []model.Posting) []model.Posting {
	for i := range postings {
		if c, err := model.ParseCategory(string(postings[i].Category)); err == nil {
			postings[i].Category = c
		}
	}
	return postings
}
