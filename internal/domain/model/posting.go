// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Category is the label assigned to a posting by the source layer.
type Category string

// Closed set of posting categories.
const (
	CategoryResearch   Category = "Research"
	CategoryInnovation Category = "Innovation"
	CategoryEmotionAI  Category = "Emotion-AI"
	CategoryGeneral    Category = "General"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryResearch, CategoryInnovation, CategoryEmotionAI, CategoryGeneral}

var categoryAliases = map[string]Category{
	"research":   CategoryResearch,
	"innovation": CategoryInnovation,
	"adoption":   CategoryInnovation,
	"emotion-ai": CategoryEmotionAI,
	"emotion_ai": CategoryEmotionAI,
	"emotion ai": CategoryEmotionAI,
	"general":    CategoryGeneral,
	"general_ai": CategoryGeneral,
}

// ParseCategory converts a category label into a Category. Matching is
// case-insensitive and accepts the snake-case labels used by older feeds.
func ParseCategory(s string) (Category, error) {
	if c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Posting is one discovered opportunity. Postings are immutable once created;
// a re-fetch with changed content produces a new Posting.
type Posting struct {
	Source       string    `json:"source" yaml:"source"`
	ExternalID   string    `json:"external_id" yaml:"external_id"`
	Title        string    `json:"title" yaml:"title"`
	Company      string    `json:"company" yaml:"company"`
	Description  string    `json:"description" yaml:"description"`
	Location     string    `json:"location,omitempty" yaml:"location,omitempty"`
	URL          string    `json:"url,omitempty" yaml:"url,omitempty"`
	Remote       bool      `json:"remote" yaml:"remote"`
	Category     Category  `json:"category" yaml:"category"`
	DiscoveredAt time.Time `json:"discovered_at" yaml:"discovered_at"`
}

// Key returns the stable external identifier: source plus source-native id.
func (p Posting) Key() string {
	return p.Source + ":" + p.ExternalID
}

// Batch is a group of postings delivered together by one discovery run.
type Batch struct {
	ID         string
	Source     string
	Postings   []Posting
	ReceivedAt time.Time
}
