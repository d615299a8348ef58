// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the scamguard service:
// the knowledge items loaded from the corpus file and the configuration
// structs consumed by each component.
package types

// KnowledgeItem is one corpus entry: a trimmed, non-blank line of the
// knowledge file. Items are immutable once loaded; a rebuild replaces the
// whole set.
type KnowledgeItem struct {
	// Position is the zero-based index of the item among the non-blank
	// lines of the corpus file.
	Position int `json:"position" yaml:"position"`

	// Content is the line text with surrounding whitespace removed.
	Content string `json:"content" yaml:"content"`
}

// Match is a KnowledgeItem returned by a nearest-neighbor lookup together
// with its squared Euclidean distance to the query vector.
type Match struct {
	KnowledgeItem `yaml:",inline"`

	// Distance is the squared L2 distance between the query and item vectors.
	Distance float64 `json:"distance" yaml:"distance"`
}

// Contents returns the item texts in match order.
func Contents(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Content
	}
	return out
}
