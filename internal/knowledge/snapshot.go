// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge owns the live corpus snapshot: it persists snapshots to
// the cache artifact, rebuilds them from the corpus file, and answers
// nearest-neighbor queries against whichever snapshot is current.
package knowledge

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/scamguard/internal/index"
	"github.com/pdiddy/scamguard/pkg/types"
)

// Snapshot is an immutable bundle of corpus items, their embeddings and the
// index built over them. Items[i], Embeddings[i] and index position i all
// describe the same corpus line.
type Snapshot struct {
	Fingerprint string
	Model       string
	Items       []types.KnowledgeItem
	Embeddings  [][]float32
	Index       *index.Flat
	BuiltAt     time.Time
	BuildID     string
}

// NewSnapshot builds the index over embeddings and stamps the result with a
// fresh build ID. It fails with index.ErrDimensionMismatch when the vectors
// disagree on length and rejects item and embedding counts that differ.
func NewSnapshot(fingerprint, model string, items []types.KnowledgeItem, embeddings [][]float32) (*Snapshot, error) {
	if len(items) != len(embeddings) {
		return nil, fmt.Errorf("building snapshot: %d items but %d embeddings", len(items), len(embeddings))
	}
	idx, err := index.NewFlat(embeddings)
	if err != nil {
		return nil, fmt.Errorf("building snapshot: %w", err)
	}
	return &Snapshot{
		Fingerprint: fingerprint,
		Model:       model,
		Items:       items,
		Embeddings:  embeddings,
		Index:       idx,
		BuiltAt:     time.Now().UTC(),
		BuildID:     uuid.NewString(),
	}, nil
}

// Size returns the number of items in the snapshot.
func (s *Snapshot) Size() int { return len(s.Items) }

// Dim returns the embedding dimension, or 0 for an empty snapshot.
func (s *Snapshot) Dim() int { return s.Index.Dim() }

func (s *Snapshot) validate() error {
	if s.Index == nil {
		return fmt.Errorf("snapshot %s has no index", s.BuildID)
	}
	if len(s.Items) != len(s.Embeddings) || len(s.Items) != s.Index.Size() {
		return fmt.Errorf("snapshot %s is inconsistent: %d items, %d embeddings, index of %d",
			s.BuildID, len(s.Items), len(s.Embeddings), s.Index.Size())
	}
	return nil
}
