// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index implements an exhaustive nearest-neighbor index over
// embedding vectors using squared Euclidean distance.
package index

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDimensionMismatch indicates vectors of different lengths within one
// index, or a query whose length differs from the index dimension.
var ErrDimensionMismatch = errors.New("index dimension mismatch")

// Metric names the distance function used by Flat.
const Metric = "l2"

// Hit is one search result.
type Hit struct {
	Position int
	Distance float64
}

// Flat stores vectors contiguously and scans all of them per query.
// It is immutable after construction and safe for concurrent searches.
type Flat struct {
	dim     int
	n       int
	vectors []float32
}

// NewFlat builds an index from vectors in positional order. All vectors
// must share one non-zero dimension. An empty input yields an empty index.
func NewFlat(vectors [][]float32) (*Flat, error) {
	f := &Flat{n: len(vectors)}
	if len(vectors) == 0 {
		return f, nil
	}

	f.dim = len(vectors[0])
	if f.dim == 0 {
		return nil, fmt.Errorf("%w: vector 0 is empty", ErrDimensionMismatch)
	}

	f.vectors = make([]float32, 0, f.n*f.dim)
	for i, v := range vectors {
		if len(v) != f.dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), f.dim)
		}
		f.vectors = append(f.vectors, v...)
	}
	return f, nil
}

// Size returns the number of indexed vectors.
func (f *Flat) Size() int { return f.n }

// Dim returns the vector dimension, or 0 for an empty index.
func (f *Flat) Dim() int { return f.dim }

// Vector returns a copy of the vector stored at position.
func (f *Flat) Vector(position int) []float32 {
	out := make([]float32, f.dim)
	copy(out, f.vectors[position*f.dim:(position+1)*f.dim])
	return out
}

// Search returns the min(k, Size()) nearest vectors to query, nearest
// first. Equal distances are ordered by position.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if f.n == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d", ErrDimensionMismatch, len(query), f.dim)
	}
	if k > f.n {
		k = f.n
	}

	hits := make([]Hit, f.n)
	for i := 0; i < f.n; i++ {
		hits[i] = Hit{Position: i, Distance: squaredL2(query, f.vectors[i*f.dim:(i+1)*f.dim])}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance == hits[j].Distance {
			return hits[i].Position < hits[j].Position
		}
		return hits[i].Distance < hits[j].Distance
	})

	return hits[:k], nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
