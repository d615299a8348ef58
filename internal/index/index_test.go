// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFlat(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]float32
		wantN   int
		wantDim int
		wantErr bool
	}{
		{"empty", nil, 0, 0, false},
		{"uniform", [][]float32{{1, 0}, {0, 1}, {1, 1}}, 3, 2, false},
		{"mixed dimensions", [][]float32{{1, 0}, {0, 1, 0}}, 0, 0, true},
		{"zero-length vector", [][]float32{{}}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFlat(tt.vectors)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrDimensionMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantN, f.Size())
			assert.Equal(t, tt.wantDim, f.Dim())
		})
	}
}

func TestSearchOrdering(t *testing.T) {
	f, err := NewFlat([][]float32{
		{5, 5},
		{1, 0},
		{0, 0},
		{3, 4},
	})
	require.NoError(t, err)

	hits, err := f.Search([]float32{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, []int{2, 1, 3}, positions(hits))
	assert.Equal(t, 0.0, hits[0].Distance)
	assert.Equal(t, 1.0, hits[1].Distance)
	assert.Equal(t, 25.0, hits[2].Distance)
}

func TestSearchTieBreaksByPosition(t *testing.T) {
	f, err := NewFlat([][]float32{
		{0, 1},
		{1, 0},
		{0, -1},
		{-1, 0},
	})
	require.NoError(t, err)

	hits, err := f.Search([]float32{0, 0}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, positions(hits))
}

func TestSearchClampsK(t *testing.T) {
	f, err := NewFlat([][]float32{{1}, {2}})
	require.NoError(t, err)

	for _, k := range []int{1, 2, 3, 10} {
		hits, err := f.Search([]float32{0}, k)
		require.NoError(t, err)
		assert.Len(t, hits, min(k, 2))
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	f, err := NewFlat(nil)
	require.NoError(t, err)

	hits, err := f.Search([]float32{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchQueryDimensionMismatch(t *testing.T) {
	f, err := NewFlat([][]float32{{1, 2}})
	require.NoError(t, err)

	_, err = f.Search([]float32{1, 2, 3}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearchNonDecreasingOnRandomData(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	vectors := make([][]float32, 200)
	for i := range vectors {
		vectors[i] = []float32{float32(rng.Intn(5)), float32(rng.Intn(5)), float32(rng.Intn(5))}
	}
	f, err := NewFlat(vectors)
	require.NoError(t, err)

	hits, err := f.Search([]float32{2, 2, 2}, 50)
	require.NoError(t, err)
	require.Len(t, hits, 50)
	for i := 1; i < len(hits); i++ {
		prev, cur := hits[i-1], hits[i]
		require.LessOrEqual(t, prev.Distance, cur.Distance)
		if prev.Distance == cur.Distance {
			require.Less(t, prev.Position, cur.Position)
		}
	}
}

func TestVectorReturnsCopy(t *testing.T) {
	f, err := NewFlat([][]float32{{1, 2}, {3, 4}})
	require.NoError(t, err)

	v := f.Vector(1)
	assert.Equal(t, []float32{3, 4}, v)
	v[0] = 99
	assert.Equal(t, []float32{3, 4}, f.Vector(1))
}

func positions(hits []Hit) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Position
	}
	return out
}
