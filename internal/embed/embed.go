// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed turns text into fixed-length vectors through an external
// embedding model. Corpus items are embedded concurrently; live queries are
// embedded one at a time.
package embed

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrEmbeddingFailure marks any failed embedding request.
var ErrEmbeddingFailure = errors.New("embedding failure")

// DefaultConcurrency caps in-flight requests in EmbedBatch.
const DefaultConcurrency = 16

// Provider embeds a single text. Implementations must be safe for
// concurrent use.
type Provider interface {
	// ModelID identifies the model that produced the vectors, e.g.
	// "openai:text-embedding-3-small". Vectors from different models are
	// never mixed in one index.
	ModelID() string

	Embed(ctx context.Context, text string) ([]float32, error)
}

// Error reports which input failed. Position is -1 for a single query.
type Error struct {
	Position int
	Err      error
}

func (e *Error) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("embedding query: %v", e.Err)
	}
	return fmt.Sprintf("embedding item %d: %v", e.Position, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrEmbeddingFailure for every *Error.
func (e *Error) Is(target error) bool { return target == ErrEmbeddingFailure }

// EmbedOne embeds a live query.
func EmbedOne(ctx context.Context, p Provider, text string) ([]float32, error) {
	v, err := p.Embed(ctx, text)
	if err != nil {
		return nil, &Error{Position: -1, Err: err}
	}
	if len(v) == 0 {
		return nil, &Error{Position: -1, Err: errors.New("provider returned an empty vector")}
	}
	return v, nil
}

// EmbedBatch issues one request per text with at most concurrency in
// flight and returns vectors aligned with texts. The first failure cancels
// the remaining requests and fails the whole batch.
func EmbedBatch(ctx context.Context, p Provider, texts []string, concurrency int) ([][]float32, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			v, err := p.Embed(gctx, text)
			if err != nil {
				return &Error{Position: i, Err: err}
			}
			if len(v) == 0 {
				return &Error{Position: i, Err: errors.New("provider returned an empty vector")}
			}
			out[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
