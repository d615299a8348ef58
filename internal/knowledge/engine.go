// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pdiddy/scamguard/internal/corpus"
	"github.com/pdiddy/scamguard/internal/embed"
	"github.com/pdiddy/scamguard/internal/watch"
	"github.com/pdiddy/scamguard/pkg/types"
)

// DefaultTopK is the number of matches returned when a caller passes k <= 0.
const DefaultTopK = 3

// State is the engine's readiness.
type State int

const (
	// Cold means no snapshot has ever been adopted.
	Cold State = iota
	// Ready means a snapshot is live.
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "cold"
}

// Config holds the engine's tunables.
type Config struct {
	CorpusPath  string
	Concurrency int
	Retrieval   types.RetrievalConfig
}

// RebuildOptions controls a single rebuild.
type RebuildOptions struct {
	// Force skips the cache lookup and re-embeds every item.
	Force bool
}

// RebuildResult describes the snapshot a rebuild adopted.
type RebuildResult struct {
	Snapshot  *Snapshot
	FromCache bool
	Duration  time.Duration
}

// Engine serves nearest-neighbor lookups from exactly one live snapshot.
// Rebuilds construct a complete new snapshot before swapping it in, so a
// concurrent Retrieve sees either the old snapshot or the new one.
type Engine struct {
	cfg      Config
	provider embed.Provider
	cache    Cache
	logger   *slog.Logger

	current atomic.Pointer[Snapshot]
}

// NewEngine returns a Cold engine. cache may be nil, in which case nothing
// is persisted.
func NewEngine(cfg Config, provider embed.Provider, cache Cache, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	return &Engine{cfg: cfg, provider: provider, cache: cache, logger: logger}
}

// State reports whether a snapshot is live.
func (e *Engine) State() State {
	if e.current.Load() == nil {
		return Cold
	}
	return Ready
}

// Snapshot returns the live snapshot, or nil when Cold.
func (e *Engine) Snapshot() *Snapshot { return e.current.Load() }

// Rebuild runs the load-or-build sequence: fingerprint the corpus, adopt
// the cached snapshot when its fingerprint and model match, otherwise embed
// every item, build the index and persist it. On any failure the previous
// snapshot stays live.
func (e *Engine) Rebuild(ctx context.Context, opts RebuildOptions) (*RebuildResult, error) {
	start := time.Now()

	src, err := corpus.Read(e.cfg.CorpusPath)
	if err != nil {
		e.logger.Error("rebuild aborted", "path", e.cfg.CorpusPath, "error", err)
		return nil, err
	}
	model := e.provider.ModelID()

	if !opts.Force {
		if snap := e.cached(ctx, src.Fingerprint, model); snap != nil {
			e.current.Store(snap)
			res := &RebuildResult{Snapshot: snap, FromCache: true, Duration: time.Since(start)}
			e.logger.Info("adopted cached snapshot",
				"items", snap.Size(), "fingerprint", short(snap.Fingerprint), "build_id", snap.BuildID)
			return res, nil
		}
	}

	var vectors [][]float32
	if len(src.Items) > 0 {
		vectors, err = embed.EmbedBatch(ctx, e.provider, contents(src.Items), e.cfg.Concurrency)
		if err != nil {
			e.logger.Error("rebuild aborted", "items", len(src.Items), "error", err)
			return nil, fmt.Errorf("embedding corpus: %w", err)
		}
	}

	snap, err := NewSnapshot(src.Fingerprint, model, src.Items, vectors)
	if err != nil {
		e.logger.Error("rebuild aborted", "error", err)
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Save(ctx, snap); err != nil {
			e.logger.Warn("saving cache failed; serving unsaved snapshot", "error", err)
		}
	}

	e.current.Store(snap)
	res := &RebuildResult{Snapshot: snap, Duration: time.Since(start)}
	e.logger.Info("rebuilt snapshot",
		"items", snap.Size(), "dim", snap.Dim(), "fingerprint", short(snap.Fingerprint),
		"build_id", snap.BuildID, "duration", res.Duration)
	return res, nil
}

// cached returns the stored snapshot if it matches fingerprint and model.
func (e *Engine) cached(ctx context.Context, fingerprint, model string) *Snapshot {
	if e.cache == nil {
		return nil
	}
	snap, err := e.cache.Load(ctx)
	switch {
	case errors.Is(err, ErrCacheCorrupt):
		e.logger.Warn("cache artifact unreadable; rebuilding", "error", err)
		return nil
	case err != nil:
		e.logger.Warn("loading cache failed; rebuilding", "error", err)
		return nil
	case snap == nil:
		return nil
	}
	if snap.Fingerprint != fingerprint {
		e.logger.Info("corpus changed since cache was built",
			"cached", short(snap.Fingerprint), "current", short(fingerprint))
		return nil
	}
	if snap.Model != model {
		e.logger.Info("embedding model changed since cache was built",
			"cached", snap.Model, "current", model)
		return nil
	}
	return snap
}

// Retrieve embeds query and returns the k nearest items, nearest first.
// A Cold engine or an empty corpus yields an empty result without calling
// the embedding provider. An embedding failure is returned to the caller
// and leaves the snapshot untouched.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) ([]types.Match, error) {
	snap := e.current.Load()
	if snap == nil || snap.Size() == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = e.cfg.Retrieval.TopK
	}

	vector, err := embed.EmbedOne(ctx, e.provider, query)
	if err != nil {
		return nil, err
	}

	hits, err := snap.Index.Search(vector, k)
	if err != nil {
		return nil, fmt.Errorf("searching snapshot %s: %w", snap.BuildID, err)
	}

	matches := make([]types.Match, 0, len(hits))
	for _, h := range hits {
		if limit := e.cfg.Retrieval.MaxDistance; limit > 0 && h.Distance > limit {
			break
		}
		matches = append(matches, types.Match{KnowledgeItem: snap.Items[h.Position], Distance: h.Distance})
	}
	return matches, nil
}

// Run rebuilds once per change received until ctx is done or changes is
// closed. Rebuild failures are logged and the previous snapshot keeps
// serving.
func (e *Engine) Run(ctx context.Context, changes <-chan watch.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			e.logger.Info("rebuilding after corpus change", "path", change.Path)
			if _, err := e.Rebuild(ctx, RebuildOptions{}); err != nil {
				e.logger.Warn("rebuild after change failed; previous snapshot still serving", "error", err)
			}
		}
	}
}

// Join concatenates match contents, one per line, nearest first.
func Join(matches []types.Match) string {
	return strings.Join(types.Contents(matches), "\n")
}

func contents(items []types.KnowledgeItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Content
	}
	return out
}

func short(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}
