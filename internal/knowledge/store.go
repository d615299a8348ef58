// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/scamguard/internal/index"
	"github.com/pdiddy/scamguard/pkg/types"
)

// ErrCacheCorrupt marks a cache artifact that exists but cannot be decoded
// into a consistent snapshot. Callers treat it as a cache miss.
var ErrCacheCorrupt = errors.New("cache artifact corrupt")

// formatVersion is bumped whenever the schema below changes shape.
const formatVersion = 1

const lockRetryDelay = 50 * time.Millisecond

// Cache persists and restores snapshots.
type Cache interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// Store keeps one snapshot in a single SQLite file. Saves build a fresh
// database next to the target and rename it into place, so a reader sees
// either the previous artifact or the new one.
type Store struct {
	path string
}

// NewStore returns a store backed by the file at path. The file is not
// touched until the first Load or Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the artifact location.
func (s *Store) Path() string { return s.path }

func (s *Store) lockPath() string { return s.path + ".lock" }

var schema = []string{
	`CREATE TABLE meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		format INTEGER NOT NULL,
		fingerprint TEXT NOT NULL,
		model TEXT NOT NULL,
		dim INTEGER NOT NULL,
		count INTEGER NOT NULL,
		built_at TEXT NOT NULL,
		build_id TEXT NOT NULL
	)`,
	`CREATE TABLE items (
		position INTEGER PRIMARY KEY,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL
	)`,
}

// Save writes snap, replacing any prior artifact. It holds an exclusive
// lock on the artifact for the duration of the write.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	if err := snap.validate(); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	lock := flock.New(s.lockPath())
	if _, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("locking cache: %w", err)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary cache file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := writeSnapshot(ctx, tmpPath, snap); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing cache artifact: %w", err)
	}
	return nil
}

func writeSnapshot(ctx context.Context, path string, snap *Snapshot) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("opening cache database: %w", err)
	}
	defer db.Close()

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating cache schema: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO meta (id, format, fingerprint, model, dim, count, built_at, build_id)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
		formatVersion, snap.Fingerprint, snap.Model, snap.Dim(), snap.Size(),
		snap.BuiltAt.UTC().Format(time.RFC3339Nano), snap.BuildID,
	)
	if err != nil {
		return fmt.Errorf("writing cache metadata: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items (position, content, embedding) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range snap.Items {
		blob, err := encodeVector(snap.Embeddings[i])
		if err != nil {
			return fmt.Errorf("encoding embedding %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, item.Position, item.Content, blob); err != nil {
			return fmt.Errorf("inserting item %d: %w", item.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cache: %w", err)
	}
	return db.Close()
}

// Load restores the saved snapshot. A missing artifact returns (nil, nil).
// An artifact that cannot be decoded returns an error wrapping
// ErrCacheCorrupt.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}

	lock := flock.New(s.lockPath())
	if _, err := lock.TryRLockContext(ctx, lockRetryDelay); err != nil {
		return nil, fmt.Errorf("locking cache: %w", err)
	}
	defer lock.Unlock()

	snap, err := readSnapshot(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCacheCorrupt, s.path, err)
	}
	return snap, nil
}

func readSnapshot(ctx context.Context, path string) (*Snapshot, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var (
		format  int
		dim     int
		count   int
		builtAt string
		snap    Snapshot
	)
	err = db.QueryRowContext(ctx,
		`SELECT format, fingerprint, model, dim, count, built_at, build_id FROM meta WHERE id = 1`,
	).Scan(&format, &snap.Fingerprint, &snap.Model, &dim, &count, &builtAt, &snap.BuildID)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	if format != formatVersion {
		return nil, fmt.Errorf("unsupported format %d", format)
	}
	if snap.BuiltAt, err = time.Parse(time.RFC3339Nano, builtAt); err != nil {
		return nil, fmt.Errorf("parsing build time: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT position, content, embedding FROM items ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("reading items: %w", err)
	}
	defer rows.Close()

	snap.Items = make([]types.KnowledgeItem, 0, count)
	snap.Embeddings = make([][]float32, 0, count)
	for rows.Next() {
		var (
			item types.KnowledgeItem
			blob []byte
		)
		if err := rows.Scan(&item.Position, &item.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		if item.Position != len(snap.Items) {
			return nil, fmt.Errorf("item position %d out of sequence", item.Position)
		}
		v, err := decodeVector(blob, dim)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding %d: %w", item.Position, err)
		}
		snap.Items = append(snap.Items, item)
		snap.Embeddings = append(snap.Embeddings, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	if len(snap.Items) != count {
		return nil, fmt.Errorf("metadata claims %d items, found %d", count, len(snap.Items))
	}

	if snap.Index, err = index.NewFlat(snap.Embeddings); err != nil {
		return nil, err
	}
	return &snap, nil
}

// encodeVector packs v as little-endian float32.
func encodeVector(v []float32) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(4 * len(v))
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeVector(blob []byte, dim int) ([]float32, error) {
	if dim <= 0 || len(blob) != 4*dim {
		return nil, fmt.Errorf("blob of %d bytes does not hold %d float32 values", len(blob), dim)
	}
	v := make([]float32, dim)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return v, nil
}
