// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corpus reads the knowledge source file and fingerprints its bytes.
package corpus

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pdiddy/scamguard/pkg/types"
)

// ErrCorpusUnavailable is returned when the corpus file cannot be read.
var ErrCorpusUnavailable = errors.New("corpus unavailable")

// Source is the raw content of the corpus file together with its digest
// and parsed items. Items and Fingerprint are derived from the same bytes.
type Source struct {
	Path        string
	Fingerprint string
	Items       []types.KnowledgeItem
}

// Read loads path once and returns its items and fingerprint.
func Read(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrCorpusUnavailable, path, err)
	}
	return &Source{
		Path:        path,
		Fingerprint: Fingerprint(data),
		Items:       Parse(data),
	}, nil
}

// Load returns the trimmed, non-blank lines of path in file order.
func Load(path string) ([]types.KnowledgeItem, error) {
	src, err := Read(path)
	if err != nil {
		return nil, err
	}
	return src.Items, nil
}

// Parse splits data into knowledge items. Blank lines are skipped and do
// not consume a position.
func Parse(data []byte) []types.KnowledgeItem {
	var items []types.KnowledgeItem
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		items = append(items, types.KnowledgeItem{
			Position: len(items),
			Content:  line,
		})
	}
	return items
}

// Fingerprint returns the hex SHA-256 digest of data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintFile digests the current bytes of path.
func FingerprintFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", ErrCorpusUnavailable, path, err)
	}
	return Fingerprint(data), nil
}
