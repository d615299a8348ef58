// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.yaml.in/yaml/v3"
)

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Manifest is the exported view of a snapshot.
type Manifest struct {
	Fingerprint string        `json:"fingerprint" yaml:"fingerprint"`
	Model       string        `json:"model" yaml:"model"`
	Dimension   int           `json:"dimension" yaml:"dimension"`
	Count       int           `json:"count" yaml:"count"`
	BuiltAt     time.Time     `json:"built_at" yaml:"built_at"`
	BuildID     string        `json:"build_id" yaml:"build_id"`
	Items       []ExportEntry `json:"items" yaml:"items"`
}

// ExportEntry is one corpus item, optionally with its embedding.
type ExportEntry struct {
	Position  int       `json:"position" yaml:"position"`
	Content   string    `json:"content" yaml:"content"`
	Embedding []float32 `json:"embedding,omitempty" yaml:"embedding,omitempty,flow"`
}

// NewManifest describes snap. Embeddings are included only when
// withVectors is set.
func NewManifest(snap *Snapshot, withVectors bool) Manifest {
	m := Manifest{
		Fingerprint: snap.Fingerprint,
		Model:       snap.Model,
		Dimension:   snap.Dim(),
		Count:       snap.Size(),
		BuiltAt:     snap.BuiltAt,
		BuildID:     snap.BuildID,
		Items:       make([]ExportEntry, len(snap.Items)),
	}
	for i, item := range snap.Items {
		m.Items[i] = ExportEntry{Position: item.Position, Content: item.Content}
		if withVectors {
			m.Items[i].Embedding = snap.Embeddings[i]
		}
	}
	return m
}

// Export writes snap to w in the given format.
func Export(w io.Writer, snap *Snapshot, format string, withVectors bool) error {
	m := NewManifest(snap, withVectors)

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatYAML, "":
		data, err = yaml.Marshal(&m)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
	case FormatJSON:
		data, err = json.MarshalIndent(&m, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		data = append(data, '\n')
	default:
		return fmt.Errorf("unsupported export format %q (want yaml or json)", format)
	}

	_, err = w.Write(data)
	return err
}
