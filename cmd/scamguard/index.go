// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/scamguard/internal/knowledge"
	"github.com/pdiddy/scamguard/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the embedding cache (build, query, export)",
	Long: `Index operates on the embedding cache directly, without starting the
assistant. Use subcommands to build the cache from the knowledge file, run
a nearest-neighbor query against it, or export its contents.`,
}

// --- build subcommand ---

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Load or rebuild the embedding cache",
	Long: `Build fingerprints the knowledge file and reuses the cached embeddings
when neither the file nor the embedding model has changed. Otherwise every
line is embedded again and the cache is rewritten. --force always
re-embeds.`,
	RunE: runIndexBuild,
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, store, err := newEngine(cfg)
	if err != nil {
		return err
	}

	res, err := engine.Rebuild(cmd.Context(), knowledge.RebuildOptions{Force: force})
	if err != nil {
		return err
	}
	printBuildSummary(os.Stdout, res, store.Path())
	return nil
}

func printBuildSummary(w io.Writer, res *knowledge.RebuildResult, cachePath string) {
	snap := res.Snapshot
	source := "rebuilt"
	if res.FromCache {
		source = "loaded from cache"
	}
	fmt.Fprintf(w, "%s %s\n", source, cachePath)
	fmt.Fprintf(w, "  items:       %d\n", snap.Size())
	fmt.Fprintf(w, "  dimension:   %d\n", snap.Dim())
	fmt.Fprintf(w, "  model:       %s\n", snap.Model)
	fmt.Fprintf(w, "  fingerprint: %s\n", snap.Fingerprint)
	fmt.Fprintf(w, "  build id:    %s\n", snap.BuildID)
	fmt.Fprintf(w, "  duration:    %s\n", res.Duration.Round(time.Millisecond))
}

// --- query subcommand ---

var indexQueryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Show the knowledge lines nearest to a question",
	Long: `Query embeds the question and prints the closest knowledge lines,
nearest first, with their squared distances. The cache is loaded (or
rebuilt) first, exactly as serve would.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndexQuery,
}

func runIndexQuery(cmd *cobra.Command, args []string) error {
	k, _ := cmd.Flags().GetInt("k")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, _, err := newEngine(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := engine.Rebuild(ctx, knowledge.RebuildOptions{}); err != nil {
		return err
	}

	matches, err := engine.Retrieve(ctx, strings.Join(args, " "), k)
	if err != nil {
		return err
	}
	return formatQueryOutput(os.Stdout, matches, jsonOutput)
}

func formatQueryOutput(w io.Writer, matches []types.Match, jsonOutput bool) error {
	if jsonOutput {
		if matches == nil {
			matches = []types.Match{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	if len(matches) == 0 {
		fmt.Fprintln(w, "No internal information found.")
		return nil
	}

	fmt.Fprintf(w, "%-4s  %-8s  %-10s  %s\n", "Rank", "Line", "Distance", "Content")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for i, m := range matches {
		content := m.Content
		if runes := []rune(content); len(runes) > 52 {
			content = string(runes[:49]) + "..."
		}
		fmt.Fprintf(w, "%-4d  %-8d  %-10.4f  %s\n", i+1, m.Position+1, m.Distance, content)
	}
	fmt.Fprintf(w, "\n%d results\n", len(matches))
	return nil
}

// --- export subcommand ---

var indexExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the cached snapshot to YAML or JSON",
	Long: `Export reads the cache artifact as it is on disk, without contacting the
embedding provider, and writes its metadata and items to stdout or
--output. Use --vectors to include the embeddings.`,
	RunE: runIndexExport,
}

func runIndexExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	withVectors, _ := cmd.Flags().GetBool("vectors")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	snap, err := loadCached(cmd.Context(), cfg.Cache.Path)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	if err := knowledge.Export(w, snap, format, withVectors); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "Exported %d items to %s\n", snap.Size(), output)
	}
	return nil
}

func loadCached(ctx context.Context, path string) (*knowledge.Snapshot, error) {
	snap, err := knowledge.NewStore(path).Load(ctx)
	if errors.Is(err, knowledge.ErrCacheCorrupt) {
		return nil, fmt.Errorf("%w; run \"scamguard index build\" to recreate it", err)
	}
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("no cache at %s; run \"scamguard index build\" first", path)
	}
	return snap, nil
}

func init() {
	indexBuildCmd.Flags().Bool("force", false, "re-embed every line even if the cache is current")

	indexQueryCmd.Flags().Int("k", knowledge.DefaultTopK, "number of nearest lines to show")
	indexQueryCmd.Flags().Bool("json", false, "output results as JSON")

	indexExportCmd.Flags().String("format", knowledge.FormatYAML, "export format: yaml or json")
	indexExportCmd.Flags().String("output", "", "write to this file instead of stdout")
	indexExportCmd.Flags().Bool("vectors", false, "include embedding vectors")

	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexQueryCmd)
	indexCmd.AddCommand(indexExportCmd)

	rootCmd.AddCommand(indexCmd)
}
