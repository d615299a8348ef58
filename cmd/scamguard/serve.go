// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/scamguard/internal/admin"
	"github.com/pdiddy/scamguard/internal/assistant"
	"github.com/pdiddy/scamguard/internal/chat"
	"github.com/pdiddy/scamguard/internal/conversation"
	"github.com/pdiddy/scamguard/internal/knowledge"
	"github.com/pdiddy/scamguard/internal/llm"
	"github.com/pdiddy/scamguard/internal/usage"
	"github.com/pdiddy/scamguard/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assistant on the console with live corpus reloading",
	Long: `Serve loads the embedding cache (rebuilding it if the knowledge file has
changed), then answers questions typed on standard input:

  alice: What should I do about OTP requests?

Each answer is printed with a message ID. Rate an answer with +<id> or
-<id>, optionally preceded by the rater's name.

While serving, edits to the knowledge file trigger a rebuild, a usage
report is written to the log channel at every report boundary, and the
admin API listens on admin.addr for manual reloads.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	noWatch, _ := cmd.Flags().GetBool("no-watch")
	noStdin, _ := cmd.Flags().GetBool("no-stdin")
	logPath, _ := cmd.Flags().GetString("log-channel")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, _, err := newEngine(cfg)
	if err != nil {
		return err
	}
	model, err := llm.New(cfg.LanguageModel)
	if err != nil {
		return err
	}
	conv, err := conversation.New(cfg.Conversation)
	if err != nil {
		return err
	}
	stats := usage.New(cfg.Usage.TopQuestions)

	var logOut io.Writer = os.Stderr
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log channel: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	console := chat.NewConsole(os.Stdout, logOut, logger)

	asst := assistant.New(assistant.Config{
		TopK:               cfg.Retrieval.TopK,
		SummarizeThreshold: cfg.LanguageModel.SummarizeThreshold,
	}, engine, model, conv, stats, console, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if err := startEngine(gctx, g, engine, cfg.Corpus.Path, !noWatch); err != nil {
		return err
	}

	g.Go(func() error {
		stats.Run(gctx, cfg.Usage.ReportInterval, func(report string) {
			if err := console.Log(gctx, report); err != nil {
				logger.Warn("writing usage report failed", "error", err)
			}
		})
		return nil
	})

	if cfg.Admin.Addr != "" {
		srv := admin.New(cfg.Admin, engine, stats, logger)
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}

	if !noStdin {
		g.Go(func() error {
			defer stop()
			return console.Serve(gctx, os.Stdin, asst)
		})
	}

	return g.Wait()
}

// startEngine performs the initial load and, when watchCorpus is set, keeps
// the engine current with the corpus file. The watch is registered before the
// initial load so an edit made while it is embedding still triggers a rebuild.
func startEngine(ctx context.Context, g *errgroup.Group, engine *knowledge.Engine, corpusPath string, watchCorpus bool) error {
	var changes <-chan watch.Change
	if watchCorpus {
		w, err := watch.New(corpusPath, logger)
		if err != nil {
			return err
		}
		changes, err = w.Watch(ctx)
		if err != nil {
			w.Close()
			return err
		}
		logger.Info("monitoring corpus for changes", "path", w.Path())
		g.Go(func() error {
			engine.Run(ctx, changes)
			return w.Close()
		})
	}

	if _, err := engine.Rebuild(ctx, knowledge.RebuildOptions{}); err != nil {
		logger.Warn("initial load failed; answering with no knowledge until a rebuild succeeds", "error", err)
	}
	return nil
}

func init() {
	serveCmd.Flags().Bool("no-watch", false, "do not watch the knowledge file for changes")
	serveCmd.Flags().Bool("no-stdin", false, "do not read questions from standard input (admin API only)")
	serveCmd.Flags().String("log-channel", "", "append log-channel messages to this file (default: stderr)")

	rootCmd.AddCommand(serveCmd)
}
