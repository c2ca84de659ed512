// Package main runs the wikiquery HTTP server: grounded question answering
// over a locally indexed Wikipedia dump.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/wikiquery/internal/agent"
	"github.com/bull/wikiquery/internal/archive"
	"github.com/bull/wikiquery/internal/completion"
	"github.com/bull/wikiquery/internal/config"
	"github.com/bull/wikiquery/internal/embedding"
	"github.com/bull/wikiquery/internal/httpapi"
	"github.com/bull/wikiquery/internal/index"
	"github.com/bull/wikiquery/internal/sectionizer"
	"github.com/bull/wikiquery/internal/store"
	"github.com/bull/wikiquery/internal/tokenizer"
	"github.com/bull/wikiquery/internal/wikidb"
)

func main() {
	cmd := &cobra.Command{
		Use:          "query-server",
		Short:        "Serve grounded Wikipedia question answering over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DumpPath == "" || cfg.ManifestPath == "" {
		return fmt.Errorf("dump_path and manifest_path are required")
	}
	if (cfg.StorePath == "") != (cfg.IndexPath == "") {
		return fmt.Errorf("store_path and index_path must be set together")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := buildCorpus(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("Corpus ready", "sections", c.store.RowCount())

	completer := completion.NewCompleter(c.client, cfg.CompletionModel)
	queryAgent := agent.New(c.db, completer, c.tok, cfg, logger)

	api := httpapi.New(queryAgent, c.store, cfg, logger)
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", cfg.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// corpus bundles the wired retrieval stack.
type corpus struct {
	db     *wikidb.DB
	store  *store.Store
	client *embedding.Client
	tok    *tokenizer.Tokenizer
}

// buildCorpus wires the dump reader, section store, and title search into a
// database, restoring a saved store/index pair when configured.
func buildCorpus(cfg *config.Config, logger *slog.Logger) (*corpus, error) {
	tok, err := tokenizer.New()
	if err != nil {
		return nil, err
	}
	sz, err := sectionizer.New(tok, cfg.MaxSectionTokens)
	if err != nil {
		return nil, err
	}

	client, err := embedding.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		return nil, err
	}
	embedder := embedding.NewEmbedder(client, cfg.EmbeddingModel, cfg.EmbeddingDimension, 0)

	var (
		ix *index.Index
		st *store.Store
	)
	if cfg.IndexPath != "" {
		ix, err = index.Load(cfg.IndexPath, embedder)
		if err != nil {
			return nil, fmt.Errorf("load index: %w", err)
		}
		if ix.Dimension() != embedder.Dimension() {
			return nil, fmt.Errorf("saved index has dimension %d, embedder is configured for %d",
				ix.Dimension(), embedder.Dimension())
		}
		st, err = store.Load(cfg.StorePath, sz, ix, logger)
		if err != nil {
			return nil, fmt.Errorf("load store: %w", err)
		}
		logger.Info("Restored saved corpus", "store", cfg.StorePath, "index", cfg.IndexPath)
	} else {
		ix = index.New(embedder, embedder.Dimension())
		st = store.New(sz, ix, logger)
	}

	archIndex, err := archive.OpenIndex(cfg.ManifestPath, cfg.ArchiveIndexCachePath, logger)
	if err != nil {
		return nil, fmt.Errorf("open archive index: %w", err)
	}
	reader := archive.NewReader(cfg.DumpPath, archIndex, logger)
	searcher := wikidb.NewMediaWikiSearcher(cfg.MediaWikiEndpoint)

	return &corpus{
		db:     wikidb.New(reader, st, searcher, logger),
		store:  st,
		client: client,
		tok:    tok,
	}, nil
}
