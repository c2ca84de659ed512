// Package main builds a section store and embedding index from a seed title
// list, reading page source from the local dump, and saves both as a
// timestamped pair for the query server to restore.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/wikiquery/internal/archive"
	"github.com/bull/wikiquery/internal/config"
	"github.com/bull/wikiquery/internal/embedding"
	"github.com/bull/wikiquery/internal/index"
	"github.com/bull/wikiquery/internal/sectionizer"
	"github.com/bull/wikiquery/internal/store"
	"github.com/bull/wikiquery/internal/tokenizer"
	"github.com/bull/wikiquery/internal/wikidb"
)

// saveTimestamp matches the naming of earlier corpus builds so saved pairs
// sort chronologically.
const saveTimestamp = "01_02_2006_15_04_05"

func main() {
	var (
		seedPath string
		storeDir string
		indexDir string
	)

	cmd := &cobra.Command{
		Use:          "build-index",
		Short:        "Index seed pages from the dump and save the corpus",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(seedPath, storeDir, indexDir)
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed-titles", "", "file with one page title per line (required)")
	cmd.Flags().StringVar(&storeDir, "store-dir", "wikipedia_db_saves", "directory for saved section stores")
	cmd.Flags().StringVar(&indexDir, "index-dir", "index_saves", "directory for saved embedding indices")
	_ = cmd.MarkFlagRequired("seed-titles")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(seedPath, storeDir, indexDir string) error {
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	titles, err := readSeedTitles(seedPath)
	if err != nil {
		return err
	}
	logger.Info("Loaded seed titles", "count", len(titles))

	tok, err := tokenizer.New()
	if err != nil {
		return err
	}
	sz, err := sectionizer.New(tok, cfg.MaxSectionTokens)
	if err != nil {
		return err
	}
	client, err := embedding.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		return err
	}
	embedder := embedding.NewEmbedder(client, cfg.EmbeddingModel, cfg.EmbeddingDimension, 0)
	ix := index.New(embedder, embedder.Dimension())
	st := store.New(sz, ix, logger)

	archIndex, err := archive.OpenIndex(cfg.ManifestPath, cfg.ArchiveIndexCachePath, logger)
	if err != nil {
		return fmt.Errorf("open archive index: %w", err)
	}
	reader := archive.NewReader(cfg.DumpPath, archIndex, logger)
	db := wikidb.New(reader, st, nil, logger)

	indexed := 0
	for i, title := range titles {
		if err := ctx.Err(); err != nil {
			logger.Warn("Interrupted, saving what was indexed so far", "done", i, "total", len(titles))
			break
		}
		added, err := db.AddPage(ctx, title)
		if err != nil {
			logger.Warn("Failed to index page", "title", title, "error", err)
			continue
		}
		if added {
			indexed++
		}
		if (i+1)%100 == 0 {
			logger.Info("Indexing progress", "done", i+1, "total", len(titles), "sections", st.RowCount())
		}
	}
	logger.Info("Indexing finished", "pages", indexed, "sections", st.RowCount())

	return saveCorpus(db, storeDir, indexDir)
}

// saveCorpus writes the store and index under a shared timestamp so the pair
// stays associated.
func saveCorpus(db *wikidb.DB, storeDir, indexDir string) error {
	name := time.Now().Format(saveTimestamp)

	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	return db.Save(
		filepath.Join(storeDir, name+".db"),
		filepath.Join(indexDir, name+".gob"),
	)
}

func readSeedTitles(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed titles: %w", err)
	}
	defer f.Close()

	var titles []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if title := strings.TrimSpace(scanner.Text()); title != "" {
			titles = append(titles, title)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seed titles: %w", err)
	}
	return titles, nil
}
