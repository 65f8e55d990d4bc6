package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/KimYongKuk/commercial-analysis/pkg/embeddings"
	"github.com/KimYongKuk/commercial-analysis/pkg/logger"
	"github.com/KimYongKuk/commercial-analysis/pkg/vector"
)

// SupportedExtensions lists the file types the indexer reads as plain text.
var SupportedExtensions = []string{".txt", ".md"}

// IndexStats counts what one Index call did.
type IndexStats struct {
	Files   int
	Chunks  int
	Added   int
	Skipped int
}

// Indexer splits files into chunks, embeds them and stores them in a vector
// driver.
type Indexer struct {
	embedder embeddings.Embedder
	driver   vector.Driver
	splitter *Splitter
	logger   *slog.Logger
}

// NewIndexer returns an Indexer. A nil splitter uses NewSplitter.
func NewIndexer(e embeddings.Embedder, d vector.Driver, s *Splitter, log *slog.Logger) *Indexer {
	if s == nil {
		s = NewSplitter()
	}
	return &Indexer{embedder: e, driver: d, splitter: s, logger: logger.OrNop(log)}
}

// Index reads every supported file under paths. Directories are walked and
// files with other extensions are skipped there, but a file named directly
// must be supported. Chunks whose content is unchanged since the last run
// are not embedded again.
func (ix *Indexer) Index(ctx context.Context, paths ...string) (IndexStats, error) {
	var stats IndexStats

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return stats, err
		}

		if !info.IsDir() {
			if !supported(root) {
				return stats, fmt.Errorf("unsupported file type: %s", root)
			}
			if err := ix.indexFile(ctx, root, filepath.Base(root), &stats); err != nil {
				return stats, err
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !supported(path) {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = filepath.Base(path)
			}
			return ix.indexFile(ctx, path, filepath.ToSlash(rel), &stats)
		})
		if err != nil {
			return stats, err
		}
	}

	ix.logger.Info("indexed documents",
		"files", stats.Files,
		"chunks", stats.Chunks,
		"added", stats.Added,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

func (ix *Indexer) indexFile(ctx context.Context, path, source string, stats *IndexStats) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	chunks := ix.splitter.Split(string(raw))
	stats.Files++
	stats.Chunks += len(chunks)
	if err := ix.pruneFrom(ctx, source, len(chunks)); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]vector.Document, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = ChunkID(source, i)
		docs[i] = vector.Document{ID: ids[i], Source: source, Content: c, Hash: contentHash(c)}
	}

	existing, err := ix.driver.Get(ctx, ids)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", source, err)
	}
	stored := make(map[string]string, len(existing))
	for _, d := range existing {
		stored[d.ID] = d.Hash
	}

	var pending []vector.Document
	for _, d := range docs {
		if stored[d.ID] == d.Hash {
			stats.Skipped++
			continue
		}
		emb, err := ix.embedder.Embed(ctx, d.Content)
		if err != nil {
			return fmt.Errorf("embedding %s: %w", d.ID, err)
		}
		d.Embedding = emb
		pending = append(pending, d)
	}

	if err := ix.driver.Add(ctx, pending); err != nil {
		return fmt.Errorf("storing %s: %w", source, err)
	}
	stats.Added += len(pending)

	ix.logger.Debug("indexed file",
		"source", source,
		"chunks", len(chunks),
		"added", len(pending),
	)
	return nil
}

// pruneFrom deletes the chunks of source numbered n and up, left over from a
// longer earlier version of the file.
func (ix *Indexer) pruneFrom(ctx context.Context, source string, n int) error {
	var stale []string
	for i := n; ; i++ {
		found, err := ix.driver.Get(ctx, []string{ChunkID(source, i)})
		if err != nil {
			return fmt.Errorf("looking up %s: %w", source, err)
		}
		if len(found) == 0 {
			break
		}
		stale = append(stale, found[0].ID)
	}
	if len(stale) == 0 {
		return nil
	}

	if err := ix.driver.Delete(ctx, stale); err != nil {
		return fmt.Errorf("pruning %s: %w", source, err)
	}
	ix.logger.Debug("pruned stale chunks", "source", source, "count", len(stale))
	return nil
}

// ChunkID names chunk i of source.
func ChunkID(source string, i int) string {
	return source + "#" + strconv.Itoa(i)
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func supported(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}
