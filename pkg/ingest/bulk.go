package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// BulkResult tallies one bulk-ingest run.
type BulkResult struct {
	Ingested        int
	SkippedNoChunks int
	SkippedBad      int
}

// IngestAll ingests every article that has a <articleId>.meta.json file in
// metaDir and a matching chunks JSONL in chunksDir. A failure on one
// article is logged and does not stop the others.
func (in *Ingestor) IngestAll(ctx context.Context, metaDir, chunksDir string) (*BulkResult, error) {
	metaFiles, err := filepath.Glob(filepath.Join(metaDir, "*.meta.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan meta dir: %w", err)
	}
	if len(metaFiles) == 0 {
		return nil, fmt.Errorf("no *.meta.json files found in %s", metaDir)
	}
	sort.Strings(metaFiles)

	runID := uuid.NewString()
	log := in.log.With("run", runID)
	log.Info("starting bulk ingest", "meta_dir", metaDir, "chunks_dir", chunksDir, "articles", len(metaFiles))

	result := &BulkResult{}
	for _, metaPath := range metaFiles {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		meta, err := LoadMeta(metaPath)
		if err != nil {
			log.Warn("skipping unreadable meta", "file", filepath.Base(metaPath), "error", err)
			result.SkippedBad++
			continue
		}
		if meta.ArticleID == "" {
			log.Warn("skipping meta without articleId", "file", filepath.Base(metaPath))
			result.SkippedBad++
			continue
		}

		chunksPath, err := findChunksFile(chunksDir, meta.ArticleID, log)
		if err != nil {
			log.Warn("skipping article without chunks", "article", meta.ArticleID, "error", err)
			result.SkippedNoChunks++
			continue
		}

		chunks, err := ReadChunks(chunksPath, log)
		if err != nil {
			log.Warn("skipping unreadable chunks", "article", meta.ArticleID, "file", filepath.Base(chunksPath), "error", err)
			result.SkippedBad++
			continue
		}

		chunksArticleID, err := SingleArticleID(chunks)
		if err != nil {
			log.Warn("skipping inconsistent chunks", "file", filepath.Base(chunksPath), "error", err)
			result.SkippedBad++
			continue
		}
		if chunksArticleID != meta.ArticleID {
			log.Warn("skipping meta/chunks mismatch",
				"meta_article", meta.ArticleID, "chunks_article", chunksArticleID)
			result.SkippedBad++
			continue
		}

		if err := in.Ingest(ctx, chunks, meta); err != nil {
			log.Error("article ingest failed, continuing", "article", meta.ArticleID, "error", err)
			result.SkippedBad++
			continue
		}
		result.Ingested++
	}

	log.Info("bulk ingest finished",
		"ingested", result.Ingested,
		"skipped_no_chunks", result.SkippedNoChunks,
		"skipped_bad", result.SkippedBad,
	)
	return result, nil
}

// findChunksFile prefers <articleId>.jsonl; failing that, any *.jsonl whose
// filename contains the articleId. Multiple fallback matches use the first
// with a warning.
func findChunksFile(chunksDir, articleID string, log *slog.Logger) (string, error) {
	direct := filepath.Join(chunksDir, articleID+".jsonl")
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}

	all, err := filepath.Glob(filepath.Join(chunksDir, "*.jsonl"))
	if err != nil {
		return "", err
	}
	var matches []string
	for _, p := range all {
		if strings.Contains(filepath.Base(p), articleID) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no chunks JSONL for %s in %s", articleID, chunksDir)
	}
	if len(matches) > 1 {
		log.Warn("multiple chunk files match, using first", "article", articleID, "using", filepath.Base(matches[0]), "count", len(matches))
	}
	return matches[0], nil
}
