package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/argos-kg/argos/pkg/types"
)

// ReadChunks reads a chunks JSONL file. Blank lines are ignored; malformed
// lines are logged with their line number and skipped.
func ReadChunks(path string, log *slog.Logger) ([]types.ChunkRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunks file: %w", err)
	}
	defer f.Close()

	var chunks []types.ChunkRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk types.ChunkRecord
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			log.Warn("skipping bad JSON line", "file", path, "line", lineNo, "error", err)
			continue
		}
		chunks = append(chunks, chunk)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return chunks, nil
}

// LoadMeta reads one article metadata JSON file.
func LoadMeta(path string) (*types.ArticleMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read meta file: %w", err)
	}
	var meta types.ArticleMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse meta file %s: %w", path, err)
	}
	return &meta, nil
}

// SingleArticleID returns the one articleId shared by all chunks, or an
// error when the set of ids is empty or mixed.
func SingleArticleID(chunks []types.ChunkRecord) (string, error) {
	ids := make(map[string]struct{})
	for _, c := range chunks {
		if c.ArticleID != "" {
			ids[c.ArticleID] = struct{}{}
		}
	}
	if len(ids) != 1 {
		found := make([]string, 0, len(ids))
		for id := range ids {
			found = append(found, id)
		}
		return "", fmt.Errorf("expected exactly 1 articleId in chunks, found %d %v", len(ids), found)
	}
	for id := range ids {
		return id, nil
	}
	return "", nil
}
