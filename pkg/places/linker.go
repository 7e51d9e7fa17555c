// Package places links chunks to gazetteer places by scanning chunk text
// against the full place-name dictionary.
package places

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/argos-kg/argos/pkg/graph"
	"github.com/argos-kg/argos/pkg/metrics"
)

const (
	fetchPlacesQuery = `
MATCH (p:Place)
RETURN p.pleiadesId AS pid, p.title AS title, coalesce(p.altNames, []) AS alts
`
	fetchArticleIDsQuery = `
MATCH (a:Article)
WHERE a.articleId IS NOT NULL
RETURN a.articleId AS aid
ORDER BY aid
`
	fetchChunksQuery = `
MATCH (:Article {articleId: $aid})-[:HAS_CHUNK]->(c:Chunk)
RETURN c.chunkId AS cid, c.text AS text
ORDER BY c.seq
`
)

// provenance tag written on mention edges created by this linker.
const matchSource = "name-exact-boundary"

// Entry is one compiled dictionary entry: a place id, the literal name,
// and its boundary-anchored pattern.
type Entry struct {
	PlaceID string
	Name    string
	pattern *regexp.Regexp
}

// Matches reports whether the entry's name occurs in text on token
// boundaries, case-insensitively.
func (e *Entry) Matches(text string) bool {
	return e.pattern.MatchString(text)
}

// CompilePattern builds the boundary-anchored case-insensitive pattern for
// a place name. A match must not sit inside a larger alphanumeric token:
// "Us" matches "the US border" and "US." but not "Use" or "bUSy".
func CompilePattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|[^A-Za-z0-9_])` + regexp.QuoteMeta(name) + `([^A-Za-z0-9_]|$)`)
}

// Linker scans chunk text for place names and writes MENTIONS edges.
type Linker struct {
	store   graph.Store
	log     *slog.Logger
	metrics metrics.Collector
}

// NewLinker creates a linker. A nil collector disables metrics.
func NewLinker(store graph.Store, log *slog.Logger, collector metrics.Collector) *Linker {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &Linker{store: store, log: log, metrics: collector}
}

// LinkMentions loads the place-name dictionary once, then scans every
// article's chunks in seq order. All of one chunk's mention edges are
// written in a single transaction. The scan is O(chunks x names); the
// dictionary is bounded and this is a maintenance pass, not a hot path.
func (l *Linker) LinkMentions(ctx context.Context) error {
	started := time.Now()

	entries, err := l.loadDictionary(ctx)
	if err != nil {
		return err
	}
	l.log.Info("loaded place-name dictionary", "names", len(entries))

	articleIDs, err := l.fetchArticleIDs(ctx)
	if err != nil {
		return err
	}
	l.log.Info("scanning articles for place mentions", "articles", len(articleIDs))

	totalLinks, totalChunks := 0, 0
	for i, articleID := range articleIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunks, err := l.store.Query(ctx, fetchChunksQuery, map[string]any{"aid": articleID})
		if err != nil {
			l.log.Error("failed to fetch chunks, skipping article", "article", articleID, "error", err)
			l.metrics.RecordError(ctx, "link_places", "fetch")
			continue
		}

		articleLinks := 0
		for _, row := range chunks {
			cid, _ := row["cid"].(string)
			text, _ := row["text"].(string)
			if cid == "" || text == "" {
				continue
			}

			hits := scan(entries, text)
			if len(hits) == 0 {
				continue
			}
			if err := l.writeChunkMentions(ctx, cid, hits); err != nil {
				l.log.Error("mention write failed, skipping chunk", "chunk", cid, "error", err)
				l.metrics.RecordError(ctx, "link_places", "store")
				continue
			}
			articleLinks += len(hits)
			totalChunks++
		}
		totalLinks += articleLinks
		l.log.Info("article scanned", "article", articleID, "progress", fmt.Sprintf("%d/%d", i+1, len(articleIDs)), "links", articleLinks)
	}

	l.metrics.RecordOperation(ctx, "link_places", "ok", time.Since(started).Milliseconds())
	l.log.Info("place mentions linked", "links", totalLinks, "chunks", totalChunks, "articles", len(articleIDs))
	return nil
}

// loadDictionary fetches every place's title and alt-names and compiles
// the match patterns. Names under 3 runes are dropped; duplicates are
// collapsed case-insensitively per place.
func (l *Linker) loadDictionary(ctx context.Context) ([]Entry, error) {
	rows, err := l.store.Query(ctx, fetchPlacesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch places: %w", err)
	}

	var entries []Entry
	for _, row := range rows {
		pid, _ := row["pid"].(string)
		if pid == "" {
			continue
		}

		var names []string
		if title, _ := row["title"].(string); title != "" {
			names = append(names, title)
		}
		if alts, ok := row["alts"].([]any); ok {
			for _, a := range alts {
				if s, ok := a.(string); ok {
					names = append(names, s)
				}
			}
		}

		seen := make(map[string]struct{})
		for _, name := range names {
			name = strings.TrimSpace(name)
			if len([]rune(name)) < 3 {
				continue
			}
			lower := strings.ToLower(name)
			if _, ok := seen[lower]; ok {
				continue
			}
			seen[lower] = struct{}{}
			entries = append(entries, Entry{PlaceID: pid, Name: name, pattern: CompilePattern(name)})
		}
	}
	return entries, nil
}

func (l *Linker) fetchArticleIDs(ctx context.Context) ([]string, error) {
	rows, err := l.store.Query(ctx, fetchArticleIDsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article ids: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if aid, _ := row["aid"].(string); aid != "" {
			ids = append(ids, aid)
		}
	}
	return ids, nil
}

func scan(entries []Entry, text string) []Entry {
	var hits []Entry
	for i := range entries {
		if entries[i].Matches(text) {
			hits = append(hits, entries[i])
		}
	}
	return hits
}

func (l *Linker) writeChunkMentions(ctx context.Context, chunkID string, hits []Entry) error {
	chunkRef := graph.ChunkRef(chunkID)
	return l.store.Write(ctx, func(tx graph.Tx) error {
		for _, hit := range hits {
			err := tx.UpsertEdge(chunkRef, graph.PlaceRef(hit.PlaceID), graph.RelMentions, map[string]any{
				"matched": hit.Name,
				"source":  matchSource,
			}, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
