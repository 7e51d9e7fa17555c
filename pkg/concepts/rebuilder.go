// Package concepts rebuilds Concept nodes from chunk text already in the
// graph. The rebuild is additive only: it merges new concepts and mention
// edges and never removes existing ones, even when a phrase would no longer
// qualify under the current thresholds.
package concepts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/argos-kg/argos/pkg/extract"
	"github.com/argos-kg/argos/pkg/graph"
	"github.com/argos-kg/argos/pkg/metrics"
)

const fetchChunksQuery = `
MATCH (c:Chunk)
RETURN c.chunkId AS cid, c.text AS text
`

// Rebuilder scans all chunk text for candidate concept phrases.
type Rebuilder struct {
	store     graph.Store
	extractor *extract.Extractor
	log       *slog.Logger
	metrics   metrics.Collector
}

// NewRebuilder creates a rebuilder. A nil collector disables metrics.
func NewRebuilder(store graph.Store, ex *extract.Extractor, log *slog.Logger, collector metrics.Collector) *Rebuilder {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &Rebuilder{store: store, extractor: ex, log: log, metrics: collector}
}

// accumulator carries pass 1's output into pass 2: global frequency per
// canonical phrase and the candidate set observed per chunk.
type accumulator struct {
	freq       map[string]int
	perChunk   map[string]map[string]struct{}
	chunkOrder []string
}

// Rebuild runs the two-pass rebuild: extract candidates and global
// frequencies, then write every concept meeting minGlobalFreq plus one
// MENTIONS edge per (chunk, kept phrase) pair.
func (r *Rebuilder) Rebuild(ctx context.Context, minGlobalFreq, maxTokens int) error {
	started := time.Now()

	rows, err := r.store.Query(ctx, fetchChunksQuery, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch chunks: %w", err)
	}
	r.log.Info("fetched chunks for concept rebuild", "chunks", len(rows))

	acc, err := r.collectCandidates(ctx, rows, maxTokens)
	if err != nil {
		return err
	}
	r.log.Info("candidate extraction finished", "unique_candidates", len(acc.freq))

	kept := keepFrequent(acc.freq, minGlobalFreq)
	r.log.Info("applying global frequency filter", "kept", len(kept), "min_freq", minGlobalFreq)

	if err := r.writeConcepts(ctx, kept); err != nil {
		return err
	}
	links, err := r.writeMentions(ctx, acc, kept)
	if err != nil {
		return err
	}

	r.metrics.RecordOperation(ctx, "rebuild_concepts", "ok", time.Since(started).Milliseconds())
	r.log.Info("concept rebuild finished", "concepts", len(kept), "links", links)
	return nil
}

// collectCandidates is pass 1. Extraction failures on single chunks are
// logged and skipped so one bad chunk cannot starve the frequency counts.
func (r *Rebuilder) collectCandidates(ctx context.Context, rows []map[string]any, maxTokens int) (*accumulator, error) {
	acc := &accumulator{
		freq:     make(map[string]int),
		perChunk: make(map[string]map[string]struct{}),
	}

	for idx, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cid, _ := row["cid"].(string)
		text, _ := row["text"].(string)
		if cid == "" {
			continue
		}
		acc.chunkOrder = append(acc.chunkOrder, cid)
		if text == "" {
			acc.perChunk[cid] = map[string]struct{}{}
			continue
		}

		candidates, err := r.extractor.Candidates(ctx, text, maxTokens)
		if err != nil {
			r.log.Warn("candidate extraction failed for chunk, skipping", "chunk", cid, "error", err)
			r.metrics.RecordError(ctx, "rebuild_concepts", "extract")
			acc.perChunk[cid] = map[string]struct{}{}
			continue
		}

		acc.perChunk[cid] = candidates
		for phrase := range candidates {
			acc.freq[phrase]++
		}

		if (idx+1)%500 == 0 {
			r.log.Info("candidate extraction progress", "processed", idx+1, "total", len(rows))
		}
	}
	return acc, nil
}

func keepFrequent(freq map[string]int, minGlobalFreq int) map[string]struct{} {
	kept := make(map[string]struct{})
	for phrase, count := range freq {
		if count >= minGlobalFreq {
			kept[phrase] = struct{}{}
		}
	}
	return kept
}

func (r *Rebuilder) writeConcepts(ctx context.Context, kept map[string]struct{}) error {
	names := make([]string, 0, len(kept))
	for name := range kept {
		names = append(names, name)
	}
	sort.Strings(names)

	return r.store.Write(ctx, func(tx graph.Tx) error {
		for _, name := range names {
			if err := tx.MergeNode(graph.ConceptRef(name), nil); err != nil {
				return fmt.Errorf("failed to merge concept %q: %w", name, err)
			}
		}
		return nil
	})
}

func (r *Rebuilder) writeMentions(ctx context.Context, acc *accumulator, kept map[string]struct{}) (int, error) {
	links := 0
	err := r.store.Write(ctx, func(tx graph.Tx) error {
		for _, cid := range acc.chunkOrder {
			chunkRef := graph.ChunkRef(cid)
			names := make([]string, 0)
			for phrase := range acc.perChunk[cid] {
				if _, ok := kept[phrase]; ok {
					names = append(names, phrase)
				}
			}
			sort.Strings(names)
			for _, name := range names {
				if err := tx.UpsertEdge(chunkRef, graph.ConceptRef(name), graph.RelMentions, nil, nil); err != nil {
					return fmt.Errorf("failed to link chunk %s to concept %q: %w", cid, name, err)
				}
				links++
				if links%1000 == 0 {
					r.log.Info("mention linking progress", "links", links)
				}
			}
		}
		return nil
	})
	return links, err
}
