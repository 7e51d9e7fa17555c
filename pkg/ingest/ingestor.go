// Package ingest materializes article, chunk, person and concept nodes in
// the graph from chunked article text. Every write is an idempotent upsert,
// so re-ingesting an article refreshes it without duplicating anything.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/argos-kg/argos/pkg/embedder"
	"github.com/argos-kg/argos/pkg/extract"
	"github.com/argos-kg/argos/pkg/graph"
	"github.com/argos-kg/argos/pkg/metrics"
	"github.com/argos-kg/argos/pkg/types"
)

// Ingestor writes one article's worth of chunks into the graph.
type Ingestor struct {
	store     graph.Store
	embedder  embedder.Client
	extractor *extract.Extractor
	log       *slog.Logger
	metrics   metrics.Collector
}

// NewIngestor creates an ingestor. A nil collector disables metrics.
func NewIngestor(store graph.Store, emb embedder.Client, ex *extract.Extractor, log *slog.Logger, collector metrics.Collector) *Ingestor {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &Ingestor{
		store:     store,
		embedder:  emb,
		extractor: ex,
		log:       log,
		metrics:   collector,
	}
}

// Ingest writes the article node, its authors, all chunks with embeddings
// and mentions, and the NEXT ordering chain. Every chunk must carry the
// meta's articleId; a mismatch is a precondition failure for the whole
// batch. A nil meta derives the article id from the chunks. A failure on one chunk is logged and does not abort the rest.
func (in *Ingestor) Ingest(ctx context.Context, chunks []types.ChunkRecord, meta *types.ArticleMeta) error {
	started := time.Now()

	if meta == nil {
		// No metadata file: the article node is keyed off the chunks alone.
		id, err := SingleArticleID(chunks)
		if err != nil {
			return err
		}
		meta = &types.ArticleMeta{ArticleID: id}
	}
	if meta.ArticleID == "" {
		return fmt.Errorf("article meta has no articleId")
	}
	for _, c := range chunks {
		if c.ArticleID != meta.ArticleID {
			return fmt.Errorf("chunk %s belongs to article %q, not %q", c.ChunkID, c.ArticleID, meta.ArticleID)
		}
	}

	articleRef := graph.ArticleRef(meta.ArticleID)
	if err := in.store.UpsertNode(ctx, articleRef, map[string]any{
		"title":   meta.Title,
		"year":    yearValue(meta.Year),
		"journal": meta.Journal,
		"url":     meta.URL,
	}); err != nil {
		return fmt.Errorf("failed to upsert article %s: %w", meta.ArticleID, err)
	}

	in.ingestAuthors(ctx, meta)

	// One batched call for all chunk embeddings. Vectors come back
	// unit-normalized from the embedder.
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embedStart := time.Now()
	embeddings, err := in.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d chunks for %s: %w", len(chunks), meta.ArticleID, err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}
	in.metrics.RecordStage(ctx, "ingest", "embed", time.Since(embedStart).Milliseconds())

	failed := 0
	for i, c := range chunks {
		if err := in.ingestChunk(ctx, articleRef, c, embeddings[i]); err != nil {
			in.log.Error("chunk failed, continuing", "article", meta.ArticleID, "chunk", c.ChunkID, "error", err)
			in.metrics.RecordError(ctx, "ingest", "chunk")
			failed++
		}
	}

	if err := in.linkNextChain(ctx, chunks); err != nil {
		return fmt.Errorf("failed to build NEXT chain for %s: %w", meta.ArticleID, err)
	}

	in.metrics.RecordOperation(ctx, "ingest", "ok", time.Since(started).Milliseconds())
	in.log.Info("ingested article",
		"article", meta.ArticleID,
		"chunks", len(chunks),
		"failed_chunks", failed,
		"authors", len(meta.Authors),
	)
	return nil
}

func (in *Ingestor) ingestAuthors(ctx context.Context, meta *types.ArticleMeta) {
	articleRef := graph.ArticleRef(meta.ArticleID)
	for idx, author := range meta.Authors {
		a := author
		if !a.Normalize(idx + 1) {
			in.log.Warn("author entry without name", "article", meta.ArticleID, "position", idx+1)
			continue
		}

		onCreate := map[string]any{
			"aliases": stringList(a.Aliases),
		}
		if a.ORCID != "" {
			onCreate["orcid"] = a.ORCID
		}
		if a.WikidataID != "" {
			onCreate["wikidataId"] = a.WikidataID
		}
		if a.Birth != "" {
			onCreate["birth"] = a.Birth
		}
		if a.Death != "" {
			onCreate["death"] = a.Death
		}

		personRef := graph.PersonRef(a.Name)
		err := in.store.Write(ctx, func(tx graph.Tx) error {
			if err := tx.MergeNode(personRef, onCreate); err != nil {
				return err
			}
			return tx.UpsertEdge(personRef, articleRef, graph.RelAuthored, map[string]any{
				"order":         a.Order,
				"role":          a.Role,
				"corresponding": a.Corresponding,
			}, nil)
		})
		if err != nil {
			in.log.Error("author failed, continuing", "article", meta.ArticleID, "author", a.Name, "error", err)
			in.metrics.RecordError(ctx, "ingest", "author")
		}
	}
}

func (in *Ingestor) ingestChunk(ctx context.Context, articleRef graph.Ref, c types.ChunkRecord, embedding []float32) error {
	chunkRef := graph.ChunkRef(c.ChunkID)

	err := in.store.Write(ctx, func(tx graph.Tx) error {
		if err := tx.UpsertNode(chunkRef, map[string]any{
			"seq":           c.Seq,
			"text":          c.Text,
			"textEmbedding": embedding,
		}); err != nil {
			return err
		}
		if err := tx.UpsertEdge(articleRef, chunkRef, graph.RelHasChunk, nil, nil); err != nil {
			return err
		}
		return tx.UpsertEdge(chunkRef, articleRef, graph.RelPartOf, nil, nil)
	})
	if err != nil {
		return err
	}

	mentions, err := in.extractor.Mentions(ctx, c.Text)
	if err != nil {
		return fmt.Errorf("mention extraction failed: %w", err)
	}

	return in.store.Write(ctx, func(tx graph.Tx) error {
		for _, name := range mentions.Persons {
			personRef := graph.PersonRef(name)
			if err := tx.MergeNode(personRef, map[string]any{"aliases": []string{}}); err != nil {
				return err
			}
			if err := tx.UpsertEdge(chunkRef, personRef, graph.RelMentions, nil, nil); err != nil {
				return err
			}
		}
		for _, name := range mentions.Concepts {
			conceptRef := graph.ConceptRef(name)
			if err := tx.MergeNode(conceptRef, nil); err != nil {
				return err
			}
			if err := tx.UpsertEdge(chunkRef, conceptRef, graph.RelMentions, nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// linkNextChain sorts chunks by seq ascending and writes one NEXT edge per
// adjacent pair.
func (in *Ingestor) linkNextChain(ctx context.Context, chunks []types.ChunkRecord) error {
	ordered := append([]types.ChunkRecord(nil), chunks...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	return in.store.Write(ctx, func(tx graph.Tx) error {
		for i := 0; i+1 < len(ordered); i++ {
			from := graph.ChunkRef(ordered[i].ChunkID)
			to := graph.ChunkRef(ordered[i+1].ChunkID)
			if err := tx.UpsertEdge(from, to, graph.RelNext, nil, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func yearValue(year *int) any {
	if year == nil {
		return nil
	}
	return *year
}

func stringList(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
