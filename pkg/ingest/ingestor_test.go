package ingest_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argos-kg/argos/pkg/embedder"
	"github.com/argos-kg/argos/pkg/extract"
	"github.com/argos-kg/argos/pkg/graph"
	"github.com/argos-kg/argos/pkg/ingest"
	"github.com/argos-kg/argos/pkg/logger"
	"github.com/argos-kg/argos/pkg/types"
)

func testLogger() *slog.Logger {
	return logger.NewLogger(io.Discard, slog.LevelError)
}

func newTestIngestor(store graph.Store, recognizer *extract.MockRecognizer) *ingest.Ingestor {
	ex := extract.NewExtractor(recognizer, nil)
	return ingest.NewIngestor(store, embedder.NewMockEmbedder(8), ex, testLogger(), nil)
}

func TestIngestArticle(t *testing.T) {
	chunk1 := "Plato discusses the Decans at length."
	chunk2 := "A later chapter returns to the houses."
	chunks := []types.ChunkRecord{
		{ArticleID: "a1", ChunkID: "a1-c0", Seq: 0, Text: chunk1},
		{ArticleID: "a1", ChunkID: "a1-c1", Seq: 1, Text: chunk2},
	}
	year := 1959
	meta := &types.ArticleMeta{
		ArticleID: "a1",
		Title:     "The Decans Revisited",
		Year:      &year,
		Journal:   "Centaurus",
		Authors: []types.Author{
			{Name: "Jane Doe", Corresponding: true},
		},
	}

	recognizer := &extract.MockRecognizer{
		Responses: map[string]*extract.Analysis{
			chunk1: {Entities: []extract.Span{{Text: "Plato", Label: "PERSON"}}},
			chunk2: {},
		},
	}

	store := graph.NewMemStore()
	ingestor := newTestIngestor(store, recognizer)
	require.NoError(t, ingestor.Ingest(context.Background(), chunks, meta))

	article := store.Node(graph.ArticleRef("a1"))
	require.NotNil(t, article)
	assert.Equal(t, "The Decans Revisited", article["title"])
	assert.Equal(t, 1959, article["year"])
	assert.Equal(t, "Centaurus", article["journal"])

	assert.Equal(t, 2, store.NodeCount(graph.LabelChunk))
	c0 := store.Node(graph.ChunkRef("a1-c0"))
	require.NotNil(t, c0)
	assert.Equal(t, 0, c0["seq"])
	assert.Equal(t, chunk1, c0["text"])
	assert.NotNil(t, c0["textEmbedding"])

	assert.True(t, store.HasEdge(graph.ArticleRef("a1"), graph.ChunkRef("a1-c0"), graph.RelHasChunk))
	assert.True(t, store.HasEdge(graph.ChunkRef("a1-c0"), graph.ArticleRef("a1"), graph.RelPartOf))
	assert.True(t, store.HasEdge(graph.ChunkRef("a1-c0"), graph.ChunkRef("a1-c1"), graph.RelNext))

	// Jane Doe is an author, Plato only a mention; both become persons.
	assert.Equal(t, 2, store.NodeCount(graph.LabelPerson))
	authored := store.Edge(graph.PersonRef("Jane Doe"), graph.ArticleRef("a1"), graph.RelAuthored)
	require.NotNil(t, authored)
	assert.Equal(t, 1, authored["order"])
	assert.Equal(t, "author", authored["role"])
	assert.Equal(t, true, authored["corresponding"])
	assert.True(t, store.HasEdge(graph.ChunkRef("a1-c0"), graph.PersonRef("Plato"), graph.RelMentions))
	assert.False(t, store.HasEdge(graph.ChunkRef("a1-c1"), graph.PersonRef("Plato"), graph.RelMentions))

	// Allowlist concepts found in chunk text.
	assert.NotNil(t, store.Node(graph.ConceptRef("Decans")))
	assert.NotNil(t, store.Node(graph.ConceptRef("Houses")))
	assert.True(t, store.HasEdge(graph.ChunkRef("a1-c0"), graph.ConceptRef("Decans"), graph.RelMentions))
	assert.True(t, store.HasEdge(graph.ChunkRef("a1-c1"), graph.ConceptRef("Houses"), graph.RelMentions))
}

func TestIngestIdempotent(t *testing.T) {
	chunks := []types.ChunkRecord{
		{ArticleID: "a1", ChunkID: "a1-c0", Seq: 0, Text: "alpha"},
		{ArticleID: "a1", ChunkID: "a1-c1", Seq: 1, Text: "beta"},
	}
	meta := &types.ArticleMeta{
		ArticleID: "a1",
		Title:     "Twice Over",
		Authors:   []types.Author{{Name: "Jane Doe"}},
	}

	store := graph.NewMemStore()
	ingestor := newTestIngestor(store, &extract.MockRecognizer{})
	require.NoError(t, ingestor.Ingest(context.Background(), chunks, meta))

	nodesBefore := store.NodeCount("")
	edgesBefore := store.EdgeCount("")

	require.NoError(t, ingestor.Ingest(context.Background(), chunks, meta))
	assert.Equal(t, nodesBefore, store.NodeCount(""))
	assert.Equal(t, edgesBefore, store.EdgeCount(""))
}

func TestIngestNextChainOrdering(t *testing.T) {
	// Out-of-order input still chains by seq.
	chunks := []types.ChunkRecord{
		{ArticleID: "a1", ChunkID: "c2", Seq: 2, Text: "c"},
		{ArticleID: "a1", ChunkID: "c0", Seq: 0, Text: "a"},
		{ArticleID: "a1", ChunkID: "c3", Seq: 3, Text: "d"},
		{ArticleID: "a1", ChunkID: "c1", Seq: 1, Text: "b"},
	}
	meta := &types.ArticleMeta{ArticleID: "a1"}

	store := graph.NewMemStore()
	ingestor := newTestIngestor(store, &extract.MockRecognizer{})
	require.NoError(t, ingestor.Ingest(context.Background(), chunks, meta))

	assert.Equal(t, 3, store.EdgeCount(graph.RelNext))
	assert.True(t, store.HasEdge(graph.ChunkRef("c0"), graph.ChunkRef("c1"), graph.RelNext))
	assert.True(t, store.HasEdge(graph.ChunkRef("c1"), graph.ChunkRef("c2"), graph.RelNext))
	assert.True(t, store.HasEdge(graph.ChunkRef("c2"), graph.ChunkRef("c3"), graph.RelNext))
	assert.False(t, store.HasEdge(graph.ChunkRef("c3"), graph.ChunkRef("c0"), graph.RelNext))
}

func TestIngestArticleIDMismatch(t *testing.T) {
	chunks := []types.ChunkRecord{
		{ArticleID: "a2", ChunkID: "c0", Seq: 0, Text: "stray"},
	}
	meta := &types.ArticleMeta{ArticleID: "a1"}

	store := graph.NewMemStore()
	ingestor := newTestIngestor(store, &extract.MockRecognizer{})
	err := ingestor.Ingest(context.Background(), chunks, meta)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to article")
	assert.Equal(t, 0, store.NodeCount(graph.LabelArticle))
}

func TestIngestNilMetaDerivesArticle(t *testing.T) {
	chunks := []types.ChunkRecord{
		{ArticleID: "a9", ChunkID: "c0", Seq: 0, Text: "solo"},
	}

	store := graph.NewMemStore()
	ingestor := newTestIngestor(store, &extract.MockRecognizer{})
	require.NoError(t, ingestor.Ingest(context.Background(), chunks, nil))
	assert.NotNil(t, store.Node(graph.ArticleRef("a9")))
}

func TestIngestAuthorExistingPersonKept(t *testing.T) {
	// The author merge must not overwrite a person created earlier.
	store := graph.NewMemStore()
	require.NoError(t, store.MergeNode(context.Background(), graph.PersonRef("Jane Doe"), map[string]any{
		"aliases": []string{"J. Doe"},
	}))

	meta := &types.ArticleMeta{ArticleID: "a1", Authors: []types.Author{{Name: "Jane Doe"}}}
	ingestor := newTestIngestor(store, &extract.MockRecognizer{})
	require.NoError(t, ingestor.Ingest(context.Background(), nil, meta))

	person := store.Node(graph.PersonRef("Jane Doe"))
	require.NotNil(t, person)
	assert.Equal(t, []string{"J. Doe"}, person["aliases"])
}
