package concepts_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argos-kg/argos/pkg/concepts"
	"github.com/argos-kg/argos/pkg/extract"
	"github.com/argos-kg/argos/pkg/graph"
	"github.com/argos-kg/argos/pkg/logger"
)

func chunkRows(texts map[string]string, order []string) []map[string]any {
	rows := make([]map[string]any, 0, len(order))
	for _, cid := range order {
		rows = append(rows, map[string]any{"cid": cid, "text": texts[cid]})
	}
	return rows
}

func newRebuildFixture(t *testing.T, texts map[string]string, order []string, analyses map[string]*extract.Analysis) (*graph.MemStore, *concepts.Rebuilder) {
	t.Helper()
	store := graph.NewMemStore()
	for _, cid := range order {
		require.NoError(t, store.UpsertNode(context.Background(), graph.ChunkRef(cid), map[string]any{"text": texts[cid]}))
	}
	store.QueryFunc = func(cypher string, params map[string]any) ([]map[string]any, error) {
		return chunkRows(texts, order), nil
	}

	ex := extract.NewExtractor(&extract.MockRecognizer{Responses: analyses}, nil)
	log := logger.NewLogger(io.Discard, slog.LevelError)
	return store, concepts.NewRebuilder(store, ex, log, nil)
}

func TestRebuildFrequencyThreshold(t *testing.T) {
	texts := map[string]string{
		"c0": "t0", "c1": "t1", "c2": "t2",
	}
	order := []string{"c0", "c1", "c2"}
	analyses := map[string]*extract.Analysis{
		"t0": {NounPhrases: []string{"heliacal rising", "calendar reform"}},
		"t1": {NounPhrases: []string{"heliacal rising", "calendar reform"}},
		"t2": {NounPhrases: []string{"heliacal rising"}},
	}

	store, rebuilder := newRebuildFixture(t, texts, order, analyses)
	require.NoError(t, rebuilder.Rebuild(context.Background(), 3, 6))

	// Three chunks carry "heliacal rising", only two carry "calendar reform".
	assert.NotNil(t, store.Node(graph.ConceptRef("heliacal rising")))
	assert.Nil(t, store.Node(graph.ConceptRef("calendar reform")))
	assert.Equal(t, 1, store.NodeCount(graph.LabelConcept))

	for _, cid := range order {
		assert.True(t, store.HasEdge(graph.ChunkRef(cid), graph.ConceptRef("heliacal rising"), graph.RelMentions))
	}
	assert.Equal(t, 3, store.EdgeCount(graph.RelMentions))
}

func TestRebuildDuplicatesWithinChunkCountOnce(t *testing.T) {
	// The same phrase seen twice in one chunk contributes one occurrence.
	texts := map[string]string{"c0": "t0", "c1": "t1"}
	order := []string{"c0", "c1"}
	analyses := map[string]*extract.Analysis{
		"t0": {NounPhrases: []string{"lunar mansion", `"lunar mansion"`}},
		"t1": {NounPhrases: []string{"lunar mansion"}},
	}

	store, rebuilder := newRebuildFixture(t, texts, order, analyses)
	require.NoError(t, rebuilder.Rebuild(context.Background(), 3, 6))
	assert.Nil(t, store.Node(graph.ConceptRef("lunar mansion")))
}

func TestRebuildIsAdditive(t *testing.T) {
	texts := map[string]string{"c0": "t0"}
	order := []string{"c0"}
	analyses := map[string]*extract.Analysis{"t0": {NounPhrases: []string{"short phrase"}}}

	store, rebuilder := newRebuildFixture(t, texts, order, analyses)
	require.NoError(t, store.MergeNode(context.Background(), graph.ConceptRef("old concept"), nil))

	require.NoError(t, rebuilder.Rebuild(context.Background(), 1, 6))

	// A concept from an earlier run survives even though nothing mentions it.
	assert.NotNil(t, store.Node(graph.ConceptRef("old concept")))
	assert.NotNil(t, store.Node(graph.ConceptRef("short phrase")))
}

func TestRebuildIdempotent(t *testing.T) {
	texts := map[string]string{"c0": "t0"}
	order := []string{"c0"}
	analyses := map[string]*extract.Analysis{"t0": {NounPhrases: []string{"zodiacal sign"}}}

	store, rebuilder := newRebuildFixture(t, texts, order, analyses)
	require.NoError(t, rebuilder.Rebuild(context.Background(), 1, 6))

	nodes := store.NodeCount("")
	edges := store.EdgeCount("")
	require.NoError(t, rebuilder.Rebuild(context.Background(), 1, 6))
	assert.Equal(t, nodes, store.NodeCount(""))
	assert.Equal(t, edges, store.EdgeCount(""))
}

func TestRebuildChunkWithoutCandidates(t *testing.T) {
	texts := map[string]string{"c0": "t0", "c1": "t1"}
	order := []string{"c0", "c1"}
	analyses := map[string]*extract.Analysis{
		"t1": {NounPhrases: []string{"good phrase"}},
	}

	store, rebuilder := newRebuildFixture(t, texts, order, analyses)
	require.NoError(t, rebuilder.Rebuild(context.Background(), 1, 6))
	assert.NotNil(t, store.Node(graph.ConceptRef("good phrase")))
	assert.True(t, store.HasEdge(graph.ChunkRef("c1"), graph.ConceptRef("good phrase"), graph.RelMentions))
	assert.False(t, store.HasEdge(graph.ChunkRef("c0"), graph.ConceptRef("good phrase"), graph.RelMentions))
}
