package gazetteer_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argos-kg/argos/pkg/gazetteer"
	"github.com/argos-kg/argos/pkg/graph"
	"github.com/argos-kg/argos/pkg/logger"
)

func newTestImporter(store graph.Store) *gazetteer.Importer {
	return gazetteer.NewImporter(store, logger.NewLogger(io.Discard, slog.LevelError), nil)
}

func TestImportPlaces(t *testing.T) {
	data := `[
  {"id": "1", "title": "Roma", "connectsWith": ["https://pleiades.stoa.org/places/2"]},
  {"id": "2", "title": "Ostia"},
  {"title": "no identifier here"}
]`
	store := graph.NewMemStore()
	importer := newTestImporter(store)

	result, err := importer.ImportPlaces(context.Background(), stringReader(data))
	require.NoError(t, err)

	assert.Equal(t, gazetteer.ShapeArray, result.Shape)
	assert.Equal(t, 2, result.Places)
	assert.Equal(t, 1, result.Connections)
	assert.Equal(t, 1, result.SkippedNoID)

	roma := store.Node(graph.PlaceRef("1"))
	require.NotNil(t, roma)
	assert.Equal(t, "Roma", roma["title"])
	assert.Equal(t, "Pleiades", roma["source"])
	assert.Equal(t, "https://pleiades.stoa.org/places/1", roma["uri"])

	edge := store.Edge(graph.PlaceRef("1"), graph.PlaceRef("2"), graph.RelConnected)
	require.NotNil(t, edge)
	assert.Equal(t, "related", edge["connectionType"])
}

func TestImportPlacesStubUpgradedByLaterRecord(t *testing.T) {
	// "2" is first seen as a connection target, then as a full record.
	data := `[
  {"id": "1", "title": "Roma", "connectsWith": ["https://pleiades.stoa.org/places/2"]},
  {"id": "2", "title": "Ostia"}
]`
	store := graph.NewMemStore()
	importer := newTestImporter(store)

	_, err := importer.ImportPlaces(context.Background(), stringReader(data))
	require.NoError(t, err)

	assert.Equal(t, 2, store.NodeCount(graph.LabelPlace))
	ostia := store.Node(graph.PlaceRef("2"))
	require.NotNil(t, ostia)
	assert.Equal(t, "Ostia", ostia["title"])
}

func TestImportPlacesTypedConnections(t *testing.T) {
	data := `[
  {"id": "1", "title": "Roma", "connections": [
    {"connectsTo": "https://pleiades.stoa.org/places/3", "connectionType": "part_of_regional", "title": "Latium", "associationCertainty": "certain"}
  ]}
]`
	store := graph.NewMemStore()
	importer := newTestImporter(store)

	result, err := importer.ImportPlaces(context.Background(), stringReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Connections)

	edge := store.Edge(graph.PlaceRef("1"), graph.PlaceRef("3"), graph.RelConnected)
	require.NotNil(t, edge)
	assert.Equal(t, "part_of_regional", edge["connectionType"])
	assert.Equal(t, "Latium", edge["title"])
	assert.Equal(t, "certain", edge["associationCertainty"])
}

func TestImportPlacesIdempotent(t *testing.T) {
	data := `[{"id": "1", "title": "Roma", "connectsWith": ["https://pleiades.stoa.org/places/2"]}]`
	store := graph.NewMemStore()
	importer := newTestImporter(store)

	_, err := importer.ImportPlaces(context.Background(), stringReader(data))
	require.NoError(t, err)
	nodes := store.NodeCount("")
	edges := store.EdgeCount("")

	_, err = importer.ImportPlaces(context.Background(), stringReader(data))
	require.NoError(t, err)
	assert.Equal(t, nodes, store.NodeCount(""))
	assert.Equal(t, edges, store.EdgeCount(""))
}
