package gazetteer

import (
	"context"
	"log/slog"
	"time"

	"github.com/argos-kg/argos/pkg/graph"
	"github.com/argos-kg/argos/pkg/metrics"
	"github.com/argos-kg/argos/pkg/types"
)

const sourceName = "Pleiades"

// ImportResult tallies one gazetteer import run.
type ImportResult struct {
	Shape       Shape
	Places      int
	Connections int
	SkippedNoID int
}

// Importer upserts Place nodes and CONNECTED edges from a gazetteer source.
type Importer struct {
	store   graph.Store
	log     *slog.Logger
	metrics metrics.Collector
}

// NewImporter creates an importer. A nil collector disables metrics.
func NewImporter(store graph.Store, log *slog.Logger, collector metrics.Collector) *Importer {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &Importer{store: store, log: log, metrics: collector}
}

// ImportPlaces streams the source and upserts one Place per record plus its
// outbound connections. Connection targets whose full record has not been
// seen yet get a stub Place node, so every CONNECTED edge lands on a real
// node regardless of record order; a later full record upgrades the stub
// in place.
func (im *Importer) ImportPlaces(ctx context.Context, reader *Reader) (*ImportResult, error) {
	started := time.Now()
	result := &ImportResult{}

	shape, _, err := reader.Each(func(raw map[string]any) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		place := ParsePlace(raw)
		if place.ID == "" {
			result.SkippedNoID++
			return nil
		}

		if err := im.upsertPlace(ctx, place); err != nil {
			im.log.Error("place upsert failed, continuing", "place", place.ID, "error", err)
			im.metrics.RecordError(ctx, "import_places", "store")
			return nil
		}
		result.Places++

		result.Connections += im.importConnections(ctx, place)

		if result.Places%5000 == 0 {
			im.log.Info("import progress", "places", result.Places, "connections", result.Connections)
		}
		return nil
	})
	result.Shape = shape
	if err != nil {
		return result, err
	}

	im.metrics.RecordOperation(ctx, "import_places", "ok", time.Since(started).Milliseconds())
	im.log.Info("gazetteer import finished",
		"shape", shape.String(),
		"places", result.Places,
		"connections", result.Connections,
		"skipped_no_id", result.SkippedNoID,
	)
	return result, nil
}

func (im *Importer) upsertPlace(ctx context.Context, place types.PlaceRecord) error {
	return im.store.UpsertNode(ctx, graph.PlaceRef(place.ID), map[string]any{
		"uri":          place.URI,
		"title":        place.Title,
		"description":  place.Description,
		"placeTypes":   emptyIfNil(place.PlaceTypes),
		"subject":      emptyIfNil(place.Subject),
		"altNames":     emptyIfNil(place.AltNames),
		"languages":    emptyIfNil(place.Languages),
		"review_state": place.ReviewState,
		"source":       sourceName,
	})
}

// importConnections writes both connection shapes. A failed edge is logged
// and skipped; it never aborts the record.
func (im *Importer) importConnections(ctx context.Context, place types.PlaceRecord) int {
	written := 0

	for _, uri := range place.ConnectsWith {
		toID := PlaceIDFromURI(uri)
		if toID == "" {
			continue
		}
		props := map[string]any{
			"connectionType": "related",
			"source":         sourceName,
		}
		if err := im.connect(ctx, place.ID, toID, uri, props); err != nil {
			im.log.Error("connection failed, continuing", "from", place.ID, "to", toID, "error", err)
			im.metrics.RecordError(ctx, "import_places", "connection")
			continue
		}
		written++
	}

	for _, c := range place.Connections {
		toID := PlaceIDFromURI(c.ConnectsTo)
		if toID == "" {
			continue
		}
		props := map[string]any{
			"connectionType": c.ConnectionType,
			"source":         sourceName,
		}
		if c.Title != "" {
			props["title"] = c.Title
		}
		if c.AssociationCertainty != "" {
			props["associationCertainty"] = c.AssociationCertainty
		}
		if c.URI != "" {
			props["uri"] = c.URI
		}
		if err := im.connect(ctx, place.ID, toID, c.ConnectsTo, props); err != nil {
			im.log.Error("connection failed, continuing", "from", place.ID, "to", toID, "error", err)
			im.metrics.RecordError(ctx, "import_places", "connection")
			continue
		}
		written++
	}

	return written
}

// connect upserts the stub target and the CONNECTED edge in one
// transaction so the edge can never dangle.
func (im *Importer) connect(ctx context.Context, fromID, toID, toURI string, props map[string]any) error {
	return im.store.Write(ctx, func(tx graph.Tx) error {
		if err := tx.MergeNode(graph.PlaceRef(toID), map[string]any{
			"uri":    toURI,
			"source": sourceName,
		}); err != nil {
			return err
		}
		return tx.UpsertEdge(graph.PlaceRef(fromID), graph.PlaceRef(toID), graph.RelConnected, props, nil)
	})
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
