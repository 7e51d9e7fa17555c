package wikidata

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/argos-kg/argos/pkg/graph"
	"github.com/argos-kg/argos/pkg/metrics"
	"github.com/argos-kg/argos/pkg/types"
)

const (
	entityURIPrefix = "http://www.wikidata.org/entity/"

	countPlacesQuery = `
MATCH (p:Place)
RETURN count(p) AS total,
       count(p.pleiadesId) AS withId,
       count {
         (p)-[:SAME_AS {source: 'wikidata', property: 'P1584'}]->(:WikidataEntity)
       } AS linked
`
	unlinkedPlacesQuery = `
MATCH (p:Place)
WHERE p.pleiadesId IS NOT NULL
  AND NOT (p)-[:SAME_AS {source: 'wikidata', property: 'P1584'}]->(:WikidataEntity)
RETURN p.pleiadesId AS pid
ORDER BY pid
`
)

// pointPattern matches WKT literals like "Point(23.72 37.97)".
var pointPattern = regexp.MustCompile(`Point\(([-0-9.eE+]+) ([-0-9.eE+]+)\)`)

// EnrichResult summarizes one identifier-enrichment run.
type EnrichResult struct {
	Candidates int
	Batches    int
	Linked     int
	Failed     int
}

// Enricher links Place nodes to Wikidata items through the Pleiades id
// property P1584.
type Enricher struct {
	store   graph.Store
	client  *Client
	batch   int
	log     *slog.Logger
	metrics metrics.Collector
}

// NewEnricher creates an enricher. batchSize bounds the VALUES clause of
// each SPARQL query; values below 1 fall back to 40.
func NewEnricher(store graph.Store, client *Client, batchSize int, log *slog.Logger, collector metrics.Collector) *Enricher {
	if batchSize < 1 {
		batchSize = 40
	}
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &Enricher{store: store, client: client, batch: batchSize, log: log, metrics: collector}
}

// EnrichPlaces finds places with a Pleiades id but no wikidata link, then
// resolves them in batches. A failed batch is logged and skipped; the run
// continues with the next one so a transient outage only costs its batch.
func (e *Enricher) EnrichPlaces(ctx context.Context) (*EnrichResult, error) {
	started := time.Now()

	if err := e.logCounts(ctx); err != nil {
		e.log.Warn("could not read place counts", "error", err)
	}

	pids, err := e.fetchUnlinked(ctx)
	if err != nil {
		return nil, err
	}
	result := &EnrichResult{Candidates: len(pids)}
	e.log.Info("enriching places from wikidata", "candidates", len(pids), "batch_size", e.batch)

	for start := 0; start < len(pids); start += e.batch {
		end := start + e.batch
		if end > len(pids) {
			end = len(pids)
		}
		batch := pids[start:end]
		result.Batches++

		entities, err := e.resolveBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			e.log.Error("batch failed, skipping", "batch", result.Batches, "size", len(batch), "error", err)
			e.metrics.RecordError(ctx, "enrich_places", "sparql")
			result.Failed += len(batch)
			continue
		}

		linked, err := e.writeBatch(ctx, entities)
		if err != nil {
			e.log.Error("batch write failed, skipping", "batch", result.Batches, "error", err)
			e.metrics.RecordError(ctx, "enrich_places", "store")
			result.Failed += len(batch)
			continue
		}
		result.Linked += linked
		e.log.Info("batch enriched", "batch", result.Batches, "resolved", len(entities), "links", linked)

		if end < len(pids) {
			if err := e.client.Pause(ctx); err != nil {
				return result, err
			}
		}
	}

	e.metrics.RecordOperation(ctx, "enrich_places", "ok", time.Since(started).Milliseconds())
	e.log.Info("places enriched", "linked", result.Linked, "failed", result.Failed, "batches", result.Batches)
	return result, nil
}

func (e *Enricher) logCounts(ctx context.Context) error {
	rows, err := e.store.Query(ctx, countPlacesQuery, nil)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	row := rows[0]
	e.log.Info("place link status",
		"places", asInt(row["total"]),
		"with_pleiades_id", asInt(row["withId"]),
		"already_linked", asInt(row["linked"]))
	return nil
}

func (e *Enricher) fetchUnlinked(ctx context.Context) ([]string, error) {
	rows, err := e.store.Query(ctx, unlinkedPlacesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unlinked places: %w", err)
	}
	pids := make([]string, 0, len(rows))
	for _, row := range rows {
		if pid, _ := row["pid"].(string); pid != "" {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

// resolveBatch maps pleiades ids to entities. Coordinates and the
// instance-of class are optional on the Wikidata side and stay unset
// when absent.
func (e *Enricher) resolveBatch(ctx context.Context, pids []string) (map[string]types.KBEntity, error) {
	var values strings.Builder
	for _, pid := range pids {
		fmt.Fprintf(&values, "%q ", pid)
	}
	sparql := fmt.Sprintf(`
SELECT ?item ?itemLabel ?pleiades ?coord ?instance WHERE {
  VALUES ?pleiades { %s}
  ?item wdt:P1584 ?pleiades .
  OPTIONAL { ?item wdt:P625 ?coord . }
  OPTIONAL { ?item wdt:P31 ?instance . }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}`, values.String())

	bindings, err := e.client.Query(ctx, sparql)
	if err != nil {
		return nil, err
	}

	entities := make(map[string]types.KBEntity)
	for _, b := range bindings {
		pid := b["pleiades"].Value
		item := b["item"].Value
		if pid == "" || !strings.HasPrefix(item, entityURIPrefix) {
			continue
		}
		ent := types.KBEntity{
			QID:   strings.TrimPrefix(item, entityURIPrefix),
			Label: b["itemLabel"].Value,
		}
		// instanceOf keeps the class QID, not its English label, so
		// re-runs compare equal regardless of label language.
		if inst := b["instance"].Value; inst != "" {
			ent.InstanceOf = inst[strings.LastIndex(inst, "/")+1:]
		}
		if lat, lon, ok := parsePoint(b["coord"].Value); ok {
			ent.Lat, ent.Lon = &lat, &lon
		}
		// Several items can claim the same pleiades id; first one wins.
		if _, ok := entities[pid]; !ok {
			entities[pid] = ent
		}
	}
	return entities, nil
}

func (e *Enricher) writeBatch(ctx context.Context, entities map[string]types.KBEntity) (int, error) {
	linked := 0
	err := e.store.Write(ctx, func(tx graph.Tx) error {
		for pid, ent := range entities {
			ref := graph.WikidataRef(ent.QID)
			if err := tx.MergeNode(ref, map[string]any{"uri": entityURIPrefix + ent.QID}); err != nil {
				return err
			}

			props := map[string]any{}
			if ent.Label != "" {
				props["label"] = ent.Label
			}
			if ent.InstanceOf != "" {
				props["instanceOf"] = ent.InstanceOf
			}
			if ent.Lat != nil && ent.Lon != nil {
				props["lat"] = *ent.Lat
				props["lon"] = *ent.Lon
			}
			if len(props) > 0 {
				if err := tx.UpsertNode(ref, props); err != nil {
					return err
				}
			}

			err := tx.UpsertEdge(graph.PlaceRef(pid), ref, graph.RelSameAs, map[string]any{
				"source":    "wikidata",
				"property":  "P1584",
				"matchedBy": "pleiadesId",
			}, []string{"source", "property"})
			if err != nil {
				return err
			}
			linked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return linked, nil
}

// parsePoint extracts lat and lon from a WKT point literal. WKT orders
// longitude first.
func parsePoint(wkt string) (lat, lon float64, ok bool) {
	m := pointPattern.FindStringSubmatch(wkt)
	if m == nil {
		return 0, 0, false
	}
	lonV, err1 := strconv.ParseFloat(m[1], 64)
	latV, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return latV, lonV, true
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
