package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/argos-kg/argos/pkg/graph"
	"github.com/argos-kg/argos/pkg/metrics"
)

const (
	nodeCountsQuery = `
MATCH (n)
UNWIND labels(n) AS label
RETURN label, count(*) AS cnt
ORDER BY label
`
	relCountsQuery = `
MATCH ()-[r]->()
RETURN type(r) AS relType, count(*) AS cnt
ORDER BY relType
`
)

// Stats holds node counts by label and relationship counts by type.
type Stats struct {
	Nodes map[string]int64
	Rels  map[string]int64
}

// Reporter reads graph-wide counts for the stats command and the node
// count gauges.
type Reporter struct {
	store   graph.Store
	log     *slog.Logger
	metrics metrics.Collector
}

// NewReporter creates a reporter. A nil collector disables metrics.
func NewReporter(store graph.Store, log *slog.Logger, collector metrics.Collector) *Reporter {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &Reporter{store: store, log: log, metrics: collector}
}

// Collect reads node and relationship counts and pushes node counts to
// the metrics gauges.
func (r *Reporter) Collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{Nodes: make(map[string]int64), Rels: make(map[string]int64)}

	rows, err := r.store.Query(ctx, nodeCountsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count nodes: %w", err)
	}
	for _, row := range rows {
		label, _ := row["label"].(string)
		if label == "" {
			continue
		}
		stats.Nodes[label] = asInt(row["cnt"])
		r.metrics.SetNodeCount(ctx, label, stats.Nodes[label])
	}

	rows, err = r.store.Query(ctx, relCountsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count relationships: %w", err)
	}
	for _, row := range rows {
		relType, _ := row["relType"].(string)
		if relType == "" {
			continue
		}
		stats.Rels[relType] = asInt(row["cnt"])
	}

	r.log.Debug("graph counts collected", "labels", len(stats.Nodes), "rel_types", len(stats.Rels))
	return stats, nil
}
