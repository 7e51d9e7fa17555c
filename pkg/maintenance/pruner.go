// Package maintenance holds graph housekeeping passes: pruning inferred
// person nodes and reporting graph statistics.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/argos-kg/argos/pkg/graph"
	"github.com/argos-kg/argos/pkg/metrics"
)

const (
	personCountsQuery = `
MATCH (p:Person)
OPTIONAL MATCH (p)-[r:AUTHORED]->(:Article)
RETURN count(DISTINCT p) AS total,
       count(DISTINCT CASE WHEN r IS NOT NULL THEN p END) AS authors
`
	pruneNonAuthorsQuery = `
MATCH (p:Person)
WHERE NOT (p)-[:AUTHORED]->(:Article)
DETACH DELETE p
`
)

// PruneResult reports person counts around a prune.
type PruneResult struct {
	Before  int64
	Authors int64
	After   int64
	Deleted int64
}

// Pruner removes Person nodes that were extracted from text but never
// confirmed as authors of any article.
type Pruner struct {
	store   graph.Store
	log     *slog.Logger
	metrics metrics.Collector
}

// NewPruner creates a pruner. A nil collector disables metrics.
func NewPruner(store graph.Store, log *slog.Logger, collector metrics.Collector) *Pruner {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &Pruner{store: store, log: log, metrics: collector}
}

// PrunePersons deletes every non-author person along with all of their
// relationships. Counts are taken before and after so the log shows
// exactly what the pass removed.
func (p *Pruner) PrunePersons(ctx context.Context) (*PruneResult, error) {
	started := time.Now()

	before, authors, err := p.counts(ctx)
	if err != nil {
		return nil, err
	}
	p.log.Info("pruning non-author persons", "persons", before, "authors", authors)

	err = p.store.Write(ctx, func(tx graph.Tx) error {
		_, err := tx.Run(pruneNonAuthorsQuery, nil)
		return err
	})
	if err != nil {
		p.metrics.RecordError(ctx, "prune_persons", "store")
		return nil, fmt.Errorf("failed to prune persons: %w", err)
	}

	after, _, err := p.counts(ctx)
	if err != nil {
		return nil, err
	}

	result := &PruneResult{Before: before, Authors: authors, After: after, Deleted: before - after}
	p.metrics.RecordOperation(ctx, "prune_persons", "ok", time.Since(started).Milliseconds())
	p.log.Info("persons pruned", "deleted", result.Deleted, "remaining", after)
	return result, nil
}

func (p *Pruner) counts(ctx context.Context) (total, authors int64, err error) {
	rows, err := p.store.Query(ctx, personCountsQuery, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count persons: %w", err)
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}
	return asInt(rows[0]["total"]), asInt(rows[0]["authors"]), nil
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
