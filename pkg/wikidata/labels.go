package wikidata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/argos-kg/argos/pkg/graph"
	"github.com/argos-kg/argos/pkg/metrics"
)

const (
	unlinkedConceptsQuery = `
MATCH (c:Concept)
WHERE c.name IS NOT NULL
  AND NOT (c)-[:SAME_AS {source: 'wikidata'}]->(:WikidataEntity)
RETURN c.name AS term
ORDER BY term
`
	unlinkedPersonsQuery = `
MATCH (p:Person)
WHERE p.name IS NOT NULL
  AND NOT (p)-[:SAME_AS {source: 'wikidata'}]->(:WikidataEntity)
RETURN p.name AS term
ORDER BY term
`
	unlinkedArticlesQuery = `
MATCH (a:Article)
WHERE a.title IS NOT NULL
  AND NOT (a)-[:SAME_AS {source: 'wikidata'}]->(:WikidataEntity)
RETURN a.articleId AS id, a.title AS term
ORDER BY id
`
	countLabelNodesQuery = `
RETURN count { (:Concept) } AS concepts,
       count { (:Person) }  AS persons,
       count { (:Article) } AS articles
`
)

// candidate is one node awaiting a label lookup. id keys the node and
// term is the text searched for; they differ only for articles, which
// are keyed by articleId but searched by title.
type candidate struct {
	ref    graph.Ref
	term   string
	method string
}

// LinkResult summarizes one label-linking run.
type LinkResult struct {
	Candidates int
	Linked     int
	Skipped    int
}

// LabelLinker matches Concept, Person and Article nodes to Wikidata
// items by exact label or alias.
type LabelLinker struct {
	store   graph.Store
	client  *Client
	log     *slog.Logger
	metrics metrics.Collector
}

// NewLabelLinker creates a label linker. A nil collector disables
// metrics.
func NewLabelLinker(store graph.Store, client *Client, log *slog.Logger, collector metrics.Collector) *LabelLinker {
	if collector == nil {
		collector = metrics.NewNoopCollector()
	}
	return &LabelLinker{store: store, client: client, log: log, metrics: collector}
}

// LinkLabels searches Wikidata for every unlinked concept, person and
// article. Only an exact case-insensitive label or alias match counts;
// fuzzy hits from the search ranking are ignored. Failed lookups are
// logged and skipped.
func (l *LabelLinker) LinkLabels(ctx context.Context) (*LinkResult, error) {
	started := time.Now()

	if err := l.logCounts(ctx); err != nil {
		l.log.Warn("could not read node counts", "error", err)
	}

	candidates, err := l.fetchCandidates(ctx)
	if err != nil {
		return nil, err
	}
	result := &LinkResult{Candidates: len(candidates)}
	l.log.Info("linking labels to wikidata", "candidates", len(candidates))

	for i, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if i > 0 {
			if err := l.client.SearchPause(ctx); err != nil {
				return result, err
			}
		}

		hits, err := l.client.SearchEntities(ctx, cand.term)
		if err != nil {
			l.log.Warn("entity search failed, skipping term", "term", cand.term, "error", err)
			l.metrics.RecordError(ctx, "link_labels", "search")
			result.Skipped++
			continue
		}

		match := exactMatch(hits, cand.term)
		if match == nil {
			result.Skipped++
			continue
		}

		if err := l.writeLink(ctx, cand, match); err != nil {
			l.log.Error("link write failed, skipping term", "term", cand.term, "error", err)
			l.metrics.RecordError(ctx, "link_labels", "store")
			result.Skipped++
			continue
		}
		result.Linked++
		l.log.Debug("label linked", "term", cand.term, "qid", match.ID, "method", cand.method)
	}

	l.metrics.RecordOperation(ctx, "link_labels", "ok", time.Since(started).Milliseconds())
	l.log.Info("labels linked", "linked", result.Linked, "skipped", result.Skipped, "candidates", len(candidates))
	return result, nil
}

func (l *LabelLinker) logCounts(ctx context.Context) error {
	rows, err := l.store.Query(ctx, countLabelNodesQuery, nil)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	l.log.Info("label-linkable nodes",
		"concepts", asInt(rows[0]["concepts"]),
		"persons", asInt(rows[0]["persons"]),
		"articles", asInt(rows[0]["articles"]))
	return nil
}

func (l *LabelLinker) fetchCandidates(ctx context.Context) ([]candidate, error) {
	var candidates []candidate

	concepts, err := l.store.Query(ctx, unlinkedConceptsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unlinked concepts: %w", err)
	}
	for _, row := range concepts {
		if term, _ := row["term"].(string); term != "" {
			candidates = append(candidates, candidate{ref: graph.ConceptRef(term), term: term, method: "label-exact"})
		}
	}

	persons, err := l.store.Query(ctx, unlinkedPersonsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unlinked persons: %w", err)
	}
	for _, row := range persons {
		if term, _ := row["term"].(string); term != "" {
			candidates = append(candidates, candidate{ref: graph.PersonRef(term), term: term, method: "label-exact"})
		}
	}

	articles, err := l.store.Query(ctx, unlinkedArticlesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unlinked articles: %w", err)
	}
	for _, row := range articles {
		id, _ := row["id"].(string)
		term, _ := row["term"].(string)
		if id == "" || term == "" {
			continue
		}
		candidates = append(candidates, candidate{ref: graph.ArticleRef(id), term: term, method: "title-exact"})
	}

	return candidates, nil
}

// exactMatch returns the first hit whose label or one of whose aliases
// equals the term, ignoring case.
func exactMatch(hits []SearchResult, term string) *SearchResult {
	want := strings.ToLower(strings.TrimSpace(term))
	for i := range hits {
		if strings.ToLower(hits[i].Label) == want {
			return &hits[i]
		}
		for _, alias := range hits[i].Aliases {
			if strings.ToLower(alias) == want {
				return &hits[i]
			}
		}
	}
	return nil
}

func (l *LabelLinker) writeLink(ctx context.Context, cand candidate, match *SearchResult) error {
	return l.store.Write(ctx, func(tx graph.Tx) error {
		ref := graph.WikidataRef(match.ID)
		if err := tx.MergeNode(ref, map[string]any{"uri": entityURIPrefix + match.ID}); err != nil {
			return err
		}
		if match.Label != "" {
			if err := tx.UpsertNode(ref, map[string]any{"label": match.Label}); err != nil {
				return err
			}
		}
		return tx.UpsertEdge(cand.ref, ref, graph.RelSameAs, map[string]any{
			"source": "wikidata",
			"method": cand.method,
		}, []string{"source"})
	})
}
