// Package graph provides typed upsert and query operations over a
// property-graph store. All mutation goes through merge-by-key upserts so
// every pipeline pass is safe to re-run.
package graph

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a lookup matches no node or edge.
var ErrNotFound = errors.New("graph: not found")

// Node labels used by the pipeline.
const (
	LabelArticle  = "Article"
	LabelChunk    = "Chunk"
	LabelPerson   = "Person"
	LabelConcept  = "Concept"
	LabelPlace    = "Place"
	LabelWikidata = "WikidataEntity"
)

// Relationship types used by the pipeline.
const (
	RelHasChunk  = "HAS_CHUNK"
	RelPartOf    = "PART_OF"
	RelNext      = "NEXT"
	RelMentions  = "MENTIONS"
	RelAuthored  = "AUTHORED"
	RelConnected = "CONNECTED"
	RelSameAs    = "SAME_AS"
)

// Ref identifies a node by label and natural key, e.g.
// {Label: "Chunk", KeyProp: "chunkId", Key: "isaw2-0003"}.
type Ref struct {
	Label   string
	KeyProp string
	Key     any
}

// ArticleRef returns a Ref for an Article node.
func ArticleRef(articleID string) Ref {
	return Ref{Label: LabelArticle, KeyProp: "articleId", Key: articleID}
}

// ChunkRef returns a Ref for a Chunk node.
func ChunkRef(chunkID string) Ref {
	return Ref{Label: LabelChunk, KeyProp: "chunkId", Key: chunkID}
}

// PersonRef returns a Ref for a Person node.
func PersonRef(name string) Ref {
	return Ref{Label: LabelPerson, KeyProp: "name", Key: name}
}

// ConceptRef returns a Ref for a Concept node.
func ConceptRef(name string) Ref {
	return Ref{Label: LabelConcept, KeyProp: "name", Key: name}
}

// PlaceRef returns a Ref for a Place node.
func PlaceRef(pleiadesID string) Ref {
	return Ref{Label: LabelPlace, KeyProp: "pleiadesId", Key: pleiadesID}
}

// WikidataRef returns a Ref for a WikidataEntity node.
func WikidataRef(qid string) Ref {
	return Ref{Label: LabelWikidata, KeyProp: "qid", Key: qid}
}

// Tx is the set of operations available inside one write transaction.
//
// UpsertNode merges the node identified by ref and overwrites exactly the
// listed properties; properties absent from the map keep their stored
// values. Callers distinguish "absent" from "explicit null" by leaving the
// key out of the map entirely.
//
// MergeNode merges the node and sets the listed properties only when the
// merge creates it; an existing node is left untouched. This is the stub
// pattern used for lazily-created relationship endpoints.
//
// UpsertEdge merges an edge of type relType between the two referenced
// nodes. Property names listed in uniqueBy become part of the merge
// pattern, so two calls differing in a uniqueBy value produce two parallel
// edges while identical calls produce one. The remaining properties are set
// only on creation. Both endpoints must already exist; a missing endpoint
// is a silent no-op in Cypher MERGE-after-MATCH, so callers upsert
// endpoints first.
type Tx interface {
	UpsertNode(ref Ref, props map[string]any) error
	MergeNode(ref Ref, onCreate map[string]any) error
	UpsertEdge(from, to Ref, relType string, props map[string]any, uniqueBy []string) error
	Run(cypher string, params map[string]any) ([]map[string]any, error)
}

// Store is the graph database adapter used by every pipeline component.
// Each single-shot method runs in its own transaction; Write groups several
// operations into one. The store applies no retry policy of its own;
// callers dealing with flaky external services own their retries, and a
// store error surfaces directly so the caller can skip or abort the unit.
type Store interface {
	UpsertNode(ctx context.Context, ref Ref, props map[string]any) error
	MergeNode(ctx context.Context, ref Ref, onCreate map[string]any) error
	UpsertEdge(ctx context.Context, from, to Ref, relType string, props map[string]any, uniqueBy []string) error

	// Query runs a read query and returns one map per result row.
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

	// Write runs fn inside a single write transaction.
	Write(ctx context.Context, fn func(tx Tx) error) error

	// CreateIndices creates the uniqueness constraints backing the
	// natural keys. Safe to call repeatedly.
	CreateIndices(ctx context.Context) error

	Close(ctx context.Context) error
}
