package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jStore implements Store on top of a Neo4j (or Bolt-compatible)
// database.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore connects to the database at uri. An empty database name
// falls back to "neo4j".
func NewNeo4jStore(uri, username, password, database string) (*Neo4jStore, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{client: client, database: database}, nil
}

// VerifyConnectivity checks that the database is reachable.
func (s *Neo4jStore) VerifyConnectivity(ctx context.Context) error {
	return s.client.VerifyConnectivity(ctx)
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

// UpsertNode merges the node and overwrites the listed properties.
func (s *Neo4jStore) UpsertNode(ctx context.Context, ref Ref, props map[string]any) error {
	return s.Write(ctx, func(tx Tx) error {
		return tx.UpsertNode(ref, props)
	})
}

// MergeNode merges the node, setting properties only on creation.
func (s *Neo4jStore) MergeNode(ctx context.Context, ref Ref, onCreate map[string]any) error {
	return s.Write(ctx, func(tx Tx) error {
		return tx.MergeNode(ref, onCreate)
	})
}

// UpsertEdge merges one edge between two existing nodes.
func (s *Neo4jStore) UpsertEdge(ctx context.Context, from, to Ref, relType string, props map[string]any, uniqueBy []string) error {
	return s.Write(ctx, func(tx Tx) error {
		return tx.UpsertEdge(from, to, relType, props, uniqueBy)
	})
}

// Query runs a read query and collects the result rows.
func (s *Neo4jStore) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(records))
		for _, record := range records {
			rows = append(rows, record.AsMap())
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]map[string]any), nil
}

// Write runs fn inside one managed write transaction.
func (s *Neo4jStore) Write(ctx context.Context, fn func(tx Tx) error) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(&neo4jTx{ctx: ctx, tx: tx})
	})
	return err
}

// CreateIndices creates uniqueness constraints for every natural key.
func (s *Neo4jStore) CreateIndices(ctx context.Context) error {
	constraints := []struct {
		label string
		prop  string
	}{
		{LabelArticle, "articleId"},
		{LabelChunk, "chunkId"},
		{LabelPerson, "name"},
		{LabelConcept, "name"},
		{LabelPlace, "pleiadesId"},
		{LabelWikidata, "qid"},
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	for _, c := range constraints {
		query := fmt.Sprintf(
			"CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
			c.label, c.prop,
		)
		if _, err := session.Run(ctx, query, nil); err != nil {
			return fmt.Errorf("failed to create constraint on %s.%s: %w", c.label, c.prop, err)
		}
	}
	return nil
}

// Close releases the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// neo4jTx adapts a managed transaction to the Tx interface.
type neo4jTx struct {
	ctx context.Context
	tx  neo4j.ManagedTransaction
}

func (t *neo4jTx) UpsertNode(ref Ref, props map[string]any) error {
	query := fmt.Sprintf(
		"MERGE (n:%s {%s: $key}) SET n += $props",
		ref.Label, ref.KeyProp,
	)
	_, err := t.tx.Run(t.ctx, query, map[string]any{"key": ref.Key, "props": props})
	if err != nil {
		return fmt.Errorf("upsert %s %v: %w", ref.Label, ref.Key, err)
	}
	return nil
}

func (t *neo4jTx) MergeNode(ref Ref, onCreate map[string]any) error {
	query := fmt.Sprintf(
		"MERGE (n:%s {%s: $key}) ON CREATE SET n += $props",
		ref.Label, ref.KeyProp,
	)
	_, err := t.tx.Run(t.ctx, query, map[string]any{"key": ref.Key, "props": onCreate})
	if err != nil {
		return fmt.Errorf("merge %s %v: %w", ref.Label, ref.Key, err)
	}
	return nil
}

func (t *neo4jTx) UpsertEdge(from, to Ref, relType string, props map[string]any, uniqueBy []string) error {
	params := map[string]any{
		"fromKey": from.Key,
		"toKey":   to.Key,
	}

	// uniqueBy properties go into the MERGE pattern so they key the edge;
	// everything else is written only when the edge is created.
	pattern := ""
	if len(uniqueBy) > 0 {
		keys := append([]string(nil), uniqueBy...)
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for i, name := range keys {
			param := fmt.Sprintf("u%d", i)
			parts = append(parts, fmt.Sprintf("%s: $%s", name, param))
			params[param] = props[name]
		}
		pattern = " {" + strings.Join(parts, ", ") + "}"
	}

	onCreate := make(map[string]any, len(props))
	for k, v := range props {
		if !contains(uniqueBy, k) {
			onCreate[k] = v
		}
	}
	params["onCreate"] = onCreate

	query := fmt.Sprintf(
		"MATCH (a:%s {%s: $fromKey}), (b:%s {%s: $toKey}) "+
			"MERGE (a)-[r:%s%s]->(b) ON CREATE SET r += $onCreate",
		from.Label, from.KeyProp, to.Label, to.KeyProp, relType, pattern,
	)
	_, err := t.tx.Run(t.ctx, query, params)
	if err != nil {
		return fmt.Errorf("upsert edge %s %v-[%s]->%s %v: %w",
			from.Label, from.Key, relType, to.Label, to.Key, err)
	}
	return nil
}

func (t *neo4jTx) Run(cypher string, params map[string]any) ([]map[string]any, error) {
	res, err := t.tx.Run(t.ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(t.ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		rows = append(rows, record.AsMap())
	}
	return rows, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
