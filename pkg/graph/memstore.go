package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemStore is an in-memory Store used in tests. Upserts follow the same
// merge semantics as the Neo4j implementation; Query delegates to an
// optional QueryFunc so tests can respond to the read queries their
// component issues.
type MemStore struct {
	mu    sync.Mutex
	nodes map[string]map[string]any
	edges map[string]map[string]any

	// QueryFunc handles Query/Run calls. Nil means every query returns an
	// empty result set.
	QueryFunc func(cypher string, params map[string]any) ([]map[string]any, error)
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		nodes: make(map[string]map[string]any),
		edges: make(map[string]map[string]any),
	}
}

func nodeKey(ref Ref) string {
	return fmt.Sprintf("%s|%v", ref.Label, ref.Key)
}

func edgeKey(from, to Ref, relType string, props map[string]any, uniqueBy []string) string {
	keys := append([]string(nil), uniqueBy...)
	sort.Strings(keys)
	parts := []string{nodeKey(from), relType, nodeKey(to)}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, props[k]))
	}
	return strings.Join(parts, "|")
}

func (m *MemStore) UpsertNode(ctx context.Context, ref Ref, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertNode(ref, props)
}

func (m *MemStore) MergeNode(ctx context.Context, ref Ref, onCreate map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mergeNode(ref, onCreate)
}

func (m *MemStore) UpsertEdge(ctx context.Context, from, to Ref, relType string, props map[string]any, uniqueBy []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertEdge(from, to, relType, props, uniqueBy)
}

func (m *MemStore) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(cypher, params)
	}
	return nil, nil
}

func (m *MemStore) Write(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{store: m})
}

func (m *MemStore) CreateIndices(ctx context.Context) error { return nil }

func (m *MemStore) Close(ctx context.Context) error { return nil }

func (m *MemStore) upsertNode(ref Ref, props map[string]any) error {
	key := nodeKey(ref)
	stored, ok := m.nodes[key]
	if !ok {
		stored = map[string]any{ref.KeyProp: ref.Key}
		m.nodes[key] = stored
	}
	for k, v := range props {
		stored[k] = v
	}
	return nil
}

func (m *MemStore) mergeNode(ref Ref, onCreate map[string]any) error {
	key := nodeKey(ref)
	if _, ok := m.nodes[key]; ok {
		return nil
	}
	stored := map[string]any{ref.KeyProp: ref.Key}
	for k, v := range onCreate {
		stored[k] = v
	}
	m.nodes[key] = stored
	return nil
}

func (m *MemStore) upsertEdge(from, to Ref, relType string, props map[string]any, uniqueBy []string) error {
	// Mirrors MERGE after MATCH: a missing endpoint makes the write a no-op.
	if _, ok := m.nodes[nodeKey(from)]; !ok {
		return nil
	}
	if _, ok := m.nodes[nodeKey(to)]; !ok {
		return nil
	}
	key := edgeKey(from, to, relType, props, uniqueBy)
	if _, ok := m.edges[key]; ok {
		return nil
	}
	stored := make(map[string]any, len(props))
	for k, v := range props {
		stored[k] = v
	}
	m.edges[key] = stored
	return nil
}

// NodeCount returns the number of stored nodes with the given label; an
// empty label counts all nodes.
func (m *MemStore) NodeCount(label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if label == "" {
		return len(m.nodes)
	}
	n := 0
	for key := range m.nodes {
		if strings.HasPrefix(key, label+"|") {
			n++
		}
	}
	return n
}

// Node returns the stored properties of one node, or nil.
func (m *MemStore) Node(ref Ref) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodes[nodeKey(ref)]
}

// EdgeCount returns the number of stored edges of the given type; an empty
// type counts all edges.
func (m *MemStore) EdgeCount(relType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if relType == "" {
		return len(m.edges)
	}
	n := 0
	for key := range m.edges {
		if strings.Contains(key, "|"+relType+"|") {
			n++
		}
	}
	return n
}

// HasEdge reports whether an edge of relType exists between the two nodes,
// ignoring uniqueBy-keyed property variants.
func (m *MemStore) HasEdge(from, to Ref, relType string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.Join([]string{nodeKey(from), relType, nodeKey(to)}, "|")
	for key := range m.edges {
		if key == prefix || strings.HasPrefix(key, prefix+"|") {
			return true
		}
	}
	return false
}

// Edge returns the stored properties of the first edge of relType between
// the two nodes, or nil.
func (m *MemStore) Edge(from, to Ref, relType string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.Join([]string{nodeKey(from), relType, nodeKey(to)}, "|")
	for key, props := range m.edges {
		if key == prefix || strings.HasPrefix(key, prefix+"|") {
			return props
		}
	}
	return nil
}

type memTx struct {
	store *MemStore
}

func (t *memTx) UpsertNode(ref Ref, props map[string]any) error {
	return t.store.upsertNode(ref, props)
}

func (t *memTx) MergeNode(ref Ref, onCreate map[string]any) error {
	return t.store.mergeNode(ref, onCreate)
}

func (t *memTx) UpsertEdge(from, to Ref, relType string, props map[string]any, uniqueBy []string) error {
	return t.store.upsertEdge(from, to, relType, props, uniqueBy)
}

func (t *memTx) Run(cypher string, params map[string]any) ([]map[string]any, error) {
	if t.store.QueryFunc != nil {
		return t.store.QueryFunc(cypher, params)
	}
	return nil, nil
}
