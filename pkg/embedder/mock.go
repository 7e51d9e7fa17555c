package embedder

import (
	"context"
	"hash/fnv"
)

// MockEmbedder is a deterministic Client for tests. Each text maps to a
// fixed-dimension unit vector derived from a hash of its bytes.
type MockEmbedder struct {
	Dim int
}

// NewMockEmbedder returns a mock embedder with the given dimensionality.
func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 8
	}
	return &MockEmbedder{Dim: dim}
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		h := fnv.New64a()
		h.Write([]byte(text))
		seed := h.Sum64()
		v := make([]float32, m.Dim)
		for j := range v {
			seed = seed*6364136223846793005 + 1442695040888963407
			v[j] = float32(int64(seed>>33)) / float32(1<<31)
		}
		out[i] = Normalize(v)
	}
	return out, nil
}

func (m *MockEmbedder) Dimensions() int { return m.Dim }

func (m *MockEmbedder) Close() error { return nil }
