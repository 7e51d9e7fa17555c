package embedder_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argos-kg/argos/pkg/embedder"
)

func vectorLength(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNormalize(t *testing.T) {
	v := embedder.Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.InDelta(t, 1.0, vectorLength(v), 1e-6)
}

func TestNormalizeZeroVector(t *testing.T) {
	v := embedder.Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestMockEmbedderDeterministic(t *testing.T) {
	mock := embedder.NewMockEmbedder(16)

	first, err := mock.Embed(context.Background(), []string{"the decans", "heliacal rising"})
	require.NoError(t, err)
	second, err := mock.Embed(context.Background(), []string{"the decans", "heliacal rising"})
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.NotEqual(t, first[0], first[1])

	for _, v := range first {
		assert.Len(t, v, 16)
		assert.InDelta(t, 1.0, vectorLength(v), 1e-5)
	}
}

func TestMockEmbedderDefaultDimensions(t *testing.T) {
	mock := embedder.NewMockEmbedder(0)
	assert.Equal(t, 8, mock.Dimensions())
}
