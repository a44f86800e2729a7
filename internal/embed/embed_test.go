package embed

import (
	"context"
	"errors"
	"testing"

	"docforge/internal/fault"
	"docforge/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func optimizedWith(chunks ...string) *models.OptimizedContent {
	out := &models.OptimizedContent{Summary: "A short summary."}
	for i, text := range chunks {
		out.Chunks = append(out.Chunks, models.Chunk{ChunkID: string(rune('a' + i)), ChunkIndex: i, Text: text})
	}
	return out
}

func TestGenerateConstantDimensionality(t *testing.T) {
	g := NewGenerator(NewMockBackend(64), 64, zerolog.Nop())
	set, err := g.Generate(context.Background(), optimizedWith("first chunk", "second chunk"))
	require.NoError(t, err)

	require.Len(t, set.ChunkEmbeddings, 2)
	require.Equal(t, 64, set.Dimension)
	require.Len(t, set.DocumentVector, 64)
	for _, ce := range set.ChunkEmbeddings {
		require.Len(t, ce.Vector, 64)
	}
	require.Equal(t, "mock-embed-64", set.Model)
}

func TestGenerateIsDeterministic(t *testing.T) {
	g := NewGenerator(NewMockBackend(32), 32, zerolog.Nop())
	a, err := g.Generate(context.Background(), optimizedWith("same text"))
	require.NoError(t, err)
	b, err := g.Generate(context.Background(), optimizedWith("same text"))
	require.NoError(t, err)
	require.Equal(t, a.ChunkEmbeddings[0].Vector, b.ChunkEmbeddings[0].Vector)
	require.Equal(t, a.DocumentVector, b.DocumentVector)
}

func TestGenerateEmptyChunksStillEmbedsDocument(t *testing.T) {
	g := NewGenerator(NewMockBackend(16), 16, zerolog.Nop())
	set, err := g.Generate(context.Background(), &models.OptimizedContent{Summary: ""})
	require.NoError(t, err)
	require.Empty(t, set.ChunkEmbeddings)
	require.Len(t, set.DocumentVector, 16)
}

type failingBackend struct{ err error }

func (f failingBackend) Embed(context.Context, []string, int) ([][]float32, BackendInfo, error) {
	return nil, BackendInfo{Name: "failing"}, f.err
}

func TestGenerateBackendUnavailable(t *testing.T) {
	g := NewGenerator(failingBackend{err: fault.Wrap(fault.Unavailable, errors.New("refused"), "dial")}, 16, zerolog.Nop())
	_, err := g.Generate(context.Background(), optimizedWith("x"))
	require.Error(t, err)
	require.Equal(t, fault.Unavailable, fault.KindOf(err))
}

func TestCosine(t *testing.T) {
	require.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	require.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}))

	a := deterministicVector("doc one", 32)
	require.InDelta(t, 1.0, Cosine(a, a), 1e-6)
}

func TestDistinctInputsDistinctVectors(t *testing.T) {
	a := deterministicVector("alpha", 32)
	b := deterministicVector("beta", 32)
	require.NotEqual(t, a, b)
}
