package embed

import (
	"context"
	"math"

	"docforge/internal/fault"
	"docforge/internal/models"

	"github.com/rs/zerolog"
)

type Generator struct {
	backend Backend
	dim     int
	log     zerolog.Logger
}

func NewGenerator(backend Backend, dim int, log zerolog.Logger) *Generator {
	if dim <= 0 {
		dim = 384
	}
	return &Generator{backend: backend, dim: dim, log: log}
}

// Generate embeds every chunk plus one document-level vector derived from
// the summary. All vectors in a result share one model and one
// dimensionality. An empty chunk list still yields the document vector.
func (g *Generator) Generate(ctx context.Context, optimized *models.OptimizedContent) (*models.EmbeddingSet, error) {
	if optimized == nil {
		return nil, fault.New(fault.InvalidInput, "nil optimized content")
	}
	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(fault.Timeout, err, "generate embeddings")
	}

	inputs := make([]string, 0, len(optimized.Chunks)+1)
	for _, c := range optimized.Chunks {
		inputs = append(inputs, c.Text)
	}
	inputs = append(inputs, optimized.Summary) // document-level vector last

	vectors, info, err := g.backend.Embed(ctx, inputs, g.dim)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(inputs) {
		return nil, fault.New(fault.Internal, "backend %s returned %d vectors for %d inputs", info.Name, len(vectors), len(inputs))
	}
	for i, v := range vectors {
		if len(v) != g.dim {
			return nil, fault.New(fault.Internal, "vector %d has dimension %d, expected %d", i, len(v), g.dim)
		}
	}

	set := &models.EmbeddingSet{
		ChunkEmbeddings: make([]models.ChunkEmbedding, 0, len(optimized.Chunks)),
		DocumentVector:  vectors[len(vectors)-1],
		Model:           info.Model,
		Dimension:       g.dim,
	}
	for i, c := range optimized.Chunks {
		set.ChunkEmbeddings = append(set.ChunkEmbeddings, models.ChunkEmbedding{
			ChunkID: c.ChunkID,
			Text:    c.Text,
			Vector:  vectors[i],
		})
	}
	g.log.Debug().Int("chunks", len(set.ChunkEmbeddings)).Str("model", set.Model).Msg("embeddings generated")
	return set, nil
}

// Cosine is the similarity used for cross-document comparison. Vectors of
// different lengths score zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
