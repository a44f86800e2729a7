package storage

import (
	"context"

	"docforge/internal/models"
	"docforge/internal/vector"
)

// ChunkSink adapts ChunkRepo to the pipeline's chunk persistence hook.
type ChunkSink struct {
	repo *ChunkRepo
}

func NewChunkSink(repo *ChunkRepo) *ChunkSink {
	return &ChunkSink{repo: repo}
}

func (s *ChunkSink) PersistChunks(ctx context.Context, documentID string, chunks []models.Chunk, embeddings *models.EmbeddingSet) error {
	vectors := map[string][]float32{}
	model := ""
	if embeddings != nil {
		model = embeddings.Model
		for _, ce := range embeddings.ChunkEmbeddings {
			vectors[ce.ChunkID] = ce.Vector
		}
	}
	records := make([]ChunkRecord, 0, len(chunks))
	for _, c := range chunks {
		var embedding *string
		if v, ok := vectors[c.ChunkID]; ok && len(v) > 0 {
			lit := vector.ToLiteral(v)
			embedding = &lit
		}
		records = append(records, ChunkRecord{
			ChunkID:         c.ChunkID,
			DocumentID:      documentID,
			ChunkIndex:      c.ChunkIndex,
			Text:            c.Text,
			PageStart:       c.PageStart,
			PageEnd:         c.PageEnd,
			EmbeddingModel:  model,
			EmbeddingVector: embedding,
		})
	}
	return s.repo.UpsertChunks(ctx, records)
}
