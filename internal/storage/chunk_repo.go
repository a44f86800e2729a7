package storage

import (
	"context"
	"fmt"
)

type ChunkRecord struct {
	ChunkID         string
	DocumentID      string
	ChunkIndex      int
	Text            string
	PageStart       int
	PageEnd         int
	EmbeddingModel  string
	EmbeddingVector *string
}

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) UpsertChunks(ctx context.Context, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx upsert chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (chunk_id, document_id, chunk_index, text, page_start, page_end, embedding_model, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, CASE WHEN $8::text IS NULL THEN NULL ELSE $8::vector END)
ON CONFLICT (chunk_id)
DO UPDATE SET
  text = EXCLUDED.text,
  page_start = EXCLUDED.page_start,
  page_end = EXCLUDED.page_end,
  embedding_model = EXCLUDED.embedding_model,
  embedding = COALESCE(EXCLUDED.embedding, chunks.embedding)`,
			c.ChunkID, c.DocumentID, c.ChunkIndex, c.Text, c.PageStart, c.PageEnd, c.EmbeddingModel, c.EmbeddingVector,
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepo) ListChunksByDocument(ctx context.Context, documentID string) ([]ChunkRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT chunk_id, document_id::text, chunk_index, text, page_start, page_end, COALESCE(embedding_model,'')
FROM chunks
WHERE document_id=$1
ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks by document: %w", err)
	}
	defer rows.Close()
	out := make([]ChunkRecord, 0, 64)
	for rows.Next() {
		var c ChunkRecord
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.PageStart, &c.PageEnd, &c.EmbeddingModel); err != nil {
			return nil, fmt.Errorf("scan chunk by document: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks by document: %w", err)
	}
	return out, nil
}
