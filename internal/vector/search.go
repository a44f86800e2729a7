// Package vector runs pgvector similarity queries over stored chunk
// embeddings.
package vector

import (
	"context"
	"fmt"
	"strings"

	"docforge/internal/models"

	"github.com/jackc/pgx/v5"
)

type SearchFilters struct {
	DocumentIDs    []string
	EmbeddingModel string
}

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

func (s *Searcher) SearchChunks(ctx context.Context, queryVec []float32, topK int, filters SearchFilters) ([]models.ChunkResult, error) {
	if topK <= 0 {
		topK = 8
	}
	vecLiteral := ToLiteral(queryVec)
	args := []any{vecLiteral, topK}

	filterSQL := ""
	if len(filters.DocumentIDs) > 0 {
		args = append(args, filters.DocumentIDs)
		filterSQL += fmt.Sprintf(" AND c.document_id = ANY($%d)", len(args))
	}
	if strings.TrimSpace(filters.EmbeddingModel) != "" {
		args = append(args, filters.EmbeddingModel)
		filterSQL += fmt.Sprintf(" AND c.embedding_model = $%d", len(args))
	}

	query := `
SELECT c.document_id::text,
       d.filename,
       c.chunk_id,
       LEFT(c.text, 420) AS snippet,
       1 - (c.embedding <=> $1::vector) AS score,
       c.text
FROM chunks c
JOIN documents d ON d.document_id = c.document_id
WHERE c.embedding IS NOT NULL` + filterSQL + `
ORDER BY c.embedding <=> $1::vector
LIMIT $2`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.ChunkResult, 0, topK)
	for rows.Next() {
		var r models.ChunkResult
		if err := rows.Scan(&r.DocumentID, &r.Filename, &r.ChunkID, &r.Snippet, &r.Score, &r.ChunkText); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

// ToLiteral renders a vector in pgvector's input syntax.
func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
