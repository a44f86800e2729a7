package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"docforge/internal/kg"
)

// GraphRepo persists knowledge-graph nodes and cross-document edges. It
// satisfies kg.Persister; the in-memory graph stays authoritative and this
// repo just mirrors mutations durably.
type GraphRepo struct {
	db *DB
}

func NewGraphRepo(db *DB) *GraphRepo {
	return &GraphRepo{db: db}
}

func (r *GraphRepo) UpsertDocumentNode(ctx context.Context, node *kg.DocumentNode) error {
	entities, err := json.Marshal(node.Entities)
	if err != nil {
		return fmt.Errorf("marshal node entities: %w", err)
	}
	relationships, err := json.Marshal(node.Relationships)
	if err != nil {
		return fmt.Errorf("marshal node relationships: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO graph_nodes (document_id, root_cid, entities, relationships)
VALUES ($1, $2, $3, $4)
ON CONFLICT (document_id)
DO UPDATE SET
  root_cid = EXCLUDED.root_cid,
  entities = EXCLUDED.entities,
  relationships = EXCLUDED.relationships,
  updated_at = NOW()`,
		node.DocumentID, node.RootCID, entities, relationships,
	)
	if err != nil {
		return fmt.Errorf("upsert graph node %s: %w", node.DocumentID, err)
	}
	return nil
}

func (r *GraphRepo) UpsertCrossRelation(ctx context.Context, rel kg.Relation) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO graph_edges (source_document_id, target_document_id, relation_type, confidence, detail)
VALUES ($1, $2, $3, $4, NULLIF($5,''))
ON CONFLICT (source_document_id, target_document_id, relation_type)
DO UPDATE SET
  confidence = EXCLUDED.confidence,
  detail = EXCLUDED.detail,
  updated_at = NOW()`,
		rel.SourceDocumentID, rel.TargetDocumentID, rel.Type, rel.Confidence, rel.Detail,
	)
	if err != nil {
		return fmt.Errorf("upsert graph edge %s->%s: %w", rel.SourceDocumentID, rel.TargetDocumentID, err)
	}
	return nil
}

func (r *GraphRepo) ListCrossRelations(ctx context.Context, documentID string) ([]kg.Relation, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT source_document_id::text, target_document_id::text, relation_type, confidence, COALESCE(detail,'')
FROM graph_edges
WHERE source_document_id=$1 OR target_document_id=$1
ORDER BY confidence DESC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list graph edges: %w", err)
	}
	defer rows.Close()
	out := make([]kg.Relation, 0, 8)
	for rows.Next() {
		var rel kg.Relation
		if err := rows.Scan(&rel.SourceDocumentID, &rel.TargetDocumentID, &rel.Type, &rel.Confidence, &rel.Detail); err != nil {
			return nil, fmt.Errorf("scan graph edge: %w", err)
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}
