package storage

import (
	"context"
	"fmt"

	"docforge/internal/models"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) UpsertDocument(ctx context.Context, d models.DocumentRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (document_id, filename, root_cid, status, page_count, entity_count, fail_reason)
VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, NULLIF($7,''))
ON CONFLICT (document_id)
DO UPDATE SET
  filename = EXCLUDED.filename,
  root_cid = COALESCE(EXCLUDED.root_cid, documents.root_cid),
  status = EXCLUDED.status,
  page_count = EXCLUDED.page_count,
  entity_count = EXCLUDED.entity_count,
  fail_reason = EXCLUDED.fail_reason,
  updated_at = NOW()`,
		d.DocumentID, d.Filename, d.RootCID, d.Status, d.PageCount, d.EntityCount, d.FailReason,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateDocumentStatus(ctx context.Context, documentID, status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE documents SET status=$2, fail_reason=NULLIF($3,''), updated_at=NOW() WHERE document_id=$1`,
		documentID, status, failReason)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, documentID string) (models.DocumentRecord, error) {
	var d models.DocumentRecord
	err := r.db.Pool.QueryRow(ctx, `
SELECT document_id::text, filename, COALESCE(root_cid,''), status, page_count, entity_count,
       COALESCE(fail_reason,''), created_at, updated_at
FROM documents
WHERE document_id=$1`, documentID).
		Scan(&d.DocumentID, &d.Filename, &d.RootCID, &d.Status, &d.PageCount, &d.EntityCount, &d.FailReason, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.DocumentRecord{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) ListDocuments(ctx context.Context, limit int) ([]models.DocumentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id::text, filename, COALESCE(root_cid,''), status, page_count, entity_count,
       COALESCE(fail_reason,''), created_at, updated_at
FROM documents
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.DocumentRecord, 0, limit)
	for rows.Next() {
		var d models.DocumentRecord
		if err := rows.Scan(&d.DocumentID, &d.Filename, &d.RootCID, &d.Status, &d.PageCount, &d.EntityCount, &d.FailReason, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// ListDocumentsByRootCID finds documents whose content hashes to the same
// root, i.e. byte-identical uploads under different names.
func (r *DocumentRepo) ListDocumentsByRootCID(ctx context.Context, rootCID string) ([]models.DocumentRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id::text, filename, COALESCE(root_cid,''), status, page_count, entity_count,
       COALESCE(fail_reason,''), created_at, updated_at
FROM documents
WHERE root_cid=$1
ORDER BY created_at ASC`, rootCID)
	if err != nil {
		return nil, fmt.Errorf("list documents by root cid: %w", err)
	}
	defer rows.Close()
	out := make([]models.DocumentRecord, 0, 2)
	for rows.Next() {
		var d models.DocumentRecord
		if err := rows.Scan(&d.DocumentID, &d.Filename, &d.RootCID, &d.Status, &d.PageCount, &d.EntityCount, &d.FailReason, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document by root cid: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
