package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// AuditRepo appends document-access events. Writes are best effort: a failed
// insert is logged and dropped rather than failing the pipeline.
type AuditRepo struct {
	db  *DB
	log zerolog.Logger
}

func NewAuditRepo(db *DB, log zerolog.Logger) *AuditRepo {
	return &AuditRepo{db: db, log: log}
}

// LogDocumentAccess satisfies monitor.AuditLogger.
func (r *AuditRepo) LogDocumentAccess(documentRef, actor, outcome string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.insert(ctx, documentRef, actor, outcome); err != nil {
		r.log.Warn().Err(err).Str("document_ref", documentRef).Msg("audit insert dropped")
	}
}

func (r *AuditRepo) insert(ctx context.Context, documentRef, actor, outcome string) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO audit_log (document_ref, actor, outcome)
VALUES ($1, $2, $3)`, documentRef, actor, outcome)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
