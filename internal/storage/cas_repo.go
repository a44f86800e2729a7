package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CASRepo is the Postgres-backed content-addressed store. Put relies on
// ON CONFLICT DO NOTHING: a cid is derived from its bytes, so a conflicting
// row is by definition the same content.
type CASRepo struct {
	db *DB
}

func NewCASRepo(db *DB) *CASRepo {
	return &CASRepo{db: db}
}

func (r *CASRepo) Put(ctx context.Context, cid string, data []byte) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO content_units (cid, payload)
VALUES ($1, $2)
ON CONFLICT (cid) DO NOTHING`, cid, data)
	if err != nil {
		return fmt.Errorf("put content unit %s: %w", cid, err)
	}
	return nil
}

func (r *CASRepo) Get(ctx context.Context, cid string) ([]byte, bool, error) {
	var data []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT payload FROM content_units WHERE cid=$1`, cid).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get content unit %s: %w", cid, err)
	}
	return data, true, nil
}

func (r *CASRepo) Has(ctx context.Context, cid string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM content_units WHERE cid=$1)`, cid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has content unit %s: %w", cid, err)
	}
	return exists, nil
}
