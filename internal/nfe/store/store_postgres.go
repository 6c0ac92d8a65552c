package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"frota/internal/nfe/metrics"
	"frota/pkg/domain"
	"frota/pkg/platform/tx"
	"frota/pkg/requestcontext"
)

// Schema creates the document cache table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS nfe_documents (
	access_key CHAR(44) PRIMARY KEY,
	body       BYTEA NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL
)`

// PostgresCache persists documents in PostgreSQL. Rows outlive the TTL;
// expired rows are simply ignored by FindDocument and overwritten on save.
type PostgresCache struct {
	db       *sql.DB
	cacheTTL time.Duration
	metrics  *metrics.Metrics
}

// NewPostgresCache constructs a PostgreSQL-backed document cache.
func NewPostgresCache(db *sql.DB, cacheTTL time.Duration, m *metrics.Metrics) *PostgresCache {
	return &PostgresCache{
		db:       db,
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// EnsureSchema creates the cache table when it does not exist.
func (c *PostgresCache) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure document cache schema: %w", err)
	}
	return nil
}

// SaveDocument upserts the document body. It joins the transaction carried by
// ctx, if any.
func (c *PostgresCache) SaveDocument(ctx context.Context, key domain.AccessKey, body []byte) error {
	if len(body) == 0 {
		return nil
	}
	query := `
		INSERT INTO nfe_documents (access_key, body, fetched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (access_key) DO UPDATE SET
			body = EXCLUDED.body,
			fetched_at = EXCLUDED.fetched_at
	`
	if _, err := tx.Conn(ctx, c.db).ExecContext(ctx, query, key.String(), body, requestcontext.Now(ctx)); err != nil {
		return fmt.Errorf("save document cache: %w", err)
	}
	return nil
}

// FindDocument returns the cached body when it was fetched within the TTL.
func (c *PostgresCache) FindDocument(ctx context.Context, key domain.AccessKey) ([]byte, error) {
	cutoff := requestcontext.Now(ctx).Add(-c.cacheTTL)
	var body []byte
	err := tx.Conn(ctx, c.db).QueryRowContext(ctx,
		`SELECT body FROM nfe_documents WHERE access_key = $1 AND fetched_at > $2`,
		key.String(), cutoff,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.metrics.RecordCacheMiss("postgres")
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find document cache: %w", err)
	}
	c.metrics.RecordCacheHit("postgres")
	return body, nil
}

// SaveDocuments stores several documents in one transaction. Either all of
// them are saved or none is.
func (c *PostgresCache) SaveDocuments(ctx context.Context, docs map[domain.AccessKey][]byte) error {
	return tx.Run(ctx, c.db, func(ctx context.Context) error {
		for key, body := range docs {
			if err := c.SaveDocument(ctx, key, body); err != nil {
				return err
			}
		}
		return nil
	})
}

// Purge deletes rows fetched before the TTL window and returns how many were
// removed.
func (c *PostgresCache) Purge(ctx context.Context) (int64, error) {
	cutoff := requestcontext.Now(ctx).Add(-c.cacheTTL)
	res, err := tx.Conn(ctx, c.db).ExecContext(ctx, `DELETE FROM nfe_documents WHERE fetched_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge document cache: %w", err)
	}
	return res.RowsAffected()
}
