package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	perr "lumen/internal/platform/errors"
	"lumen/internal/platform/store"
	"lumen/internal/services/describe/domain"
)

// History persists finished batch runs to postgres
type History struct {
	db store.TxRunner
}

// NewHistory binds a history repo to the given sql seam
func NewHistory(db store.TxRunner) *History {
	if db == nil {
		panic("describe.History requires a non nil TxRunner")
	}
	return &History{db: db}
}

// EnsureSchema creates the history table if it is missing
func (h *History) EnsureSchema(ctx context.Context) error {
	_, err := h.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS describe_batches (
			id          UUID PRIMARY KEY,
			folder_path TEXT NOT NULL,
			extension   TEXT NOT NULL,
			total_found INT NOT NULL,
			attempted   INT NOT NULL,
			succeeded   INT NOT NULL,
			failed      INT NOT NULL,
			duration_ms BIGINT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return perr.WrapIf(err, perr.ErrorCodeUnavailable, "ensure history schema")
}

// Record inserts one finished batch
func (h *History) Record(ctx context.Context, rec domain.BatchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := h.db.Exec(ctx, `
		INSERT INTO describe_batches
			(id, folder_path, extension, total_found, attempted, succeeded, failed, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.FolderPath, rec.Extension,
		rec.TotalFound, rec.Attempted, rec.Succeeded, rec.Failed,
		rec.Duration.Milliseconds(), rec.CreatedAt,
	)
	return perr.WrapIf(err, perr.ErrorCodeUnavailable, "record batch run")
}

// Recent returns the latest runs, newest first
func (h *History) Recent(ctx context.Context, limit int) ([]domain.BatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.Query(ctx, `
		SELECT id, folder_path, extension, total_found, attempted, succeeded, failed, duration_ms, created_at
		FROM describe_batches
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BatchRecord
	for rows.Next() {
		var rec domain.BatchRecord
		var ms int64
		if err := rows.Scan(
			&rec.ID, &rec.FolderPath, &rec.Extension,
			&rec.TotalFound, &rec.Attempted, &rec.Succeeded, &rec.Failed,
			&ms, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}
