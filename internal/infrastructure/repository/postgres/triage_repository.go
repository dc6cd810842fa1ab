package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/mail-triage/internal/core/domain"
)

// TriageRepository is the audit trail of triage runs. It stores outcomes and
// sizes only; the email body is never persisted.
type TriageRepository struct {
	db *sql.DB
}

func NewTriageRepository(db *sql.DB) *TriageRepository {
	return &TriageRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	return preparePool(db)
}

// preparePool sizes the pool and checks connectivity. The pool is closed when
// the ping fails.
func preparePool(db *sql.DB) (*sql.DB, error) {
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *TriageRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// api, worker and cli may all start at once.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS triage_records (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	filename TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL,
	reply_source TEXT NOT NULL,
	productive_hits INTEGER NOT NULL,
	unproductive_hits INTEGER NOT NULL,
	text_chars INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_triage_records_created_at ON triage_records(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_triage_records_category ON triage_records(category);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *TriageRepository) Record(ctx context.Context, record domain.TriageRecord) error {
	const query = `
INSERT INTO triage_records (id, source, filename, category, reply_source, productive_hits, unproductive_hits, text_chars, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	if _, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.Source,
		record.Filename,
		string(record.Category),
		string(record.ReplySource),
		record.Scores.Productive,
		record.Scores.Unproductive,
		record.TextChars,
		record.CreatedAt,
	); err != nil {
		return domain.WrapError(domain.ErrTemporary, "insert triage record", err)
	}
	return nil
}

const selectColumns = `SELECT id, source, filename, category, reply_source, productive_hits, unproductive_hits, text_chars, created_at FROM triage_records`

func (r *TriageRepository) GetByID(ctx context.Context, id string) (*domain.TriageRecord, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get triage record", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get triage record: %w", err)
	}
	return record, nil
}

// ListRecent returns up to limit records, newest first.
func (r *TriageRepository) ListRecent(ctx context.Context, limit int) ([]domain.TriageRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list triage records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.TriageRecord, 0, limit)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan triage record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triage records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.TriageRecord, error) {
	var (
		record      domain.TriageRecord
		category    string
		replySource string
	)
	if err := row.Scan(
		&record.ID,
		&record.Source,
		&record.Filename,
		&category,
		&replySource,
		&record.Scores.Productive,
		&record.Scores.Unproductive,
		&record.TextChars,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}
	record.Category = domain.Category(category)
	record.ReplySource = domain.ReplySource(replySource)
	return &record, nil
}
