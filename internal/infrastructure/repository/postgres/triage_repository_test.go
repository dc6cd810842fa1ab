package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/mail-triage/internal/core/domain"
)

var recordColumns = []string{"id", "source", "filename", "category", "reply_source", "productive_hits", "unproductive_hits", "text_chars", "created_at"}

func newRepoWithMock(t *testing.T) (*TriageRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewTriageRepository(db), mock, func() { _ = db.Close() }
}

func TestPreparePoolClosesOnPingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	got, err := preparePool(db)
	if err == nil || got != nil {
		t.Fatalf("expected ping failure, got db=%v err=%v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expected pool to be closed: %v", err)
	}
	if err := db.Ping(); err == nil {
		t.Fatalf("expected closed pool to reject use")
	}
}

func TestPreparePoolKeepsHealthyPool(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	mock.ExpectPing()

	got, err := preparePool(db)
	if err != nil || got != db {
		t.Fatalf("expected pool returned, got db=%v err=%v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnsureSchemaTakesLockAndCommits(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(int64(2026101501)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS triage_records").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaRollsBackOnDDLFailure(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS triage_records").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	if err := repo.EnsureSchema(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordInsertsOutcome(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO triage_records").
		WithArgs("rec-1", "api", "mail.txt", "Productive", "template", 4, 0, 61, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Record(context.Background(), domain.TriageRecord{
		ID:          "rec-1",
		Source:      "api",
		Filename:    "mail.txt",
		Category:    domain.CategoryProductive,
		ReplySource: domain.ReplySourceTemplate,
		Scores:      domain.Scores{Productive: 4},
		TextChars:   61,
		CreatedAt:   created,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordFailureIsTemporary(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO triage_records").WillReturnError(errors.New("connection reset"))

	err := repo.Record(context.Background(), domain.TriageRecord{ID: "rec-1"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, source, filename").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentScansRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(recordColumns).
		AddRow("b", "imap", "", "Unproductive", "generated", 0, 3, 40, now).
		AddRow("a", "api", "x.pdf", "Productive", "template", 2, 1, 120, now.Add(-time.Minute))
	mock.ExpectQuery("SELECT id, source, filename").WithArgs(2).WillReturnRows(rows)

	records, err := repo.ListRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(records) != 2 || records[0].ID != "b" || records[1].Filename != "x.pdf" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if records[0].Category != domain.CategoryUnproductive || records[0].Scores.Unproductive != 3 {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
