// Package journal records pipeline runs and the documents they produced in a
// SQL database: a local SQLite file by default, Postgres for shared setups.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/eps-docsorter/constants"
	"github.com/joseph-ayodele/eps-docsorter/internal/pipeline"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// Store is a pipeline.Journal backed by database/sql.
type Store struct {
	db      *sql.DB
	pool    *pgxpool.Pool
	dialect dialect
	logger  *slog.Logger
}

// Run is one row of the runs table.
type Run struct {
	ID         string
	Root       string
	Payer      string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     constants.RunStatus
	Error      string
}

// Document is one merged output of a run.
type Document struct {
	RunID     string
	Invoice   string
	DocType   constants.DocumentType
	Path      string
	Pages     int
	PatientID string
}

// Open connects to dsn and creates the tables if needed. A dsn starting with
// postgres:// or postgresql:// uses pgx; anything else is a SQLite file path.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("journal dsn is required")
	}

	s := &Store{logger: logger}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		pc, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse journal dsn: %w", err)
		}
		pc.ConnConfig.RuntimeParams["application_name"] = "eps-docsorter"
		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			logger.Error("failed to connect to journal database", "error", err)
			return nil, err
		}
		s.pool = pool
		s.db = stdlib.OpenDBFromPool(pool)
		s.dialect = dialectPostgres
	} else {
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		s.db = db
		s.dialect = dialectSQLite
	}

	if err := s.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Info("journal ready", "driver", s.driverName())
	return s, nil
}

func (s *Store) driverName() string {
	if s.dialect == dialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (s *Store) migrate(ctx context.Context) error {
	ts := "TIMESTAMP"
	if s.dialect == dialectPostgres {
		ts = "TIMESTAMPTZ"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			root TEXT NOT NULL,
			payer TEXT NOT NULL,
			started_at ` + ts + ` NOT NULL,
			finished_at ` + ts + `,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			run_id TEXT NOT NULL REFERENCES runs(id),
			invoice TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			path TEXT NOT NULL,
			pages INTEGER NOT NULL,
			patient_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS documents_run_id_idx ON documents(run_id)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(q string) string {
	if s.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) StartRun(ctx context.Context, runID, root, payer string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO runs (id, root, payer, started_at, status) VALUES (?, ?, ?, ?, ?)`),
		runID, root, payer, time.Now().UTC(), string(constants.RunStatusRunning))
	if err != nil {
		return fmt.Errorf("journal start run %s: %w", runID, err)
	}
	return nil
}

// FinishRun closes the run row and stores its merged documents in one transaction.
// A run that was never started is inserted.
func (s *Store) FinishRun(ctx context.Context, report pipeline.Report, status constants.RunStatus, runErr error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	started := report.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err = tx.ExecContext(ctx, s.rebind(
		`INSERT INTO runs (id, root, payer, started_at, finished_at, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET finished_at = excluded.finished_at, status = excluded.status, error = excluded.error`),
		report.RunID, report.Root, report.Payer, started.UTC(), finished.UTC(), string(status), msg)
	if err != nil {
		return fmt.Errorf("journal finish run %s: %w", report.RunID, err)
	}

	ins := s.rebind(`INSERT INTO documents (run_id, invoice, doc_type, path, pages, patient_id) VALUES (?, ?, ?, ?, ?, ?)`)
	for _, d := range report.Merged {
		if _, err := tx.ExecContext(ctx, ins, report.RunID, d.Invoice, d.Type.String(), d.Path, d.Pages, d.PatientID); err != nil {
			return fmt.Errorf("journal insert document %s: %w", d.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal commit: %w", err)
	}
	s.logger.Debug("run journaled", "run_id", report.RunID, "status", string(status), "documents", len(report.Merged))
	return nil
}

// Runs returns the most recent runs first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, root, payer, started_at, finished_at, status, error FROM runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var status string
		if err := rows.Scan(&r.ID, &r.Root, &r.Payer, &r.StartedAt, &r.FinishedAt, &status, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = constants.RunStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Documents returns the documents recorded for runID in insertion order.
func (s *Store) Documents(ctx context.Context, runID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT run_id, invoice, doc_type, path, pages, patient_id FROM documents WHERE run_id = ?`), runID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var docType string
		if err := rows.Scan(&d.RunID, &d.Invoice, &docType, &d.Path, &d.Pages, &d.PatientID); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.DocType = constants.DocumentType(docType)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Ping checks the connection, bounded by timeout when positive.
func (s *Store) Ping(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	err := s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}
