package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"migra/pkg/report"
)

// dialect holds the statements that differ between databases.
type dialect struct {
	name        string
	driver      string
	createTable string
	insert      string
	count       string
}

var dialects = map[string]dialect{
	"sqlite": {
		name:   "sqlite",
		driver: "sqlite",
		createTable: `
CREATE TABLE IF NOT EXISTS migration_rows (
  tenant_id TEXT NOT NULL,
  schema_name TEXT NOT NULL,
  natural_key TEXT NOT NULL,
  source_file TEXT NOT NULL,
  source_row INTEGER NOT NULL,
  payload TEXT NOT NULL,
  imported_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (tenant_id, schema_name, natural_key)
)`,
		insert: `INSERT OR IGNORE INTO migration_rows
  (tenant_id, schema_name, natural_key, source_file, source_row, payload)
VALUES (?,?,?,?,?,?)`,
		count: `SELECT COUNT(*) FROM migration_rows WHERE tenant_id = ? AND schema_name = ?`,
	},
	"postgres": {
		name:   "postgres",
		driver: "pgx",
		createTable: `
CREATE TABLE IF NOT EXISTS migration_rows (
  tenant_id TEXT NOT NULL,
  schema_name TEXT NOT NULL,
  natural_key TEXT NOT NULL,
  source_file TEXT NOT NULL,
  source_row INTEGER NOT NULL,
  payload JSONB NOT NULL,
  imported_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  PRIMARY KEY (tenant_id, schema_name, natural_key)
)`,
		insert: `INSERT INTO migration_rows
  (tenant_id, schema_name, natural_key, source_file, source_row, payload)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (tenant_id, schema_name, natural_key) DO NOTHING`,
		count: `SELECT COUNT(*) FROM migration_rows WHERE tenant_id = $1 AND schema_name = $2`,
	},
	"mysql": {
		name:   "mysql",
		driver: "mysql",
		createTable: `
CREATE TABLE IF NOT EXISTS migration_rows (
  tenant_id VARCHAR(64) NOT NULL,
  schema_name VARCHAR(64) NOT NULL,
  natural_key VARCHAR(191) NOT NULL,
  source_file VARCHAR(512) NOT NULL,
  source_row INT NOT NULL,
  payload JSON NOT NULL,
  imported_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY (tenant_id, schema_name, natural_key)
) DEFAULT CHARSET=utf8mb4`,
		insert: `INSERT IGNORE INTO migration_rows
  (tenant_id, schema_name, natural_key, source_file, source_row, payload)
VALUES (?,?,?,?,?,?)`,
		count: `SELECT COUNT(*) FROM migration_rows WHERE tenant_id = ? AND schema_name = ?`,
	},
}

// SQLStore writes imported rows into the migration_rows staging table. A
// row is identified by tenant, schema and natural key; storing it again is
// a no-op, which makes re-running an import safe.
type SQLStore struct {
	db      *sql.DB
	dialect dialect

	// schemaReady is set once the staging table exists; failures are retried
	// on the next call.
	schemaMu    sync.Mutex
	schemaReady bool
}

// OpenStore connects to the database. kind is "sqlite", "postgres" or
// "mysql".
func OpenStore(kind, dsn string) (*SQLStore, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return nil, fmt.Errorf("unsupported import database %q", kind)
	}
	db, err := sql.Open(d.driver, strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if d.name == "sqlite" {
		// One connection: SQLite has a single writer and ":memory:" is per connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLStore{db: db, dialect: d}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Dialect names the database the store writes to.
func (s *SQLStore) Dialect() string {
	return s.dialect.name
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return err
	}
	s.schemaReady = true
	return nil
}

// Count returns how many rows a tenant has staged for a schema.
func (s *SQLStore) Count(ctx context.Context, tenantID, schemaName string) (int, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.count, tenantID, schemaName).Scan(&n)
	return n, err
}

// ImportFile stores every row of one file in a single transaction. Rows that
// cannot be converted are rejected individually; a database error rolls the
// whole file back and is reported as a failed file.
func (s *SQLStore) ImportFile(ctx context.Context, tenantID string, fr FileRequest) report.FileReport {
	result := report.FileReport{
		File:   fr.File.Name,
		Schema: fr.Schema.Name,
		Rows:   fr.File.RowCount,
	}

	p, err := newPlan(fr)
	if err != nil {
		result.Status = report.StatusFailed
		result.Error = err.Error()
		return result
	}

	if err := s.importRows(ctx, tenantID, fr, p, &result); err != nil {
		result.Status = report.StatusFailed
		result.Error = err.Error()
		result.Inserted, result.Skipped = 0, 0
		return result
	}

	result.Status = report.StatusImported
	if result.Rejected > 0 {
		result.Status = report.StatusPartial
	}
	return result
}

func (s *SQLStore) importRows(ctx context.Context, tenantID string, fr FileRequest, p *plan, result *report.FileReport) error {
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure migration_rows table: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.dialect.insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range fr.File.Data {
		rec, err := p.record(row)
		if err != nil {
			var re *rowError
			if errors.As(err, &re) {
				result.AddIssue(i+1, re.reason)
				continue
			}
			return err
		}

		res, err := stmt.ExecContext(ctx, tenantID, fr.Schema.Name, rec.Key, fr.File.Name, i+1, string(rec.Payload))
		if err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
		if affected > 0 {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
