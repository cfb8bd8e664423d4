package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresRepository stores companies in a Postgres "companies" table,
// created on first use.
type PostgresRepository struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgres opens and pings the database behind dsn.
func NewPostgres(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) ensureSchema(ctx context.Context) error {
	r.schemaOnce.Do(func() {
		_, r.schemaErr = r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS companies (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  address TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  tax_id TEXT NOT NULL DEFAULT '',
  currency_symbol TEXT NOT NULL DEFAULT 'Bs.',
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_companies_name ON companies (name);
`)
	})
	return r.schemaErr
}

func (r *PostgresRepository) CreateTenant(ctx context.Context, req CreateRequest) (*Tenant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := r.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure companies table: %w", err)
	}
	req = req.Normalize()

	t := &Tenant{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Address:        req.Address,
		Phone:          req.Phone,
		Email:          req.Email,
		TaxID:          req.TaxID,
		CurrencySymbol: req.CurrencySymbol,
	}
	err := r.db.QueryRowContext(ctx, `
INSERT INTO companies (id, name, address, phone, email, tax_id, currency_symbol)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING created_at`,
		t.ID, t.Name, t.Address, t.Phone, t.Email, t.TaxID, t.CurrencySymbol,
	).Scan(&t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert company: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) ListTenants(ctx context.Context) ([]*Tenant, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure companies table: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, address, phone, email, tax_id, currency_symbol, created_at
FROM companies ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var out []*Tenant
	for rows.Next() {
		var (
			t         Tenant
			createdAt sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Address, &t.Phone, &t.Email, &t.TaxID, &t.CurrencySymbol, &createdAt); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		if createdAt.Valid {
			t.CreatedAt = createdAt.Time.UTC()
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
