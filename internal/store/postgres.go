package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

const schema = `
create table if not exists form_results (
	form_id    bigint primary key,
	key_id     bigint not null,
	pages      integer not null,
	summary    text not null,
	csv        text not null,
	created_at timestamptz not null default now()
)`

// Postgres keeps results in a PostgreSQL table.
type Postgres struct {
	DB *sql.DB
}

// OpenPostgres connects with the pgx driver, checks the connection and
// creates the results table.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{DB: db}, nil
}

// Save inserts the result or replaces an earlier one for the same form.
func (s *Postgres) Save(ctx context.Context, r Result) error {
	const q = `
insert into form_results (form_id, key_id, pages, summary, csv, created_at)
values ($1, $2, $3, $4, $5, $6)
on conflict (form_id) do update
set key_id = excluded.key_id,
    pages = excluded.pages,
    summary = excluded.summary,
    csv = excluded.csv,
    created_at = excluded.created_at`
	created := r.Created
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.DB.ExecContext(ctx, q, r.FormID, r.KeyID, r.Pages, r.Summary, r.CSV, created)
	if err != nil {
		return fmt.Errorf("save result %d: %w", r.FormID, err)
	}
	return nil
}

// Get loads the result of a form.
func (s *Postgres) Get(ctx context.Context, formID int64) (Result, error) {
	const q = `
select form_id, key_id, pages, summary, csv, created_at
from form_results
where form_id = $1`
	var r Result
	err := s.DB.QueryRowContext(ctx, q, formID).
		Scan(&r.FormID, &r.KeyID, &r.Pages, &r.Summary, &r.CSV, &r.Created)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, fmt.Errorf("load result %d: %w", formID, err)
	}
	return r, nil
}

// Close closes the connection pool.
func (s *Postgres) Close() error { return s.DB.Close() }
