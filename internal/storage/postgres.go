package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"
)

const createPaymentsTable = `
create table if not exists capture_bridge_payments (
	id         text primary key,
	gateway    text not null,
	details    jsonb not null,
	created_at timestamptz not null,
	updated_at timestamptz not null
)`

// PostgresStore keeps records in a single table, details as jsonb.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenPostgres connects with the lib/pq driver and creates the table.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping postgres: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an open database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Migrate creates the payments table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createPaymentsTable); err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, r *Record) error {
	raw, err := encode(r)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`insert into capture_bridge_payments (id, gateway, details, created_at, updated_at) values ($1, $2, $3, $4, $4)`,
		r.ID, r.Gateway, string(raw), now)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrExists, r.ID)
	}
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", r.ID, err)
	}
	r.CreatedAt, r.UpdatedAt = now, now
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	var snap snapshot
	err := s.db.QueryRowContext(ctx,
		`select gateway, details, created_at, updated_at from capture_bridge_payments where id = $1`, id).
		Scan(&snap.gateway, &snap.details, &snap.createdAt, &snap.updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", id, err)
	}
	return snap.record(id)
}

// Update implements Store.
func (s *PostgresStore) Update(ctx context.Context, r *Record) error {
	raw, err := encode(r)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	var createdAt time.Time
	err = s.db.QueryRowContext(ctx,
		`update capture_bridge_payments set gateway = $2, details = $3, updated_at = $4 where id = $1 returning created_at`,
		r.ID, r.Gateway, string(raw), now).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, r.ID)
	}
	if err != nil {
		return fmt.Errorf("storage: update %s: %w", r.ID, err)
	}
	r.CreatedAt, r.UpdatedAt = createdAt, now
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && pe.Code == "23505" {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		return true
	}
	return false
}
