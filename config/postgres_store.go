// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hashicorp/cap-identity/secrets"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint
// violation.
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS identity_client_config (
	id                    BIGSERIAL PRIMARY KEY,
	client_name           TEXT NOT NULL UNIQUE,
	client_id             TEXT NOT NULL DEFAULT '',
	client_id_secret_name TEXT NOT NULL DEFAULT '',
	client_secret_name    TEXT NOT NULL DEFAULT '',
	authority             VARCHAR(100) NOT NULL,
	scheme                VARCHAR(100) NOT NULL
)`

const selectColumns = `id, client_name, client_id, client_id_secret_name, client_secret_name, authority, scheme`

// PostgresStore is a Repository backed by a PostgreSQL table. Open the
// *sql.DB with the "postgres" driver registered by github.com/lib/pq.
type PostgresStore struct {
	db *sql.DB
}

var _ Repository = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore using db. Call Migrate before
// first use against a new database.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	const op = "config.NewPostgresStore"
	if db == nil {
		return nil, fmt.Errorf("%s: db is nil: %w", op, ErrNilParameter)
	}
	return &PostgresStore{db: db}, nil
}

// OpenPostgresStore opens a connection pool for the dsn and verifies it's
// reachable.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	const op = "config.OpenPostgresStore"
	if dsn == "" {
		return nil, fmt.Errorf("%s: missing dsn: %w", op, ErrInvalidParameter)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: unable to reach database: %w", op, err)
	}
	return NewPostgresStore(db)
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate creates the client config table if it doesn't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const op = "PostgresStore.Migrate"
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Lookup returns the config with the id.
func (s *PostgresStore) Lookup(ctx context.Context, id int64) (*ClientConfig, error) {
	const op = "PostgresStore.Lookup"
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM identity_client_config WHERE id = $1`, id)
	c, err := scanClientConfig(row)
	if err != nil {
		return nil, fmt.Errorf("%s: client config %d: %w", op, id, err)
	}
	return c, nil
}

// LookupByName returns the config with the client name.
func (s *PostgresStore) LookupByName(ctx context.Context, clientName string) (*ClientConfig, error) {
	const op = "PostgresStore.LookupByName"
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM identity_client_config WHERE client_name = $1`, clientName)
	c, err := scanClientConfig(row)
	if err != nil {
		return nil, fmt.Errorf("%s: client config %q: %w", op, clientName, err)
	}
	return c, nil
}

// Create validates and inserts c, returning a copy with its assigned ID.
func (s *PostgresStore) Create(ctx context.Context, c *ClientConfig) (*ClientConfig, error) {
	const op = "PostgresStore.Create"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cp := *c
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO identity_client_config
			(client_name, client_id, client_id_secret_name, client_secret_name, authority, scheme)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		c.ClientName, c.ClientID, string(c.ClientIDSecretName), string(c.ClientSecretName), c.Authority, c.Scheme,
	).Scan(&cp.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%s: client name %q: %w", op, c.ClientName, ErrDuplicateClientName)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cp, nil
}

// List returns every config ordered by ID.
func (s *PostgresStore) List(ctx context.Context) ([]*ClientConfig, error) {
	const op = "PostgresStore.List"
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM identity_client_config ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var ret []*ClientConfig
	for rows.Next() {
		c, err := scanClientConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ret = append(ret, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ret, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClientConfig(row scanner) (*ClientConfig, error) {
	var (
		c                      ClientConfig
		idSecret, secretSecret string
	)
	err := row.Scan(&c.ID, &c.ClientName, &c.ClientID, &idSecret, &secretSecret, &c.Authority, &c.Scheme)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	c.ClientIDSecretName = secrets.Name(idSecret)
	c.ClientSecretName = secrets.Name(secretSecret)
	return &c, nil
}
