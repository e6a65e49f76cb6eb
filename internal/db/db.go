// Package db provides PostgreSQL persistence for playlist imports, vendor
// offers, activity history, and user preferences.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool and verifies connectivity.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Imports returns an ImportRepository.
func (db *DB) Imports() *ImportRepository {
	return &ImportRepository{pool: db.pool}
}

// Activities returns an ActivityRepository.
func (db *DB) Activities() *ActivityRepository {
	return &ActivityRepository{pool: db.pool}
}

// Preferences returns a PreferenceRepository.
func (db *DB) Preferences() *PreferenceRepository {
	return &PreferenceRepository{pool: db.pool}
}

// Vendors returns a VendorRepository.
func (db *DB) Vendors() *VendorRepository {
	return &VendorRepository{pool: db.pool}
}
