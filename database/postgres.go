package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// TenantDirectory resolves tenant domains to event-store databases from a
// PostgreSQL table:
//
//	CREATE TABLE tenants (
//	    domain        TEXT PRIMARY KEY,
//	    database_name TEXT NOT NULL,
//	    active        BOOLEAN NOT NULL DEFAULT TRUE
//	);
type TenantDirectory struct {
	db *sql.DB
}

func NewTenantDirectory(dsn string) (*TenantDirectory, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening tenant directory connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the tenant directory (ping failed): %w", err)
	}

	return &TenantDirectory{db: db}, nil
}

func (d *TenantDirectory) Resolve(ctx context.Context, domain string) (string, error) {
	if !validDomain(domain) {
		return "", fmt.Errorf("%w: %q", ErrUnknownTenant, domain)
	}

	var database string
	err := d.db.QueryRowContext(ctx, `
		SELECT database_name
		FROM tenants
		WHERE domain = $1 AND active;
	`, domain).Scan(&database)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %q", ErrUnknownTenant, domain)
		}
		return "", fmt.Errorf("failed to resolve tenant %q: %w", domain, err)
	}
	return database, nil
}

func (d *TenantDirectory) Close() error {
	return d.db.Close()
}
