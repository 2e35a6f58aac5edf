package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/dfryer1193/catalog/shared/db"
	_ "github.com/lib/pq"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 25
	connMaxLifetime = 5 * time.Minute
	connectTimeout  = 5 * time.Second
)

type PostgresConfig struct {
	URL string
}

// NewPostgresConfig prepares a connection url for lib/pq.
// When the url carries no sslmode, remote hosts get sslmode=require and local
// hosts sslmode=disable. A non-nil useSSL overrides that guess.
func NewPostgresConfig(rawURL string, useSSL *bool) (*PostgresConfig, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	q := u.Query()
	if q.Get("sslmode") == "" {
		ssl := !isLocalHost(u.Hostname())
		if useSSL != nil {
			ssl = *useSSL
		}
		if ssl {
			q.Set("sslmode", "require")
		} else {
			q.Set("sslmode", "disable")
		}
		u.RawQuery = q.Encode()
	}

	return &PostgresConfig{URL: u.String()}, nil
}

func isLocalHost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// PostgresDB implements the db.Database interface for PostgreSQL
type PostgresDB struct {
	url string
	db  *sql.DB
}

func NewPostgresDB(cfg *PostgresConfig) *PostgresDB {
	return &PostgresDB{
		url: cfg.URL,
	}
}

// Connect opens a pooled connection and creates the schema if absent.
func (p *PostgresDB) Connect() error {
	if p.db != nil {
		return fmt.Errorf("database already connected")
	}

	conn, err := sql.Open("postgres", p.url)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxIdleConns)
	conn.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.ApplySchema(ctx, conn, schema); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	p.db = conn
	return nil
}

func (p *PostgresDB) Close() error {
	if p.db == nil {
		return nil
	}

	err := p.db.Close()
	p.db = nil
	return err
}

func (p *PostgresDB) DB() *sql.DB {
	return p.db
}

func (p *PostgresDB) Dialect() db.Dialect {
	return db.Postgres
}
