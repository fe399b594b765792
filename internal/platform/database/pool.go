// Package database opens the Postgres pool and applies schema migrations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

const (
	applicationName = "kycproxy"
	pingTimeout     = 5 * time.Second
)

type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectAttempts pings this many times before giving up; 0 means 1.
	ConnectAttempts int
	RetryDelay      time.Duration
}

// Pool is a *sql.DB on the pgx driver.
type Pool struct {
	db *sql.DB
}

// Open parses cfg.URL, opens the pool and waits until Postgres answers a
// ping. An empty URL returns (nil, nil) and the caller keeps records in memory.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	connCfg, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if _, ok := connCfg.RuntimeParams["application_name"]; !ok {
		connCfg.RuntimeParams["application_name"] = applicationName
	}

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := waitReady(ctx, db, max(cfg.ConnectAttempts, 1), cfg.RetryDelay); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Pool{db: db}, nil
}

func waitReady(ctx context.Context, db *sql.DB, attempts int, delay time.Duration) error {
	var err error
	for i := range attempts {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", errors.Join(err, ctx.Err()))
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("ping database after %d attempts: %w", attempts, err)
}

func (p *Pool) DB() *sql.DB { return p.db }

// Health pings the database; it is registered as the "postgres" readiness check.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errors.New("database not configured")
	}
	return p.db.PingContext(ctx)
}

func (p *Pool) Stats() sql.DBStats {
	if p == nil || p.db == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
