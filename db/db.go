// Package db implements the PostgreSQL store for classified log records.
package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/migadu/maillog/config"
	"github.com/migadu/maillog/logger"
)

//go:embed schema.sql
var schema string

// Database wraps a pgx connection pool. Each store call acquires its own
// connection from the pool; there is no shared mutable state besides the
// pool itself.
type Database struct {
	Pool *pgxpool.Pool
}

// NewDatabase opens a connection pool from configuration, verifies
// connectivity and applies the embedded schema.
func NewDatabase(ctx context.Context, dbConfig *config.DatabaseConfig) (*Database, error) {
	sslMode := "disable"
	if dbConfig.TLSMode {
		sslMode = "require"
	}

	connString := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name, sslMode)

	logger.Infof("[DB] connecting to database: postgres://%s@%s:%s/%s?sslmode=%s",
		dbConfig.User, dbConfig.Host, dbConfig.Port, dbConfig.Name, sslMode)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	if dbConfig.LogQueries {
		poolConfig.ConnConfig.Tracer = &queryTracer{}
	}

	if dbConfig.MaxConns > 0 {
		poolConfig.MaxConns = int32(dbConfig.MaxConns)
	}
	if dbConfig.MinConns > 0 {
		poolConfig.MinConns = int32(dbConfig.MinConns)
	}
	if dbConfig.MaxConnLifetime != "" {
		lifetime, err := dbConfig.GetMaxConnLifetime()
		if err != nil {
			return nil, fmt.Errorf("invalid max_conn_lifetime: %w", err)
		}
		poolConfig.MaxConnLifetime = lifetime
	}
	if dbConfig.MaxConnIdleTime != "" {
		idleTime, err := dbConfig.GetMaxConnIdleTime()
		if err != nil {
			return nil, fmt.Errorf("invalid max_conn_idle_time: %w", err)
		}
		poolConfig.MaxConnIdleTime = idleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	database := &Database{Pool: pool}

	if err := database.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return database, nil
}

func (db *Database) migrate(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}
