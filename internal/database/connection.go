// Package database provides the PostgreSQL connection and schema
// migration plumbing backing the Postgres audit store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
)

// Config holds database connection configuration.
type Config struct {
	URL         string
	MaxConns    int
	MaxIdle     int
	MaxConnLife time.Duration
}

// DB wraps the sql.DB pool with health checking.
type DB struct {
	Conn *sql.DB
	log  *logrus.Logger
}

// NewConnection opens a pooled connection using the pgx driver and
// verifies it with a ping.
func NewConnection(ctx context.Context, config Config, logger *logrus.Logger) (*DB, error) {
	conn, err := sql.Open("pgx", config.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if config.MaxConns > 0 {
		conn.SetMaxOpenConns(config.MaxConns)
	}
	if config.MaxIdle > 0 {
		conn.SetMaxIdleConns(config.MaxIdle)
	}
	if config.MaxConnLife > 0 {
		conn.SetConnMaxLifetime(config.MaxConnLife)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"max_conns": config.MaxConns,
		"max_idle":  config.MaxIdle,
	}).Info("Database connection established")

	return &DB{Conn: conn, log: logger}, nil
}

// HealthCheck verifies the connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.Conn.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	db.log.Info("Closing database connection")
	return db.Conn.Close()
}
