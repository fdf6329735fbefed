package duck

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DB is an in-memory DuckDB database. It holds the subscription table for the
// lifetime of one agent instance; there is no persistence path.
type DB struct {
	log *slog.Logger
	db  *sql.DB
}

// Connection is a single connection checked out from the database.
type Connection struct {
	conn *sql.Conn
}

func (c *Connection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

func (c *Connection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

func (c *Connection) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

func (c *Connection) Close() error {
	return c.conn.Close()
}

// NewDB opens an in-memory DuckDB database.
func NewDB(ctx context.Context, log *slog.Logger) (*DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if log != nil {
		log.Debug("duck: opened in-memory database")
	}
	return &DB{log: log, db: db}, nil
}

// Conn checks out a connection from the pool. The caller must close it.
func (d *DB) Conn(ctx context.Context) (*Connection, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return &Connection{conn: conn}, nil
}

func (d *DB) Close() error {
	if d.log != nil {
		d.log.Debug("duck: closing database")
	}
	return d.db.Close()
}
