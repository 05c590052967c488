package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx and carries the retry policy shared by
// every repository. No other package opens a connection directly.
type DB struct {
	Client *sql.DB
	retry  Retryer
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string, retry Retryer) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db, retry: retry}, db.PingContext(context.Background())
}

// Do runs op under the retry policy. See Retryer.Do for the contract.
func (d *DB) Do(ctx context.Context, op func() error) error {
	return d.retry.Do(ctx, op)
}

// Exec runs a statement under the retry policy.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := d.retry.Do(ctx, func() error {
		var err error
		res, err = d.Client.ExecContext(ctx, query, args...)
		return err
	})
	return res, err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
