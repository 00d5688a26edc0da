package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-retry"
)

var client *sqlx.DB

// NewPostgresClient connects with a bounded fibonacci backoff so the server
// survives the database coming up slightly later than the process.
func NewPostgresClient(ctx context.Context, dsn string) error {
	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("connect postgres: %w", err))
		}
		client = db
		return nil
	})
}

func Client() *sqlx.DB {
	return client
}
