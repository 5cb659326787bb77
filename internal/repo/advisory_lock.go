package repo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"
)

// AdvisoryLocker serialises work per key across processes sharing the same
// PostgreSQL database, using session-level advisory locks.
type AdvisoryLocker struct {
	db *sql.DB
}

func NewAdvisoryLocker(db *sql.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

// Lock pins a connection, takes pg_advisory_lock for key and returns a
// release func that unlocks and hands the connection back to the pool.
func (l *AdvisoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("advisory lock %s: %w", key, err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, key); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("advisory lock %s: %w", key, err)
	}

	return func() {
		// the caller's ctx may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key); err != nil {
			// a broken session drops its locks; discard it instead of pooling it
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
		_ = conn.Close()
	}, nil
}
