package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUnavailable means the store stayed unreachable through the whole retry
// budget. Callers surface it as a 5xx-class failure.
var ErrUnavailable = errors.New("store unavailable")

// Retryer reruns an operation on transient failures with a fixed delay between
// attempts. Non-transient errors (constraint violations, no rows) are returned
// immediately so callers can interpret them.
type Retryer struct {
	Attempts int
	Delay    time.Duration
}

// NewRetryer builds a retryer, falling back to 5 attempts 2s apart.
func NewRetryer(attempts int, delay time.Duration) Retryer {
	if attempts <= 0 {
		attempts = 5
	}
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return Retryer{Attempts: attempts, Delay: delay}
}

// Do runs op up to r.Attempts times. The inter-attempt sleep honors ctx, so a
// caller timeout cuts the loop short; in that case the context error is returned.
func (r Retryer) Do(ctx context.Context, op func() error) error {
	var last error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		last = op()
		if last == nil {
			return nil
		}
		if !IsTransient(last) {
			return last
		}
		if attempt == r.Attempts {
			break
		}
		log.Printf("store: transient failure (attempt %d/%d), retrying in %s: %v", attempt, r.Attempts, r.Delay, last)
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, r.Attempts, last)
}

// IsTransient reports whether err looks like momentary connectivity loss rather
// than a structural failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. 57P0x: server shutdown/crash.
		// 53300: too many connections.
		if strings.HasPrefix(pgErr.Code, "08") {
			return true
		}
		switch pgErr.Code {
		case "57P01", "57P02", "57P03", "53300":
			return true
		}
	}
	return false
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. The ledger maps this to its conflict error; it is authoritative
// over any application-level pre-check.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
