package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrBusy is returned when the store gave up waiting for a lock or
	// aborted the transaction to resolve contention. Safe to retry.
	ErrBusy = errors.New("store busy")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

const (
	pgUniqueViolation      = "23505"
	pgInvalidText          = "22P02"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// mapError translates driver errors into the storage taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrBusy, pgErr.Message)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case pgInvalidText:
			// A malformed uuid cannot name an existing row.
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Message)
		}
	}
	return err
}
