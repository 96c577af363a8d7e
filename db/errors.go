package db

import (
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate value violates a unique constraint")
	ErrTooLong   = errors.New("value exceeds the column bound")
)

// postgres SQLSTATE codes
const (
	pgUniqueViolation  = "23505"
	pgCheckViolation   = "23514"
	pgStringTruncation = "22001"
)

// classify maps driver errors onto the package sentinels so callers can use errors.Is.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.WithMessage(ErrDuplicate, op)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return errors.WithMessage(ErrDuplicate, op)
		case sqlite3.ErrConstraintCheck:
			return errors.WithMessage(ErrTooLong, op)
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return errors.WithMessage(ErrDuplicate, op)
		case pgStringTruncation, pgCheckViolation:
			return errors.WithMessage(ErrTooLong, op)
		}
	}

	return errors.Wrap(err, op)
}
