package library

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrConnectionFailure means the store could not be reached. The
	// operation is aborted; the process may retry later.
	ErrConnectionFailure = errors.New("store unreachable")
	// ErrConstraintViolation is a business-rule rejection raised by the store,
	// such as the loan cap or an unavailable book.
	ErrConstraintViolation = errors.New("constraint violation")
	ErrNotFound            = errors.New("not found")
	// ErrMembershipConflict groups every rejected club join.
	ErrMembershipConflict = errors.New("could not join club")
	ErrAlreadyMember      = fmt.Errorf("%w: already a member", ErrMembershipConflict)
	ErrInvalidReference   = errors.New("invalid reference")

	ErrNotAuthenticated = errors.New("not logged in")
	ErrForbidden        = errors.New("operation not permitted for this role")
	ErrTooManyAttempts  = errors.New("too many login attempts, try again later")
)

// StoreError is a store rejection translated into a domain error. It matches
// both its Kind sentinel and the driver error under errors.Is/As.
type StoreError struct {
	Kind    error
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *StoreError) Unwrap() []error { return []error{e.Kind, e.Err} }

type fault int

const (
	faultOther fault = iota
	faultConnection
	faultUnique
	faultForeignKey
	faultRule
)

// classify inspects driver errors from sqlite3, pgx and lib/pq and reports
// what kind of rejection the store produced plus its human-readable text.
func classify(err error) (fault, string) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		msg := sqliteErr.Error()
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return faultUnique, msg
		case sqlite3.ErrConstraintForeignKey:
			return faultForeignKey, msg
		case sqlite3.ErrConstraintTrigger, sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return faultRule, msg
		}
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return faultRule, msg
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrIoErr:
			return faultConnection, msg
		}
		return faultOther, msg
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return sqlstateFault(pgErr.Code), pgErr.Message
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return sqlstateFault(string(pqErr.Code)), pqErr.Message
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return faultConnection, err.Error()
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return faultConnection, err.Error()
	}
	// database/sql does not export its closed-pool error.
	if strings.Contains(err.Error(), "sql: database is closed") {
		return faultConnection, err.Error()
	}

	return faultOther, err.Error()
}

func sqlstateFault(code string) fault {
	switch {
	case code == "23505":
		return faultUnique
	case code == "23503":
		return faultForeignKey
	case code == "P0001", code == "23514", code == "23502":
		return faultRule
	case strings.HasPrefix(code, "08"), code == "57P01", code == "57P02", code == "57P03":
		return faultConnection
	}
	return faultOther
}

// translate maps a store error onto the domain sentinels. Errors that are
// not store rejections pass through unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	f, msg := classify(err)
	switch f {
	case faultConnection:
		return &StoreError{Kind: ErrConnectionFailure, Message: msg, Err: err}
	case faultUnique, faultRule:
		return &StoreError{Kind: ErrConstraintViolation, Message: msg, Err: err}
	case faultForeignKey:
		return &StoreError{Kind: ErrInvalidReference, Message: msg, Err: err}
	}
	return err
}
