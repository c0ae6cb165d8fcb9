package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

const loanColumns = `id, book_id, user_id, borrow_date, due_date, return_date`

// CreateLoan records that userID borrows bookID today, due in LoanPeriod.
//
// The store alone enforces the loan cap and book availability. A rejection
// comes back as ErrConstraintViolation carrying the store's message, and an
// unknown book or user as ErrInvalidReference. The transaction is rolled back
// on any failure.
func (d *Database) CreateLoan(ctx context.Context, bookID, userID int64) (loanID int64, err error) {
	ctx, span := d.startSpan(ctx, "CreateLoan",
		attribute.Int64("book.id", bookID),
		attribute.Int64("user.id", userID),
	)
	defer func() { endSpan(span, err) }()

	borrowed := d.today()
	due := borrowed.Add(LoanPeriod)

	err = d.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`INSERT INTO loans (book_id, user_id, borrow_date, due_date)
			VALUES (?, ?, ?, ?) RETURNING id`)
		return tx.QueryRowxContext(ctx, query, bookID, userID, borrowed, due).Scan(&loanID)
	})
	if err != nil {
		return 0, fmt.Errorf("borrow book %d: %w", bookID, translate(err))
	}
	span.SetAttributes(attribute.Int64("loan.id", loanID))
	return loanID, nil
}

// ReturnLoan closes an active loan with today's date. The store flips the book
// back to available. Returned and unknown loans yield ErrNotFound and nothing
// changes.
func (d *Database) ReturnLoan(ctx context.Context, loanID int64) (err error) {
	ctx, span := d.startSpan(ctx, "ReturnLoan", attribute.Int64("loan.id", loanID))
	defer func() { endSpan(span, err) }()

	err = d.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE loans SET return_date = ? WHERE id = ? AND return_date IS NULL`),
			d.today(), loanID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("no active loan with id %d: %w", loanID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("return loan %d: %w", loanID, translate(err))
	}
	return nil
}

// GetLoan fetches a single loan, active or returned.
func (d *Database) GetLoan(ctx context.Context, id int64) (_ *Loan, err error) {
	ctx, span := d.startSpan(ctx, "GetLoan", attribute.Int64("loan.id", id))
	defer func() { endSpan(span, err) }()

	var l Loan
	err = d.db.GetContext(ctx, &l, d.db.Rebind(`SELECT `+loanColumns+` FROM loans WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get loan %d: %w", id, translate(err))
	}
	return &l, nil
}

// ActiveLoans lists the unreturned loans held by userID, oldest first.
func (d *Database) ActiveLoans(ctx context.Context, userID int64) (_ []Loan, err error) {
	ctx, span := d.startSpan(ctx, "ActiveLoans", attribute.Int64("user.id", userID))
	defer func() { endSpan(span, err) }()

	loans := make([]Loan, 0)
	query := d.db.Rebind(`SELECT ` + loanColumns + ` FROM loans
		WHERE user_id = ? AND return_date IS NULL
		ORDER BY borrow_date ASC, id ASC`)
	if err := d.db.SelectContext(ctx, &loans, query, userID); err != nil {
		return nil, fmt.Errorf("list active loans: %w", translate(err))
	}
	return loans, nil
}
