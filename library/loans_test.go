package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFourthLoanIsRejected(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	userID := addUser(t, db, RoleMember)

	for i := 0; i < 3; i++ {
		_, err := db.CreateLoan(ctx, addBook(t, db, "Book"), userID)
		require.NoError(t, err)
	}

	fourth := addBook(t, db, "Fourth")
	_, err := db.CreateLoan(ctx, fourth, userID)
	require.ErrorIs(t, err, ErrConstraintViolation)
	assert.Contains(t, err.Error(), "at most 3 active loans")

	active, err := db.ActiveLoans(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	// The rejected loan left no trace.
	b, err := db.GetBook(ctx, fourth)
	require.NoError(t, err)
	assert.True(t, b.Available)
	n, err := db.Count(ctx, MetricActiveLoans)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBorrowUnavailableBookThenReturn(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	alice := addUser(t, db, RoleMember)
	bob := addUser(t, db, RoleMember)
	bookID := addBook(t, db, "Shared")

	loanID, err := db.CreateLoan(ctx, bookID, alice)
	require.NoError(t, err)

	b, err := db.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.False(t, b.Available)

	_, err = db.CreateLoan(ctx, bookID, alice)
	require.ErrorIs(t, err, ErrConstraintViolation)
	assert.Contains(t, err.Error(), "not available")

	_, err = db.CreateLoan(ctx, bookID, bob)
	require.ErrorIs(t, err, ErrConstraintViolation)

	require.NoError(t, db.ReturnLoan(ctx, loanID))

	_, err = db.CreateLoan(ctx, bookID, bob)
	require.NoError(t, err)
}

func TestReturnLoanNotFound(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)}
	db := tempDBWithClock(t, clock.Now)
	ctx := context.Background()
	userID := addUser(t, db, RoleMember)
	bookID := addBook(t, db, "Once")

	loanID, err := db.CreateLoan(ctx, bookID, userID)
	require.NoError(t, err)
	require.NoError(t, db.ReturnLoan(ctx, loanID))

	clock.t = clock.t.AddDate(0, 0, 3)
	err = db.ReturnLoan(ctx, loanID)
	require.ErrorIs(t, err, ErrNotFound)

	loan, err := db.GetLoan(ctx, loanID)
	require.NoError(t, err)
	require.NotNil(t, loan.ReturnDate)
	assert.True(t, loan.ReturnDate.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)), "return date must not move")

	err = db.ReturnLoan(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	b, err := db.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.True(t, b.Available)
}

func TestCreateLoanUnknownReferences(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	userID := addUser(t, db, RoleMember)
	bookID := addBook(t, db, "Real")

	_, err := db.CreateLoan(ctx, 12345, userID)
	assert.ErrorIs(t, err, ErrInvalidReference)

	_, err = db.CreateLoan(ctx, bookID, 12345)
	assert.ErrorIs(t, err, ErrInvalidReference)

	b, err := db.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.True(t, b.Available)
}

func TestDuneScenario(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)}
	db := tempDBWithClock(t, clock.Now)
	ctx := context.Background()

	bookID, err := db.CreateBook(ctx, "Dune", "SciFi", 1965)
	require.NoError(t, err)
	userID := addUser(t, db, RoleMember)

	loanID, err := db.CreateLoan(ctx, bookID, userID)
	require.NoError(t, err)

	loan, err := db.GetLoan(ctx, loanID)
	require.NoError(t, err)
	assert.True(t, loan.Active())
	assert.Equal(t, bookID, loan.BookID)
	assert.Equal(t, userID, loan.UserID)
	assert.True(t, loan.BorrowDate.Equal(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)))
	assert.True(t, loan.DueDate.Equal(loan.BorrowDate.AddDate(0, 0, 7)))

	clock.t = clock.t.AddDate(0, 0, 2)
	require.NoError(t, db.ReturnLoan(ctx, loanID))

	b, err := db.GetBook(ctx, bookID)
	require.NoError(t, err)
	assert.True(t, b.Available)

	loan, err = db.GetLoan(ctx, loanID)
	require.NoError(t, err)
	assert.False(t, loan.Active())
	assert.True(t, loan.ReturnDate.Equal(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)))

	top, err := db.TopBooks(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, top)
	assert.Equal(t, "Dune", top[0].Title)
	assert.GreaterOrEqual(t, top[0].Count, 1)
}

func TestActiveLoansOnlyListsOpenLoans(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	userID := addUser(t, db, RoleMember)
	other := addUser(t, db, RoleMember)

	first, err := db.CreateLoan(ctx, addBook(t, db, "A"), userID)
	require.NoError(t, err)
	second, err := db.CreateLoan(ctx, addBook(t, db, "B"), userID)
	require.NoError(t, err)
	_, err = db.CreateLoan(ctx, addBook(t, db, "C"), other)
	require.NoError(t, err)
	require.NoError(t, db.ReturnLoan(ctx, first))

	active, err := db.ActiveLoans(ctx, userID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second, active[0].ID)
}

// The store must keep every borrower at or below three active loans and every
// book on at most one active loan, whatever order borrows and returns arrive in.
func TestLoanInvariantsHoldForAnySequence(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		userID := addUser(rt, db, RoleMember)
		books := make([]int64, rapid.IntRange(1, 6).Draw(rt, "books"))
		for i := range books {
			books[i] = addBook(rt, db, "Property")
		}

		active := map[int64]int64{} // book id -> loan id
		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			bookID := books[rapid.IntRange(0, len(books)-1).Draw(rt, "book")]
			loanID, open := active[bookID]

			if open && rapid.Bool().Draw(rt, "return") {
				require.NoError(rt, db.ReturnLoan(ctx, loanID))
				delete(active, bookID)
				continue
			}

			id, err := db.CreateLoan(ctx, bookID, userID)
			if open || len(active) >= 3 {
				require.ErrorIs(rt, err, ErrConstraintViolation)
				continue
			}
			require.NoError(rt, err)
			active[bookID] = id
		}

		loans, err := db.ActiveLoans(ctx, userID)
		require.NoError(rt, err)
		require.Len(rt, loans, len(active))
		require.LessOrEqual(rt, len(loans), 3)
		for _, l := range loans {
			require.Equal(rt, active[l.BookID], l.ID)
		}
	})
}
