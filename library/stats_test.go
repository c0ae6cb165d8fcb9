package library

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountMetrics(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	db := tempDBWithClock(t, clock.Now)
	ctx := context.Background()

	librarian := addUser(t, db, RoleLibrarian)
	alice := addUser(t, db, RoleMember)
	bob := addUser(t, db, RoleMember)
	books := []int64{addBook(t, db, "A"), addBook(t, db, "B"), addBook(t, db, "C"), addBook(t, db, "D")}

	_, err := db.CreateBookClub(ctx, "Club", "", librarian)
	require.NoError(t, err)

	early, err := db.CreateLoan(ctx, books[0], alice)
	require.NoError(t, err)
	_, err = db.CreateLoan(ctx, books[1], bob)
	require.NoError(t, err)

	clock.t = clock.t.AddDate(0, 0, 5)
	_, err = db.CreateLoan(ctx, books[2], bob)
	require.NoError(t, err)

	want := map[Metric]int{
		MetricBooks:          4,
		MetricAvailableBooks: 1,
		MetricMembers:        2,
		MetricLibrarians:     1,
		MetricActiveLoans:    3,
		MetricOverdueLoans:   0,
		MetricClubs:          1,
	}
	for m, n := range want {
		got, err := db.Count(ctx, m)
		require.NoError(t, err, m.String())
		assert.Equal(t, n, got, m.String())
	}

	// Due dates of the first two loans are now in the past.
	clock.t = clock.t.AddDate(0, 0, 3)
	n, err := db.Count(ctx, MetricOverdueLoans)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, db.ReturnLoan(ctx, early))
	n, err = db.Count(ctx, MetricOverdueLoans)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = db.Count(ctx, MetricAvailableBooks)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCountUnknownMetric(t *testing.T) {
	db := tempDB(t)
	_, err := db.Count(context.Background(), Metric(42))
	require.Error(t, err)
	assert.Equal(t, "metric(42)", Metric(42).String())
}

func TestTopBooksRanking(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	userID := addUser(t, db, RoleMember)

	var ids []int64
	for _, title := range []string{"One", "Two", "Three", "Four", "Five", "Six", "Seven"} {
		ids = append(ids, addBook(t, db, title))
	}

	borrow := func(bookID int64, times int) {
		for i := 0; i < times; i++ {
			loanID, err := db.CreateLoan(ctx, bookID, userID)
			require.NoError(t, err)
			require.NoError(t, db.ReturnLoan(ctx, loanID))
		}
	}
	borrow(ids[2], 3)
	borrow(ids[5], 2)
	borrow(ids[0], 2)

	top, err := db.TopBooks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, DefaultTopBooks)
	assert.Equal(t, BookLoanCount{BookID: ids[2], Title: "Three", Count: 3}, top[0])
	// Equal counts fall back to book id.
	assert.Equal(t, ids[0], top[1].BookID)
	assert.Equal(t, ids[5], top[2].BookID)
	assert.Equal(t, 0, top[3].Count)
	assert.Equal(t, ids[1], top[3].BookID)

	top, err = db.TopBooks(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestTopBooksEmpty(t *testing.T) {
	db := tempDB(t)
	top, err := db.TopBooks(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, top)
	assert.Empty(t, top)
}
