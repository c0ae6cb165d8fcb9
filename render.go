package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"smartlibrary/display"
	"smartlibrary/library"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// emit writes v as JSON when --json is set and runs table otherwise.
func (a *app) emit(v any, table func()) error {
	if a.jsonOut {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	table()
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func (a *app) listBooks(ctx context.Context, filter string) error {
	books, err := a.mgr.ListBooks(ctx, filter)
	if err != nil {
		return err
	}
	return a.emit(books, func() {
		if len(books) == 0 {
			if filter != "" {
				fmt.Fprintf(a.out, "No books found matching '%s'.\n", filter)
			} else {
				fmt.Fprintln(a.out, "No books in the catalog.")
			}
			return
		}
		fmt.Fprintf(a.out, "%-5s %-40s %-15s %-6s %-10s\n", "ID", "Title", "Genre", "Year", "Available")
		fmt.Fprintln(a.out, strings.Repeat("-", 80))
		for _, b := range books {
			fmt.Fprintf(a.out, "%-5d %-40s %-15s %-6d %-10s\n",
				b.ID, display.Truncate(b.Title, 40), display.Truncate(b.Genre, 15), b.PublicationYear, yesNo(b.Available))
		}
	})
}

func (a *app) listLoans(ctx context.Context) error {
	loans, err := a.mgr.MyLoans(ctx)
	if err != nil {
		return err
	}
	return a.emit(loans, func() {
		if len(loans) == 0 {
			fmt.Fprintln(a.out, "No active loans.")
			return
		}
		fmt.Fprintf(a.out, "%-5s %-8s %-12s %-12s\n", "ID", "Book", "Borrowed", "Due")
		fmt.Fprintln(a.out, strings.Repeat("-", 40))
		for _, l := range loans {
			fmt.Fprintf(a.out, "%-5d %-8d %-12s %-12s\n",
				l.ID, l.BookID, l.BorrowDate.Format("2006-01-02"), l.DueDate.Format("2006-01-02"))
		}
	})
}

func (a *app) listClubs(ctx context.Context) error {
	clubs, err := a.mgr.Clubs(ctx)
	if err != nil {
		return err
	}
	return a.emit(clubs, func() {
		if len(clubs) == 0 {
			fmt.Fprintln(a.out, "No book clubs yet.")
			return
		}
		fmt.Fprintf(a.out, "%-5s %-25s %-8s %s\n", "ID", "Name", "Members", "Description")
		fmt.Fprintln(a.out, strings.Repeat("-", 80))
		for _, c := range clubs {
			fmt.Fprintf(a.out, "%-5d %-25s %-8d %s\n", c.ID, display.Truncate(c.Name, 25), c.Members, display.Truncate(c.Description, 40))
		}
	})
}

func (a *app) borrow(ctx context.Context, bookID int64) error {
	loanID, err := a.mgr.Borrow(ctx, bookID)
	if err != nil {
		return err
	}
	loan, err := a.mgr.GetLoan(ctx, loanID)
	if err != nil {
		return err
	}
	return a.emit(loan, func() {
		fmt.Fprintf(a.out, "Borrowed book %d as loan %d, due %s\n", bookID, loanID, loan.DueDate.Format("2006-01-02"))
	})
}

func (a *app) giveBack(ctx context.Context, loanID int64) error {
	if err := a.mgr.Return(ctx, loanID); err != nil {
		return err
	}
	return a.emit(map[string]int64{"loan_id": loanID}, func() {
		fmt.Fprintf(a.out, "Returned loan %d\n", loanID)
	})
}

func (a *app) printDashboard(stats library.DashboardStats) error {
	return a.emit(stats, func() {
		fmt.Fprintf(a.out, "Books: %d   Members: %d   Active loans: %d   Overdue: %d\n",
			stats.TotalBooks, stats.Members, stats.ActiveLoans, stats.OverdueLoans)
		if len(stats.TopBooks) == 0 {
			return
		}
		fmt.Fprintln(a.out, "\nMost borrowed:")
		for i, b := range stats.TopBooks {
			fmt.Fprintf(a.out, "%2d. %-40s %d\n", i+1, display.Truncate(b.Title, 40), b.Count)
		}
	})
}

// describe turns a library error into a message for the person at the keyboard.
func describe(err error) string {
	var storeErr *library.StoreError
	switch {
	case errors.Is(err, library.ErrNotAuthenticated):
		return "please log in first"
	case errors.Is(err, library.ErrForbidden):
		return "your role does not allow this operation"
	case errors.Is(err, library.ErrAlreadyMember):
		return "you are already a member of this club"
	case errors.Is(err, library.ErrInvalidReference):
		return "no such book, user or club"
	case errors.Is(err, library.ErrConnectionFailure):
		return "the library database is unreachable, try again later"
	case errors.Is(err, library.ErrConstraintViolation) && errors.As(err, &storeErr):
		return storeErr.Message
	}
	return err.Error()
}
