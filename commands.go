package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"smartlibrary/library"
)

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", kind, s)
	}
	return id, nil
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "migrate",
		Short:       "Create or upgrade the database schema",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipLogin: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := a.mgr.Database().SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Schema is at version %d (%s)\n", v, a.mgr.Database().Driver())
			return nil
		},
	}
}

func newBooksCmd(a *app) *cobra.Command {
	books := &cobra.Command{Use: "books", Short: "Browse and curate the catalog"}

	books.AddCommand(&cobra.Command{
		Use:   "list [filter]",
		Short: "List books, optionally filtered by title",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}
			return a.listBooks(cmd.Context(), filter)
		},
	})

	books.AddCommand(&cobra.Command{
		Use:   "add <title> <genre> <year>",
		Short: "Add a book to the catalog (librarians only)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid publication year: %s", args[2])
			}
			id, err := a.mgr.AddBook(cmd.Context(), args[0], args[1], year)
			if err != nil {
				return err
			}
			return a.emit(map[string]int64{"id": id}, func() {
				fmt.Fprintf(a.out, "Added book ID %d\n", id)
			})
		},
	})
	return books
}

func newLoansCmd(a *app) *cobra.Command {
	loans := &cobra.Command{Use: "loans", Short: "Borrow and return books"}

	loans.AddCommand(&cobra.Command{
		Use:   "borrow <book-id>",
		Short: "Borrow a book for seven days",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			return a.borrow(cmd.Context(), bookID)
		},
	})

	loans.AddCommand(&cobra.Command{
		Use:   "return <loan-id>",
		Short: "Return a borrowed book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loanID, err := parseID("loan", args[0])
			if err != nil {
				return err
			}
			return a.giveBack(cmd.Context(), loanID)
		},
	})

	loans.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your active loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.listLoans(cmd.Context())
		},
	})
	return loans
}

func newClubsCmd(a *app) *cobra.Command {
	clubs := &cobra.Command{Use: "clubs", Short: "Book clubs"}

	clubs.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List clubs with their member counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.listClubs(cmd.Context())
		},
	})

	clubs.AddCommand(&cobra.Command{
		Use:   "create <name> <description>",
		Short: "Create a club (librarians only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.mgr.CreateClub(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.emit(map[string]int64{"id": id}, func() {
				fmt.Fprintf(a.out, "Created club ID %d\n", id)
			})
		},
	})

	clubs.AddCommand(&cobra.Command{
		Use:   "join <club-id>",
		Short: "Join a club",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clubID, err := parseID("club", args[0])
			if err != nil {
				return err
			}
			if err := a.mgr.JoinClub(cmd.Context(), clubID); err != nil {
				return err
			}
			return a.emit(map[string]int64{"club_id": clubID}, func() {
				fmt.Fprintf(a.out, "Joined club ID %d\n", clubID)
			})
		},
	})
	return clubs
}

func newUsersCmd(a *app) *cobra.Command {
	users := &cobra.Command{Use: "users", Short: "Manage accounts"}

	var (
		roleName string
		password string
	)
	add := &cobra.Command{
		Use:   "add <username> <email> <full-name>",
		Short: "Register an account (librarians only)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := library.ParseRole(roleName)
			if !ok {
				return fmt.Errorf("unknown role %q: use librarian or member", roleName)
			}
			if password == "" {
				var err error
				if password, err = a.readPassword(fmt.Sprintf("Enter password for %s: ", args[0])); err != nil {
					return err
				}
			}
			id, err := a.mgr.AddUser(cmd.Context(), library.NewUser{
				Username: args[0],
				Password: password,
				Role:     role,
				Email:    args[1],
				FullName: args[2],
			})
			if err != nil {
				return err
			}
			return a.emit(map[string]int64{"id": id}, func() {
				fmt.Fprintf(a.out, "Added %s '%s' with ID %d\n", role, args[0], id)
			})
		},
	}
	add.Flags().StringVar(&roleName, "role", "member", "librarian or member")
	add.Flags().StringVar(&password, "password", "", "initial password (prompted when empty)")
	users.AddCommand(add)
	return users
}

func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show library counters and the most borrowed books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := a.mgr.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			return a.printDashboard(stats)
		},
	}
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "shell",
		Short:       "Interactive session",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipLogin: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.username != "" {
				pw, err := a.password(a.username)
				if err != nil {
					return err
				}
				if err := a.login(cmd.Context(), a.username, pw); err != nil {
					return err
				}
			}
			return a.runShell(cmd.Context())
		},
	}
}
