package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"smartlibrary/library"
)

type shellCommand struct {
	name string
	help string
	cap  library.Capability
	// open commands are listed even when logged out.
	open bool
	run  func(ctx context.Context, sc *bufio.Scanner) error
}

func (a *app) shellCommands() []shellCommand {
	return []shellCommand{
		{name: "login", help: "log in as another user", open: true, run: a.shellLogin},
		{name: "logout", help: "end the session", open: true, run: func(context.Context, *bufio.Scanner) error {
			a.mgr.Logout()
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		}},
		{name: "whoami", help: "show the logged-in user", open: true, run: a.shellWhoami},
		{name: "list books", help: "show the catalog", cap: library.CapBrowse, run: func(ctx context.Context, _ *bufio.Scanner) error {
			return a.listBooks(ctx, "")
		}},
		{name: "search book", help: "filter the catalog by title", cap: library.CapBrowse, run: a.shellSearch},
		{name: "borrow", help: "borrow a book", cap: library.CapBorrow, run: a.shellBorrow},
		{name: "return", help: "return a loan", cap: library.CapReturn, run: a.shellReturn},
		{name: "my loans", help: "show your active loans", cap: library.CapBorrow, run: func(ctx context.Context, _ *bufio.Scanner) error {
			return a.listLoans(ctx)
		}},
		{name: "clubs", help: "show book clubs", cap: library.CapBrowse, run: func(ctx context.Context, _ *bufio.Scanner) error {
			return a.listClubs(ctx)
		}},
		{name: "join club", help: "join a book club", cap: library.CapJoinClub, run: a.shellJoinClub},
		{name: "dashboard", help: "library counters", cap: library.CapViewStats, run: func(ctx context.Context, _ *bufio.Scanner) error {
			a.lastStats = a.mgr.RefreshDashboard(ctx, a.lastStats)
			return a.printDashboard(a.lastStats)
		}},
		{name: "add book", help: "add a book to the catalog", cap: library.CapCreateBook, run: a.shellAddBook},
		{name: "create club", help: "create a book club", cap: library.CapCreateClub, run: a.shellCreateClub},
		{name: "add user", help: "register an account", cap: library.CapManageUsers, run: a.shellAddUser},
	}
}

// printHelp lists only what the current role may do.
func (a *app) printHelp(cmds []shellCommand) {
	fmt.Fprintln(a.out, "Available commands:")
	for _, c := range cmds {
		if c.open || a.mgr.Can(c.cap) {
			fmt.Fprintf(a.out, "  %-12s %s\n", c.name, c.help)
		}
	}
	fmt.Fprintf(a.out, "  %-12s %s\n", "help", "show this list")
	fmt.Fprintf(a.out, "  %-12s %s\n", "exit", "leave the shell")
}

func (a *app) runShell(ctx context.Context) error {
	sc := bufio.NewScanner(a.in)
	cmds := a.shellCommands()

	fmt.Fprintln(a.out, "Welcome to SmartLibrary!")
	a.printHelp(cmds)

	for {
		fmt.Fprint(a.out, "\n> ")
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())

		switch line {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(a.out, "Goodbye!")
			return nil
		case "help":
			a.printHelp(cmds)
			continue
		}

		var found bool
		for _, c := range cmds {
			if c.name != line {
				continue
			}
			found = true
			if !c.open {
				// Checked before any field prompt.
				if _, err := a.mgr.Require(c.cap); err != nil {
					fmt.Fprintf(a.out, "Error: %s\n", describe(err))
					break
				}
			}
			if err := c.run(ctx, sc); err != nil {
				fmt.Fprintf(a.out, "Error: %s\n", describe(err))
			}
			break
		}
		if !found {
			fmt.Fprintln(a.out, "Unknown command. Type 'help' to see what you can do.")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// prompt reads one trimmed line; ok is false on end of input.
func (a *app) prompt(sc *bufio.Scanner, label string) (string, bool) {
	fmt.Fprint(a.out, label)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

func (a *app) promptID(sc *bufio.Scanner, kind string) (int64, error) {
	s, ok := a.prompt(sc, strings.ToUpper(kind[:1])+kind[1:]+" ID: ")
	if !ok {
		return 0, fmt.Errorf("no %s ID given", kind)
	}
	return parseID(kind, s)
}

func (a *app) shellLogin(ctx context.Context, sc *bufio.Scanner) error {
	username, ok := a.prompt(sc, "Username: ")
	if !ok || username == "" {
		return nil
	}
	pw, err := a.readPassword(fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return err
	}
	if err := a.login(ctx, username, pw); err != nil {
		return err
	}
	return a.shellWhoami(ctx, sc)
}

func (a *app) shellWhoami(context.Context, *bufio.Scanner) error {
	u, err := a.mgr.CurrentUser()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s, %s)\n", u.Username, u.FullName, u.Role)
	return nil
}

func (a *app) shellSearch(ctx context.Context, sc *bufio.Scanner) error {
	query, ok := a.prompt(sc, "Query: ")
	if !ok {
		return nil
	}
	return a.listBooks(ctx, query)
}

func (a *app) shellBorrow(ctx context.Context, sc *bufio.Scanner) error {
	bookID, err := a.promptID(sc, "book")
	if err != nil {
		return err
	}
	if err := a.borrow(ctx, bookID); err != nil {
		return err
	}
	return a.listLoans(ctx)
}

func (a *app) shellReturn(ctx context.Context, sc *bufio.Scanner) error {
	loanID, err := a.promptID(sc, "loan")
	if err != nil {
		return err
	}
	if err := a.giveBack(ctx, loanID); err != nil {
		return err
	}
	return a.listLoans(ctx)
}

func (a *app) shellJoinClub(ctx context.Context, sc *bufio.Scanner) error {
	clubID, err := a.promptID(sc, "club")
	if err != nil {
		return err
	}
	if err := a.mgr.JoinClub(ctx, clubID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Joined club ID %d\n", clubID)
	return a.listClubs(ctx)
}

func (a *app) shellAddBook(ctx context.Context, sc *bufio.Scanner) error {
	title, ok := a.prompt(sc, "Title: ")
	if !ok {
		return nil
	}
	genre, ok := a.prompt(sc, "Genre: ")
	if !ok {
		return nil
	}
	yearStr, ok := a.prompt(sc, "Publication year: ")
	if !ok {
		return nil
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return fmt.Errorf("invalid publication year: %s", yearStr)
	}

	id, err := a.mgr.AddBook(ctx, title, genre, year)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added book ID %d\n", id)
	return a.listBooks(ctx, "")
}

func (a *app) shellCreateClub(ctx context.Context, sc *bufio.Scanner) error {
	name, ok := a.prompt(sc, "Name: ")
	if !ok {
		return nil
	}
	desc, ok := a.prompt(sc, "Description: ")
	if !ok {
		return nil
	}
	id, err := a.mgr.CreateClub(ctx, name, desc)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created club ID %d\n", id)
	return a.listClubs(ctx)
}

func (a *app) shellAddUser(ctx context.Context, sc *bufio.Scanner) error {
	var fields [4]string
	for i, label := range []string{"Username: ", "Email: ", "Full name: ", "Role (librarian/member): "} {
		v, ok := a.prompt(sc, label)
		if !ok {
			return nil
		}
		fields[i] = v
	}
	role, ok := library.ParseRole(fields[3])
	if !ok {
		return fmt.Errorf("unknown role %q", fields[3])
	}
	password, err := a.readPassword(fmt.Sprintf("Enter password for %s: ", fields[0]))
	if err != nil {
		return err
	}

	id, err := a.mgr.AddUser(ctx, library.NewUser{
		Username: fields[0],
		Email:    fields[1],
		FullName: fields[2],
		Role:     role,
		Password: password,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s '%s' with ID %d\n", role, fields[0], id)
	return nil
}
