package main

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"smartlibrary/config"
	"smartlibrary/display"
	"smartlibrary/library"
	"smartlibrary/logger"
)

type seedUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type seedBook struct {
	Title string `json:"title"`
	Genre string `json:"genre"`
	Year  int    `json:"year"`
}

type seedClub struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	CreatedBy   string   `json:"created_by"`
	Members     []string `json:"members"`
}

type seedFile struct {
	Users []seedUser `json:"users"`
	Books []seedBook `json:"books"`
	Clubs []seedClub `json:"clubs"`
}

func readSeedFile(r io.Reader) (seedFile, error) {
	var data seedFile
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(r).Decode(&data); err != nil {
		return seedFile{}, fmt.Errorf("decode seed file: %w", err)
	}
	return data, nil
}

type summary struct {
	users, books, clubs, memberships, errors int
}

// seed loads data into db. Individual rows that fail are reported and
// counted; the run keeps going.
func seed(ctx context.Context, db *library.Database, data seedFile, out io.Writer) summary {
	var s summary
	userIDs := make(map[string]int64, len(data.Users))

	for _, u := range data.Users {
		fmt.Fprintf(out, "Adding user: %s... ", u.Username)
		role, ok := library.ParseRole(u.Role)
		if !ok {
			fmt.Fprintf(out, "ERROR - unknown role %q\n", u.Role)
			s.errors++
			continue
		}
		id, err := db.CreateUser(ctx, library.NewUser{
			Username: u.Username,
			Password: u.Password,
			Role:     role,
			Email:    u.Email,
			FullName: u.FullName,
		})
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			s.errors++
			continue
		}
		userIDs[u.Username] = id
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", id)
		s.users++
	}

	for _, b := range data.Books {
		fmt.Fprintf(out, "Importing: %s... ", b.Title)
		id, err := db.CreateBook(ctx, b.Title, b.Genre, b.Year)
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			s.errors++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", id)
		s.books++
	}

	for _, c := range data.Clubs {
		fmt.Fprintf(out, "Creating club: %s... ", c.Name)
		owner, ok := userIDs[c.CreatedBy]
		if !ok {
			fmt.Fprintf(out, "ERROR - unknown creator %q\n", c.CreatedBy)
			s.errors++
			continue
		}
		clubID, err := db.CreateBookClub(ctx, c.Name, c.Description, owner)
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			s.errors++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", clubID)
		s.clubs++

		for _, name := range c.Members {
			userID, ok := userIDs[name]
			if !ok {
				fmt.Fprintf(out, "  Warning: unknown member %q, skipping\n", name)
				continue
			}
			if err := db.JoinClub(ctx, clubID, userID); err != nil && !errors.Is(err, library.ErrAlreadyMember) {
				fmt.Fprintf(out, "  ERROR - %s: %v\n", name, err)
				s.errors++
				continue
			}
			s.memberships++
		}
	}
	return s
}

// resetSQLite removes the database file and its WAL companions.
func resetSQLite(path string, out io.Writer) {
	fmt.Fprintln(out, "Cleaning up existing database files...")
	for _, file := range []string{path, path + "-shm", path + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(out, "Warning: Could not remove %s: %v\n", file, err)
		}
	}
	fmt.Fprintln(out, "Database cleanup complete.")
}

func printCatalog(ctx context.Context, db *library.Database, out io.Writer) error {
	books, err := db.ListBooks(ctx, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%-3s %-50s %-20s %-4s\n", "ID", "Title", "Genre", "Year")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, book := range books {
		fmt.Fprintf(out, "%-3d %-50s %-20s %-4d\n", book.ID, display.Truncate(book.Title, 50), display.Truncate(book.Genre, 20), book.PublicationYear)
	}
	return nil
}

//go:embed seed.json
var bundledSeed []byte

// openSeed opens the seed file at path, or the bundled sample data when path
// is empty.
func openSeed(path string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(bytes.NewReader(bundledSeed)), nil
	}
	return os.Open(path)
}

func main() {
	cfg := config.Load()
	var (
		file   = flag.String("file", "", "seed data file (default: the bundled sample data)")
		reset  = flag.Bool("reset", false, "delete the sqlite3 database before seeding")
		driver = flag.String("driver", cfg.DBDriver, "database driver")
		dsn    = flag.String("dsn", cfg.DBDSN, "database file or connection string")
	)
	flag.Parse()

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	log := logger.New("smartlib-seed", level)
	ctx := context.Background()

	f, err := openSeed(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening seed file: %v\n", err)
		os.Exit(1)
	}
	data, err := readSeedFile(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *reset {
		if *driver != library.DriverSQLite {
			fmt.Fprintln(os.Stderr, "Error: -reset only supports the sqlite3 driver")
			os.Exit(1)
		}
		resetSQLite(*dsn, os.Stdout)
	}

	db, err := library.Open(ctx, library.Options{
		Driver:          *driver,
		DSN:             *dsn,
		ConnectAttempts: cfg.ConnectAttempts,
		Logger:          log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	s := seed(ctx, db, data, os.Stdout)

	fmt.Printf("\nSeed complete!\n")
	fmt.Printf("Users: %d  Books: %d  Clubs: %d  Memberships: %d\n", s.users, s.books, s.clubs, s.memberships)
	fmt.Printf("Errors: %d\n", s.errors)

	if s.books > 0 {
		fmt.Println("\nCatalog:")
		if err := printCatalog(ctx, db, os.Stdout); err != nil {
			fmt.Printf("Error retrieving books: %v\n", err)
		}
	}
}
