package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"smartlibrary/config"
	"smartlibrary/library"
	"smartlibrary/logger"
	"smartlibrary/telemetry"
)

const (
	serviceName = "smartlib"
	version     = "0.1.0"

	// skipLogin marks commands that run without an authenticated session.
	skipLogin = "skip-login"
)

// app carries everything a command needs between PersistentPreRunE and the
// command body.
type app struct {
	cfg config.Config
	log *slog.Logger
	mgr *library.LibraryManager

	in  io.Reader
	out io.Writer

	username string
	jsonOut  bool
	logLevel string

	// readPassword prompts for a secret. Tests replace it.
	readPassword func(prompt string) (string, error)
	shutdown     telemetry.Shutdown
	lastStats    library.DashboardStats
}

func newApp(in io.Reader, out io.Writer) *app {
	a := &app{cfg: config.Load(), in: in, out: out}
	a.readPassword = a.readTerminalPassword
	return a
}

// readTerminalPassword reads a password with masking.
func (a *app) readTerminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal; set SMARTLIB_PASSWORD")
	}
	fmt.Fprint(os.Stderr, prompt)
	bytePassword, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

func (a *app) password(username string) (string, error) {
	if pw, ok := os.LookupEnv("SMARTLIB_PASSWORD"); ok {
		return pw, nil
	}
	return a.readPassword(fmt.Sprintf("Password for %s: ", username))
}

// open builds the logger, tracer and manager, then logs in unless the
// command opted out.
func (a *app) open(cmd *cobra.Command) error {
	ctx := cmd.Context()

	level, err := logger.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	a.log = logger.New(serviceName, level).With("env", a.cfg.Environment)

	a.shutdown, err = telemetry.Setup(ctx, telemetry.Options{
		Endpoint: a.cfg.OTLPEndpoint,
		Insecure: a.cfg.OTLPInsecure,
		Service:  serviceName,
		Version:  version,
	})
	if err != nil {
		return err
	}

	a.mgr, err = library.NewLibraryManager(ctx, library.ManagerOptions{
		Database: library.Options{
			Driver:          a.cfg.DBDriver,
			DSN:             a.cfg.DBDSN,
			ConnectAttempts: a.cfg.ConnectAttempts,
		},
		Session: library.SessionOptions{
			LoginEvery: a.cfg.LoginEvery,
			LoginBurst: a.cfg.LoginBurst,
		},
		TopBooks: a.cfg.TopBooks,
		Logger:   a.log,
	})
	if err != nil {
		return err
	}

	if cmd.Annotations[skipLogin] == "true" {
		return nil
	}
	if a.username == "" {
		return errors.New("a username is required: pass -u or set SMARTLIB_USERNAME")
	}
	pw, err := a.password(a.username)
	if err != nil {
		return err
	}
	return a.login(ctx, a.username, pw)
}

func (a *app) login(ctx context.Context, username, password string) error {
	user, err := a.mgr.Login(ctx, username, password)
	if err != nil {
		return err
	}
	a.log.Debug("session opened", "username", user.Username)
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.mgr != nil {
		errs = append(errs, a.mgr.Close())
		a.mgr = nil
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.shutdown(ctx))
		a.shutdown = nil
	}
	return errors.Join(errs...)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "SmartLibrary catalog, loans and book clubs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.DBDriver, "driver", a.cfg.DBDriver, "database driver: sqlite3, pgx or postgres")
	flags.StringVar(&a.cfg.DBDSN, "dsn", a.cfg.DBDSN, "database file or connection string")
	flags.StringVar(&a.logLevel, "log-level", a.cfg.LogLevel, "debug, info, warn or error")
	flags.BoolVar(&a.jsonOut, "json", false, "print results as JSON")
	flags.StringVarP(&a.username, "username", "u", config.GetString("SMARTLIB_USERNAME", ""), "account to log in as")

	root.AddCommand(
		newMigrateCmd(a),
		newBooksCmd(a),
		newLoansCmd(a),
		newClubsCmd(a),
		newUsersCmd(a),
		newDashboardCmd(a),
		newShellCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(os.Stdin, os.Stdout)
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		a.close()
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
}
