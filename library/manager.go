package library

import (
	"context"
	"log/slog"
	"sync"
)

// ManagerOptions configures NewLibraryManager.
type ManagerOptions struct {
	Database Options
	Session  SessionOptions
	// TopBooks is the dashboard ranking length.
	TopBooks int
	Logger   *slog.Logger
}

// LibraryManager is a thin façade over the Database and the Session. Calls are
// serialized and complete in request order.
type LibraryManager struct {
	mu       sync.Mutex
	db       *Database
	session  *Session
	log      *slog.Logger
	topBooks int
}

// NewLibraryManager opens the store described by opts.Database.
func NewLibraryManager(ctx context.Context, opts ManagerOptions) (*LibraryManager, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Database.Logger == nil {
		opts.Database.Logger = log
	}
	if opts.Session.Logger == nil {
		opts.Session.Logger = log
	}

	db, err := Open(ctx, opts.Database)
	if err != nil {
		return nil, err
	}
	return newManager(db, opts.Session, opts.TopBooks, log), nil
}

func newManager(db *Database, sessionOpts SessionOptions, topBooks int, log *slog.Logger) *LibraryManager {
	if topBooks <= 0 {
		topBooks = DefaultTopBooks
	}
	return &LibraryManager{
		db:       db,
		session:  NewSession(db, sessionOpts),
		log:      log,
		topBooks: topBooks,
	}
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Database exposes the data access layer for tooling such as the seeder.
func (lm *LibraryManager) Database() *Database { return lm.db }

// ------------------ Session ------------------

func (lm *LibraryManager) Login(ctx context.Context, username, password string) (*User, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.session.Login(ctx, username, password)
}

func (lm *LibraryManager) Logout() { lm.session.Logout() }

func (lm *LibraryManager) CurrentUser() (*User, error) { return lm.session.Current() }

// Require returns the logged-in user if its role grants c.
func (lm *LibraryManager) Require(c Capability) (*User, error) { return lm.session.Require(c) }

// Can reports whether the logged-in user holds c. It is false when logged out.
func (lm *LibraryManager) Can(c Capability) bool {
	_, err := lm.session.Require(c)
	return err == nil
}

// mutated logs the outcome of a state-changing call and returns err unchanged.
func (lm *LibraryManager) mutated(op string, err error, attrs ...any) error {
	attrs = append(attrs, "session", lm.session.ID())
	if err != nil {
		lm.log.Warn(op+" failed", append(attrs, "error", err)...)
		return err
	}
	lm.log.Info(op, attrs...)
	return nil
}

// ------------------ Catalog ------------------

func (lm *LibraryManager) ListBooks(ctx context.Context, filter string) ([]Book, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, err := lm.session.Require(CapBrowse); err != nil {
		return nil, err
	}
	return lm.db.ListBooks(ctx, filter)
}

func (lm *LibraryManager) GetBook(ctx context.Context, id int64) (*Book, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, err := lm.session.Require(CapBrowse); err != nil {
		return nil, err
	}
	return lm.db.GetBook(ctx, id)
}

func (lm *LibraryManager) AddBook(ctx context.Context, title, genre string, year int) (int64, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, err := lm.session.Require(CapCreateBook); err != nil {
		return 0, err
	}
	id, err := lm.db.CreateBook(ctx, title, genre, year)
	return id, lm.mutated("book added", err, "book_id", id, "title", title)
}

// ------------------ Circulation ------------------

// Borrow lends bookID to the logged-in user and returns the loan id.
func (lm *LibraryManager) Borrow(ctx context.Context, bookID int64) (int64, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	user, err := lm.session.Require(CapBorrow)
	if err != nil {
		return 0, err
	}
	loanID, err := lm.db.CreateLoan(ctx, bookID, user.ID)
	return loanID, lm.mutated("book borrowed", err, "book_id", bookID, "user_id", user.ID, "loan_id", loanID)
}

// Return closes loanID.
func (lm *LibraryManager) Return(ctx context.Context, loanID int64) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, err := lm.session.Require(CapReturn); err != nil {
		return err
	}
	return lm.mutated("book returned", lm.db.ReturnLoan(ctx, loanID), "loan_id", loanID)
}

func (lm *LibraryManager) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, err := lm.session.Require(CapBrowse); err != nil {
		return nil, err
	}
	return lm.db.GetLoan(ctx, id)
}

// MyLoans lists the logged-in user's active loans.
func (lm *LibraryManager) MyLoans(ctx context.Context) ([]Loan, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	user, err := lm.session.Require(CapBorrow)
	if err != nil {
		return nil, err
	}
	return lm.db.ActiveLoans(ctx, user.ID)
}

// ------------------ Clubs ------------------

func (lm *LibraryManager) Clubs(ctx context.Context) ([]ClubSummary, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, err := lm.session.Require(CapBrowse); err != nil {
		return nil, err
	}
	return lm.db.ClubsSummary(ctx)
}

// CreateClub creates a club owned by the logged-in user.
func (lm *LibraryManager) CreateClub(ctx context.Context, name, description string) (int64, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	user, err := lm.session.Require(CapCreateClub)
	if err != nil {
		return 0, err
	}
	id, err := lm.db.CreateBookClub(ctx, name, description, user.ID)
	return id, lm.mutated("club created", err, "club_id", id, "name", name)
}

// JoinClub adds the logged-in user to clubID.
func (lm *LibraryManager) JoinClub(ctx context.Context, clubID int64) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	user, err := lm.session.Require(CapJoinClub)
	if err != nil {
		return err
	}
	return lm.mutated("club joined", lm.db.JoinClub(ctx, clubID, user.ID), "club_id", clubID, "user_id", user.ID)
}

// ------------------ Users ------------------

func (lm *LibraryManager) AddUser(ctx context.Context, u NewUser) (int64, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, err := lm.session.Require(CapManageUsers); err != nil {
		return 0, err
	}
	id, err := lm.db.CreateUser(ctx, u)
	return id, lm.mutated("user added", err, "user_id", id, "username", u.Username, "role", u.Role.String())
}

// ------------------ Dashboard ------------------

// Dashboard gathers the counters and the most-borrowed ranking.
func (lm *LibraryManager) Dashboard(ctx context.Context) (DashboardStats, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, err := lm.session.Require(CapViewStats); err != nil {
		return DashboardStats{}, err
	}

	var stats DashboardStats
	counters := []struct {
		metric Metric
		dst    *int
	}{
		{MetricBooks, &stats.TotalBooks},
		{MetricMembers, &stats.Members},
		{MetricActiveLoans, &stats.ActiveLoans},
		{MetricOverdueLoans, &stats.OverdueLoans},
	}
	for _, c := range counters {
		n, err := lm.db.Count(ctx, c.metric)
		if err != nil {
			return DashboardStats{}, err
		}
		*c.dst = n
	}

	top, err := lm.db.TopBooks(ctx, lm.topBooks)
	if err != nil {
		return DashboardStats{}, err
	}
	stats.TopBooks = top
	stats.RefreshedAt = lm.db.now()
	return stats, nil
}

// RefreshDashboard is Dashboard for display loops. A failure is logged and
// prev is returned unchanged.
func (lm *LibraryManager) RefreshDashboard(ctx context.Context, prev DashboardStats) DashboardStats {
	stats, err := lm.Dashboard(ctx)
	if err != nil {
		lm.log.Warn("dashboard refresh failed, keeping previous values", "error", err, "session", lm.session.ID())
		return prev
	}
	return stats
}
