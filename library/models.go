package library

import "time"

// Role is the capability tier stored on every user row.
type Role int

const (
	RoleLibrarian Role = 1
	RoleMember    Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleLibrarian:
		return "Librarian"
	case RoleMember:
		return "Member"
	default:
		return "Unknown"
	}
}

// ParseRole accepts the role names used on the command line.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "librarian", "Librarian", "1":
		return RoleLibrarian, true
	case "member", "Member", "2":
		return RoleMember, true
	}
	return 0, false
}

// User is a registered account. Members and librarians share this record and
// differ only by Role.
type User struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
	Role         Role   `db:"role_id" json:"role"`
	Email        string `db:"email" json:"email"`
	FullName     string `db:"full_name" json:"full_name"`
}

// NewUser carries the fields needed to register an account.
type NewUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Book represents catalog metadata. Available is maintained by the store when
// loans are opened and closed.
type Book struct {
	ID              int64  `db:"id" json:"id"`
	Title           string `db:"title" json:"title"`
	Genre           string `db:"genre" json:"genre"`
	PublicationYear int    `db:"publication_year" json:"publication_year"`
	Available       bool   `db:"available" json:"available"`
}

// LoanPeriod is the time between borrow date and due date.
const LoanPeriod = 7 * 24 * time.Hour

// Loan is one borrowing of a book. A nil ReturnDate means the loan is active.
type Loan struct {
	ID         int64      `db:"id" json:"id"`
	BookID     int64      `db:"book_id" json:"book_id"`
	UserID     int64      `db:"user_id" json:"user_id"`
	BorrowDate time.Time  `db:"borrow_date" json:"borrow_date"`
	DueDate    time.Time  `db:"due_date" json:"due_date"`
	ReturnDate *time.Time `db:"return_date" json:"return_date,omitempty"`
}

// Active reports whether the loan has not been returned yet.
func (l Loan) Active() bool { return l.ReturnDate == nil }

// BookClub is a reading group created by a user.
type BookClub struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	CreatedBy   int64  `db:"created_by" json:"created_by"`
}

// ClubSummary is a club together with its member count.
type ClubSummary struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Members     int    `db:"members" json:"members"`
}

// BookLoanCount is one row of the most-borrowed ranking.
type BookLoanCount struct {
	BookID int64  `db:"book_id" json:"book_id"`
	Title  string `db:"title" json:"title"`
	Count  int    `db:"loan_count" json:"count"`
}

// DashboardStats is the informational snapshot shown on the dashboard.
type DashboardStats struct {
	TotalBooks   int             `json:"total_books"`
	Members      int             `json:"members"`
	ActiveLoans  int             `json:"active_loans"`
	OverdueLoans int             `json:"overdue_loans"`
	TopBooks     []BookLoanCount `json:"top_books"`
	RefreshedAt  time.Time       `json:"refreshed_at"`
}
