package library

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultTopBooks is the ranking length used when no limit is given.
const DefaultTopBooks = 5

// Metric names a dashboard counter.
type Metric int

const (
	MetricBooks Metric = iota
	MetricAvailableBooks
	MetricMembers
	MetricLibrarians
	MetricActiveLoans
	MetricOverdueLoans
	MetricClubs
)

func (m Metric) String() string {
	switch m {
	case MetricBooks:
		return "books"
	case MetricAvailableBooks:
		return "available_books"
	case MetricMembers:
		return "members"
	case MetricLibrarians:
		return "librarians"
	case MetricActiveLoans:
		return "active_loans"
	case MetricOverdueLoans:
		return "overdue_loans"
	case MetricClubs:
		return "clubs"
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

func (d *Database) metricDataset(m Metric) (*goqu.SelectDataset, error) {
	switch m {
	case MetricBooks:
		return d.goqu.From("books"), nil
	case MetricAvailableBooks:
		return d.goqu.From("books").Where(goqu.C("available").Eq(true)), nil
	case MetricMembers:
		return d.goqu.From("users").Where(goqu.C("role_id").Eq(int(RoleMember))), nil
	case MetricLibrarians:
		return d.goqu.From("users").Where(goqu.C("role_id").Eq(int(RoleLibrarian))), nil
	case MetricActiveLoans:
		return d.goqu.From("loans").Where(goqu.C("return_date").IsNull()), nil
	case MetricOverdueLoans:
		return d.goqu.From("loans").Where(
			goqu.C("return_date").IsNull(),
			goqu.C("due_date").Lt(d.today()),
		), nil
	case MetricClubs:
		return d.goqu.From("book_clubs"), nil
	}
	return nil, fmt.Errorf("unknown metric %d", int(m))
}

// Count evaluates a dashboard counter. It is read-only.
func (d *Database) Count(ctx context.Context, m Metric) (n int, err error) {
	ctx, span := d.startSpan(ctx, "Count", attribute.String("metric", m.String()))
	defer func() { endSpan(span, err) }()

	ds, err := d.metricDataset(m)
	if err != nil {
		return 0, err
	}
	query, args, err := ds.Select(goqu.COUNT(goqu.Star()).As("count")).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build %s query: %w", m, err)
	}
	if err := d.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", m, translate(err))
	}
	return n, nil
}

// TopBooks ranks books by how often they were ever borrowed, most first.
// Ties are broken by book id. A limit of zero or less means DefaultTopBooks.
func (d *Database) TopBooks(ctx context.Context, limit int) (_ []BookLoanCount, err error) {
	if limit <= 0 {
		limit = DefaultTopBooks
	}
	ctx, span := d.startSpan(ctx, "TopBooks", attribute.Int("limit", limit))
	defer func() { endSpan(span, err) }()

	query := d.db.Rebind(`
		SELECT b.id AS book_id, b.title AS title, COUNT(l.id) AS loan_count
		FROM books b
		LEFT JOIN loans l ON b.id = l.book_id
		GROUP BY b.id, b.title
		ORDER BY loan_count DESC, b.id ASC
		LIMIT ?`)

	top := make([]BookLoanCount, 0, limit)
	if err := d.db.SelectContext(ctx, &top, query, limit); err != nil {
		return nil, fmt.Errorf("top books: %w", translate(err))
	}
	return top, nil
}
