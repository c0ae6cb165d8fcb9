package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"go.opentelemetry.io/otel/attribute"
)

var bookColumns = []any{"id", "title", "genre", "publication_year", "available"}

// CreateBook inserts a book and commits immediately. The store marks new books
// available.
func (d *Database) CreateBook(ctx context.Context, title, genre string, year int) (id int64, err error) {
	ctx, span := d.startSpan(ctx, "CreateBook", attribute.String("book.title", title))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(title) == "" {
		return 0, errors.New("title cannot be empty")
	}
	if err := d.insertBookStmt.QueryRowxContext(ctx, title, genre, year).Scan(&id); err != nil {
		return 0, fmt.Errorf("create book %q: %w", title, translate(err))
	}
	return id, nil
}

// ListBooks returns the catalog ordered by title. A non-empty filter keeps
// only books whose title contains it, ignoring case.
func (d *Database) ListBooks(ctx context.Context, filter string) (_ []Book, err error) {
	ctx, span := d.startSpan(ctx, "ListBooks", attribute.String("filter", filter))
	defer func() { endSpan(span, err) }()

	ds := d.goqu.From("books").
		Select(bookColumns...).
		Order(goqu.I("title").Asc(), goqu.I("id").Asc())
	if f := strings.TrimSpace(filter); f != "" {
		ds = ds.Where(goqu.Func("LOWER", goqu.I("title")).Like("%" + strings.ToLower(f) + "%"))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list books query: %w", err)
	}

	books := make([]Book, 0)
	if err := d.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("list books: %w", translate(err))
	}
	return books, nil
}

// GetBook fetches a single book.
func (d *Database) GetBook(ctx context.Context, id int64) (_ *Book, err error) {
	ctx, span := d.startSpan(ctx, "GetBook", attribute.Int64("book.id", id))
	defer func() { endSpan(span, err) }()

	query, args, err := d.goqu.From("books").
		Select(bookColumns...).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get book query: %w", err)
	}

	var b Book
	err = d.db.GetContext(ctx, &b, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", id, translate(err))
	}
	return &b, nil
}
