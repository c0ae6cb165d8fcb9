package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

const userColumns = `id, username, password_hash, role_id, email, full_name`

// CreateUser registers an account with a bcrypt-hashed password.
func (d *Database) CreateUser(ctx context.Context, u NewUser) (id int64, err error) {
	ctx, span := d.startSpan(ctx, "CreateUser", attribute.String("user.username", u.Username))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(u.Username) == "" {
		return 0, errors.New("username cannot be empty")
	}
	if u.Role != RoleLibrarian && u.Role != RoleMember {
		return 0, fmt.Errorf("unknown role %d", u.Role)
	}
	hash, err := hashPassword(u.Password)
	if err != nil {
		return 0, err
	}

	if err := d.insertUserStmt.QueryRowxContext(ctx, u.Username, hash, u.Role, u.Email, u.FullName).Scan(&id); err != nil {
		return 0, fmt.Errorf("create user %q: %w", u.Username, translate(err))
	}
	return id, nil
}

// GetUser fetches a single user.
func (d *Database) GetUser(ctx context.Context, id int64) (_ *User, err error) {
	ctx, span := d.startSpan(ctx, "GetUser", attribute.Int64("user.id", id))
	defer func() { endSpan(span, err) }()

	var u User
	err = d.db.GetContext(ctx, &u, d.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, translate(err))
	}
	return &u, nil
}

// Authenticate returns the user whose username and password match. Unknown
// usernames and wrong passwords both yield ErrNotFound.
func (d *Database) Authenticate(ctx context.Context, username, password string) (_ *User, err error) {
	ctx, span := d.startSpan(ctx, "Authenticate", attribute.String("user.username", username))
	defer func() { endSpan(span, err) }()

	var u User
	err = d.db.GetContext(ctx, &u, d.db.Rebind(`SELECT `+userColumns+` FROM users WHERE username = ?`), username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invalid credentials: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", translate(err))
	}
	if !checkPassword(u.PasswordHash, password) {
		return nil, fmt.Errorf("invalid credentials: %w", ErrNotFound)
	}
	return &u, nil
}
