package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

// errClubReference is returned when a join names an unknown club or user.
var errClubReference = fmt.Errorf("%w: %w", ErrMembershipConflict, ErrInvalidReference)

// CreateBookClub creates a club owned by creatorID and returns its id.
func (d *Database) CreateBookClub(ctx context.Context, name, description string, creatorID int64) (clubID int64, err error) {
	ctx, span := d.startSpan(ctx, "CreateBookClub",
		attribute.String("club.name", name),
		attribute.Int64("user.id", creatorID),
	)
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(name) == "" {
		return 0, errors.New("club name cannot be empty")
	}
	err = d.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`INSERT INTO book_clubs (name, description, created_by) VALUES (?, ?, ?) RETURNING id`)
		return tx.QueryRowxContext(ctx, query, name, description, creatorID).Scan(&clubID)
	})
	if err != nil {
		return 0, fmt.Errorf("create club %q: %w", name, translate(err))
	}
	return clubID, nil
}

// JoinClub adds userID to clubID. A repeated join fails with ErrAlreadyMember
// and an unknown club or user with ErrInvalidReference; both also match
// ErrMembershipConflict.
func (d *Database) JoinClub(ctx context.Context, clubID, userID int64) (err error) {
	ctx, span := d.startSpan(ctx, "JoinClub",
		attribute.Int64("club.id", clubID),
		attribute.Int64("user.id", userID),
	)
	defer func() { endSpan(span, err) }()

	err = d.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO club_memberships (club_id, user_id) VALUES (?, ?)`),
			clubID, userID)
		return err
	})
	if err == nil {
		return nil
	}

	switch f, msg := classify(err); f {
	case faultUnique:
		err = &StoreError{Kind: ErrAlreadyMember, Message: msg, Err: err}
	case faultForeignKey:
		err = &StoreError{Kind: errClubReference, Message: msg, Err: err}
	default:
		err = translate(err)
	}
	return fmt.Errorf("join club %d: %w", clubID, err)
}

// ClubsSummary lists every club with its member count, ordered by id.
func (d *Database) ClubsSummary(ctx context.Context) (_ []ClubSummary, err error) {
	ctx, span := d.startSpan(ctx, "ClubsSummary")
	defer func() { endSpan(span, err) }()

	const query = `
		SELECT bc.id, bc.name, bc.description, COUNT(cm.user_id) AS members
		FROM book_clubs bc
		LEFT JOIN club_memberships cm ON bc.id = cm.club_id
		GROUP BY bc.id, bc.name, bc.description
		ORDER BY bc.id`

	clubs := make([]ClubSummary, 0)
	if err := d.db.SelectContext(ctx, &clubs, query); err != nil {
		return nil, fmt.Errorf("clubs summary: %w", translate(err))
	}
	return clubs, nil
}
