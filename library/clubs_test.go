package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinClubTwice(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	owner := addUser(t, db, RoleLibrarian)
	member := addUser(t, db, RoleMember)

	clubID, err := db.CreateBookClub(ctx, "SciFi Lovers", "Space and beyond", owner)
	require.NoError(t, err)

	require.NoError(t, db.JoinClub(ctx, clubID, member))

	err = db.JoinClub(ctx, clubID, member)
	require.ErrorIs(t, err, ErrAlreadyMember)
	assert.ErrorIs(t, err, ErrMembershipConflict)
	assert.NotErrorIs(t, err, ErrInvalidReference)

	clubs, err := db.ClubsSummary(ctx)
	require.NoError(t, err)
	require.Len(t, clubs, 1)
	assert.Equal(t, ClubSummary{ID: clubID, Name: "SciFi Lovers", Description: "Space and beyond", Members: 1}, clubs[0])
}

func TestJoinClubInvalidReference(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	owner := addUser(t, db, RoleLibrarian)
	clubID, err := db.CreateBookClub(ctx, "Mystery Readers", "", owner)
	require.NoError(t, err)

	err = db.JoinClub(ctx, 999, owner)
	assert.ErrorIs(t, err, ErrMembershipConflict)
	assert.ErrorIs(t, err, ErrInvalidReference)
	assert.NotErrorIs(t, err, ErrAlreadyMember)

	err = db.JoinClub(ctx, clubID, 999)
	assert.ErrorIs(t, err, ErrInvalidReference)

	clubs, err := db.ClubsSummary(ctx)
	require.NoError(t, err)
	require.Len(t, clubs, 1)
	assert.Zero(t, clubs[0].Members)
}

func TestClubsSummaryOrderAndCounts(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()
	owner := addUser(t, db, RoleLibrarian)

	empty, err := db.ClubsSummary(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	first, err := db.CreateBookClub(ctx, "Zeta", "last by name, first by id", owner)
	require.NoError(t, err)
	second, err := db.CreateBookClub(ctx, "Alpha", "", owner)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.JoinClub(ctx, second, addUser(t, db, RoleMember)))
	}

	clubs, err := db.ClubsSummary(ctx)
	require.NoError(t, err)
	require.Len(t, clubs, 2)
	assert.Equal(t, first, clubs[0].ID)
	assert.Equal(t, 0, clubs[0].Members)
	assert.Equal(t, second, clubs[1].ID)
	assert.Equal(t, 3, clubs[1].Members)
}

func TestCreateBookClubValidation(t *testing.T) {
	db := tempDB(t)
	ctx := context.Background()

	_, err := db.CreateBookClub(ctx, " ", "blank", addUser(t, db, RoleLibrarian))
	assert.Error(t, err)

	_, err = db.CreateBookClub(ctx, "Orphan", "", 4242)
	assert.ErrorIs(t, err, ErrInvalidReference)
}
