package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/tourney/internal/db/dbtest"
	"github.com/AdamBeresnev/tourney/internal/store"
	users "github.com/AdamBeresnev/tourney/internal/user"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T, admins ...string) *UserService {
	t.Helper()
	return NewUserService(store.NewUserStore(dbtest.New(t)), admins)
}

func TestFindOrCreateUserByProvider(t *testing.T) {
	svc := newUserService(t, " Ref@Example.com ")
	ctx := context.Background()

	ref, err := svc.FindOrCreateUserByProvider(ctx, goth.User{
		Provider: "discord", UserID: "1", Email: "ref@example.com", NickName: "ref",
	})
	require.NoError(t, err)
	assert.Equal(t, users.RoleAdmin, ref.Role)
	assert.Equal(t, "ref", ref.Username)

	player, err := svc.FindOrCreateUserByProvider(ctx, goth.User{
		Provider: "google", UserID: "2", Email: "p@example.com", Name: "Pat Player",
	})
	require.NoError(t, err)
	assert.Equal(t, users.RolePlayer, player.Role)
	assert.Equal(t, "Pat Player", player.Username)

	again, err := svc.FindOrCreateUserByProvider(ctx, goth.User{
		Provider: "discord", UserID: "1", Email: "ref@example.com", NickName: "referee", AvatarURL: "https://cdn/a.png",
	})
	require.NoError(t, err)
	assert.Equal(t, ref.ID, again.ID)
	assert.Equal(t, "referee", again.Username)

	stored, err := svc.GetUser(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, "referee", stored.Username)
	require.NotNil(t, stored.AvatarURL)
	assert.Equal(t, "https://cdn/a.png", *stored.AvatarURL)
}

func TestAdminRoleFollowsConfiguration(t *testing.T) {
	database := dbtest.New(t)
	ctx := context.Background()
	login := goth.User{Provider: "discord", UserID: "9", Email: "boss@example.com", NickName: "boss"}

	user, err := NewUserService(store.NewUserStore(database), nil).FindOrCreateUserByProvider(ctx, login)
	require.NoError(t, err)
	assert.Equal(t, users.RolePlayer, user.Role)

	promoted, err := NewUserService(store.NewUserStore(database), []string{"boss@example.com"}).FindOrCreateUserByProvider(ctx, login)
	require.NoError(t, err)
	assert.Equal(t, user.ID, promoted.ID)
	assert.Equal(t, users.RoleAdmin, promoted.Role)
}

func TestEnsureGuestUser(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	guest, err := svc.EnsureGuestUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, users.RolePlayer, guest.Role)

	again, err := svc.EnsureGuestUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, again.ID)

	_, err = svc.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
