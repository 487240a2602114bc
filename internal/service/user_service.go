package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/AdamBeresnev/tourney/internal/store"
	users "github.com/AdamBeresnev/tourney/internal/user"
	"github.com/AdamBeresnev/tourney/internal/utils"
	"github.com/google/uuid"
	"github.com/markbates/goth"
)

var guestID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type UserService struct {
	store       *store.UserStore
	adminEmails map[string]struct{}
}

// NewUserService grants the admin role to anyone logging in with one of adminEmails.
func NewUserService(store *store.UserStore, adminEmails []string) *UserService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			admins[email] = struct{}{}
		}
	}
	return &UserService{store: store, adminEmails: admins}
}

func (s *UserService) roleFor(email string) users.Role {
	if _, ok := s.adminEmails[strings.ToLower(strings.TrimSpace(email))]; ok {
		return users.RoleAdmin
	}
	return users.RolePlayer
}

func displayName(gothUser goth.User) string {
	if gothUser.NickName != "" {
		return gothUser.NickName
	}
	if gothUser.Name != "" {
		return gothUser.Name
	}
	return gothUser.Email
}

func (s *UserService) FindOrCreateUserByProvider(ctx context.Context, gothUser goth.User) (*users.User, error) {
	user, err := s.store.GetUserByProvider(ctx, gothUser.Provider, gothUser.UserID)

	if err == nil {
		name := displayName(gothUser)
		role := s.roleFor(user.Email)
		if utils.OrZero(user.AvatarURL) != gothUser.AvatarURL || user.Username != name || user.Role != role {
			user.AvatarURL = utils.StringOrNil(gothUser.AvatarURL)
			user.Username = name
			user.Role = role
			if err := s.store.UpdateUserProfile(ctx, user); err != nil {
				return nil, err
			}
		}
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		newUser := &users.User{
			ID:         uuid.New(),
			Email:      gothUser.Email,
			Username:   displayName(gothUser),
			Role:       s.roleFor(gothUser.Email),
			CreatedAt:  time.Now().UTC(),
			Provider:   &gothUser.Provider,
			ProviderID: &gothUser.UserID,
			AvatarURL:  utils.StringOrNil(gothUser.AvatarURL),
		}
		if err := s.store.CreateUser(ctx, newUser); err != nil {
			return nil, err
		}
		return newUser, nil
	}

	return nil, err
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotAuthenticated
	}
	return user, err
}

// EnsureGuestUser returns the shared guest account, creating it on first use.
// Guests can browse and register teams but never administer.
func (s *UserService) EnsureGuestUser(ctx context.Context) (*users.User, error) {
	user, err := s.store.GetUser(ctx, guestID)
	if err == nil {
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		guestUser := &users.User{
			ID:        guestID,
			Email:     "guest@tourney.local",
			Username:  "Guest User",
			Role:      users.RolePlayer,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.CreateUser(ctx, guestUser); err != nil {
			return nil, err
		}
		return guestUser, nil
	}
	return nil, err
}
