package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"guestbook/internal/models"
	"guestbook/internal/repos"
	"guestbook/internal/utils"
)

// CredentialStore owns user accounts.
// It depends on repository interfaces and never touches SQL directly.
type CredentialStore struct {
	store repos.Store
	now   func() time.Time
}

func NewCredentialStore(store repos.Store) *CredentialStore {
	return &CredentialStore{store: store, now: time.Now}
}

// dummyHash is compared against when the handle is unknown so both
// failure paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() string {
	h, err := utils.HashPassword("guestbook-dummy-password")
	if err != nil {
		panic(err)
	}
	return h
})

// Register creates an account. The raw password is only ever passed to bcrypt.
func (s *CredentialStore) Register(ctx context.Context, username, handle, rawPassword string) (*models.User, error) {
	username = strings.TrimSpace(username)
	handle = strings.TrimSpace(handle)

	if msg := utils.ValidateRegistration(username, handle); msg != "" {
		return nil, fmt.Errorf("register %q: %w", handle, invalid(msg))
	}
	if err := utils.ValidatePasswordStrength(rawPassword); err != nil {
		return nil, fmt.Errorf("register %q: %w", handle, invalid(capitalize(err.Error())))
	}

	users := s.store.Repos().Users
	exists, err := users.HandleExists(ctx, handle)
	if err != nil {
		return nil, storeErr(ctx, "check handle", err)
	}
	if exists {
		return nil, fmt.Errorf("register %q: %w", handle, ErrDuplicateHandle)
	}

	hash, err := utils.HashPassword(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	id, err := users.Create(ctx, username, handle, hash, now)
	if errors.Is(err, repos.ErrConflict) {
		// lost a race with a concurrent registration
		return nil, fmt.Errorf("register %q: %w", handle, ErrDuplicateHandle)
	}
	if err != nil {
		return nil, storeErr(ctx, "create user", err)
	}

	zerolog.Ctx(ctx).Info().Int("user_id", id).Str("handle", handle).Msg("User registered")

	return &models.User{
		ID:           id,
		Username:     username,
		Handle:       handle,
		PasswordHash: hash,
		CreatedAt:    now,
	}, nil
}

// Verify returns the user for a matching handle and password.
// Unknown handles and wrong passwords both yield ErrInvalidCredentials.
func (s *CredentialStore) Verify(ctx context.Context, handle, rawPassword string) (*models.User, error) {
	handle = strings.TrimSpace(handle)

	user, err := s.store.Repos().Users.GetByHandle(ctx, handle)
	if err != nil && !errors.Is(err, repos.ErrNotFound) {
		return nil, storeErr(ctx, "lookup user", err)
	}

	if user == nil {
		_ = utils.VerifyPassword(dummyHash(), rawPassword)
		return nil, fmt.Errorf("authenticate %q: %w", handle, ErrInvalidCredentials)
	}

	if err := utils.VerifyPassword(user.PasswordHash, rawPassword); err != nil {
		return nil, fmt.Errorf("authenticate %q: %w", handle, ErrInvalidCredentials)
	}

	return user, nil
}

func (s *CredentialStore) UserByID(ctx context.Context, id int) (*models.User, error) {
	u, err := s.store.Repos().Users.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(ctx, "get user", err)
	}
	return u, nil
}

func (s *CredentialStore) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.Repos().Users.List(ctx)
	if err != nil {
		return nil, storeErr(ctx, "list users", err)
	}
	return users, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
