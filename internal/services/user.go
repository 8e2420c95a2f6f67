package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/arcadehub/apiserver/internal/store"
	"github.com/arcadehub/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultUserRole = "user"
	adminRole       = "admin"

	// New accounts start with a coin grant and the first_login tag.
	startingCoins         = 100
	firstLoginAchievement = "first_login"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	TouchLastLogin(ctx context.Context, id int, at time.Time) error
}

// UserPatch carries the profile fields a generic update may change.
// Credential and progression fields are deliberately absent; passwords go
// through ChangePassword and progression through the score ledger.
type UserPatch struct {
	Username *string
	Email    *string
}

// UserService owns user identities: registration, authentication, and
// guarded profile updates. Password hashes never leave this package.
type UserService struct {
	repo       UserRepository
	tokens     *TokenIssuer
	bcryptCost int
}

func NewUserService(repo UserRepository, tokens *TokenIssuer, bcryptCost int) *UserService {
	if bcryptCost < bcrypt.DefaultCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		repo:       repo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
	}
}

// Register creates a new account. Username and email collisions are
// case-sensitive exact matches, the behavior the catalog has always had.
func (s *UserService) Register(ctx context.Context, username, email, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return types.User{}, ErrValidation
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		Role:         defaultUserRole,
		PasswordHash: string(hashed),
		Level:        1,
		Experience:   0,
		Coins:        startingCoins,
		Achievements: []string{firstLoginAchievement},
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrDuplicateIdentity
		}
		return types.User{}, err
	}
	return user, nil
}

// Authenticate verifies a login by exact username or email match plus
// password, records the login time, and returns the user with a session
// token. All failures collapse to ErrInvalidCredentials so callers cannot
// probe which identifiers exist.
func (s *UserService) Authenticate(ctx context.Context, identifier, password string) (types.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return types.User{}, "", ErrInvalidCredentials
	}

	user, err := s.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, "", ErrInvalidCredentials
		}
		return types.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, "", ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return types.User{}, "", err
	}
	user.LastLogin = now

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return types.User{}, "", err
	}
	return user, token, nil
}

// VerifyToken resolves a bearer token to the bound user. A token that
// fails signature or expiry checks never resolves; a valid token whose
// user has since disappeared surfaces store.ErrNotFound.
func (s *UserService) VerifyToken(ctx context.Context, token string) (types.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return types.User{}, err
	}
	return s.repo.GetByID(ctx, userID)
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Update merges a profile patch into an existing user. The patch cannot
// carry credential fields by construction.
func (s *UserService) Update(ctx context.Context, id int, patch UserPatch) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if username == "" {
			return types.User{}, ErrValidation
		}
		user.Username = username
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if email == "" {
			return types.User{}, ErrValidation
		}
		user.Email = email
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrDuplicateIdentity
		}
		return types.User{}, err
	}
	return updated, nil
}

// ChangePassword is the only path that writes the credential column. It
// verifies the current password and stores a fresh hash, so a raw
// password can never land in the hash field.
func (s *UserService) ChangePassword(ctx context.Context, id int, current, next string) error {
	if next == "" {
		return ErrValidation
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashed)
	_, err = s.repo.Update(ctx, user)
	return err
}

// EnsureAdmin seeds the administrator account on startup. It is
// idempotent: an existing admin username is left untouched.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	if username == "" || password == "" {
		return nil
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return err
	}
	_, err = s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		Role:         adminRole,
		PasswordHash: string(hashed),
		Level:        1,
		Experience:   0,
		Coins:        startingCoins,
		Achievements: []string{firstLoginAchievement},
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	return err
}
