// Package users implements account signup and login on top of the store and
// the password hasher. Sessions are bound by the HTTP layer.
package users

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/jason-s-yu/arcade/internal/apperrors"
	"github.com/jason-s-yu/arcade/internal/database"
	"github.com/jason-s-yu/arcade/internal/models"
)

// Repository is the subset of database.Store used for accounts.
type Repository interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUsersByEmailOrUsername(ctx context.Context, email, username string) ([]models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type UserService struct {
	repo   Repository
	hasher PasswordHasher

	// dummyHash is verified against when the username is unknown so both
	// failure paths pay for one hash.
	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(repo Repository, hasher PasswordHasher) *UserService {
	return &UserService{repo: repo, hasher: hasher}
}

type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

const conflictMessage = "User/email already exists"

// Signup creates an account with every game score at zero. The pre-check
// gives the common case a clean message; the unique constraints catch races.
func (u *UserService) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" || req.Password == "" {
		return nil, apperrors.BadRequest("Missing fields")
	}

	existing, err := u.repo.FindUsersByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if len(existing) > 0 {
		return nil, apperrors.Conflict(conflictMessage, database.ErrUserExists)
	}

	hashed, err := u.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.NewAppError(http.StatusInternalServerError, "error hashing password", err)
	}

	user := &models.User{
		Email:    req.Email,
		Username: req.Username,
		Password: hashed,
		Scores:   models.NewScores(),
	}
	if err := u.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrUserExists) {
			return nil, apperrors.Conflict(conflictMessage, err)
		}
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

// Login checks credentials. Unknown users and wrong passwords get the same
// error.
func (u *UserService) Login(ctx context.Context, req LoginRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return nil, apperrors.BadRequest("Missing fields")
	}

	user, err := u.repo.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, database.ErrNotFound) {
		_, _ = u.hasher.Verify(req.Password, u.unknownUserHash())
		return nil, apperrors.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	ok, err := u.hasher.Verify(req.Password, user.Password)
	if err != nil || !ok {
		return nil, apperrors.Unauthorized("Invalid credentials")
	}
	return user, nil
}

func (u *UserService) unknownUserHash() string {
	u.dummyOnce.Do(func() {
		u.dummyHash, _ = u.hasher.Hash("arcade-unknown-user")
	})
	return u.dummyHash
}

// List returns every account. Password hashes never leave the models layer
// because User.Password is not serialized.
func (u *UserService) List(ctx context.Context) ([]models.User, error) {
	list, err := u.repo.ListUsers(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return list, nil
}
