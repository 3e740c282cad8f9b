// Package services – UserService
//
// This file implements UserService: registration, login, password changes
// and resets, role transitions and the startup admin bootstrap.
//
// Propagation policy: conditions that matter for security or integrity fail
// loudly with a sentinel error (duplicate username, bad credentials, unknown
// email on reset, demoting the reserved admin). Expected absence on a
// lookup-then-act operation is reported as (false, nil) or (nil, nil).
//
// Observability: the credential paths are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/chat-admin-backend/internal/domain"
	"github.com/tbourn/chat-admin-backend/internal/repo"
)

// UserRepo defines the repository contract required by UserService.
type UserRepo interface {
	Create(ctx context.Context, db *gorm.DB, u *domain.User) error
	GetByID(ctx context.Context, db *gorm.DB, id uint) (*domain.User, error)
	GetByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error)
	ListViews(ctx context.Context, db *gorm.DB) ([]domain.UserView, error)
	UpdatePassword(ctx context.Context, db *gorm.DB, id uint, hash string) error
	UpdateRole(ctx context.Context, db *gorm.DB, id uint, role string) error
	Delete(ctx context.Context, db *gorm.DB, id uint) error
}

// UserService implements account and role use-cases.
type UserService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the user repository used by this service.
	Repo UserRepo
	// AdminDefaultPassword is the initial password of the bootstrapped
	// "admin" account.
	AdminDefaultPassword string
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, r UserRepo, adminDefaultPassword string) *UserService {
	return &UserService{DB: db, Repo: r, AdminDefaultPassword: adminDefaultPassword}
}

var userTracer = otel.Tracer("services/UserService")

// Register creates a regular user. It fails with ErrConflict when the
// username or a non-empty email is already taken. The returned user has its
// password hash cleared.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	ctx, span := userTracer.Start(ctx, "Register", trace.WithAttributes(attribute.String("user.name", username)))
	defer span.End()

	u, err := s.create(ctx, username, email, password, domain.RoleUser)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return u, err
}

// CreateAdmin provisions an account with the admin role directly.
func (s *UserService) CreateAdmin(ctx context.Context, username, email, password string) (*domain.User, error) {
	return s.create(ctx, username, email, password, domain.RoleAdmin)
}

func (s *UserService) create(ctx context.Context, username, email, password, role string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)

	if _, err := s.Repo.GetByUsername(ctx, s.DB, username); err == nil {
		return nil, fmt.Errorf("%w: username %q", ErrConflict, username)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	var emailPtr *string
	if email != "" {
		if _, err := s.Repo.GetByEmail(ctx, s.DB, email); err == nil {
			return nil, fmt.Errorf("%w: email %q", ErrConflict, email)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		emailPtr = &email
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{Username: username, Email: emailPtr, Password: hash, Role: role}
	if err := s.Repo.Create(ctx, s.DB, u); err != nil {
		// Lost a race against a concurrent registration.
		if repo.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: username or email", ErrConflict)
		}
		return nil, err
	}
	u.Password = ""
	return u, nil
}

// Login verifies credentials. Unknown usernames fail with ErrNotFound and
// wrong passwords with ErrUnauthorized.
func (s *UserService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	ctx, span := userTracer.Start(ctx, "Login", trace.WithAttributes(attribute.String("user.name", username)))
	defer span.End()

	u, err := s.Repo.GetByUsername(ctx, s.DB, strings.TrimSpace(username))
	if errors.Is(err, repo.ErrNotFound) {
		span.SetStatus(codes.Error, "unknown user")
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(u.Password, password) {
		span.SetStatus(codes.Error, "bad password")
		return nil, fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	}
	u.Password = ""
	return u, nil
}

// ChangePassword replaces the password of userID after verifying oldPassword.
// It returns false when the user does not exist or oldPassword is wrong.
func (s *UserService) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) (bool, error) {
	ctx, span := userTracer.Start(ctx, "ChangePassword", trace.WithAttributes(attribute.Int64("user.id", int64(userID))))
	defer span.End()

	if err := validatePassword(newPassword); err != nil {
		return false, err
	}
	u, err := s.Repo.GetByID(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !CheckPassword(u.Password, oldPassword) {
		return false, nil
	}
	return s.setPassword(ctx, userID, newPassword)
}

// ResetPassword sets a new password for userID without verifying the old one.
func (s *UserService) ResetPassword(ctx context.Context, userID uint, newPassword string) (bool, error) {
	if err := validatePassword(newPassword); err != nil {
		return false, err
	}
	return s.setPassword(ctx, userID, newPassword)
}

// ResetPasswordByEmail sets a new password for the account registered with
// email. Unknown emails fail with ErrNotFound.
func (s *UserService) ResetPasswordByEmail(ctx context.Context, email, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	u, err := s.Repo.GetByEmail(ctx, s.DB, strings.TrimSpace(email))
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: email is not registered", ErrNotFound)
	}
	if err != nil {
		return err
	}
	ok, err := s.setPassword(ctx, u.ID, newPassword)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: email is not registered", ErrNotFound)
	}
	return nil
}

func (s *UserService) setPassword(ctx context.Context, userID uint, plain string) (bool, error) {
	hash, err := HashPassword(plain)
	if err != nil {
		return false, err
	}
	return found(s.Repo.UpdatePassword(ctx, s.DB, userID, hash))
}

// PromoteToAdmin grants the admin role. It returns false for unknown users.
func (s *UserService) PromoteToAdmin(ctx context.Context, userID uint) (bool, error) {
	return found(s.Repo.UpdateRole(ctx, s.DB, userID, domain.RoleAdmin))
}

// DemoteAdmin revokes the admin role. The reserved "admin" account can never
// be demoted (ErrForbidden). It returns false for unknown users.
func (s *UserService) DemoteAdmin(ctx context.Context, userID uint) (bool, error) {
	u, err := s.Repo.GetByID(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if u.Username == domain.SuperAdminUsername {
		return false, fmt.Errorf("%w: the %q account cannot be demoted", ErrForbidden, domain.SuperAdminUsername)
	}
	return found(s.Repo.UpdateRole(ctx, s.DB, userID, domain.RoleUser))
}

// InitAdminUser creates the reserved "admin" account if it does not exist.
// It is safe to call repeatedly and reports whether a row was created.
func (s *UserService) InitAdminUser(ctx context.Context) (bool, error) {
	_, err := s.Repo.GetByUsername(ctx, s.DB, domain.SuperAdminUsername)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return false, err
	}
	hash, err := HashPassword(s.AdminDefaultPassword)
	if err != nil {
		return false, err
	}
	u := &domain.User{Username: domain.SuperAdminUsername, Password: hash, Role: domain.RoleAdmin}
	if err := s.Repo.Create(ctx, s.DB, u); err != nil {
		if repo.IsDuplicate(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FindAllUsers returns the password-free projection of every user.
func (s *UserService) FindAllUsers(ctx context.Context) ([]domain.UserView, error) {
	return s.Repo.ListViews(ctx, s.DB)
}

// FindByID returns the user or nil when absent.
func (s *UserService) FindByID(ctx context.Context, userID uint) (*domain.User, error) {
	return clearHash(s.Repo.GetByID(ctx, s.DB, userID))
}

// FindByEmail returns the user or nil when absent.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return clearHash(s.Repo.GetByEmail(ctx, s.DB, strings.TrimSpace(email)))
}

// DeleteUser removes a user. The reserved "admin" account can never be
// deleted (ErrForbidden). It returns false when nothing was deleted.
func (s *UserService) DeleteUser(ctx context.Context, userID uint) (bool, error) {
	u, err := s.Repo.GetByID(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if u.Username == domain.SuperAdminUsername {
		return false, fmt.Errorf("%w: the %q account cannot be deleted", ErrForbidden, domain.SuperAdminUsername)
	}
	return found(s.Repo.Delete(ctx, s.DB, userID))
}

// IsAdmin reports whether userID currently holds the admin role.
func (s *UserService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	u, err := s.FindByID(ctx, userID)
	if err != nil || u == nil {
		return false, err
	}
	return u.IsAdmin(), nil
}

// RoleOf returns the current role of userID, or ErrNotFound.
func (s *UserService) RoleOf(ctx context.Context, userID uint) (string, error) {
	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrNotFound
	}
	return u.Role, nil
}

// found maps a repo write result to the (bool, error) convention: a missing
// row is (false, nil).
func found(err error) (bool, error) {
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func clearHash(u *domain.User, err error) (*domain.User, error) {
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Password = ""
	return u, nil
}
