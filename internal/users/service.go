package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service implements account registration, login and identity resolution on
// top of a Store.
type Service struct {
	store Store
}

// NewService wraps a Store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// RegisterInput is what a new account supplies.
type RegisterInput struct {
	Email     string `json:"email"`
	Name      string `json:"nombre"`
	Password  string `json:"password"`
	Specialty string `json:"especialidad"`
}

// Register creates an account. The role comes from the email domain; workers
// must name a valid specialty.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: email invalido", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Name) == "" {
		return User{}, fmt.Errorf("%w: nombre requerido", ErrInvalidInput)
	}
	if len(in.Password) < MinPasswordLength {
		return User{}, fmt.Errorf("%w: password debe tener al menos %d caracteres", ErrInvalidInput, MinPasswordLength)
	}

	role := RoleForEmail(email)
	specialty := strings.TrimSpace(in.Specialty)
	if role == RoleWorker {
		if !ValidSpecialty(specialty) {
			return User{}, fmt.Errorf("%w: especialidad invalida, opciones: %s", ErrInvalidInput, strings.Join(Specialties, ", "))
		}
	} else {
		specialty = ""
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Role:         role,
		Specialty:    specialty,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Login verifies credentials and returns the account plus a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return User{}, "", ErrUnauthorized
	}
	if !VerifyPassword(u.PasswordHash, password) {
		return User{}, "", ErrUnauthorized
	}
	token, err := GenerateToken(u)
	if err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

// Resolve maps a trusted identity claim (an email) to the stored account.
// A missing or unresolvable claim is unauthenticated either way.
func (s *Service) Resolve(ctx context.Context, claim string) (User, error) {
	email := NormalizeEmail(claim)
	if email == "" {
		return User{}, ErrUnauthorized
	}
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrUnauthorized
		}
		return User{}, err
	}
	return u, nil
}

// List returns accounts, optionally filtered by role.
func (s *Service) List(ctx context.Context, role string) ([]User, error) {
	if role != "" && role != RoleStudent && role != RoleWorker && role != RoleAdmin {
		return nil, fmt.Errorf("%w: tipo invalido", ErrInvalidInput)
	}
	return s.store.List(ctx, role)
}

// ListByRole is the lookup the incident engine uses to find admins.
func (s *Service) ListByRole(ctx context.Context, role string) ([]User, error) {
	return s.store.List(ctx, role)
}

// FindByEmail exposes direct account lookup for the incident engine.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.store.FindByEmail(ctx, email)
}
