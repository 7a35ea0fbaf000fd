package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/farmconnect/internal/models"
	"github.com/Skotchmaster/farmconnect/internal/repo"
	"github.com/Skotchmaster/farmconnect/internal/transport"
	"github.com/Skotchmaster/farmconnect/pkg/events"
	pkg_hash "github.com/Skotchmaster/farmconnect/pkg/hash"
	"github.com/Skotchmaster/farmconnect/pkg/logging"
	middleware "github.com/Skotchmaster/farmconnect/pkg/middleware/auth"
	"github.com/Skotchmaster/farmconnect/pkg/tokens"
)

const minPasswordLen = 6

type AuthService struct {
	Repo      *repo.GormRepo
	JWTSecret []byte
	TokenTTL  time.Duration
	Events    events.Publisher
	Now       func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func validateRegister(req *transport.RegisterRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	req.FarmLocation = strings.TrimSpace(req.FarmLocation)
	req.FarmSize = strings.TrimSpace(req.FarmSize)

	switch {
	case req.Name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case req.Email == "":
		return fmt.Errorf("%w: email is required", ErrValidation)
	case req.Phone == "":
		return fmt.Errorf("%w: phone is required", ErrValidation)
	case len(req.Password) < minPasswordLen:
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fmt.Errorf("%w: email is invalid", ErrValidation)
	}

	switch req.Role {
	case models.RoleFarmer:
		if req.FarmLocation == "" || req.FarmSize == "" {
			return fmt.Errorf("%w: farmLocation and farmSize are required for farmers", ErrValidation)
		}
	case models.RoleCustomer:
	default:
		return fmt.Errorf("%w: role must be farmer or customer", ErrValidation)
	}
	return nil
}

func (s *AuthService) issue(u *models.User) (*transport.AuthResponse, error) {
	token, exp, err := tokens.NewAccessToken(s.JWTSecret, u.ID.String(), u.Role, s.TokenTTL, s.now())
	if err != nil {
		return nil, err
	}
	return &transport.AuthResponse{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *AuthService) Register(ctx context.Context, req transport.RegisterRequest) (*transport.AuthResponse, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if err := validateRegister(&req); err != nil {
		return nil, err
	}

	pwHash, err := pkg_hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: pwHash,
		Phone:        req.Phone,
		Role:         req.Role,
	}
	if req.Role == models.RoleFarmer {
		user.FarmLocation = req.FarmLocation
		user.FarmSize = req.FarmSize
	}
	if req.Address != nil {
		user.Address = *req.Address
	}

	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			return nil, fmt.Errorf("%w: user already exists", ErrConflict)
		}
		return nil, err
	}

	events.Emit(ctx, s.Events, events.TopicUsers, user.ID.String(), events.New("user_registered", map[string]any{
		"user_id": user.ID, "role": user.Role,
	}))
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req transport.LoginRequest) (*transport.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, err
	}
	if !pkg_hash.CheckPassword(user.PasswordHash, req.Password) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	u, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

// UserRole backs the authentication gate.
func (s *AuthService) UserRole(ctx context.Context, userID string) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", middleware.ErrUserNotFound
	}
	u, err := s.Repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", middleware.ErrUserNotFound
		}
		return "", err
	}
	return u.Role, nil
}

var _ middleware.UserFinder = (*AuthService)(nil)
