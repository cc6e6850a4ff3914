package service

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/config"
	"github.com/phbiling/isp-billing/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// LoginResponse is returned on a successful staff login
type LoginResponse struct {
	Token     string             `json:"token"`
	ExpiresIn int64              `json:"expires_in"`
	User      *domain.SystemUser `json:"user"`
}

// UserInput is the create/update payload for staff accounts
type UserInput struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,alphanum"`
	Password string `json:"password" validate:"omitempty,min=6"`
	Role     string `json:"role" validate:"required,oneof=ADMIN TECHNICIAN"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Status   string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

// AuthService handles staff login and account management
type AuthService struct {
	users     domain.UserRepository
	jwtConfig config.JWTConfig
	clock     clock.Clock
	activity  *ActivityLog
}

// NewAuthService creates a new auth service
func NewAuthService(users domain.UserRepository, jwtConfig config.JWTConfig, clk clock.Clock, activity *ActivityLog) *AuthService {
	return &AuthService{
		users:     users,
		jwtConfig: jwtConfig,
		clock:     clk,
		activity:  activity,
	}
}

// HashPassword returns the bcrypt hash stored for staff accounts
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

// Login checks credentials and issues a session token.
// Unknown users, wrong passwords and inactive accounts all fail with ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, errors.Wrap(err, "look up user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.activity.Warn(ctx, "Auth", "Failed login for %s", user.Username)
		return nil, domain.ErrUnauthorized
	}
	if !user.IsActive() {
		return nil, domain.ErrUnauthorized
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user.LastLogin = &now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, errors.Wrap(err, "record last login")
	}
	s.activity.Info(ctx, "Auth", "%s (%s) logged in", user.Name, user.Role)

	return &LoginResponse{
		Token:     token,
		ExpiresIn: int64(s.jwtConfig.AccessTokenExpiry.Seconds()),
		User:      user,
	}, nil
}

// GenerateToken creates a signed HS256 JWT carrying the staff role
func (s *AuthService) GenerateToken(user *domain.SystemUser) (string, error) {
	now := s.clock.Now()
	claims := domain.StaffClaims{
		UserID:   user.ID,
		Name:     user.Name,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// ListUsers returns every staff account
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.SystemUser, error) {
	return s.users.List(ctx)
}

// GetUser returns one staff account
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.SystemUser, error) {
	return s.users.GetByID(ctx, id)
}

// CreateUser adds a staff account. A password is required on create.
func (s *AuthService) CreateUser(ctx context.Context, in UserInput) (*domain.SystemUser, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, errors.Mark(errors.New("password is required"), domain.ErrValidation)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.SystemUser{
		ID:           ulid.Make().String(),
		Name:         in.Name,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		Email:        in.Email,
		Phone:        in.Phone,
		Address:      in.Address,
		Status:       defaultString(in.Status, "ACTIVE"),
		JoinDate:     domain.DateOf(s.clock.Now()),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.activity.Info(ctx, "Users", "Created %s account %s", user.Role, user.Username)
	return user, nil
}

// UpdateUser edits a staff account; an empty password keeps the current one
func (s *AuthService) UpdateUser(ctx context.Context, id string, in UserInput) (*domain.SystemUser, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Name = in.Name
	user.Username = in.Username
	user.Role = in.Role
	user.Email = in.Email
	user.Phone = in.Phone
	user.Address = in.Address
	user.Status = defaultString(in.Status, user.Status)
	if in.Password != "" {
		if user.PasswordHash, err = HashPassword(in.Password); err != nil {
			return nil, err
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
