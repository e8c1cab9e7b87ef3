package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/recipe-api/internal/model"
	"github.com/iliyamo/recipe-api/internal/repository"
	"github.com/iliyamo/recipe-api/internal/utils"
)

// AuthConfig holds token and hashing parameters.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// Tokens is the result of a successful login or refresh.
type Tokens struct {
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// UserService handles signup, token issuing and the caller's profile.
type UserService struct {
	users  UserRepository
	tokens TokenRepository
	cfg    AuthConfig
}

func NewUserService(users UserRepository, tokens TokenRepository, cfg AuthConfig) *UserService {
	return &UserService{users: users, tokens: tokens, cfg: cfg}
}

// NormalizeEmail trims the address and lower-cases its domain part. The
// local part is case sensitive and kept as given.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// UserInput is a signup or profile update request.
type UserInput struct {
	Email    string
	Password *string
	Name     *string
}

func checkPassword(pw *string, verr *ValidationError) {
	if pw != nil && len([]rune(*pw)) < utils.MinPasswordLen {
		verr.add("password", fmt.Sprintf("Ensure this field has at least %d characters.", utils.MinPasswordLen))
	}
}

// Register creates an active regular user.
func (s *UserService) Register(ctx context.Context, in UserInput) (*model.User, error) {
	return s.create(ctx, in, false)
}

// CreateSuperuser creates an active user with staff and superuser flags.
func (s *UserService) CreateSuperuser(ctx context.Context, in UserInput) (*model.User, error) {
	return s.create(ctx, in, true)
}

func (s *UserService) create(ctx context.Context, in UserInput, super bool) (*model.User, error) {
	verr := &ValidationError{}
	email := NormalizeEmail(in.Email)
	if email == "" {
		verr.add("email", "This field is required.")
	}
	if in.Password == nil || *in.Password == "" {
		verr.add("password", "This field is required.")
	}
	checkPassword(in.Password, verr)
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(*in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      super,
		IsSuperuser:  super,
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, FieldError("email", "user with this email already exists.")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login exchanges credentials for an access/refresh token pair. Unknown
// emails, wrong passwords and inactive users all yield
// ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, email, password string) (Tokens, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Tokens{}, ErrInvalidCredentials
	}
	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Tokens{}, ErrInvalidCredentials
		}
		return Tokens{}, fmt.Errorf("lookup user: %w", err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
		return Tokens{}, ErrInvalidCredentials
	}
	return s.issue(ctx, u.ID)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *UserService) Refresh(ctx context.Context, raw string) (Tokens, error) {
	if raw == "" {
		return Tokens{}, ErrInvalidCredentials
	}
	hash := utils.HashRefreshRaw(raw)
	userID, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Tokens{}, ErrInvalidCredentials
		}
		return Tokens{}, fmt.Errorf("validate refresh: %w", err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil || !u.IsActive {
		return Tokens{}, ErrInvalidCredentials
	}
	if err := s.tokens.RevokeByHash(ctx, userID, hash); err != nil {
		return Tokens{}, fmt.Errorf("revoke refresh: %w", err)
	}
	return s.issue(ctx, userID)
}

// Logout revokes one refresh token of userID, or all of them when raw is
// empty.
func (s *UserService) Logout(ctx context.Context, userID uint64, raw string) error {
	if raw == "" {
		return s.tokens.RevokeAllForUser(ctx, userID)
	}
	return s.tokens.RevokeByHash(ctx, userID, utils.HashRefreshRaw(raw))
}

func (s *UserService) issue(ctx context.Context, userID uint64) (Tokens, error) {
	at, err := utils.NewAccessToken(s.cfg.JWTSecret, userID, s.cfg.AccessTTLMin)
	if err != nil {
		return Tokens{}, fmt.Errorf("sign access token: %w", err)
	}
	rt, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Tokens{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokens.StoreRefresh(ctx, userID, utils.HashRefreshRaw(rt.Raw), rt.Exp); err != nil {
		return Tokens{}, fmt.Errorf("store refresh token: %w", err)
	}
	return Tokens{Access: at, Refresh: rt}, nil
}

// Me returns the caller's account.
func (s *UserService) Me(ctx context.Context, userID uint64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// UpdateMe changes the caller's name and/or password. Email is not
// editable here.
func (s *UserService) UpdateMe(ctx context.Context, userID uint64, in UserInput) (*model.User, error) {
	verr := &ValidationError{}
	checkPassword(in.Password, verr)
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Password != nil {
		hash, err := utils.HashPassword(*in.Password, s.cfg.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, notFound(err)
	}
	return u, nil
}
