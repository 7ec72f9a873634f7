package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"campushub/internal/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrUnknownUser        = errors.New("user no longer exists")
)

// Service handles sign-up, sign-in and token rotation.
type Service struct {
	store  Store
	tokens *auth.Issuer
	cost   int
	now    func() time.Time
}

// NewService creates a service backed by a store.
func NewService(store Store, tokens *auth.Issuer) *Service {
	return &Service{store: store, tokens: tokens, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithHashCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// SignUp creates an identity; pendingRole is kept as signup metadata until the
// profile row is created.
func (s *Service) SignUp(ctx context.Context, email, password, pendingRole string) (User, error) {
	if len(password) < 8 {
		return User{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.store.CreateUser(ctx, User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		PendingRole:  pendingRole,
	})
}

// Ensure returns the identity for email, creating it with password and role when
// it does not exist yet. An existing identity keeps its password.
func (s *Service) Ensure(ctx context.Context, email, password, pendingRole string) (User, error) {
	u, err := s.SignUp(ctx, email, password, pendingRole)
	if !errors.Is(err, ErrEmailTaken) {
		return u, err
	}
	existing, err := s.store.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return User{}, err
	}
	if existing == nil {
		return User{}, ErrUnknownUser
	}
	return *existing, nil
}

// SignIn checks credentials and issues a token pair.
func (s *Service) SignIn(ctx context.Context, email, password string) (*User, auth.TokenPair, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, auth.TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	_ = s.store.TouchSignIn(ctx, u.ID, s.now().UTC())
	return u, pair, nil
}

// Refresh rotates a refresh token: the old one is consumed and a new pair issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*User, auth.TokenPair, error) {
	if _, err := s.tokens.Parse(refreshToken, auth.KindRefresh); err != nil {
		return nil, auth.TokenPair{}, err
	}
	userID, err := s.store.ConsumeRefreshToken(ctx, refreshToken, s.now())
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	u, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	if u == nil {
		return nil, auth.TokenPair{}, ErrUnknownUser
	}
	pair, err := s.issue(ctx, u)
	return u, pair, err
}

// SignOut revokes the refresh token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.store.RevokeRefreshToken(ctx, refreshToken)
}

// User loads an identity by id.
func (s *Service) User(ctx context.Context, id string) (*User, error) {
	return s.store.UserByID(ctx, id)
}

func (s *Service) issue(ctx context.Context, u *User) (auth.TokenPair, error) {
	pair, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.store.SaveRefreshToken(ctx, u.ID, pair.RefreshToken, pair.RefreshExp); err != nil {
		return auth.TokenPair{}, fmt.Errorf("save refresh token: %w", err)
	}
	return pair, nil
}
