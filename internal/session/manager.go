package session

import (
	"context"
	"errors"
	"log/slog"

	"campushub/internal/account"
	"campushub/internal/auth"
)

var ErrDemoDisabled = errors.New("demo login is disabled")

// Accounts is the identity backend the manager drives.
type Accounts interface {
	SignIn(ctx context.Context, email, password string) (*account.User, auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*account.User, auth.TokenPair, error)
	SignOut(ctx context.Context, refreshToken string) error
	User(ctx context.Context, id string) (*account.User, error)
}

// Result is a resolution plus the tokens issued alongside it.
type Result struct {
	Tokens *auth.TokenPair `json:"tokens,omitempty"`
	Resolution
}

// Manager owns the session lifecycle: created on sign-in, re-resolved on token
// refresh, cleared on sign-out.
type Manager struct {
	accounts Accounts
	resolver *Resolver
	logger   *slog.Logger

	demoAccounts map[string]string
	demoPassword string
}

func NewManager(accounts Accounts, resolver *Resolver, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{accounts: accounts, resolver: resolver, logger: logger}
}

// EnableDemo turns on one-click demo sign-in for the role -> email accounts.
func (m *Manager) EnableDemo(accounts map[string]string, password string) {
	m.demoAccounts = accounts
	m.demoPassword = password
}

// DemoRoles lists the roles with a demo account, empty when demo login is off.
func (m *Manager) DemoRoles() []string {
	roles := make([]string, 0, len(m.demoAccounts))
	for r := range m.demoAccounts {
		roles = append(roles, r)
	}
	return roles
}

func identityOf(u *account.User) *Identity {
	return &Identity{UserID: u.ID, Email: u.Email, PendingRole: u.PendingRole}
}

func (m *Manager) failed(ev Event, title string, err error) Result {
	res := Result{Resolution: Resolution{Event: ev, Redirect: RouteLogin}}
	res.Notices.Fail(title, err)
	return res
}

// SignIn checks credentials and resolves the new session. The returned error is
// for status mapping only; the Result always carries the notices to show.
func (m *Manager) SignIn(ctx context.Context, email, password string) (Result, error) {
	u, pair, err := m.accounts.SignIn(ctx, email, password)
	if err != nil {
		m.logger.Info("sign-in failed", "email", email, "err", err)
		return m.failed(SignedIn, "Sign in failed", err), err
	}
	res := Result{Tokens: &pair, Resolution: m.resolver.Resolve(ctx, SignedIn, identityOf(u), "")}
	if res.Authenticated {
		res.Notices.Success("Signed in", "Welcome back")
	}
	return res, nil
}

// DemoSignIn signs in the configured demo account for role.
func (m *Manager) DemoSignIn(ctx context.Context, role string) (Result, error) {
	email, ok := m.demoAccounts[role]
	if !ok || m.demoPassword == "" {
		return m.failed(SignedIn, "Demo login unavailable", ErrDemoDisabled), ErrDemoDisabled
	}
	return m.SignIn(ctx, email, m.demoPassword)
}

// Refresh rotates the refresh token and re-runs resolution.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (Result, error) {
	u, pair, err := m.accounts.Refresh(ctx, refreshToken)
	if err != nil {
		return m.failed(TokenRefreshed, "Session expired", err), err
	}
	return Result{Tokens: &pair, Resolution: m.resolver.Resolve(ctx, TokenRefreshed, identityOf(u), "")}, nil
}

// SignOut revokes the refresh token and clears the session. Revocation errors are
// logged; the user is signed out either way.
func (m *Manager) SignOut(ctx context.Context, refreshToken, currentPath string) Resolution {
	if err := m.accounts.SignOut(ctx, refreshToken); err != nil {
		m.logger.Warn("revoke refresh token failed", "err", err)
	}
	return m.resolver.Resolve(ctx, SignedOut, nil, currentPath)
}

// Current resolves the session for an already signed-in user id.
func (m *Manager) Current(ctx context.Context, ev Event, userID string) Resolution {
	id, err := m.Identity(ctx, userID)
	if err != nil {
		m.logger.Error("identity lookup failed", "user_id", userID, "err", err)
		res := Resolution{Event: ev, Redirect: RouteLogin}
		res.Notices.Fail("Could not load your session", err)
		return res
	}
	return m.resolver.Resolve(ctx, ev, id, "")
}

// Identity loads the identity for a user id; nil with no error when it is gone.
func (m *Manager) Identity(ctx context.Context, userID string) (*Identity, error) {
	u, err := m.accounts.User(ctx, userID)
	if err != nil || u == nil {
		return nil, err
	}
	return identityOf(u), nil
}
