package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"campushub/internal/account"
	"campushub/internal/config"
	"campushub/internal/profile"
)

// Seed is an account that must exist with an admitted profile.
type Seed struct {
	Email    string
	Password string
	Role     string
}

// Seeds lists the configured admin followed by the demo accounts when demo login
// is enabled. Demo accounts share DemoPassword.
func Seeds(cfg config.App) []Seed {
	var out []Seed
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		out = append(out, Seed{Email: cfg.AdminEmail, Password: cfg.AdminPassword, Role: profile.RoleAdmin})
	}
	if cfg.EnableDemoLogin && cfg.DemoPassword != "" {
		roles := make([]string, 0, len(cfg.DemoAccounts))
		for r := range cfg.DemoAccounts {
			roles = append(roles, r)
		}
		sort.Strings(roles)
		for _, r := range roles {
			out = append(out, Seed{Email: cfg.DemoAccounts[r], Password: cfg.DemoPassword, Role: r})
		}
	}
	return out
}

// SeedAccounts creates each identity and its approved profile. Running it again
// leaves existing accounts and profiles as they are, apart from approving them.
func SeedAccounts(ctx context.Context, accounts *account.Service, profiles *profile.Service, seeds []Seed, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, s := range seeds {
		if !profile.ValidRole(s.Role) {
			return fmt.Errorf("seed %s: unknown role %q", s.Email, s.Role)
		}
		u, err := accounts.Ensure(ctx, s.Email, s.Password, s.Role)
		if err != nil {
			return fmt.Errorf("seed %s: %w", s.Email, err)
		}
		p, err := profiles.Get(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("seed %s: %w", s.Email, err)
		}
		if p == nil {
			name, _, _ := strings.Cut(u.Email, "@")
			if _, err := profiles.Complete(ctx, u.ID, u.Email, s.Role, profile.Fields{Name: name}); err != nil {
				return fmt.Errorf("seed %s profile: %w", s.Email, err)
			}
		} else if p.Role != s.Role {
			logger.Warn("seeded account already has another role", "email", u.Email, "role", p.Role)
		}
		if _, err := profiles.Approve(ctx, u.ID); err != nil {
			return fmt.Errorf("seed %s: %w", s.Email, err)
		}
		logger.Info("seeded account", "email", u.Email, "role", s.Role)
	}
	return nil
}
