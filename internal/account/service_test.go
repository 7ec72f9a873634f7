package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"campushub/internal/account"
	"campushub/internal/account/accounttest"
	"campushub/internal/auth"
)

func newService() *account.Service {
	iss := auth.NewIssuer("campushub", "secret", time.Minute, time.Hour)
	return account.NewService(accounttest.New(), iss).WithHashCost(bcrypt.MinCost)
}

func TestSignUpSignIn(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	u, err := svc.SignUp(ctx, " Student@College.test ", "password123", "student")
	require.NoError(t, err)
	assert.Equal(t, "student@college.test", u.Email)
	assert.Equal(t, "student", u.PendingRole)

	_, err = svc.SignUp(ctx, "student@college.test", "password123", "student")
	assert.ErrorIs(t, err, account.ErrEmailTaken)

	_, err = svc.SignUp(ctx, "x@college.test", "short", "")
	assert.ErrorIs(t, err, account.ErrWeakPassword)

	got, pair, err := svc.SignIn(ctx, "STUDENT@college.test", "password123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.NotEmpty(t, pair.AccessToken)

	_, _, err = svc.SignIn(ctx, "student@college.test", "wrong-password")
	assert.ErrorIs(t, err, account.ErrInvalidCredentials)
	_, _, err = svc.SignIn(ctx, "nobody@college.test", "password123")
	assert.ErrorIs(t, err, account.ErrInvalidCredentials)
}

func TestRefreshRotates(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	_, err := svc.SignUp(ctx, "a@x.test", "password123", "admin")
	require.NoError(t, err)
	_, pair, err := svc.SignIn(ctx, "a@x.test", "password123")
	require.NoError(t, err)

	u, next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.test", u.Email)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, account.ErrTokenNotFound, "refresh tokens are single use")

	_, _, err = svc.Refresh(ctx, next.AccessToken)
	assert.ErrorIs(t, err, auth.ErrWrongKind)
}

func TestSignOutRevokes(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	_, err := svc.SignUp(ctx, "a@x.test", "password123", "")
	require.NoError(t, err)
	_, pair, err := svc.SignIn(ctx, "a@x.test", "password123")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, pair.RefreshToken))
	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, account.ErrTokenNotFound)
	assert.NoError(t, svc.SignOut(ctx, ""))
}

func TestEnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	first, err := svc.Ensure(ctx, "Admin@College.test", "password123", "admin")
	require.NoError(t, err)
	again, err := svc.Ensure(ctx, "admin@college.test", "another-password", "admin")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, _, err = svc.SignIn(ctx, "admin@college.test", "password123")
	assert.NoError(t, err)
}
