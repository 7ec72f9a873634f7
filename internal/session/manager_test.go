package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"campushub/internal/account"
	"campushub/internal/account/accounttest"
	"campushub/internal/auth"
	"campushub/internal/notice"
	"campushub/internal/profile"
	"campushub/internal/records/recordstest"
	"campushub/internal/session"
)

type fixture struct {
	iss      *auth.Issuer
	accounts *account.Service
	profiles *profile.Service
	manager  *session.Manager
}

func newFixture() fixture {
	iss := auth.NewIssuer("campushub", "secret", time.Minute, time.Hour)
	accounts := account.NewService(accounttest.New(), iss).WithHashCost(bcrypt.MinCost)
	profiles := profile.NewService(recordstest.New(nil))
	return fixture{
		iss:      iss,
		accounts: accounts,
		profiles: profiles,
		manager:  session.NewManager(accounts, session.NewResolver(profiles, nil), nil),
	}
}

func TestManagerSignInFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	u, err := f.accounts.SignUp(ctx, "new@college.test", "password123", "student")
	require.NoError(t, err)

	res, err := f.manager.SignIn(ctx, "new@college.test", "password123")
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	assert.True(t, res.NeedsProfileCreation)
	assert.Equal(t, session.RouteOnboarding, res.Redirect)

	_, err = f.profiles.Complete(ctx, u.ID, u.Email, u.PendingRole, profile.Fields{
		Name: "New Student", Phone: "9876543210", HTNo: "21A91A0501", Year: "3", Semester: "1", Department: "CSE",
	})
	require.NoError(t, err)

	refreshed, err := f.manager.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, session.TokenRefreshed, refreshed.Event)
	assert.Equal(t, "/student-dashboard", refreshed.Redirect)
	assert.False(t, refreshed.ProfileIncomplete)

	out := f.manager.SignOut(ctx, refreshed.Tokens.RefreshToken, "/student-dashboard")
	assert.False(t, out.Authenticated)
	assert.Equal(t, session.RouteLogin, out.Redirect)

	_, err = f.manager.Refresh(ctx, refreshed.Tokens.RefreshToken)
	assert.Error(t, err)
}

func TestManagerBadCredentials(t *testing.T) {
	f := newFixture()
	res, err := f.manager.SignIn(context.Background(), "ghost@college.test", "password123")
	assert.ErrorIs(t, err, account.ErrInvalidCredentials)
	assert.False(t, res.Authenticated)
	assert.True(t, res.Notices.Has(notice.Destructive))
}

func TestManagerDemo(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.manager.DemoSignIn(ctx, "admin")
	assert.ErrorIs(t, err, session.ErrDemoDisabled)

	_, err = f.accounts.SignUp(ctx, "admin@demo.test", "demo-password", "admin")
	require.NoError(t, err)
	f.manager.EnableDemo(map[string]string{"admin": "admin@demo.test"}, "demo-password")

	res, err := f.manager.DemoSignIn(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, res.Authenticated)
	assert.Equal(t, []string{"admin"}, f.manager.DemoRoles())
}

func guarded(f fixture, handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append([]gin.HandlerFunc{auth.Bearer(f.iss), session.Load(f.manager, f.profiles)}, handlers...)
	chain = append(chain, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/x", chain...)
	return r
}

func call(t *testing.T, r *gin.Engine, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	student, err := f.accounts.SignUp(ctx, "s@college.test", "password123", "student")
	require.NoError(t, err)
	_, pair, err := f.accounts.SignIn(ctx, "s@college.test", "password123")
	require.NoError(t, err)

	admin := guarded(f, session.RequireCompleteProfile(), session.RequireRole(profile.RoleAdmin))
	studentOnly := guarded(f, session.RequireCompleteProfile(), session.RequireRole(profile.RoleStudent))

	assert.Equal(t, http.StatusUnauthorized, call(t, admin, "").Code)
	assert.Equal(t, http.StatusPreconditionRequired, call(t, studentOnly, pair.AccessToken).Code)

	_, err = f.profiles.Complete(ctx, student.ID, student.Email, "student", profile.Fields{Name: "S", Phone: "123"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusPreconditionRequired, call(t, studentOnly, pair.AccessToken).Code)

	_, err = f.profiles.Complete(ctx, student.ID, student.Email, "student", profile.Fields{
		HTNo: "21A91A0501", Year: "2", Semester: "2", Department: "ECE",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, call(t, studentOnly, pair.AccessToken).Code)
	assert.Equal(t, http.StatusForbidden, call(t, admin, pair.AccessToken).Code)
}

func TestGuardPendingStaff(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	u, err := f.accounts.SignUp(ctx, "crew@college.test", "password123", "crew")
	require.NoError(t, err)
	_, err = f.profiles.Complete(ctx, u.ID, u.Email, "crew", profile.Fields{Name: "C", Phone: "123"})
	require.NoError(t, err)
	_, pair, err := f.accounts.SignIn(ctx, "crew@college.test", "password123")
	require.NoError(t, err)

	r := guarded(f, session.RequireCompleteProfile(), session.RequireRole(profile.RoleCrew))
	assert.Equal(t, http.StatusForbidden, call(t, r, pair.AccessToken).Code)
}
