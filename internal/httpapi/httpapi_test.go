package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
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
	"campushub/internal/blob/blobtest"
	"campushub/internal/dashboard"
	"campushub/internal/portal"
	"campushub/internal/profile"
	"campushub/internal/realtime"
	"campushub/internal/records"
	"campushub/internal/records/recordstest"
	"campushub/internal/session"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type testEnv struct {
	router   *gin.Engine
	accounts *account.Service
	profiles *profile.Service
	records  *recordstest.Memory
	blobs    *blobtest.Memory
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	broker := realtime.NewMemory(16)
	mem := recordstest.New(broker)
	blobs := blobtest.New()
	iss := auth.NewIssuer("campushub", "test-key", time.Minute, time.Hour)
	accounts := account.NewService(accounttest.New(), iss).WithHashCost(bcrypt.MinCost)
	profiles := profile.NewService(mem)
	dash := dashboard.New(dashboard.Deps{Records: mem, Blobs: blobs}, nil)
	events, err := dash.Tab("events")
	require.NoError(t, err)

	srv := &Server{
		Accounts:       accounts,
		Sessions:       session.NewManager(accounts, session.NewResolver(profiles, nil), nil),
		Profiles:       profiles,
		Issuer:         iss,
		Dashboard:      dash,
		Portal:         portal.NewService(mem, events),
		Broker:         broker,
		Blobs:          blobs,
		MaxUploadBytes: 1 << 20,
		Health:         map[string]HealthCheck{"db": func(context.Context) bool { return true }},
	}
	return &testEnv{router: srv.Router(), accounts: accounts, profiles: profiles, records: mem, blobs: blobs}
}

// user signs up, completes the profile and optionally approves it, returning an access token.
func (e *testEnv) user(t *testing.T, email, role string, approve bool) string {
	t.Helper()
	ctx := context.Background()
	u, err := e.accounts.SignUp(ctx, email, "password123", role)
	require.NoError(t, err)
	_, err = e.profiles.Complete(ctx, u.ID, u.Email, role, profile.Fields{
		Name: "User " + role, Phone: "9876543210", HTNo: "21A91A0501", Year: "3", Semester: "1", Department: "CSE",
	})
	require.NoError(t, err)
	if approve {
		_, err = e.records.Update(ctx, profile.Table, u.ID, records.Row{"status": profile.StatusApproved})
		require.NoError(t, err)
	}
	_, pair, err := e.accounts.SignIn(ctx, email, "password123")
	require.NoError(t, err)
	return pair.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, fields map[string]string, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSignUpAndLogin(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{"email": "a@college.test", "password": "password123", "role": "student"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{"email": "b@college.test", "password": "password123", "role": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "a@college.test", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["needs_profile_creation"])
	assert.Equal(t, "/complete-profile", body["redirect"])
	assert.NotNil(t, body["tokens"])

	w = e.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "a@college.test", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, decode(t, w)["notices"])
}

func TestCompleteProfileFlow(t *testing.T) {
	e := newEnv(t)
	_, err := e.accounts.SignUp(context.Background(), "s@college.test", "password123", "student")
	require.NoError(t, err)
	_, pair, err := e.accounts.SignIn(context.Background(), "s@college.test", "password123")
	require.NoError(t, err)

	w := e.do(t, http.MethodGet, "/api/student/timetable", pair.AccessToken, nil)
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)

	w = e.do(t, http.MethodPost, "/api/profile/complete", pair.AccessToken, gin.H{
		"name": "Sita", "phone": "9876543210", "ht_no": "21A91A0507", "year": "2", "semester": "1", "department": "EEE",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/student-dashboard", decode(t, w)["redirect"])

	w = e.do(t, http.MethodGet, "/api/student/timetable", pair.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoleGuards(t *testing.T) {
	e := newEnv(t)
	student := e.user(t, "s@college.test", "student", false)
	pendingCrew := e.user(t, "c@college.test", "crew", false)

	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/api/admin/events", student, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/api/crew/events", pendingCrew, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/admin/events", "", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/public/events", "", nil).Code)
}

func TestAdminEventLifecycle(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "admin@college.test", "admin", true)

	body, ct := multipartBody(t, map[string]string{"title": "Tech Fest", "date": "2030-02-01", "venue": "Main Hall"}, "files", "poster.png", pngBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/events", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+admin)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var added dashboard.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &added))
	id := added.Row.ID()
	path := added.Row.Text("image_path")
	assert.True(t, e.blobs.Has(dashboard.BucketEvents, path))

	w = e.do(t, http.MethodGet, "/api/admin/events?q=tech", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	w = e.do(t, http.MethodPatch, "/api/admin/events/"+id, admin, gin.H{"venue": "Auditorium"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/api/public/events?q=auditorium", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["rows"], 1)

	w = e.do(t, http.MethodDelete, "/api/admin/events/"+id, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, e.blobs.Has(dashboard.BucketEvents, path))
	assert.Empty(t, e.records.Rows("events"))
}

func TestAdminRejectsBadInput(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "admin@college.test", "admin", true)

	body, ct := multipartBody(t, map[string]string{"title": "Fest", "date": "2030-01-01"}, "files", "notes.txt", []byte("just some text"))
	req := httptest.NewRequest(http.MethodPost, "/api/admin/events", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+admin)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Empty(t, e.blobs.CallLog())

	w = e.do(t, http.MethodPost, "/api/admin/events", admin, gin.H{"venue": "Hall"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decode(t, w)["fields"])

	w = e.do(t, http.MethodGet, "/api/admin/nope", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/api/admin/students", admin, gin.H{"name": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestAdminRejectsMalformedMultipart(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "admin@college.test", "admin", true)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/events", bytes.NewBufferString("--x\r\n\r\nhello\r\n--x--\r\n"))
	req.Header.Set("Content-Type", "multipart/mixed; boundary=x")
	req.Header.Set("Authorization", "Bearer "+admin)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, e.records.Rows("events"))
}

func TestAdminRejectsSecondFileOnEvents(t *testing.T) {
	e := newEnv(t)
	admin := e.user(t, "admin@college.test", "admin", true)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "Fest"))
	require.NoError(t, mw.WriteField("date", "2030-01-01"))
	for _, name := range []string{"a.png", "b.png"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(pngBytes)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/events", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, e.blobs.CallLog())
	assert.Empty(t, e.records.Rows("events"))
}
