package records

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campushub/internal/realtime"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *realtime.Memory) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	broker := realtime.NewMemory(8)
	s := NewStore(map[string]*sql.DB{ProjectPortal: db}, broker)
	s.now = func() time.Time { return fixedNow }
	return s, mock, broker
}

func attendanceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "year", "semester", "month", "file_url", "file_path", "created_at"})
}

func TestFetchAllPushesFilterDown(t *testing.T) {
	s, mock, _ := newMockStore(t)
	id := uuid.NewString()
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id::text, "title", "year", "semester", "month", "file_url", "file_path", created_at FROM "attendance_records" WHERE "year" = $1 ORDER BY created_at DESC`)).
		WithArgs("3").
		WillReturnRows(attendanceRows().AddRow(id, "March", "3", "1", "March", nil, nil, fixedNow))

	rows, err := s.FetchAll(context.Background(), "attendance_records", Filter{"year": "3"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].ID())
	assert.Equal(t, "March", rows[0].Text("title"))
	assert.Equal(t, "", rows[0].Text("file_url"))
	assert.Equal(t, fixedNow, rows[0]["created_at"])
}

func TestFetchAllRejectsUnknownFilter(t *testing.T) {
	s, _, _ := newMockStore(t)
	_, err := s.FetchAll(context.Background(), "attendance_records", Filter{"title": "x"})
	assert.Error(t, err)
}

func TestFetchAllEmptyTable(t *testing.T) {
	s, mock, _ := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "attendance_records" ORDER BY created_at DESC`)).
		WillReturnRows(attendanceRows())

	rows, err := s.FetchAll(context.Background(), "attendance_records", nil)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestGetNonUUIDIsNotFound(t *testing.T) {
	s, _, _ := newMockStore(t)
	_, err := s.Get(context.Background(), "notifications", "ev1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetMissingRow(t *testing.T) {
	s, mock, _ := newMockStore(t)
	id := uuid.NewString()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "notifications" WHERE id = $1`)).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "notifications", id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddInsertsAndPublishes(t *testing.T) {
	s, mock, broker := newMockStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := broker.Subscribe(ctx, "notifications")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO "notifications" (id, created_at, "title", "message", "audience", "link") VALUES ($1, $2, $3, $4, $5, $6)`)).
		WithArgs(sqlmock.AnyArg(), fixedNow, "Exam schedule", "", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	row, err := s.Add(ctx, "notifications", Row{"title": " Exam schedule "})
	require.NoError(t, err)
	_, err = uuid.Parse(row.ID())
	assert.NoError(t, err)
	assert.Equal(t, "Exam schedule", row.Text("title"))

	select {
	case ch := <-changes:
		assert.Equal(t, realtime.Insert, ch.Op)
		assert.Equal(t, row.ID(), ch.ID)
	case <-time.After(time.Second):
		t.Fatal("no change published")
	}
}

func TestAddValidatesBeforeQuery(t *testing.T) {
	s, _, _ := newMockStore(t)
	_, err := s.Add(context.Background(), "notifications", Row{"message": "no title"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUpdateReturnsRow(t *testing.T) {
	s, mock, _ := newMockStore(t)
	id := uuid.NewString()
	mock.ExpectQuery(regexp.QuoteMeta(
		`UPDATE "attendance_records" SET "month" = $2, "title" = $3 WHERE id = $1 RETURNING id::text`)).
		WithArgs(id, "April", "April sheet").
		WillReturnRows(attendanceRows().AddRow(id, "April sheet", "3", "1", "April", "", "", fixedNow))

	row, err := s.Update(context.Background(), "attendance_records", id, Row{"title": "April sheet", "month": "April"})
	require.NoError(t, err)
	assert.Equal(t, "April sheet", row.Text("title"))
	assert.Equal(t, "April", row.Text("month"))
}

func TestUpdateMissingRow(t *testing.T) {
	s, mock, _ := newMockStore(t)
	id := uuid.NewString()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE "attendance_records"`)).
		WillReturnRows(attendanceRows())

	_, err := s.Update(context.Background(), "attendance_records", id, Row{"title": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteNoRowsIsNotFound(t *testing.T) {
	s, mock, _ := newMockStore(t)
	id := uuid.NewString()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "notifications" WHERE id = $1`)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Delete(context.Background(), "notifications", id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesRow(t *testing.T) {
	s, mock, _ := newMockStore(t)
	id := uuid.NewString()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "notifications" WHERE id = $1`)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, s.Delete(context.Background(), "notifications", id))
}

func TestStoreUnknownProject(t *testing.T) {
	s := NewStore(map[string]*sql.DB{}, nil)
	_, err := s.FetchAll(context.Background(), "notifications", nil)
	var re *Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "fetch", re.Op)
}
