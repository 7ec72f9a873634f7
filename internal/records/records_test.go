package records

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tbl, err := Lookup("events")
	require.NoError(t, err)
	assert.Equal(t, ProjectEvents, tbl.Project)

	_, err = Lookup("pg_user")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestCatalogCoversEveryTable(t *testing.T) {
	for _, name := range []string{
		"user_profiles", "student_certificates", "attendance_records", "notifications",
		"timetable_slots", "events", "faculty", "placements", "achievements",
		"gallery", "gallery_media", "results",
	} {
		tbl, err := Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, tbl.Name)
		assert.NotEmpty(t, tbl.Columns, name)
	}
}

func TestNormalizeInsert(t *testing.T) {
	tbl := Catalog["events"]
	row, err := Normalize(tbl, Row{"title": "  Hackathon ", "date": "2026-11-01"}, false)
	require.NoError(t, err)
	assert.Equal(t, "Hackathon", row["title"])
	assert.Equal(t, "", row["image_url"], "missing columns become empty")
	assert.Equal(t, "", row["image_path"])
}

func TestNormalizeRequired(t *testing.T) {
	_, err := Normalize(Catalog["events"], Row{"description": "x"}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []FieldError{{Column: "date", Rule: "required"}, {Column: "title", Rule: "required"}}, verr.Fields)
	assert.Equal(t, "field date is required, field title is required", verr.Error())
}

func TestNormalizeRules(t *testing.T) {
	_, err := Normalize(Catalog["faculty"], Row{"name": "Dr. Rao", "email": "not-an-email"}, false)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Normalize(Catalog["timetable_slots"], Row{
		"year": "2", "semester": "1", "day": "Funday", "start_time": "09:00", "end_time": "10:00", "subject": "OS",
	}, false)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNormalizePartialSkipsMissing(t *testing.T) {
	row, err := Normalize(Catalog["user_profiles"], Row{"status": "approved", "id": "ignored"}, true)
	require.NoError(t, err)
	assert.Equal(t, Row{"status": "approved"}, row)

	_, err = Normalize(Catalog["user_profiles"], Row{"status": ""}, true)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNormalizeUnknownColumn(t *testing.T) {
	_, err := Normalize(Catalog["events"], Row{"title": "x", "date": "y", "drop table": 1}, false)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestCheckFilter(t *testing.T) {
	assert.NoError(t, CheckFilter(Catalog["results"], Filter{"year": "3"}))
	assert.ErrorIs(t, CheckFilter(Catalog["results"], Filter{"title": "x"}), ErrUnknownColumn)
}

func TestRowText(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := Row{"id": "abc", "year": 3, "created_at": at}
	assert.Equal(t, "abc", r.ID())
	assert.Equal(t, "3", r.Text("year"))
	assert.Equal(t, "2026-01-02T03:04:05Z", r.Text("created_at"))
	assert.Equal(t, "", r.Text("missing"))
}

func TestErrorWraps(t *testing.T) {
	err := error(&Error{Op: "get", Table: "events", Err: ErrNotFound})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "get events: record not found", err.Error())
}
