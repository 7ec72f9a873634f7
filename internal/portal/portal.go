// Package portal serves the read-mostly views: the public landing pages and the
// student, organizer and crew dashboards.
package portal

import (
	"context"
	"errors"
	"sort"
	"time"

	"campushub/internal/dashboard"
	"campushub/internal/profile"
	"campushub/internal/records"
)

var ErrNotOwner = errors.New("event belongs to another organizer")

// Records is the read side of the data-access helpers.
type Records interface {
	FetchAll(ctx context.Context, table string, f records.Filter) ([]records.Row, error)
	Get(ctx context.Context, table, id string) (records.Row, error)
}

// EventWriter runs the add and delete flows for events.
type EventWriter interface {
	Add(ctx context.Context, form map[string]string, files []dashboard.Upload) (dashboard.Outcome, error)
	Delete(ctx context.Context, id string) (dashboard.Outcome, error)
}

// Service builds every portal view.
type Service struct {
	records Records
	events  EventWriter
	now     func() time.Time
}

func NewService(r Records, events EventWriter) *Service {
	return &Service{records: r, events: events, now: time.Now}
}

const dateLayout = "2006-01-02"

func eventDate(r records.Row) (time.Time, bool) {
	d, err := time.Parse(dateLayout, r.Text("date"))
	return d, err == nil
}

func sortByDate(rows []records.Row) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Text("date") < rows[j].Text("date") })
}

var eventSearch = []string{"title", "venue", "category"}

// Events lists events matching query. With upcoming set, events dated before today
// are dropped; rows whose date does not parse are kept. The result is ordered by date.
func (s *Service) Events(ctx context.Context, query string, upcoming bool) ([]records.Row, error) {
	rows, err := s.records.FetchAll(ctx, "events", nil)
	if err != nil {
		return nil, err
	}
	rows = dashboard.Search(rows, eventSearch, query)
	if upcoming {
		y, m, d := s.now().Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		kept := rows[:0]
		for _, r := range rows {
			if at, ok := eventDate(r); ok && at.Before(today) {
				continue
			}
			kept = append(kept, r)
		}
		rows = kept
	}
	sortByDate(rows)
	return rows, nil
}

// Event returns one event.
func (s *Service) Event(ctx context.Context, id string) (records.Row, error) {
	return s.records.Get(ctx, "events", id)
}

// Album is a gallery row with its media.
type Album struct {
	Gallery records.Row   `json:"gallery"`
	Media   []records.Row `json:"media"`
}

// Gallery returns every album with its media attached.
func (s *Service) Gallery(ctx context.Context, category string) ([]Album, error) {
	var f records.Filter
	if category != "" {
		f = records.Filter{"category": category}
	}
	galleries, err := s.records.FetchAll(ctx, "gallery", f)
	if err != nil {
		return nil, err
	}
	media, err := s.records.FetchAll(ctx, "gallery_media", nil)
	if err != nil {
		return nil, err
	}
	byParent := map[string][]records.Row{}
	for _, m := range media {
		id := m.Text("gallery_id")
		byParent[id] = append(byParent[id], m)
	}
	out := make([]Album, len(galleries))
	for i, g := range galleries {
		out[i] = Album{Gallery: g, Media: byParent[g.ID()]}
		if out[i].Media == nil {
			out[i].Media = []records.Row{}
		}
	}
	return out, nil
}

// Table lists a public table, optionally narrowed by year.
func (s *Service) Table(ctx context.Context, table, year string) ([]records.Row, error) {
	var f records.Filter
	if year != "" {
		f = records.Filter{"year": year}
	}
	return s.records.FetchAll(ctx, table, f)
}

// PublicTables are readable without signing in.
var PublicTables = map[string]string{
	"faculty":      "faculty",
	"placements":   "placements",
	"achievements": "achievements",
}

// Audiences.
const (
	AudienceAll       = "all"
	AudienceStudents  = "students"
	AudienceStaff     = "staff"
	AudienceOrganizer = "organizers"
)

// Notifications returns notices addressed to everyone or to audience.
func (s *Service) Notifications(ctx context.Context, audience string) ([]records.Row, error) {
	rows, err := s.records.FetchAll(ctx, "notifications", nil)
	if err != nil {
		return nil, err
	}
	out := make([]records.Row, 0, len(rows))
	for _, r := range rows {
		switch r.Text("audience") {
		case "", AudienceAll, audience:
			out = append(out, r)
		}
	}
	return out, nil
}

// Certificates returns the student's own certificates.
func (s *Service) Certificates(ctx context.Context, p *profile.Profile) ([]records.Row, error) {
	return s.records.FetchAll(ctx, "student_certificates", records.Filter{"student_id": p.ID})
}

// Attendance returns the attendance sheets for the student's year.
func (s *Service) Attendance(ctx context.Context, p *profile.Profile) ([]records.Row, error) {
	return s.records.FetchAll(ctx, "attendance_records", records.Filter{"year": p.Year})
}

// Results returns the result sheets for the student's year.
func (s *Service) Results(ctx context.Context, p *profile.Profile) ([]records.Row, error) {
	return s.records.FetchAll(ctx, "results", records.Filter{"year": p.Year})
}

// Timetable returns the student's week for their year and semester.
func (s *Service) Timetable(ctx context.Context, p *profile.Profile) ([]records.Row, error) {
	return s.records.FetchAll(ctx, "timetable_slots", records.Filter{"year": p.Year, "semester": p.Semester})
}

// OrganizerEvents lists events run by the organizer. Admins see every event.
func (s *Service) OrganizerEvents(ctx context.Context, p *profile.Profile) ([]records.Row, error) {
	var f records.Filter
	if p.Role != profile.RoleAdmin {
		f = records.Filter{"organizer": p.Name}
	}
	rows, err := s.records.FetchAll(ctx, "events", f)
	if err != nil {
		return nil, err
	}
	sortByDate(rows)
	return rows, nil
}

// CreateEvent adds an event owned by the organizer.
func (s *Service) CreateEvent(ctx context.Context, p *profile.Profile, form map[string]string, files []dashboard.Upload) (dashboard.Outcome, error) {
	if form == nil {
		form = map[string]string{}
	}
	if p.Role != profile.RoleAdmin || form["organizer"] == "" {
		form["organizer"] = p.Name
	}
	return s.events.Add(ctx, form, files)
}

// DeleteEvent removes an event the organizer owns.
func (s *Service) DeleteEvent(ctx context.Context, p *profile.Profile, id string) (dashboard.Outcome, error) {
	row, err := s.records.Get(ctx, "events", id)
	if err != nil {
		var out dashboard.Outcome
		out.Notices.Fail("Error deleting event", err)
		return out, err
	}
	if p.Role != profile.RoleAdmin && row.Text("organizer") != p.Name {
		var out dashboard.Outcome
		out.Notices.Fail("Error deleting event", ErrNotOwner)
		return out, ErrNotOwner
	}
	return s.events.Delete(ctx, id)
}
