package records

// Database projects. FindMyEvent tables live in "events", everything else in "portal".
const (
	ProjectPortal = "portal"
	ProjectEvents = "events"
)

// Column is a writable column and the validator rule its values must satisfy.
type Column struct {
	Name string
	Rule string
}

// Table describes one whitelisted table.
type Table struct {
	Name         string
	Project      string
	Columns      []Column
	Filters      []string
	OrderBy      string
	HasUpdatedAt bool
}

// Column looks up a writable column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// CanFilter reports whether name is an allowed equality filter.
func (t Table) CanFilter(name string) bool {
	for _, f := range t.Filters {
		if f == name {
			return true
		}
	}
	return false
}

func text(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n}
	}
	return cols
}

func with(cols []Column, rules map[string]string) []Column {
	for i := range cols {
		if r, ok := rules[cols[i].Name]; ok {
			cols[i].Rule = r
		}
	}
	return cols
}

// Catalog lists every table the service reads or writes.
var Catalog = map[string]Table{
	"user_profiles": {
		Name:    "user_profiles",
		Project: ProjectPortal,
		Columns: with(text("role", "status", "name", "email", "phone", "ht_no", "year", "semester", "department", "photo_url", "photo_path"), map[string]string{
			"role":   "required,oneof=student admin faculty organizer crew",
			"status": "required",
			"email":  "omitempty,email",
			"phone":  "omitempty,e164|numeric",
		}),
		Filters:      []string{"role", "status"},
		OrderBy:      "created_at DESC",
		HasUpdatedAt: true,
	},
	"student_certificates": {
		Name:    "student_certificates",
		Project: ProjectPortal,
		Columns: with(text("student_id", "ht_no", "title", "issuer", "year", "file_url", "file_path"), map[string]string{
			"title": "required",
		}),
		Filters: []string{"student_id", "ht_no"},
		OrderBy: "created_at DESC",
	},
	"attendance_records": {
		Name:    "attendance_records",
		Project: ProjectPortal,
		Columns: with(text("title", "year", "semester", "month", "file_url", "file_path"), map[string]string{
			"title": "required",
			"year":  "required",
		}),
		Filters: []string{"year"},
		OrderBy: "created_at DESC",
	},
	"results": {
		Name:    "results",
		Project: ProjectPortal,
		Columns: with(text("title", "year", "semester", "file_url", "file_path"), map[string]string{
			"title": "required",
			"year":  "required",
		}),
		Filters: []string{"year"},
		OrderBy: "created_at DESC",
	},
	"notifications": {
		Name:    "notifications",
		Project: ProjectPortal,
		Columns: with(text("title", "message", "audience", "link"), map[string]string{
			"title": "required",
			"link":  "omitempty,url",
		}),
		Filters: []string{"audience"},
		OrderBy: "created_at DESC",
	},
	"timetable_slots": {
		Name:    "timetable_slots",
		Project: ProjectPortal,
		Columns: with(text("year", "semester", "day", "start_time", "end_time", "subject", "faculty", "room"), map[string]string{
			"year":       "required",
			"semester":   "required",
			"day":        "required,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday",
			"start_time": "required,datetime=15:04",
			"end_time":   "required,datetime=15:04",
			"subject":    "required",
		}),
		Filters: []string{"year", "semester"},
		OrderBy: "day, start_time",
	},
	"events": {
		Name:    "events",
		Project: ProjectEvents,
		Columns: with(text("title", "description", "date", "venue", "organizer", "category", "registration_link", "image_url", "image_path"), map[string]string{
			"title":             "required",
			"date":              "required",
			"registration_link": "omitempty,url",
		}),
		Filters: []string{"organizer", "category"},
		OrderBy: "date DESC",
	},
	"faculty": {
		Name:    "faculty",
		Project: ProjectPortal,
		Columns: with(text("name", "designation", "email", "phone", "qualification", "specialization", "image_url", "image_path"), map[string]string{
			"name":  "required",
			"email": "omitempty,email",
		}),
		OrderBy: "name",
	},
	"placements": {
		Name:    "placements",
		Project: ProjectPortal,
		Columns: with(text("student_name", "company", "package", "year", "image_url", "image_path"), map[string]string{
			"student_name": "required",
			"company":      "required",
		}),
		Filters: []string{"year"},
		OrderBy: "created_at DESC",
	},
	"achievements": {
		Name:    "achievements",
		Project: ProjectPortal,
		Columns: with(text("title", "description", "student_name", "date", "image_url", "image_path"), map[string]string{
			"title": "required",
		}),
		OrderBy: "created_at DESC",
	},
	"gallery": {
		Name:    "gallery",
		Project: ProjectEvents,
		Columns: with(text("title", "description", "category"), map[string]string{
			"title": "required",
		}),
		Filters: []string{"category"},
		OrderBy: "created_at DESC",
	},
	"gallery_media": {
		Name:    "gallery_media",
		Project: ProjectEvents,
		Columns: with(text("gallery_id", "media_url", "media_path", "media_type"), map[string]string{
			"gallery_id": "required,uuid",
			"media_url":  "required",
			"media_type": "omitempty,oneof=image video document",
		}),
		Filters: []string{"gallery_id"},
		OrderBy: "created_at",
	},
}
