// Package dashboard is the admin tab controller: one controller per table keeps a
// snapshot of the rows, serves searches from it, runs the upload-then-insert and
// storage-then-row delete flows, and reloads when the table changes.
package dashboard

import "campushub/internal/records"

// Storage buckets.
const (
	BucketStudentPhotos = "student-photos"
	BucketCertificates  = "certificates"
	BucketAttendance    = "attendance"
	BucketResults       = "results"
	BucketEvents        = "events"
	BucketFaculty       = "faculty"
	BucketPlacements    = "placements"
	BucketAchievements  = "achievements"
	BucketGallery       = "gallery"
)

// Buckets lists every bucket a tab writes to.
var Buckets = []string{
	BucketStudentPhotos, BucketCertificates, BucketAttendance, BucketResults, BucketEvents,
	BucketFaculty, BucketPlacements, BucketAchievements, BucketGallery,
}

// FileColumns names the columns holding an uploaded object's public URL and storage path.
type FileColumns struct {
	URL  string
	Path string
}

// Media describes a child table holding several uploaded objects per parent row.
type Media struct {
	Table     string
	ParentCol string
	Files     FileColumns
	TypeCol   string
}

// Tab binds a dashboard tab to its table, bucket and behaviour.
type Tab struct {
	Name   string
	Table  string
	Bucket string
	// Fixed is always applied to the fetch (the students tab only shows students).
	Fixed  records.Filter
	Search []string
	// YearFilter pushes a "year" predicate down to the fetch.
	YearFilter bool
	Files      *FileColumns
	Media      *Media
	// ResolvePhotos rewrites Files.URL from Files.Path on every load.
	ResolvePhotos bool
	// SelfService rows are created by their users; admins may only edit them.
	SelfService   bool
}

func (t Tab) tables() []string {
	out := []string{t.Table}
	if t.Media != nil {
		out = append(out, t.Media.Table)
	}
	return out
}

var (
	imageCols = &FileColumns{URL: "image_url", Path: "image_path"}
	fileCols  = &FileColumns{URL: "file_url", Path: "file_path"}
)

// Tabs is the admin dashboard layout.
var Tabs = []Tab{
	{
		Name:          "students",
		Table:         "user_profiles",
		Bucket:        BucketStudentPhotos,
		Fixed:         records.Filter{"role": "student"},
		Search:        []string{"name", "ht_no", "email"},
		Files:         &FileColumns{URL: "photo_url", Path: "photo_path"},
		ResolvePhotos: true,
		SelfService:   true,
	},
	{Name: "certificates", Table: "student_certificates", Bucket: BucketCertificates, Search: []string{"title", "ht_no", "issuer"}, Files: fileCols},
	{Name: "events", Table: "events", Bucket: BucketEvents, Search: []string{"title", "venue", "category"}, Files: imageCols},
	{Name: "faculty", Table: "faculty", Bucket: BucketFaculty, Search: []string{"name", "designation", "specialization"}, Files: imageCols},
	{Name: "placements", Table: "placements", Bucket: BucketPlacements, Search: []string{"student_name", "company"}, Files: imageCols},
	{Name: "achievements", Table: "achievements", Bucket: BucketAchievements, Search: []string{"title", "student_name"}, Files: imageCols},
	{Name: "attendance", Table: "attendance_records", Bucket: BucketAttendance, Search: []string{"title", "month"}, YearFilter: true, Files: fileCols},
	{Name: "results", Table: "results", Bucket: BucketResults, Search: []string{"title", "semester"}, YearFilter: true, Files: fileCols},
	{Name: "timetable", Table: "timetable_slots", Search: []string{"subject", "faculty", "day"}},
	{
		Name:   "gallery",
		Table:  "gallery",
		Bucket: BucketGallery,
		Search: []string{"title", "category"},
		Media: &Media{
			Table:     "gallery_media",
			ParentCol: "gallery_id",
			Files:     FileColumns{URL: "media_url", Path: "media_path"},
			TypeCol:   "media_type",
		},
	},
	{Name: "notifications", Table: "notifications", Search: []string{"title", "message", "audience"}},
}
