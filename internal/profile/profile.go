// Package profile owns the user_profiles rows: role, status and personal fields kept
// apart from the authentication identity, plus the profile-completion gate.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campushub/internal/records"
)

const Table = "user_profiles"

// Roles.
const (
	RoleStudent   = "student"
	RoleAdmin     = "admin"
	RoleFaculty   = "faculty"
	RoleOrganizer = "organizer"
	RoleCrew      = "crew"
)

// Statuses. Anything else is treated as not yet allowed in.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusActive   = "active"
	StatusRejected = "rejected"
)

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	switch r {
	case RoleStudent, RoleAdmin, RoleFaculty, RoleOrganizer, RoleCrew:
		return true
	}
	return false
}

// Admitted reports whether the status lets the user into their dashboard.
func Admitted(status string) bool {
	return status == StatusApproved || status == StatusActive
}

// Profile is a user_profiles row.
type Profile struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Status     string    `json:"status"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	HTNo       string    `json:"ht_no"`
	Year       string    `json:"year"`
	Semester   string    `json:"semester"`
	Department string    `json:"department"`
	PhotoURL   string    `json:"photo_url"`
	PhotoPath  string    `json:"photo_path"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FromRow converts a records row.
func FromRow(r records.Row) *Profile {
	p := &Profile{
		ID:         r.ID(),
		Role:       r.Text("role"),
		Status:     r.Text("status"),
		Name:       r.Text("name"),
		Email:      r.Text("email"),
		Phone:      r.Text("phone"),
		HTNo:       r.Text("ht_no"),
		Year:       r.Text("year"),
		Semester:   r.Text("semester"),
		Department: r.Text("department"),
		PhotoURL:   r.Text("photo_url"),
		PhotoPath:  r.Text("photo_path"),
	}
	p.CreatedAt, _ = r["created_at"].(time.Time)
	p.UpdatedAt, _ = r["updated_at"].(time.Time)
	return p
}

// Row converts back to a records row (without timestamps).
func (p *Profile) Row() records.Row {
	return records.Row{
		"id":         p.ID,
		"role":       p.Role,
		"status":     p.Status,
		"name":       p.Name,
		"email":      p.Email,
		"phone":      p.Phone,
		"ht_no":      p.HTNo,
		"year":       p.Year,
		"semester":   p.Semester,
		"department": p.Department,
		"photo_url":  p.PhotoURL,
		"photo_path": p.PhotoPath,
	}
}

// Missing lists the required fields that are blank. Students need their
// academic fields as well.
func Missing(p *Profile) []string {
	if p == nil {
		return nil
	}
	check := []struct {
		name, val string
	}{
		{"name", p.Name},
		{"phone", p.Phone},
	}
	if p.Role == RoleStudent {
		check = append(check, []struct{ name, val string }{
			{"ht_no", p.HTNo},
			{"year", p.Year},
			{"semester", p.Semester},
			{"department", p.Department},
		}...)
	}
	var missing []string
	for _, c := range check {
		if strings.TrimSpace(c.val) == "" {
			missing = append(missing, c.name)
		}
	}
	return missing
}

// Complete reports whether every required field is present.
func Complete(p *Profile) bool {
	return p != nil && len(Missing(p)) == 0
}

// Fields are the personal fields a user may fill in themselves.
type Fields struct {
	Name       string `json:"name" form:"name"`
	Phone      string `json:"phone" form:"phone"`
	HTNo       string `json:"ht_no" form:"ht_no"`
	Year       string `json:"year" form:"year"`
	Semester   string `json:"semester" form:"semester"`
	Department string `json:"department" form:"department"`
}

func (f Fields) patch() records.Row {
	row := records.Row{}
	set := func(col, v string) {
		if v = strings.TrimSpace(v); v != "" {
			row[col] = v
		}
	}
	set("name", f.Name)
	set("phone", f.Phone)
	set("ht_no", f.HTNo)
	set("year", f.Year)
	set("semester", f.Semester)
	set("department", f.Department)
	return row
}

// Records is the subset of the data-access helpers the service needs.
type Records interface {
	Get(ctx context.Context, table, id string) (records.Row, error)
	Add(ctx context.Context, table string, row records.Row) (records.Row, error)
	Update(ctx context.Context, table, id string, patch records.Row) (records.Row, error)
}

var ErrNoRole = errors.New("no role to create profile with")

// Service reads and writes profiles through the records helpers so every change
// reaches the realtime feed.
type Service struct {
	records Records
}

func NewService(r Records) *Service {
	return &Service{records: r}
}

// Get returns the profile, or nil when the user has none yet.
func (s *Service) Get(ctx context.Context, id string) (*Profile, error) {
	row, err := s.records.Get(ctx, Table, id)
	if errors.Is(err, records.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return FromRow(row), nil
}

// InitialStatus is the status a fresh profile gets: students are approved
// straight away, staff roles wait for an admin.
func InitialStatus(role string) string {
	if role == RoleStudent {
		return StatusApproved
	}
	return StatusPending
}

// Complete creates the profile from the signup role when absent, otherwise
// applies the non-empty fields. Role and status are never user-editable here.
func (s *Service) Complete(ctx context.Context, userID, email, pendingRole string, f Fields) (*Profile, error) {
	existing, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if !ValidRole(pendingRole) {
			return nil, ErrNoRole
		}
		row := f.patch()
		row["id"] = userID
		row["email"] = email
		row["role"] = pendingRole
		row["status"] = InitialStatus(pendingRole)
		created, err := s.records.Add(ctx, Table, row)
		if err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
		return FromRow(created), nil
	}

	patch := f.patch()
	if len(patch) == 0 {
		return existing, nil
	}
	updated, err := s.records.Update(ctx, Table, userID, patch)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return FromRow(updated), nil
}

// SetPhoto stores the uploaded photo reference on the profile.
func (s *Service) SetPhoto(ctx context.Context, userID, url, path string) (*Profile, error) {
	updated, err := s.records.Update(ctx, Table, userID, records.Row{"photo_url": url, "photo_path": path})
	if err != nil {
		return nil, err
	}
	return FromRow(updated), nil
}

// Approve moves a profile that is not yet admitted to approved.
func (s *Service) Approve(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, records.ErrNotFound
	}
	if Admitted(p.Status) {
		return p, nil
	}
	updated, err := s.records.Update(ctx, Table, userID, records.Row{"status": StatusApproved})
	if err != nil {
		return nil, fmt.Errorf("approve profile: %w", err)
	}
	return FromRow(updated), nil
}
