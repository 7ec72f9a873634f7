package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"campushub/internal/metrics"
	"campushub/internal/realtime"
)

// Store runs the helpers against Postgres, one pool per project.
type Store struct {
	dbs    map[string]*sql.DB
	broker realtime.Broker
	now    func() time.Time
}

// NewStore builds a store. broker may be nil when no change feed is wanted.
func NewStore(dbs map[string]*sql.DB, broker realtime.Broker) *Store {
	return &Store{dbs: dbs, broker: broker, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) table(op, name string) (Table, *sql.DB, error) {
	t, err := Lookup(name)
	if err != nil {
		return Table{}, nil, &Error{Op: op, Table: name, Err: err}
	}
	db, ok := s.dbs[t.Project]
	if !ok {
		return Table{}, nil, &Error{Op: op, Table: name, Err: fmt.Errorf("no database for project %s", t.Project)}
	}
	return t, db, nil
}

func quote(ident string) string { return `"` + ident + `"` }

func selectList(t Table) string {
	cols := []string{"id::text"}
	for _, c := range t.Columns {
		cols = append(cols, quote(c.Name))
	}
	cols = append(cols, "created_at")
	if t.HasUpdatedAt {
		cols = append(cols, "updated_at")
	}
	return strings.Join(cols, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(t Table, sc scanner) (Row, error) {
	var id string
	vals := make([]sql.NullString, len(t.Columns))
	var created, updated time.Time
	dest := []any{&id}
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	dest = append(dest, &created)
	if t.HasUpdatedAt {
		dest = append(dest, &updated)
	}
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	row := Row{"id": id, "created_at": created}
	for i, c := range t.Columns {
		row[c.Name] = vals[i].String
	}
	if t.HasUpdatedAt {
		row["updated_at"] = updated
	}
	return row, nil
}

func (s *Store) observe(t, op string, err error) error {
	metrics.RecordOps.WithLabelValues(t, op, metrics.Outcome(err)).Inc()
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	return &Error{Op: op, Table: t, Err: err}
}

func (s *Store) publish(ctx context.Context, table string, op realtime.Op, id string) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, realtime.Change{Table: table, Op: op, ID: id, At: s.now()}); err != nil {
		slog.Warn("publish change failed", "table", table, "op", op, "err", err)
	}
}

// FetchAll returns every row of the table matching the equality filter.
func (s *Store) FetchAll(ctx context.Context, name string, f Filter) ([]Row, error) {
	t, db, err := s.table("fetch", name)
	if err != nil {
		return nil, s.observe(name, "fetch", err)
	}
	if err := CheckFilter(t, f); err != nil {
		return nil, s.observe(name, "fetch", err)
	}

	query := "SELECT " + selectList(t) + " FROM " + quote(t.Name)
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys))
	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, f[k])
		clauses = append(clauses, fmt.Sprintf("%s = $%d", quote(k), len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if t.OrderBy != "" {
		query += " ORDER BY " + t.OrderBy
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.observe(name, "fetch", err)
	}
	defer rows.Close()

	res := []Row{}
	for rows.Next() {
		row, err := scanRow(t, rows)
		if err != nil {
			return nil, s.observe(name, "fetch", err)
		}
		res = append(res, row)
	}
	return res, s.observe(name, "fetch", rows.Err())
}

// Get returns one row by id.
func (s *Store) Get(ctx context.Context, name, id string) (Row, error) {
	t, db, err := s.table("get", name)
	if err != nil {
		return nil, s.observe(name, "get", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, s.observe(name, "get", ErrNotFound)
	}
	row, err := scanRow(t, db.QueryRowContext(ctx,
		"SELECT "+selectList(t)+" FROM "+quote(t.Name)+" WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return row, s.observe(name, "get", err)
}

// Add inserts a row and returns it with its generated id and timestamps.
func (s *Store) Add(ctx context.Context, name string, in Row) (Row, error) {
	t, db, err := s.table("add", name)
	if err != nil {
		return nil, s.observe(name, "add", err)
	}
	row, err := Normalize(t, in, false)
	if err != nil {
		return nil, s.observe(name, "add", err)
	}
	id := in.Text("id")
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()

	cols := []string{"id", "created_at"}
	args := []any{id, now}
	if t.HasUpdatedAt {
		cols = append(cols, "updated_at")
		args = append(args, now)
	}
	for _, c := range t.Columns {
		cols = append(cols, quote(c.Name))
		args = append(args, row[c.Name])
	}
	ph := make([]string, len(args))
	for i := range args {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(t.Name), strings.Join(cols, ", "), strings.Join(ph, ", "))
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, s.observe(name, "add", err)
	}

	row["id"] = id
	row["created_at"] = now
	if t.HasUpdatedAt {
		row["updated_at"] = now
	}
	s.observe(name, "add", nil)
	s.publish(ctx, name, realtime.Insert, id)
	return row, nil
}

// Update applies a partial patch and returns the updated row.
func (s *Store) Update(ctx context.Context, name, id string, patch Row) (Row, error) {
	t, db, err := s.table("update", name)
	if err != nil {
		return nil, s.observe(name, "update", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, s.observe(name, "update", ErrNotFound)
	}
	set, err := Normalize(t, patch, true)
	if err != nil {
		return nil, s.observe(name, "update", err)
	}
	if len(set) == 0 {
		return s.Get(ctx, name, id)
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := []any{id}
	assigns := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		args = append(args, set[k])
		assigns = append(assigns, fmt.Sprintf("%s = $%d", quote(k), len(args)))
	}
	if t.HasUpdatedAt {
		args = append(args, s.now())
		assigns = append(assigns, fmt.Sprintf("updated_at = $%d", len(args)))
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1 RETURNING %s",
		quote(t.Name), strings.Join(assigns, ", "), selectList(t))
	row, err := scanRow(t, db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	if err != nil {
		return nil, s.observe(name, "update", err)
	}
	s.observe(name, "update", nil)
	s.publish(ctx, name, realtime.Update, id)
	return row, nil
}

// Delete removes a row by id.
func (s *Store) Delete(ctx context.Context, name, id string) error {
	t, db, err := s.table("delete", name)
	if err != nil {
		return s.observe(name, "delete", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		return s.observe(name, "delete", ErrNotFound)
	}
	res, err := db.ExecContext(ctx, "DELETE FROM "+quote(t.Name)+" WHERE id = $1", id)
	if err != nil {
		return s.observe(name, "delete", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return s.observe(name, "delete", ErrNotFound)
	}
	s.observe(name, "delete", nil)
	s.publish(ctx, name, realtime.Delete, id)
	return nil
}
