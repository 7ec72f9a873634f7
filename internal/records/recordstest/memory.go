// Package recordstest provides an in-memory implementation of the records helpers for tests.
package recordstest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"campushub/internal/realtime"
	"campushub/internal/records"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("injected database failure")

// Memory keeps rows per table in insertion order and counts calls.
type Memory struct {
	mu      sync.Mutex
	rows    map[string][]records.Row
	fetches map[string]int
	calls   []string

	Broker     realtime.Broker
	FailAdd    bool
	FailDelete bool
	FailFetch  bool
	// FetchDelay slows FetchAll down so overlapping reloads can be observed.
	FetchDelay time.Duration
}

func New(broker realtime.Broker) *Memory {
	return &Memory{rows: map[string][]records.Row{}, fetches: map[string]int{}, Broker: broker}
}

// Seed inserts rows without validation or change events.
func (m *Memory) Seed(table string, rows ...records.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		cp := copyRow(r)
		if cp.ID() == "" {
			cp["id"] = uuid.NewString()
		}
		if _, ok := cp["created_at"]; !ok {
			cp["created_at"] = time.Now().UTC()
		}
		m.rows[table] = append(m.rows[table], cp)
	}
}

// Fetches reports how many FetchAll calls hit table.
func (m *Memory) Fetches(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[table]
}

// Calls returns the ordered call log ("add:events", "delete:events", ...).
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Rows returns a copy of the table contents.
func (m *Memory) Rows(table string) []records.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]records.Row, len(m.rows[table]))
	for i, r := range m.rows[table] {
		out[i] = copyRow(r)
	}
	return out
}

func copyRow(r records.Row) records.Row {
	cp := make(records.Row, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

func (m *Memory) publish(ctx context.Context, table string, op realtime.Op, id string) {
	if m.Broker != nil {
		_ = m.Broker.Publish(ctx, realtime.Change{Table: table, Op: op, ID: id})
	}
}

func (m *Memory) FetchAll(ctx context.Context, table string, f records.Filter) ([]records.Row, error) {
	t, err := records.Lookup(table)
	if err != nil {
		return nil, &records.Error{Op: "fetch", Table: table, Err: err}
	}
	if err := records.CheckFilter(t, f); err != nil {
		return nil, &records.Error{Op: "fetch", Table: table, Err: err}
	}
	m.mu.Lock()
	m.fetches[table]++
	m.calls = append(m.calls, "fetch:"+table)
	fail, delay := m.FailFetch, m.FetchDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, &records.Error{Op: "fetch", Table: table, Err: ErrInjected}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := []records.Row{}
	for _, r := range m.rows[table] {
		match := true
		for k, v := range f {
			if r.Text(k) != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, copyRow(r))
		}
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, table, id string) (records.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows[table] {
		if r.ID() == id {
			return copyRow(r), nil
		}
	}
	return nil, &records.Error{Op: "get", Table: table, Err: records.ErrNotFound}
}

func (m *Memory) Add(ctx context.Context, table string, in records.Row) (records.Row, error) {
	t, err := records.Lookup(table)
	if err != nil {
		return nil, &records.Error{Op: "add", Table: table, Err: err}
	}
	m.mu.Lock()
	m.calls = append(m.calls, "add:"+table)
	fail := m.FailAdd
	m.mu.Unlock()
	if fail {
		return nil, &records.Error{Op: "add", Table: table, Err: ErrInjected}
	}
	row, err := records.Normalize(t, in, false)
	if err != nil {
		return nil, &records.Error{Op: "add", Table: table, Err: err}
	}
	row["id"] = in.ID()
	if row.ID() == "" {
		row["id"] = uuid.NewString()
	}
	row["created_at"] = time.Now().UTC()

	m.mu.Lock()
	m.rows[table] = append(m.rows[table], copyRow(row))
	m.mu.Unlock()
	m.publish(ctx, table, realtime.Insert, row.ID())
	return row, nil
}

func (m *Memory) Update(ctx context.Context, table, id string, patch records.Row) (records.Row, error) {
	t, err := records.Lookup(table)
	if err != nil {
		return nil, &records.Error{Op: "update", Table: table, Err: err}
	}
	set, err := records.Normalize(t, patch, true)
	if err != nil {
		return nil, &records.Error{Op: "update", Table: table, Err: err}
	}
	m.mu.Lock()
	m.calls = append(m.calls, "update:"+table)
	var updated records.Row
	for _, r := range m.rows[table] {
		if r.ID() == id {
			for k, v := range set {
				r[k] = v
			}
			if t.HasUpdatedAt {
				r["updated_at"] = time.Now().UTC()
			}
			updated = copyRow(r)
			break
		}
	}
	m.mu.Unlock()
	if updated == nil {
		return nil, &records.Error{Op: "update", Table: table, Err: records.ErrNotFound}
	}
	m.publish(ctx, table, realtime.Update, id)
	return updated, nil
}

func (m *Memory) Delete(ctx context.Context, table, id string) error {
	m.mu.Lock()
	m.calls = append(m.calls, "delete:"+table)
	if m.FailDelete {
		m.mu.Unlock()
		return &records.Error{Op: "delete", Table: table, Err: ErrInjected}
	}
	found := false
	rows := m.rows[table][:0]
	for _, r := range m.rows[table] {
		if r.ID() == id {
			found = true
			continue
		}
		rows = append(rows, r)
	}
	m.rows[table] = rows
	m.mu.Unlock()
	if !found {
		return &records.Error{Op: "delete", Table: table, Err: records.ErrNotFound}
	}
	m.publish(ctx, table, realtime.Delete, id)
	return nil
}
