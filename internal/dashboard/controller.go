package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"campushub/internal/blob"
	"campushub/internal/metrics"
	"campushub/internal/notice"
	"campushub/internal/queue"
	"campushub/internal/records"
)

var (
	ErrUnknownTab   = errors.New("unknown tab")
	ErrSelfService  = errors.New("rows on this tab are managed by their owners")
	ErrNoBucket     = errors.New("tab does not accept files")
	ErrTooManyFiles = errors.New("tab accepts a single file")
)

// Records is the data-access surface a controller needs.
type Records interface {
	FetchAll(ctx context.Context, table string, f records.Filter) ([]records.Row, error)
	Get(ctx context.Context, table, id string) (records.Row, error)
	Add(ctx context.Context, table string, row records.Row) (records.Row, error)
	Update(ctx context.Context, table, id string, patch records.Row) (records.Row, error)
	Delete(ctx context.Context, table, id string) error
}

// Upload is one file submitted with a form.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// View is a filtered slice of the snapshot.
type View struct {
	Tab      string        `json:"tab"`
	Rows     []records.Row `json:"rows"`
	Total    int           `json:"total"`
	LoadedAt time.Time     `json:"loaded_at"`
	Notices  notice.List   `json:"notices,omitempty"`
}

// Outcome is the result of a mutation.
type Outcome struct {
	Row     records.Row   `json:"row,omitempty"`
	Media   []records.Row `json:"media,omitempty"`
	Notices notice.List   `json:"notices"`
}

type snapshot struct {
	rows     []records.Row
	year     string
	loaded   bool
	stale    bool
	gen      uint64
	loadedAt time.Time
}

// Controller drives one tab.
type Controller struct {
	tab     Tab
	records Records
	blobs   blob.Store
	cleanup queue.Queue
	logger  *slog.Logger

	loads singleflight.Group

	mu   sync.RWMutex
	snap snapshot

	trigger chan struct{}
}

func newController(tab Tab, d Deps) *Controller {
	return &Controller{
		tab:     tab,
		records: d.Records,
		blobs:   d.Blobs,
		cleanup: d.Cleanup,
		logger:  d.Logger.With("tab", tab.Name),
		trigger: make(chan struct{}, 1),
	}
}

// Tab returns the tab definition.
func (c *Controller) Tab() Tab { return c.tab }

func (c *Controller) filter(year string) records.Filter {
	f := records.Filter{}
	for k, v := range c.tab.Fixed {
		f[k] = v
	}
	if c.tab.YearFilter && year != "" {
		f["year"] = year
	}
	return f
}

// Load fetches every row for the tab (narrowed by year where the tab supports it)
// and replaces the snapshot. Concurrent loads for the same year share one fetch.
func (c *Controller) Load(ctx context.Context, year string) ([]records.Row, error) {
	return c.load(ctx, year, "request")
}

type loaded struct {
	rows []records.Row
	gen  uint64
}

func (c *Controller) load(ctx context.Context, year, trigger string) ([]records.Row, error) {
	if !c.tab.YearFilter {
		year = ""
	}
	for {
		c.mu.RLock()
		want := c.snap.gen
		c.mu.RUnlock()

		v, err, _ := c.loads.Do(year, func() (any, error) {
			return c.fetch(context.WithoutCancel(ctx), year, trigger)
		})
		if err != nil {
			c.logger.Error("load failed", "err", err)
			return nil, err
		}
		res := v.(loaded)
		if res.gen >= want {
			return res.rows, nil
		}
		// Joined a fetch that started before the last write; fetch again.
		c.loads.Forget(year)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (c *Controller) fetch(ctx context.Context, year, trigger string) (loaded, error) {
	c.mu.RLock()
	gen := c.snap.gen
	c.mu.RUnlock()

	rows, err := c.records.FetchAll(ctx, c.tab.Table, c.filter(year))
	if err != nil {
		return loaded{}, err
	}
	if c.tab.ResolvePhotos {
		if err := c.resolvePhotos(ctx, rows); err != nil {
			return loaded{}, err
		}
	}
	metrics.DashboardReloads.WithLabelValues(c.tab.Name, trigger).Inc()

	c.mu.Lock()
	c.snap = snapshot{
		rows:     rows,
		year:     year,
		loaded:   true,
		stale:    c.snap.gen != gen,
		gen:      c.snap.gen,
		loadedAt: time.Now().UTC(),
	}
	c.mu.Unlock()
	return loaded{rows: rows, gen: gen}, nil
}

// resolvePhotos derives each row's public URL from its stored path in parallel and
// waits for all of them. A row whose URL cannot be resolved keeps the stored one.
func (c *Controller) resolvePhotos(ctx context.Context, rows []records.Row) error {
	if c.tab.Files == nil || c.blobs == nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	urls := make([]string, len(rows))
	for i, row := range rows {
		p := row.Text(c.tab.Files.Path)
		if p == "" {
			continue
		}
		g.Go(func() error {
			u, err := c.blobs.PublicURL(gctx, c.tab.Bucket, p)
			if err != nil {
				c.logger.Warn("resolve photo url", "path", p, "err", err)
				return gctx.Err()
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, u := range urls {
		if u != "" {
			rows[i][c.tab.Files.URL] = u
		}
	}
	return nil
}

// List serves rows from the snapshot, loading first when the snapshot is missing,
// stale, or was taken for another year. query matches case-insensitively against
// the tab's search columns.
func (c *Controller) List(ctx context.Context, query, year string) (View, error) {
	if !c.tab.YearFilter {
		year = ""
	}
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()

	view := View{Tab: c.tab.Name}
	rows := snap.rows
	if !snap.loaded || snap.stale || snap.year != year {
		var err error
		rows, err = c.load(ctx, year, "request")
		if err != nil {
			view.Notices.Fail("Error loading "+c.tab.Name, err)
			return view, err
		}
		c.mu.RLock()
		view.LoadedAt = c.snap.loadedAt
		c.mu.RUnlock()
	} else {
		view.LoadedAt = snap.loadedAt
	}

	view.Rows = Search(rows, c.tab.Search, query)
	view.Total = len(view.Rows)
	return view, nil
}

// Search keeps rows where any of cols contains query, ignoring case. An empty query
// keeps everything.
func Search(rows []records.Row, cols []string, query string) []records.Row {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]records.Row, 0, len(rows))
	for _, r := range rows {
		if q == "" || matches(r, cols, q) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r records.Row, cols []string, q string) bool {
	for _, col := range cols {
		if strings.Contains(strings.ToLower(r.Text(col)), q) {
			return true
		}
	}
	return false
}

// invalidate marks the snapshot stale. Bumping gen keeps a fetch already in flight
// from installing its rows as fresh.
func (c *Controller) invalidate() {
	c.mu.Lock()
	c.snap.stale = true
	c.snap.gen++
	year := c.snap.year
	c.mu.Unlock()
	c.loads.Forget(year)
}

// Reload refetches using the year of the current snapshot.
func (c *Controller) Reload(ctx context.Context, trigger string) error {
	c.mu.RLock()
	year := c.snap.year
	c.mu.RUnlock()
	_, err := c.load(ctx, year, trigger)
	return err
}

// Add validates form, uploads files, then inserts the row pointing at them. Without
// a file the URL and path columns are stored empty and storage is never touched. If
// the insert fails the uploads are removed again.
func (c *Controller) Add(ctx context.Context, form map[string]string, files []Upload) (Outcome, error) {
	var out Outcome
	if c.tab.SelfService {
		out.Notices.Fail("Cannot add "+c.tab.Name, ErrSelfService)
		return out, ErrSelfService
	}
	if len(files) > 0 && c.tab.Bucket == "" {
		out.Notices.Fail("Cannot add "+c.tab.Name, ErrNoBucket)
		return out, ErrNoBucket
	}
	if len(files) > 1 && c.tab.Media == nil {
		out.Notices.Fail("Cannot add "+c.tab.Name, ErrTooManyFiles)
		return out, ErrTooManyFiles
	}

	row := records.Row{}
	for k, v := range form {
		row[k] = v
	}
	if c.tab.Files != nil {
		row[c.tab.Files.URL] = ""
		row[c.tab.Files.Path] = ""
	}
	if err := c.validate(row); err != nil {
		out.Notices.Fail("Validation failed", err)
		return out, err
	}

	var uploaded []blob.Object
	for _, f := range files {
		obj, err := c.blobs.Upload(ctx, c.tab.Bucket, f.Filename, f.ContentType, f.Body)
		if err != nil {
			c.logger.Error("upload failed", "file", f.Filename, "err", err)
			c.compensate(ctx, uploaded, &out.Notices)
			out.Notices.Fail("Upload failed", err)
			return out, fmt.Errorf("upload %s: %w", f.Filename, err)
		}
		uploaded = append(uploaded, obj)
	}
	if c.tab.Files != nil && len(uploaded) > 0 {
		row[c.tab.Files.URL] = uploaded[0].URL
		row[c.tab.Files.Path] = uploaded[0].Path
	}

	created, err := c.records.Add(ctx, c.tab.Table, row)
	if err != nil {
		c.logger.Error("insert failed", "err", err)
		c.compensate(ctx, uploaded, &out.Notices)
		out.Notices.Fail("Error adding "+c.tab.Name, err)
		return out, err
	}
	out.Row = created

	if c.tab.Media != nil {
		out.Media = c.addMedia(ctx, created.ID(), uploaded, files, &out.Notices)
	}
	c.invalidate()
	out.Notices.Success("Added", fmt.Sprintf("%s entry created", c.tab.Name))
	return out, nil
}

func (c *Controller) validate(row records.Row) error {
	t, err := records.Lookup(c.tab.Table)
	if err != nil {
		return err
	}
	_, err = records.Normalize(t, row, false)
	return err
}

func (c *Controller) addMedia(ctx context.Context, parentID string, objs []blob.Object, files []Upload, notices *notice.List) []records.Row {
	m := c.tab.Media
	var rows []records.Row
	for i, obj := range objs {
		row := records.Row{
			m.ParentCol:  parentID,
			m.Files.URL:  obj.URL,
			m.Files.Path: obj.Path,
		}
		if m.TypeCol != "" {
			row[m.TypeCol] = mediaType(files[i].ContentType)
		}
		created, err := c.records.Add(ctx, m.Table, row)
		if err != nil {
			c.logger.Error("insert media failed", "path", obj.Path, "err", err)
			c.compensate(ctx, []blob.Object{obj}, notices)
			notices.Warn("Some files were not saved", files[i].Filename+": "+err.Error())
			continue
		}
		rows = append(rows, created)
	}
	return rows
}

func mediaType(contentType string) string {
	switch {
	case blob.IsImage(contentType):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "document"
	}
}

// compensate removes objects whose row never made it. Failures are queued for retry.
func (c *Controller) compensate(ctx context.Context, objs []blob.Object, notices *notice.List) {
	for _, obj := range objs {
		c.removeObject(ctx, obj.Path, "insert failed", notices)
	}
}

// removeObject deletes one stored object, reporting a warning and queueing a retry
// when storage refuses.
func (c *Controller) removeObject(ctx context.Context, path, reason string, notices *notice.List) {
	if path == "" {
		return
	}
	err := c.blobs.Delete(ctx, c.tab.Bucket, path)
	if err == nil {
		return
	}
	c.logger.Warn("storage delete failed", "path", path, "err", err)
	notices.Warn("File cleanup failed", err.Error())
	if c.cleanup == nil {
		return
	}
	job := blob.CleanupJob{Bucket: c.tab.Bucket, Path: path, Reason: reason}
	if qerr := blob.EnqueueCleanup(ctx, c.cleanup, job); qerr != nil {
		c.logger.Error("enqueue cleanup failed", "path", path, "err", qerr)
	}
}

// Update applies patch to the row.
func (c *Controller) Update(ctx context.Context, id string, patch map[string]any) (Outcome, error) {
	var out Outcome
	row := records.Row{}
	for k, v := range patch {
		row[k] = v
	}
	updated, err := c.records.Update(ctx, c.tab.Table, id, row)
	if err != nil {
		out.Notices.Fail("Error updating "+c.tab.Name, err)
		return out, err
	}
	c.invalidate()
	out.Row = updated
	out.Notices.Success("Updated", fmt.Sprintf("%s entry saved", c.tab.Name))
	return out, nil
}

// Delete removes stored objects first and the row second. A storage failure leaves
// a warning and a queued retry but does not stop the row delete.
func (c *Controller) Delete(ctx context.Context, id string) (Outcome, error) {
	var out Outcome
	if c.tab.SelfService {
		out.Notices.Fail("Cannot delete "+c.tab.Name, ErrSelfService)
		return out, ErrSelfService
	}
	row, err := c.records.Get(ctx, c.tab.Table, id)
	if err != nil {
		out.Notices.Fail("Error deleting "+c.tab.Name, err)
		return out, err
	}

	if m := c.tab.Media; m != nil {
		media, err := c.records.FetchAll(ctx, m.Table, records.Filter{m.ParentCol: id})
		if err != nil {
			out.Notices.Fail("Error deleting "+c.tab.Name, err)
			return out, err
		}
		for _, mr := range media {
			c.removeObject(ctx, mr.Text(m.Files.Path), "row deleted", &out.Notices)
			if err := c.records.Delete(ctx, m.Table, mr.ID()); err != nil && !errors.Is(err, records.ErrNotFound) {
				out.Notices.Fail("Error deleting "+c.tab.Name, err)
				return out, err
			}
		}
	}
	if c.tab.Files != nil {
		c.removeObject(ctx, row.Text(c.tab.Files.Path), "row deleted", &out.Notices)
	}

	if err := c.records.Delete(ctx, c.tab.Table, id); err != nil {
		out.Notices.Fail("Error deleting "+c.tab.Name, err)
		return out, err
	}
	c.invalidate()
	out.Row = row
	out.Notices.Success("Deleted", fmt.Sprintf("%s entry removed", c.tab.Name))
	return out, nil
}
