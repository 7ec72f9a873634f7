package dashboard

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"campushub/internal/blob"
	"campushub/internal/queue"
	"campushub/internal/realtime"
)

// DefaultDebounce is how long a reload waits for further changes to arrive.
const DefaultDebounce = 100 * time.Millisecond

// Deps are shared by every controller.
type Deps struct {
	Records Records
	Blobs   blob.Store
	// Cleanup receives retry jobs for storage deletes that failed. Optional.
	Cleanup queue.Queue
	Logger  *slog.Logger
	// Debounce coalesces bursts of changes into one reload.
	Debounce time.Duration
}

// Dashboard owns one controller per tab.
type Dashboard struct {
	tabs     map[string]*Controller
	byTable  map[string][]*Controller
	debounce time.Duration
	logger   *slog.Logger
}

// New builds controllers for tabs (Tabs when nil).
func New(d Deps, tabs []Tab) *Dashboard {
	if tabs == nil {
		tabs = Tabs
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Debounce <= 0 {
		d.Debounce = DefaultDebounce
	}
	db := &Dashboard{
		tabs:     make(map[string]*Controller, len(tabs)),
		byTable:  map[string][]*Controller{},
		debounce: d.Debounce,
		logger:   d.Logger,
	}
	for _, t := range tabs {
		c := newController(t, d)
		db.tabs[t.Name] = c
		for _, table := range t.tables() {
			db.byTable[table] = append(db.byTable[table], c)
		}
	}
	return db
}

// Tab returns the controller for name.
func (d *Dashboard) Tab(name string) (*Controller, error) {
	c, ok := d.tabs[name]
	if !ok {
		return nil, ErrUnknownTab
	}
	return c, nil
}

// Names lists the tab names in sorted order.
func (d *Dashboard) Names() []string {
	out := make([]string, 0, len(d.tabs))
	for n := range d.tabs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Watch subscribes to every tab's tables and reloads a tab whenever one of them
// changes. Changes that arrive within the debounce window of each other cause a
// single reload. Tabs that were never loaded are skipped. The subscription is in
// place when Watch returns; the reload loops run until ctx is done.
func (d *Dashboard) Watch(ctx context.Context, broker realtime.Broker) error {
	tables := make([]string, 0, len(d.byTable))
	for t := range d.byTable {
		tables = append(tables, t)
	}
	changes, err := broker.Subscribe(ctx, tables...)
	if err != nil {
		return err
	}
	for _, c := range d.tabs {
		go c.reloadLoop(ctx, d.debounce)
	}
	go d.route(ctx, changes)
	return nil
}

func (d *Dashboard) route(ctx context.Context, changes <-chan realtime.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			for _, c := range d.byTable[ch.Table] {
				c.notify()
			}
		}
	}
}

func (c *Controller) notify() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

func (c *Controller) reloadLoop(ctx context.Context, debounce time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.trigger:
		}

		timer := time.NewTimer(debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		select {
		case <-c.trigger:
		default:
		}

		c.mu.RLock()
		loaded := c.snap.loaded
		c.mu.RUnlock()
		if !loaded {
			continue
		}
		if err := c.Reload(ctx, "realtime"); err != nil {
			c.logger.Warn("realtime reload failed", "err", err)
		}
	}
}
