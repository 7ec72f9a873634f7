// Package realtime carries row-level change notifications from writers to subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"campushub/internal/metrics"
)

// Op is the kind of row change.
type Op string

const (
	Insert Op = "INSERT"
	Update Op = "UPDATE"
	Delete Op = "DELETE"
)

// Change describes one row-level change on a table.
type Change struct {
	Table string    `json:"table"`
	Op    Op        `json:"op"`
	ID    string    `json:"id,omitempty"`
	At    time.Time `json:"at"`
}

// Broker is the abstraction over different backends.
type Broker interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe streams changes for the given tables (all tables when none are given)
	// until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, tables ...string) (<-chan Change, error)
}

func tableSet(tables []string) map[string]bool {
	if len(tables) == 0 {
		return nil
	}
	set := make(map[string]bool, len(tables))
	for _, t := range tables {
		set[t] = true
	}
	return set
}

// Memory is an in-process fan-out broker for dev/testing and single-instance deployments.
type Memory struct {
	mu     sync.Mutex
	subs   map[*memorySub]struct{}
	buffer int
}

type memorySub struct {
	tables map[string]bool
	ch     chan Change
}

// NewMemory creates a broker whose subscriber channels hold up to buffer changes.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 16
	}
	return &Memory{subs: map[*memorySub]struct{}{}, buffer: buffer}
}

// Publish delivers c to every matching subscriber. Slow subscribers drop changes.
func (m *Memory) Publish(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	metrics.RealtimeEvents.WithLabelValues(c.Table, string(c.Op)).Inc()
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range m.subs {
		if sub.tables != nil && !sub.tables[c.Table] {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			slog.Warn("realtime subscriber full, dropping change", "table", c.Table, "op", c.Op)
		}
	}
	return ctx.Err()
}

// Subscribe registers a subscriber until ctx is done.
func (m *Memory) Subscribe(ctx context.Context, tables ...string) (<-chan Change, error) {
	sub := &memorySub{tables: tableSet(tables), ch: make(chan Change, m.buffer)}
	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, sub)
		close(sub.ch)
		m.mu.Unlock()
	}()
	return sub.ch, nil
}

// Redis fans changes out through Redis pub/sub so every API instance sees them.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis builds a broker publishing on "<prefix><table>" channels.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "realtime:"
	}
	return &Redis{client: client, prefix: prefix}
}

// Publish sends c on the table's channel.
func (r *Redis) Publish(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	metrics.RealtimeEvents.WithLabelValues(c.Table, string(c.Op)).Inc()
	return r.client.Publish(ctx, r.prefix+c.Table, payload).Err()
}

// Subscribe listens on the tables' channels, or on every table channel when none are given.
func (r *Redis) Subscribe(ctx context.Context, tables ...string) (<-chan Change, error) {
	var ps *redis.PubSub
	if len(tables) == 0 {
		ps = r.client.PSubscribe(ctx, r.prefix+"*")
	} else {
		channels := make([]string, len(tables))
		for i, t := range tables {
			channels[i] = r.prefix + t
		}
		ps = r.client.Subscribe(ctx, channels...)
	}
	// Wait for the subscription confirmation so no publish after return is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					slog.Warn("realtime: bad payload", "channel", msg.Channel, "err", err)
					continue
				}
				if c.Table == "" {
					c.Table = strings.TrimPrefix(msg.Channel, r.prefix)
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
