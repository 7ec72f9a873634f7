package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{Client: db}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// Projects holds one pool per database project. Projects sharing a DSN share a pool.
type Projects struct {
	pools map[string]*DB
	byDSN map[string]*DB
}

// OpenProjects connects every project DSN, reusing pools for identical DSNs.
func OpenProjects(ctx context.Context, dsns map[string]string) (*Projects, error) {
	p := &Projects{pools: map[string]*DB{}, byDSN: map[string]*DB{}}
	for name, dsn := range dsns {
		if db, ok := p.byDSN[dsn]; ok {
			p.pools[name] = db
			continue
		}
		db, err := NewDB(ctx, dsn)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("project %s: %w", name, err)
		}
		p.pools[name] = db
		p.byDSN[dsn] = db
	}
	return p, nil
}

// Clients returns the *sql.DB per project name.
func (p *Projects) Clients() map[string]*sql.DB {
	out := make(map[string]*sql.DB, len(p.pools))
	for name, db := range p.pools {
		out[name] = db.Client
	}
	return out
}

// Get returns the pool for a project.
func (p *Projects) Get(name string) (*sql.DB, bool) {
	db, ok := p.pools[name]
	if !ok {
		return nil, false
	}
	return db.Client, true
}

// Healthy pings every distinct pool.
func (p *Projects) Healthy(ctx context.Context) bool {
	for _, db := range p.byDSN {
		if err := db.Client.PingContext(ctx); err != nil {
			return false
		}
	}
	return len(p.byDSN) > 0
}

// Close closes every distinct pool.
func (p *Projects) Close() {
	for _, db := range p.byDSN {
		_ = db.Close()
	}
}
