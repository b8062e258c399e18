// Package tenantdb implements the C3 tenant connection pool registry: a
// lazily-populated, bounded pgxpool.Pool per tenant, keyed by connection
// string, with an idle reaper and a per-tenant probe cache for the
// "clientes" baseline table.
package tenantdb

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dashboard-gateway/internal/central"
)

// ConnString builds a postgres:// DSN for a tenant, URL-encoding the user
// and password components, so credentials containing '@', ':' or '/' do
// not break the URL.
func ConnString(c central.Coordinates) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

type entry struct {
	pool         *pgxpool.Pool
	mu           sync.Mutex
	borrowed     int
	lastReleased time.Time

	probeOnce    sync.Once
	clientesCol  string
	clientesOK   bool
}

// Registry caches one pool per tenant connection string.
type Registry struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	poolSize    int32
	idleTimeout time.Duration

	stop chan struct{}
}

// NewRegistry constructs an empty registry. poolSize bounds each tenant's
// pool; idleTimeout is the reaper's grace period.
func NewRegistry(poolSize int, idleTimeout time.Duration) *Registry {
	if poolSize <= 0 {
		poolSize = 5
	}
	return &Registry{
		entries:     make(map[string]*entry),
		poolSize:    int32(poolSize),
		idleTimeout: idleTimeout,
		stop:        make(chan struct{}),
	}
}

// get returns the cached pool for coords, opening one on cache miss.
func (r *Registry) get(ctx context.Context, coords *central.Coordinates) (*entry, error) {
	key := ConnString(*coords)

	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return e, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return e, nil
	}

	poolCfg, err := pgxpool.ParseConfig(key)
	if err != nil {
		return nil, fmt.Errorf("parse tenant dsn: %w", err)
	}
	poolCfg.MaxConns = r.poolSize

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open tenant pool for %s: %w", coords.CompanyName, err)
	}

	e = &entry{pool: pool, lastReleased: time.Now()}
	r.entries[key] = e
	return e, nil
}

// WithConnection borrows the tenant's pool, runs fn, and guarantees the
// borrow is released on every exit path including a panic in fn.
func (r *Registry) WithConnection(ctx context.Context, coords *central.Coordinates, fn func(*pgxpool.Pool) error) error {
	e, err := r.get(ctx, coords)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.borrowed++
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.borrowed--
		e.lastReleased = time.Now()
		e.mu.Unlock()
	}()

	return fn(e.pool)
}

// ClientesColumn probes the tenant database once per pool lifetime for
// whether `clientes` carries `ultimo_acesso`, falling back to `created_at`.
// The result is cached on the entry so repeat batches skip the
// information_schema round trip.
func (r *Registry) ClientesColumn(ctx context.Context, coords *central.Coordinates) (column string, exists bool, err error) {
	e, gerr := r.get(ctx, coords)
	if gerr != nil {
		return "", false, gerr
	}

	var probeErr error
	e.probeOnce.Do(func() {
		var tableExists bool
		probeErr = e.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = 'clientes'
			)
		`).Scan(&tableExists)
		if probeErr != nil || !tableExists {
			e.clientesOK = false
			return
		}

		var hasUltimoAcesso bool
		probeErr = e.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_schema = 'public' AND table_name = 'clientes' AND column_name = 'ultimo_acesso'
			)
		`).Scan(&hasUltimoAcesso)
		if probeErr != nil {
			e.clientesOK = false
			return
		}

		e.clientesOK = true
		if hasUltimoAcesso {
			e.clientesCol = "ultimo_acesso"
		} else {
			e.clientesCol = "created_at"
		}
	})
	if probeErr != nil {
		return "", false, probeErr
	}
	return e.clientesCol, e.clientesOK, nil
}

// StartReaper runs until ctx is cancelled, periodically closing pools that
// have had zero borrowed connections for longer than idleTimeout.
func (r *Registry) StartReaper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				r.reapIdle()
			}
		}
	}()
}

func (r *Registry) reapIdle() {
	if r.idleTimeout <= 0 {
		return
	}
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.entries {
		e.mu.Lock()
		idle := e.borrowed == 0 && now.Sub(e.lastReleased) > r.idleTimeout
		e.mu.Unlock()
		if idle {
			e.pool.Close()
			delete(r.entries, key)
			log.Printf("tenantdb: closed idle pool %s", key)
		}
	}
}

// Close shuts down every cached pool and stops the reaper.
func (r *Registry) Close() {
	close(r.stop)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.pool.Close()
	}
	r.entries = make(map[string]*entry)
}
