// Package externaldb is the External-DB Resolver (C5): a lazily
// connected pool per configured namespace, a per-table column
// provider that caches the remote schema, and a statement rewriter
// for @namespace-qualified references, built the way mpostgres and
// mredis in the teacher build their singleton connections.
package externaldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/sal-openlab/datafusion-server/internal/apperr"
	"github.com/sal-openlab/datafusion-server/internal/config"
	"github.com/sal-openlab/datafusion-server/internal/mlog"
)

// Engine is the closed set of supported external database vendors.
type Engine string

const (
	Postgres Engine = "postgres"
	MySQL    Engine = "mysql"
)

// ConnectionPool lazily opens and caches a *sql.DB for one namespace,
// mirroring mpostgres.PostgresConnection.Connect's "connect once, hand
// out a handle" shape.
type ConnectionPool struct {
	Namespace string
	Engine    Engine
	dsn       string

	once sync.Once
	db   *sql.DB
	err  error
}

// Connect opens the pool's *sql.DB exactly once, memoizing failure
// too so a bad DSN doesn't retry on every call within a request.
func (p *ConnectionPool) Connect(ctx context.Context) (*sql.DB, error) {
	p.once.Do(func() {
		driver := "pgx"
		if p.Engine == MySQL {
			driver = "mysql"
		}

		db, err := sql.Open(driver, p.dsn)
		if err != nil {
			p.err = fmt.Errorf("open %s pool for namespace %q: %w", p.Engine, p.Namespace, err)
			return
		}

		if err := db.PingContext(ctx); err != nil {
			p.err = fmt.Errorf("ping %s pool for namespace %q: %w", p.Engine, p.Namespace, err)
			return
		}

		p.db = db
	})

	if p.err != nil {
		return nil, p.err
	}

	return p.db, nil
}

// GetDB is an alias for Connect kept for readability at call sites
// that already know the pool has been warmed.
func (p *ConnectionPool) GetDB(ctx context.Context) (*sql.DB, error) {
	return p.Connect(ctx)
}

// Close releases the pool's underlying *sql.DB, if opened.
func (p *ConnectionPool) Close() error {
	if p.db == nil {
		return nil
	}

	return p.db.Close()
}

// Resolver owns one ConnectionPool per configured namespace, the
// in-process TableProvider cache built on top of it, and an optional
// Redis-backed second tier so a freshly started replica does not have
// to re-run information_schema lookups another replica already paid
// for, the way the teacher's mredis backs a singleton cache client.
type Resolver struct {
	pools     map[string]*ConnectionPool
	providers sync.Map // string "table@namespace" -> *TableProvider

	cache    *redis.Client
	cacheTTL time.Duration
	logger   mlog.Logger
}

// NewResolver builds a Resolver from the server's configured external
// database namespaces. No connection is opened until first use. When
// redisAddr is non-empty, table schema lookups are also cached in
// Redis under "datafusion-server:tableschema:<table>@<namespace>".
func NewResolver(cfgs []config.ExternalDBConfig, redisAddr string, cacheTTL time.Duration, logger mlog.Logger) (*Resolver, error) {
	pools := make(map[string]*ConnectionPool, len(cfgs))

	for _, c := range cfgs {
		engine := Engine(c.Engine)
		if engine != Postgres && engine != MySQL {
			return nil, apperr.RequestValidation("unsupported external db engine %q for namespace %q", c.Engine, c.Namespace)
		}

		pools[c.Namespace] = &ConnectionPool{Namespace: c.Namespace, Engine: engine, dsn: c.DSN}
	}

	r := &Resolver{pools: pools, cacheTTL: cacheTTL, logger: logger}

	if redisAddr != "" {
		r.cache = redis.NewClient(&redis.Options{Addr: redisAddr})
	}

	return r, nil
}

func redisKey(table, namespace string) string {
	return fmt.Sprintf("datafusion-server:tableschema:%s@%s", table, namespace)
}

// Count returns the number of configured namespaces, for /sysinfo.
func (r *Resolver) Count() int {
	return len(r.pools)
}

// Pool returns the connection pool for namespace.
func (r *Resolver) Pool(namespace string) (*ConnectionPool, error) {
	p, ok := r.pools[namespace]
	if !ok {
		return nil, apperr.RequestValidation("unknown external db namespace %q", namespace)
	}

	return p, nil
}

// Table returns the TableProvider for "<table>@<namespace>",
// building and caching it on first use; with refresh set, the caches
// are skipped and this call rebuilds the provider and stores it anew.
func (r *Resolver) Table(ctx context.Context, table, namespace string, refresh bool) (*TableProvider, error) {
	key := table + "@" + namespace

	if !refresh {
		if v, ok := r.providers.Load(key); ok {
			return v.(*TableProvider), nil
		}

		if provider, ok := r.loadFromCache(ctx, redisKey(table, namespace)); ok {
			r.providers.Store(key, provider)
			return provider, nil
		}
	}

	pool, err := r.Pool(namespace)
	if err != nil {
		return nil, err
	}

	db, err := pool.Connect(ctx)
	if err != nil {
		return nil, apperr.RequestValidation("connect to namespace %q: %s", namespace, err)
	}

	provider, err := newTableProvider(ctx, db, pool.Engine, table, namespace)
	if err != nil {
		return nil, err
	}

	r.providers.Store(key, provider)
	r.storeInCache(ctx, redisKey(table, namespace), provider)

	return provider, nil
}

// loadFromCache consults the Redis tier, when configured, for a
// table schema another replica already resolved.
func (r *Resolver) loadFromCache(ctx context.Context, key string) (*TableProvider, bool) {
	if r.cache == nil {
		return nil, false
	}

	raw, err := r.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var provider TableProvider
	if err := json.Unmarshal(raw, &provider); err != nil {
		r.logger.Warnf("decode cached table schema %q: %s", key, err)
		return nil, false
	}

	return &provider, true
}

// storeInCache writes provider to the Redis tier, best-effort: a
// cache-write failure never fails the caller's request.
func (r *Resolver) storeInCache(ctx context.Context, key string, provider *TableProvider) {
	if r.cache == nil {
		return
	}

	raw, err := json.Marshal(provider)
	if err != nil {
		r.logger.Warnf("encode table schema %q for cache: %s", key, err)
		return
	}

	if err := r.cache.Set(ctx, key, raw, r.cacheTTL).Err(); err != nil {
		r.logger.Warnf("store table schema %q in cache: %s", key, err)
	}
}

// Close releases every pool's underlying connection.
func (r *Resolver) Close() error {
	var firstErr error

	for ns, p := range r.pools {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close pool %q: %w", ns, err)
		}
	}

	if r.cache != nil {
		if err := r.cache.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close table schema cache: %w", err)
		}
	}

	return firstErr
}
