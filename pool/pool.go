// Package pool hands out database connections from a bounded set.
//
// A Pool owns every physical connection it opens. Callers Acquire a *Conn,
// use it exclusively, and Release it. The number of connections checked out
// or idle never exceeds Config.MaxConns.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMinConns       = 1
	DefaultMaxConns       = 10
	DefaultAcquireTimeout = 5 * time.Second
)

// Config controls pool sizing and how the backing store is opened.
type Config struct {
	// Driver and DSN are passed to sql.Open by Open. New ignores them.
	Driver string
	DSN    string

	MinConns int
	MaxConns int

	// AcquireTimeout bounds Acquire when the caller's context has no
	// deadline. Zero means DefaultAcquireTimeout; negative disables it.
	AcquireTimeout time.Duration

	Logger *zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.MinConns == 0 {
		c.MinConns = DefaultMinConns
	}
	if c.MaxConns == 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	return c
}

// Validate checks the sizing bounds.
func (c Config) Validate() error {
	if c.MinConns < 1 {
		return fmt.Errorf("pool: MinConns must be at least 1, got %d", c.MinConns)
	}
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("pool: MaxConns (%d) must be >= MinConns (%d)", c.MaxConns, c.MinConns)
	}
	return nil
}

// Stats is a point-in-time snapshot of pool usage.
type Stats struct {
	MaxConns  int
	Idle      int
	InUse     int
	Acquired  uint64
	Exhausted uint64
}

// Pool is a bounded set of reusable connections. It is safe for concurrent
// use.
type Pool struct {
	db    *sql.DB
	cfg   Config
	slots *semaphore.Weighted
	log   zerolog.Logger

	closed atomic.Bool

	mu    sync.Mutex
	idle  []*sql.Conn
	inUse int

	acquired  atomic.Uint64
	exhausted atomic.Uint64
}

// Open opens the store with cfg.Driver and cfg.DSN and builds a Pool over it.
// Any failure to reach the store is returned as *ConnectionError.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := logger(cfg)
	l.Info().Str("driver", cfg.Driver).Msg("connecting to database")

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	return New(ctx, db, cfg)
}

// New builds a Pool over an already opened *sql.DB and eagerly opens
// cfg.MinConns connections. The Pool takes ownership of db and closes it
// if the pool cannot be established.
func New(ctx context.Context, db *sql.DB, cfg Config) (*Pool, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)

	p := &Pool{
		db:    db,
		cfg:   cfg,
		slots: semaphore.NewWeighted(int64(cfg.MaxConns)),
		log:   logger(cfg),
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Err: err}
	}
	for range cfg.MinConns {
		c, err := db.Conn(ctx)
		if err != nil {
			p.closeIdle()
			_ = db.Close()
			return nil, &ConnectionError{Err: err}
		}
		p.idle = append(p.idle, c)
	}

	p.log.Info().
		Int("min_conns", cfg.MinConns).
		Int("max_conns", cfg.MaxConns).
		Msg("connection pool established")
	return p, nil
}

func logger(cfg Config) zerolog.Logger {
	if cfg.Logger != nil {
		return *cfg.Logger
	}
	return zerolog.Nop()
}

// Acquire checks out a connection, waiting for a free slot if all MaxConns
// are in use.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // caller's own cancellation
	}

	parent := ctx
	if _, ok := ctx.Deadline(); !ok && p.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}

	if err := p.slots.Acquire(ctx, 1); err != nil {
		// Only AcquireTimeout expiry counts as exhaustion.
		if perr := parent.Err(); perr != nil {
			return nil, perr //nolint:wrapcheck // caller's own cancellation
		}
		p.exhausted.Add(1)
		p.log.Warn().Err(err).Int("max_conns", p.cfg.MaxConns).Msg("connection pool exhausted")
		return nil, fmt.Errorf("%w: %w", ErrPoolExhausted, err)
	}

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		p.slots.Release(1)
		return nil, ErrPoolClosed
	}
	var raw *sql.Conn
	if n := len(p.idle); n > 0 {
		raw = p.idle[n-1]
		p.idle = p.idle[:n-1]
	}
	p.inUse++
	p.mu.Unlock()

	if raw == nil {
		var err error
		raw, err = p.db.Conn(ctx)
		if err != nil {
			p.mu.Lock()
			p.inUse--
			p.mu.Unlock()
			p.slots.Release(1)
			return nil, &ConnectionError{Err: err}
		}
	}

	p.acquired.Add(1)
	return &Conn{raw: raw, pool: p}, nil
}

func (p *Pool) release(c *Conn) {
	discard := c.broken.Load()

	p.mu.Lock()
	p.inUse--
	closed := p.closed.Load()
	if !closed && !discard {
		p.idle = append(p.idle, c.raw)
	}
	p.mu.Unlock()

	if closed || discard {
		_ = c.raw.Close()
	}
	p.slots.Release(1)
}

// CloseAll closes every idle connection and the underlying store handle.
// Connections still checked out fail with ErrPoolClosed on their next use
// and are closed when released. Calling CloseAll again is a no-op.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return nil
	}
	p.closed.Store(true)
	inUse := p.inUse
	p.mu.Unlock()

	p.log.Info().Int("in_use", inUse).Msg("closing connection pool")

	errs := p.closeIdle()
	if err := p.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *Pool) closeIdle() []error {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var errs []error
	for _, c := range idle {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Closed reports whether CloseAll has been called.
func (p *Pool) Closed() bool { return p.closed.Load() }

// Stats returns a snapshot of pool usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		MaxConns:  p.cfg.MaxConns,
		Idle:      len(p.idle),
		InUse:     p.inUse,
		Acquired:  p.acquired.Load(),
		Exhausted: p.exhausted.Load(),
	}
}
