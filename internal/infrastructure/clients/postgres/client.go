package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/zatekoja/propertysearch/backend/pkg/config"
	apperrors "github.com/zatekoja/propertysearch/backend/pkg/errors"
	"github.com/zatekoja/propertysearch/backend/pkg/retry"
)

// ErrClosed is returned by DB after Close
var ErrClosed = errors.New("database client closed")

// Opener creates and verifies a connection pool
type Opener func(ctx context.Context) (*sqlx.DB, error)

// Client owns the single process-wide PostgreSQL pool.
// The pool is opened on first use; concurrent first callers share one attempt
// and a failed attempt is not cached.
type Client struct {
	open    Opener
	timeout time.Duration

	mu     sync.RWMutex
	db     *sqlx.DB
	closed bool
	group  singleflight.Group
}

// NewClient creates a lazy client. No connection is made until DB is called.
func NewClient(cfg *config.DatabaseConfig, timeout time.Duration) *Client {
	if !cfg.HasCredentials() {
		log.Warn().Msg("DB_PASSWORD is not set; database features will fail until credentials are provided")
	}
	return NewClientWithOpener(defaultOpener(cfg), timeout)
}

// NewClientWithOpener creates a lazy client around a custom opener
func NewClientWithOpener(open Opener, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{open: open, timeout: timeout}
}

// NewClientFromDB wraps an already opened pool
func NewClientFromDB(db *sqlx.DB) *Client {
	return &Client{
		open: func(context.Context) (*sqlx.DB, error) { return db, nil },
		db:   db,
	}
}

func defaultOpener(cfg *config.DatabaseConfig) Opener {
	return func(ctx context.Context) (*sqlx.DB, error) {
		db, err := sqlx.Open("postgres", cfg.DatabaseDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}

		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
		db.SetConnMaxLifetime(5 * time.Minute)

		err = retry.DoWithLog(ctx, retry.RequestConfig(), "PostgreSQL",
			func(ctx context.Context) error {
				return db.PingContext(ctx)
			},
			func(attempt int, err error, nextDelay time.Duration) {
				log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("PostgreSQL connection attempt failed")
			},
		)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}

		log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connected to PostgreSQL")
		return db, nil
	}
}

// DB returns the pool, opening it on first use
func (c *Client) DB(ctx context.Context) (*sqlx.DB, error) {
	c.mu.RLock()
	db, closed := c.db, c.closed
	c.mu.RUnlock()
	if closed {
		return nil, apperrors.NewNotInitializedError("Database not initialized").WithCause(ErrClosed)
	}
	if db != nil {
		return db, nil
	}

	v, err, _ := c.group.Do("pool", func() (interface{}, error) {
		c.mu.RLock()
		existing := c.db
		c.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		// The open must outlive the request that happened to trigger it.
		openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		opened, err := c.open(openCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			opened.Close()
			return nil, ErrClosed
		}
		c.db = opened
		return opened, nil
	})
	if err != nil {
		return nil, apperrors.NewNotInitializedError("Database not initialized").WithCause(err)
	}
	return v.(*sqlx.DB), nil
}

// Close disposes the pool. Later calls to DB fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Ping verifies the connection to the database
func (c *Client) Ping(ctx context.Context) error {
	db, err := c.DB(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}
