package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"jobscraps/internal/config"
	"jobscraps/internal/logger"
)

// Kind selects which configured database a Session talks to.
type Kind string

const (
	KindProduction Kind = "production"
	KindWorking    Kind = "working"
)

// ErrConnect indicates the connection could not be established after the
// configured number of attempts.
var ErrConnect = errors.New("database connection failed")

// Session is the single store connection held by a running process. All
// operations go through it; there is no ambient global handle. Reconnection
// on a detected closure is idempotent and serialized by mu.
type Session struct {
	cfg  config.DatabaseConfig
	inst config.DBInstance
	kind Kind
	log  logger.Logger

	mu sync.Mutex
	db *sql.DB
}

// Open connects to the database selected by kind, retrying per cfg, and
// bootstraps the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, kind Kind, log logger.Logger) (*Session, error) {
	inst := cfg.Production
	if kind == KindWorking {
		inst = cfg.Working
	}
	s := &Session{cfg: cfg, inst: inst, kind: kind, log: log}
	if err := s.connectWithRetry(ctx); err != nil {
		return nil, err
	}
	if err := s.createTables(ctx); err != nil {
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	s.log.Info("database session opened", "database", inst.Name, "kind", string(kind))
	return s, nil
}

// NewWithDB wraps an existing *sql.DB. Used by tests; no schema bootstrap and
// no reconnect support.
func NewWithDB(db *sql.DB, kind Kind, log logger.Logger) *Session {
	return &Session{db: db, kind: kind, log: log}
}

// Kind reports which configured database this session targets.
func (s *Session) Kind() Kind { return s.kind }

// IsProduction reports whether destructive operations on this session must be
// guarded by confirmation and backup.
func (s *Session) IsProduction() bool { return s.kind == KindProduction }

// DatabaseName returns the connected database's name.
func (s *Session) DatabaseName() string { return s.inst.Name }

// Instance returns the connection settings for this session's database.
func (s *Session) Instance() config.DBInstance { return s.inst }

func (s *Session) dsn(database string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?connect_timeout=%d",
		url.QueryEscape(s.inst.User),
		url.QueryEscape(s.inst.Password),
		s.inst.Host,
		s.inst.Port,
		database,
		int(s.cfg.ConnectTimeout.Seconds()),
	)
}

func (s *Session) connectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.RetryAttempts; attempt++ {
		db, err := sql.Open("pgx", s.dsn(s.inst.Name))
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
			err = db.PingContext(pingCtx)
			cancel()
		}
		if err == nil {
			s.db = db
			return nil
		}
		lastErr = err
		s.log.Warn("database connection attempt failed",
			"attempt", attempt,
			"database", s.inst.Name,
			"error", err.Error(),
		)
		if attempt < s.cfg.RetryAttempts {
			select {
			case <-time.After(s.cfg.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrConnect, s.cfg.RetryAttempts, lastErr)
}

// EnsureConnection pings the database and reconnects if the connection has
// gone away. Safe to call repeatedly; concurrent callers are serialized.
func (s *Session) EnsureConnection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err == nil {
			return nil
		}
	}
	if s.inst.Host == "" {
		return fmt.Errorf("%w: session has no connection settings", ErrConnect)
	}
	s.log.Warn("database connection lost, reconnecting", "database", s.inst.Name)
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	return s.connectWithRetry(ctx)
}

// Close closes the underlying connection. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if s.log != nil {
		s.log.Info("database session closed", "database", s.inst.Name)
	}
	return err
}

// Reconnect re-establishes the connection unconditionally. Used after a
// restore, which replaces the database underneath the session.
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	return s.connectWithRetry(ctx)
}

func (s *Session) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scraped_jobs (
			id TEXT PRIMARY KEY,
			site TEXT,
			job_url TEXT,
			job_url_direct TEXT,
			title TEXT,
			company TEXT,
			location TEXT,
			date_posted TEXT,
			job_type TEXT,
			salary_source TEXT,
			"interval" TEXT,
			min_amount DECIMAL(12,2),
			max_amount DECIMAL(12,2),
			currency TEXT,
			is_remote BOOLEAN,
			job_level TEXT,
			job_function TEXT,
			listing_type TEXT,
			emails TEXT,
			description TEXT,
			company_url TEXT,
			date_scraped TIMESTAMP,
			search_query TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS search_history (
			id SERIAL PRIMARY KEY,
			run_id TEXT,
			search_query TEXT,
			parameters TEXT,
			timestamp TIMESTAMP,
			jobs_found INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scraped_jobs_title ON scraped_jobs(title)`,
		`CREATE INDEX IF NOT EXISTS idx_scraped_jobs_company ON scraped_jobs(company)`,
		`CREATE INDEX IF NOT EXISTS idx_scraped_jobs_search_query ON scraped_jobs(search_query)`,
		`CREATE INDEX IF NOT EXISTS idx_scraped_jobs_date_scraped ON scraped_jobs(date_scraped)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
