package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"caratdash/api/logger"
	"caratdash/api/models"
)

// Rows is the row cursor returned by a Conn. clickhouse-go's driver.Rows satisfies it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Conn is one physical connection to a tenant database.
type Conn interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Ping(ctx context.Context) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, database string) (Conn, error)
}

type TenantResolver interface {
	Resolve(ctx context.Context, domain string) (string, error)
}

// ErrConnectionLost marks transport failures that invalidate a session.
var ErrConnectionLost = errors.New("connection lost")

var errReleased = errors.New("session released")

var tracer = otel.Tracer("caratdash/api/database")

// Query is a named, parameterized read-only statement. Args are bound by the
// driver; never format values into SQL.
type Query struct {
	Name string
	SQL  string
	Args []any
}

// Manager hands out request-scoped sessions. Sessions are never pooled or
// shared: every Acquire dials a fresh connection.
type Manager struct {
	dialer  Dialer
	tenants TenantResolver
	log     *logger.Logger
}

func NewManager(dialer Dialer, tenants TenantResolver, log *logger.Logger) *Manager {
	return &Manager{dialer: dialer, tenants: tenants, log: log}
}

// Acquire opens a session on the tenant's database. Callers must Release it.
func (m *Manager) Acquire(ctx context.Context, tenant string) (*Session, error) {
	const op = "acquire"

	database, err := m.tenants.Resolve(ctx, tenant)
	if err != nil {
		sessionsTotal.WithLabelValues("failed").Inc()
		return nil, models.NewError(models.KindConnection, op, err)
	}

	conn, err := m.dialer.Dial(ctx, database)
	if err != nil {
		sessionsTotal.WithLabelValues("failed").Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, models.NewError(models.KindTimeout, op, fmt.Errorf("%w: %v", ctxErr, err))
		}
		m.log.Warn("failed to open store session", "tenant", tenant, "database", database, "error", err)
		return nil, models.NewError(models.KindConnection, op, err)
	}

	sessionsTotal.WithLabelValues("acquired").Inc()
	return &Session{
		tenant: tenant,
		conn:   conn,
		log:    m.log.With("tenant", tenant),
		lost:   make(chan struct{}),
	}, nil
}

// Session wraps exactly one connection. Run calls are serialized, so branches
// of a fan-out may share one session without touching the connection concurrently.
type Session struct {
	tenant string
	conn   Conn
	log    *logger.Logger

	runMu sync.Mutex

	stateMu   sync.Mutex
	lostErr   error
	lost      chan struct{}
	lostOnce  sync.Once
	closeOnce sync.Once
}

func (s *Session) Tenant() string { return s.tenant }

// Lost is closed once the session is invalidated or released.
func (s *Session) Lost() <-chan struct{} { return s.lost }

// Err reports why the session became unusable, or nil while it is live.
func (s *Session) Err() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lostErr
}

// Run executes q and calls scan once per row. Rows are always closed before
// Run returns. A scan error aborts the whole query.
func (s *Session) Run(ctx context.Context, q Query, scan func(Rows) error) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if err := s.Err(); err != nil {
		return models.NewError(models.KindConnection, q.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return models.NewError(models.KindTimeout, q.Name, err)
	}

	ctx, span := tracer.Start(ctx, "store.query", trace.WithAttributes(
		attribute.String("store.tenant", s.tenant),
		attribute.String("store.query", q.Name),
	))
	defer span.End()

	started := time.Now()
	err := s.run(ctx, q, scan)
	queryDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		queriesTotal.WithLabelValues(string(models.KindOf(err))).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error("store query failed", "op", q.Name, "error", err)
		return err
	}
	queriesTotal.WithLabelValues("ok").Inc()
	return nil
}

func (s *Session) run(ctx context.Context, q Query, scan func(Rows) error) error {
	rows, err := s.conn.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return s.classify(ctx, q.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return models.NewError(models.KindQuery, q.Name, fmt.Errorf("failed to scan row: %w", err))
		}
	}
	if err := rows.Err(); err != nil {
		return s.classify(ctx, q.Name, err)
	}
	return nil
}

// Ping checks the connection and invalidates the session if it is gone.
func (s *Session) Ping(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if err := s.Err(); err != nil {
		return models.NewError(models.KindConnection, "ping", err)
	}
	if err := s.conn.Ping(ctx); err != nil {
		return s.classify(ctx, "ping", err)
	}
	return nil
}

func (s *Session) classify(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return models.NewError(models.KindTimeout, op, err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return models.NewError(models.KindTimeout, op, err)
	case isConnectionError(err):
		s.Invalidate(err)
		return models.NewError(models.KindConnection, op, err)
	default:
		return models.NewError(models.KindQuery, op, err)
	}
}

// Invalidate marks the session as lost. Subsequent Run calls fail with a
// connection error. Safe to call from any goroutine, any number of times.
func (s *Session) Invalidate(cause error) {
	s.stateMu.Lock()
	if s.lostErr == nil {
		s.lostErr = fmt.Errorf("%w: %v", ErrConnectionLost, cause)
	}
	s.stateMu.Unlock()

	s.lostOnce.Do(func() {
		s.log.Warn("store session invalidated", "error", cause)
		close(s.lost)
	})
}

// Release closes the connection. Idempotent.
func (s *Session) Release() {
	s.closeOnce.Do(func() {
		s.stateMu.Lock()
		if s.lostErr == nil {
			s.lostErr = errReleased
		}
		s.stateMu.Unlock()
		s.lostOnce.Do(func() { close(s.lost) })

		if err := s.conn.Close(); err != nil {
			s.log.Debug("error closing store connection", "error", err)
		}
		sessionsTotal.WithLabelValues("released").Inc()
	})
}

func isConnectionError(err error) bool {
	if errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
