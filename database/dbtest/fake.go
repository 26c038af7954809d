// Package dbtest provides in-memory Conn and Dialer fakes for the database
// package, in the spirit of net/http/httptest.
package dbtest

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"caratdash/api/database"
)

// Result is what a fake query returns.
type Result struct {
	Rows    [][]any
	Err     error // returned by Query
	RowsErr error // returned by Rows.Err after iteration
}

type route struct {
	fragment string
	respond  func(args []any) Result
}

// Call records one executed query.
type Call struct {
	SQL  string
	Args []any
}

// Conn answers queries from routes matched by SQL substring, first match wins.
type Conn struct {
	mu     sync.Mutex
	routes []route
	calls  []Call
	closed bool

	PingErr error
	Delay   time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func NewConn() *Conn { return &Conn{} }

// On answers queries containing fragment with the given rows.
func (c *Conn) On(fragment string, rows ...[]any) *Conn {
	return c.OnFunc(fragment, func([]any) Result { return Result{Rows: rows} })
}

// Fail makes queries containing fragment fail with err.
func (c *Conn) Fail(fragment string, err error) *Conn {
	return c.OnFunc(fragment, func([]any) Result { return Result{Err: err} })
}

func (c *Conn) OnFunc(fragment string, respond func(args []any) Result) *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = append(c.routes, route{fragment: fragment, respond: respond})
	return c
}

func (c *Conn) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		m := c.maxInFlight.Load()
		if n <= m || c.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if c.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.Delay):
		}
	}

	c.mu.Lock()
	c.calls = append(c.calls, Call{SQL: query, Args: args})
	closed := c.closed
	routes := c.routes
	c.mu.Unlock()

	if closed {
		return nil, database.ErrConnectionLost
	}
	for _, r := range routes {
		if strings.Contains(query, r.fragment) {
			res := r.respond(args)
			if res.Err != nil {
				return nil, res.Err
			}
			return &Rows{data: res.Rows, err: res.RowsErr, pos: -1}, nil
		}
	}
	return nil, fmt.Errorf("dbtest: no route for query: %s", query)
}

func (c *Conn) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return database.ErrConnectionLost
	}
	return c.PingErr
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// MaxInFlight is the highest number of queries that ran at the same time.
func (c *Conn) MaxInFlight() int { return int(c.maxInFlight.Load()) }

// Rows iterates over a fixed row set.
type Rows struct {
	data   [][]any
	pos    int
	err    error
	closed bool
}

func (r *Rows) Next() bool {
	if r.closed {
		return false
	}
	r.pos++
	return r.pos < len(r.data)
}

func (r *Rows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.data) {
		return fmt.Errorf("dbtest: scan called without a current row")
	}
	row := r.data[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("dbtest: scan expects %d columns, row has %d", len(dest), len(row))
	}
	for i := range dest {
		if err := assign(dest[i], row[i]); err != nil {
			return fmt.Errorf("dbtest: column %d: %w", i, err)
		}
	}
	return nil
}

func (r *Rows) Err() error { return r.err }

func (r *Rows) Close() error {
	r.closed = true
	return nil
}

func assign(dest, src any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("destination must be a non-nil pointer, got %T", dest)
	}
	target := dv.Elem()
	if src == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	if target.Kind() == reflect.Pointer {
		p := reflect.New(target.Type().Elem())
		if err := assign(p.Interface(), src); err != nil {
			return err
		}
		target.Set(p)
		return nil
	}
	sv := reflect.ValueOf(src)
	switch {
	case sv.Type().AssignableTo(target.Type()):
		target.Set(sv)
	case numeric(sv.Kind()) && numeric(target.Kind()):
		target.Set(sv.Convert(target.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", src, target.Type())
	}
	return nil
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Dialer hands out Conns. FailFirst makes the first n dials fail.
type Dialer struct {
	mu        sync.Mutex
	newConn   func(database string) *Conn
	FailFirst int
	dials     []string
	conns     []*Conn
}

// NewDialer returns a dialer that builds a fresh Conn per dial with newConn.
func NewDialer(newConn func(database string) *Conn) *Dialer {
	return &Dialer{newConn: newConn}
}

func (d *Dialer) Dial(ctx context.Context, db string) (database.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, db)
	if d.FailFirst > 0 {
		d.FailFirst--
		return nil, fmt.Errorf("dbtest: dial %s: %w", db, database.ErrConnectionLost)
	}
	c := d.newConn(db)
	d.conns = append(d.conns, c)
	return c, nil
}

// Dials lists the databases dialed so far, including failed attempts.
func (d *Dialer) Dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dials...)
}

// Conns lists the connections handed out so far.
func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Conn(nil), d.conns...)
}
