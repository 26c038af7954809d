package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseOptions configures physical connections to the event store.
type ClickHouseOptions struct {
	Host        string
	NativePort  int
	Username    string
	Password    string
	DialTimeout time.Duration
}

// ClickHouseDialer opens one native TCP connection per call, scoped to a
// single tenant database.
type ClickHouseDialer struct {
	opts ClickHouseOptions
}

func NewClickHouseDialer(opts ClickHouseOptions) *ClickHouseDialer {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return &ClickHouseDialer{opts: opts}
}

func (d *ClickHouseDialer) Dial(ctx context.Context, database string) (Conn, error) {
	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", d.opts.Host, d.opts.NativePort)},
		Auth: clickhouse.Auth{
			Database: database,
			Username: d.opts.Username,
			Password: d.opts.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "carat-dashboard-api", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:  d.opts.DialTimeout,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse database %s: %w", database, err)
	}

	return &clickHouseConn{conn: conn}, nil
}

// clickHouseConn narrows clickhouse.Conn to the Conn contract. Arguments are
// bound by the driver, which quotes and escapes every value it interpolates.
type clickHouseConn struct {
	conn clickhouse.Conn
}

func (c *clickHouseConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *clickHouseConn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *clickHouseConn) Close() error {
	return c.conn.Close()
}
