package database_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caratdash/api/database"
	"caratdash/api/database/dbtest"
	"caratdash/api/logger"
	"caratdash/api/models"
)

func newManager(newConn func(string) *dbtest.Conn) (*database.Manager, *dbtest.Dialer) {
	dialer := dbtest.NewDialer(newConn)
	resolver := database.PatternResolver{Prefix: "carat_161108_", Suffix: "_prod"}
	return database.NewManager(dialer, resolver, logger.Nop()), dialer
}

func countQuery() database.Query {
	return database.Query{Name: "count", SQL: "SELECT count() FROM session_client WHERE media_id = ?", Args: []any{uint32(3)}}
}

func TestAcquireDialsTenantDatabase(t *testing.T) {
	conn := dbtest.NewConn()
	mgr, dialer := newManager(func(string) *dbtest.Conn { return conn })

	sess, err := mgr.Acquire(context.Background(), "nissan")
	require.NoError(t, err)
	defer sess.Release()

	assert.Equal(t, "nissan", sess.Tenant())
	assert.Equal(t, []string{"carat_161108_nissan_prod"}, dialer.Dials())
	assert.NoError(t, sess.Err())
}

func TestAcquireFailures(t *testing.T) {
	t.Run("invalid tenant", func(t *testing.T) {
		mgr, dialer := newManager(func(string) *dbtest.Conn { return dbtest.NewConn() })

		_, err := mgr.Acquire(context.Background(), "../etc")
		assert.ErrorIs(t, err, models.ErrConnection)
		assert.ErrorIs(t, err, database.ErrUnknownTenant)
		assert.Empty(t, dialer.Dials())
	})

	t.Run("unreachable store", func(t *testing.T) {
		mgr, dialer := newManager(func(string) *dbtest.Conn { return dbtest.NewConn() })
		dialer.FailFirst = 1

		_, err := mgr.Acquire(context.Background(), "nissan")
		assert.ErrorIs(t, err, models.ErrConnection)
	})

	t.Run("cancelled request", func(t *testing.T) {
		mgr, _ := newManager(func(string) *dbtest.Conn { return dbtest.NewConn() })
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := mgr.Acquire(ctx, "nissan")
		assert.ErrorIs(t, err, models.ErrTimeout)
	})
}

func TestRunScansEveryRow(t *testing.T) {
	conn := dbtest.NewConn().On("FROM session_client", []any{uint64(4)}, []any{uint64(6)})
	mgr, _ := newManager(func(string) *dbtest.Conn { return conn })
	sess, err := mgr.Acquire(context.Background(), "nissan")
	require.NoError(t, err)
	defer sess.Release()

	var got []uint64
	err = sess.Run(context.Background(), countQuery(), func(r database.Rows) error {
		var v uint64
		if err := r.Scan(&v); err != nil {
			return err
		}
		got = append(got, v)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 6}, got)

	calls := conn.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []any{uint32(3)}, calls[0].Args)
}

func TestRunClassifiesErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     models.ErrorKind
		keepLive bool
	}{
		{name: "syntax error", err: errors.New("code: 62, message: Syntax error"), kind: models.KindQuery, keepLive: true},
		{name: "connection reset", err: io.EOF, kind: models.KindConnection},
		{name: "lost", err: database.ErrConnectionLost, kind: models.KindConnection},
		{name: "deadline", err: context.DeadlineExceeded, kind: models.KindTimeout, keepLive: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := dbtest.NewConn().Fail("FROM session_client", tt.err)
			mgr, _ := newManager(func(string) *dbtest.Conn { return conn })
			sess, err := mgr.Acquire(context.Background(), "nissan")
			require.NoError(t, err)
			defer sess.Release()

			err = sess.Run(context.Background(), countQuery(), func(database.Rows) error { return nil })
			require.Error(t, err)
			assert.Equal(t, tt.kind, models.KindOf(err))

			var storeErr *models.Error
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, "count", storeErr.Op)

			if tt.keepLive {
				assert.NoError(t, sess.Err())
				return
			}
			assert.ErrorIs(t, sess.Err(), database.ErrConnectionLost)
			select {
			case <-sess.Lost():
			default:
				t.Fatal("lost channel not closed after connection failure")
			}
		})
	}
}

func TestRunAfterConnectionLossSkipsQuery(t *testing.T) {
	conn := dbtest.NewConn().Fail("FROM session_client", io.ErrUnexpectedEOF)
	mgr, _ := newManager(func(string) *dbtest.Conn { return conn })
	sess, err := mgr.Acquire(context.Background(), "nissan")
	require.NoError(t, err)
	defer sess.Release()

	noop := func(database.Rows) error { return nil }
	require.Error(t, sess.Run(context.Background(), countQuery(), noop))

	err = sess.Run(context.Background(), countQuery(), noop)
	assert.ErrorIs(t, err, models.ErrConnection)
	assert.Len(t, conn.Calls(), 1)
}

func TestRunScanErrorIsQueryError(t *testing.T) {
	conn := dbtest.NewConn().On("FROM session_client", []any{"not a number"})
	mgr, _ := newManager(func(string) *dbtest.Conn { return conn })
	sess, err := mgr.Acquire(context.Background(), "nissan")
	require.NoError(t, err)
	defer sess.Release()

	err = sess.Run(context.Background(), countQuery(), func(r database.Rows) error {
		var v uint64
		return r.Scan(&v)
	})
	assert.ErrorIs(t, err, models.ErrQuery)
	assert.NoError(t, sess.Err())
}

func TestRunRowsErr(t *testing.T) {
	conn := dbtest.NewConn().OnFunc("FROM session_client", func([]any) dbtest.Result {
		return dbtest.Result{Rows: [][]any{{uint64(1)}}, RowsErr: io.EOF}
	})
	mgr, _ := newManager(func(string) *dbtest.Conn { return conn })
	sess, err := mgr.Acquire(context.Background(), "nissan")
	require.NoError(t, err)
	defer sess.Release()

	err = sess.Run(context.Background(), countQuery(), func(r database.Rows) error {
		var v uint64
		return r.Scan(&v)
	})
	assert.ErrorIs(t, err, models.ErrConnection)
}

func TestRunSerializesConcurrentCallers(t *testing.T) {
	conn := dbtest.NewConn().On("FROM session_client", []any{uint64(1)})
	conn.Delay = 5 * time.Millisecond
	mgr, _ := newManager(func(string) *dbtest.Conn { return conn })
	sess, err := mgr.Acquire(context.Background(), "nissan")
	require.NoError(t, err)
	defer sess.Release()

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sess.Run(context.Background(), countQuery(), func(database.Rows) error { return nil }))
		}()
	}
	wg.Wait()

	assert.Len(t, conn.Calls(), 6)
	assert.Equal(t, 1, conn.MaxInFlight())
}

func TestReleaseIsIdempotent(t *testing.T) {
	conn := dbtest.NewConn().On("FROM session_client")
	mgr, _ := newManager(func(string) *dbtest.Conn { return conn })
	sess, err := mgr.Acquire(context.Background(), "nissan")
	require.NoError(t, err)

	sess.Release()
	sess.Release()

	assert.True(t, conn.Closed())
	assert.Error(t, sess.Err())

	err = sess.Run(context.Background(), countQuery(), func(database.Rows) error { return nil })
	assert.ErrorIs(t, err, models.ErrConnection)
	assert.Empty(t, conn.Calls())
}

func TestPing(t *testing.T) {
	conn := dbtest.NewConn()
	mgr, _ := newManager(func(string) *dbtest.Conn { return conn })
	sess, err := mgr.Acquire(context.Background(), "nissan")
	require.NoError(t, err)
	defer sess.Release()

	require.NoError(t, sess.Ping(context.Background()))

	conn.PingErr = io.EOF
	assert.ErrorIs(t, sess.Ping(context.Background()), models.ErrConnection)
	assert.ErrorIs(t, sess.Err(), database.ErrConnectionLost)
}
