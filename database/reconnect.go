package database

import (
	"context"
	"errors"
	"sync"
	"time"

	"caratdash/api/models"
)

// DefaultReconnectDelay is the fixed pause between reconnect attempts.
const DefaultReconnectDelay = 2 * time.Second

var errNotConnected = errors.New("held session is not connected")

// HeldSession keeps one long-lived session for a tenant in the background.
// Whenever the session is lost it re-acquires a new one, retrying forever
// with a fixed delay until Close is called or the parent context ends.
//
// Request handling never uses a HeldSession; requests acquire their own.
type HeldSession struct {
	mgr          *Manager
	tenant       string
	delay        time.Duration
	pingInterval time.Duration

	mu      sync.RWMutex
	current *Session

	cancel context.CancelFunc
	done   chan struct{}
}

// Hold starts the supervisor goroutine. A pingInterval of zero disables
// liveness probes; the session is then only replaced after a failed Run.
func (m *Manager) Hold(ctx context.Context, tenant string, delay, pingInterval time.Duration) *HeldSession {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &HeldSession{
		mgr:          m,
		tenant:       tenant,
		delay:        delay,
		pingInterval: pingInterval,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	go h.loop(ctx)
	return h
}

// Current returns the live session, or a connection error while reconnecting.
func (h *HeldSession) Current() (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil {
		return nil, models.NewError(models.KindConnection, "held session", errNotConnected)
	}
	return h.current, nil
}

// Close stops reconnecting and releases the held session. Idempotent.
func (h *HeldSession) Close() {
	h.cancel()
	<-h.done
}

func (h *HeldSession) loop(ctx context.Context) {
	defer close(h.done)
	log := h.mgr.log.With("tenant", h.tenant)

	for {
		s := h.connect(ctx)
		if s == nil {
			return
		}
		log.Info("held session connected")
		h.set(s)

		h.watch(ctx, s)

		h.set(nil)
		s.Release()
		if ctx.Err() != nil {
			return
		}
		log.Warn("held session lost, reconnecting", "error", s.Err())
	}
}

func (h *HeldSession) connect(ctx context.Context) *Session {
	for {
		reconnectAttempts.Inc()
		s, err := h.mgr.Acquire(ctx, h.tenant)
		if err == nil {
			return s
		}
		if ctx.Err() != nil {
			return nil
		}
		h.mgr.log.Warn("reconnect failed, retrying", "tenant", h.tenant, "delay", h.delay, "error", err)

		timer := time.NewTimer(h.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (h *HeldSession) watch(ctx context.Context, s *Session) {
	var tick <-chan time.Time
	if h.pingInterval > 0 {
		ticker := time.NewTicker(h.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Lost():
			return
		case <-tick:
			pctx, cancel := context.WithTimeout(ctx, h.pingInterval)
			err := s.Ping(pctx)
			cancel()
			if err != nil && ctx.Err() == nil {
				s.Invalidate(err)
			}
		}
	}
}

func (h *HeldSession) set(s *Session) {
	h.mu.Lock()
	h.current = s
	h.mu.Unlock()
}
