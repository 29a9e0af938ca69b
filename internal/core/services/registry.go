package services

import (
	"context"
	"sync"
	"time"

	"adstream/internal/core/domain"
	"adstream/internal/core/ports"

	"go.uber.org/zap"
)

// sessionState binds one admitted link to the encoder instance its
// relay loop was started with.
type sessionState struct {
	link    ports.Link
	rec     *domain.Session
	encoder ports.MediaProcess
}

// Registry tracks one session per connected consumer, enforces the
// admission cap and owns the reference-counted lifecycle of the single
// shared encoder instance. It implements ports.LinkHandler for the
// transport's inbound side.
//
// All registry mutations happen under one mutex so concurrent link
// events cannot race on the admission count or the encoder handle.
type Registry struct {
	settings     domain.StreamSettings
	startEncoder ports.EncoderStarter
	metrics      Metrics
	logger       *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[domain.LinkID]*sessionState
	encoder  ports.MediaProcess
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a session registry. The encoder is not started
// until the first consumer is admitted.
func NewRegistry(settings domain.StreamSettings, start ports.EncoderStarter, metrics Metrics, logger *zap.SugaredLogger) *Registry {
	if metrics == nil {
		metrics = NopMetrics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		settings:     settings,
		startEncoder: start,
		metrics:      metrics,
		logger:       logger,
		sessions:     make(map[domain.LinkID]*sessionState),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the periodic heartbeat scanner. It runs independently
// of any relay loop and tears down sessions whose last pong is older
// than the heartbeat timeout.
func (r *Registry) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.settings.HeartbeatInterval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				r.evictStale(time.Now())
			}
		}
	}()
}

// OnLinkEstablished admits or rejects a new consumer link. A rejected
// link receives a best-effort capacity token and is torn down without
// ever creating a session.
func (r *Registry) OnLinkEstablished(link ports.Link) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		link.Teardown()
		return
	}

	if r.settings.MaxClients > 0 && len(r.sessions) >= r.settings.MaxClients {
		count := len(r.sessions)
		r.mu.Unlock()
		r.logger.Warnw("client limit reached, rejecting link",
			"link", link.ID(), "active", count, "max", r.settings.MaxClients)
		r.metrics.SessionRejected()
		if err := link.Send(domain.MaxClientsMessage); err != nil {
			r.logger.Debugw("could not deliver capacity token", "link", link.ID(), "error", err)
		}
		link.Teardown()
		return
	}

	enc, err := r.ensureEncoderLocked()
	if err != nil {
		r.mu.Unlock()
		r.logger.Errorw("encoder unavailable, closing link", "link", link.ID(), "error", err)
		link.Teardown()
		return
	}

	now := time.Now()
	st := &sessionState{
		link: link,
		rec: &domain.Session{
			LinkID:     link.ID(),
			Remote:     link.Remote(),
			CreatedAt:  now,
			LastPongAt: now,
			Active:     true,
		},
		encoder: enc,
	}
	r.sessions[link.ID()] = st
	// Registered before the lock drops so Close cannot start waiting
	// between admission and the relay goroutine launch.
	r.wg.Add(1)
	r.mu.Unlock()

	r.metrics.SessionOpened()
	r.logger.Infow("client admitted", "link", link.ID(), "remote", link.Remote())

	go func() {
		defer r.wg.Done()
		r.relay(st)
	}()
}

// OnPacket dispatches control messages arriving on a session link.
// Session links carry only control traffic inbound; anything else is a
// protocol violation and is ignored.
func (r *Registry) OnPacket(link ports.Link, msg []byte) {
	switch {
	case domain.IsPong(msg):
		r.markPong(link.ID(), time.Now())
	case domain.IsPing(msg):
		if err := link.Send(domain.PongMessage); err != nil {
			r.logger.Debugw("failed to answer ping", "link", link.ID(), "error", err)
		}
	default:
		r.logger.Warnw("unexpected message on session link",
			"link", link.ID(), "bytes", len(msg))
	}
}

// OnLinkClosed removes the session for the link, if present. When the
// registry becomes empty the shared encoder is stopped. Repeated
// invocations for the same link are no-ops.
func (r *Registry) OnLinkClosed(link ports.Link) {
	r.mu.Lock()
	st, ok := r.sessions[link.ID()]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, link.ID())
	st.rec.Active = false
	var enc ports.MediaProcess
	if len(r.sessions) == 0 {
		enc = r.encoder
		r.encoder = nil
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SessionClosed()
	r.logger.Infow("client session removed", "link", link.ID(), "active", remaining)
	if enc != nil {
		r.logger.Info("no active clients, stopping encoder")
		enc.Stop()
	}
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sessions returns a snapshot of the current session records.
func (r *Registry) Sessions() []domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Session, 0, len(r.sessions))
	for _, st := range r.sessions {
		out = append(out, *st.rec)
	}
	return out
}

// EncoderRunning reports whether the shared encoder handle exists.
func (r *Registry) EncoderRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.encoder != nil
}

// Close tears down all links, stops the encoder and waits for relay
// loops and the scanner to finish. Safe to call more than once.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	links := make([]ports.Link, 0, len(r.sessions))
	for _, st := range r.sessions {
		links = append(links, st.link)
	}
	enc := r.encoder
	r.encoder = nil
	r.mu.Unlock()

	r.cancel()
	for _, l := range links {
		l.Teardown()
	}
	if enc != nil {
		enc.Stop()
	}
	r.wg.Wait()
}

// ensureEncoderLocked returns a live encoder handle, starting one if
// none is running. Callers hold r.mu.
func (r *Registry) ensureEncoderLocked() (ports.MediaProcess, error) {
	if r.encoder != nil && r.encoder.Alive() {
		return r.encoder, nil
	}
	if r.encoder != nil {
		// Previous instance died out from under us.
		r.encoder.Stop()
		r.encoder = nil
	}
	enc, err := r.startEncoder()
	if err != nil {
		return nil, err
	}
	r.logger.Infow("encoder started", "pid", enc.PID())
	r.encoder = enc
	return enc, nil
}

// encoderCurrent reports whether p is still the registry's encoder
// instance and alive. Relay loops use it to detect the encoder dying
// or being restarted out from under them.
func (r *Registry) encoderCurrent(p ports.MediaProcess) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.encoder == p && p.Alive()
}

// markPong advances a session's pong clock. The clock never moves
// backwards.
func (r *Registry) markPong(id domain.LinkID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.sessions[id]
	if !ok {
		r.logger.Debugw("pong for unknown or inactive link", "link", id)
		return
	}
	if at.After(st.rec.LastPongAt) {
		st.rec.LastPongAt = at
	}
}

// evictStale tears down every session whose last pong is older than
// the heartbeat timeout. Teardown happens outside the registry lock;
// cleanup is driven by the resulting OnLinkClosed callbacks.
func (r *Registry) evictStale(now time.Time) {
	r.mu.Lock()
	var stale []ports.Link
	for _, st := range r.sessions {
		if st.rec.Stale(now, r.settings.HeartbeatTimeout) {
			stale = append(stale, st.link)
		}
	}
	r.mu.Unlock()

	for _, link := range stale {
		r.logger.Warnw("heartbeat timeout, tearing down link", "link", link.ID())
		r.metrics.HeartbeatTimeout()
		link.Teardown()
	}
}

func (r *Registry) addBytes(st *sessionState, n int) {
	r.mu.Lock()
	st.rec.BytesSent += uint64(n)
	r.mu.Unlock()
	r.metrics.BytesRelayed(n)
}

func (r *Registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
