package services

import (
	"context"
	"sync"
	"time"

	"adstream/internal/core/domain"
	"adstream/internal/core/ports"

	"go.uber.org/zap"
)

// WatcherState is the consumer-side connection lifecycle state.
type WatcherState int

const (
	StateIdle WatcherState = iota
	StateDiscovering
	StateConnecting
	StateConnected
	StateDisconnected
	StateStopped
)

func (s WatcherState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Watcher finds a producer, connects to it, pumps received media into
// the decoder and re-enters discovery after a disconnect. A single
// mutex gates the current link reference and the decoder handle
// against concurrent discovery and packet callbacks. It implements
// ports.LinkHandler for the transport's outbound side.
type Watcher struct {
	aspect           string
	discoveryTimeout time.Duration
	reconnectDelay   time.Duration

	discoverer   ports.Discoverer
	dialer       ports.Dialer
	startDecoder ports.DecoderStarter
	logger       *zap.SugaredLogger

	mu         sync.Mutex
	state      WatcherState
	link       ports.Link
	decoder    ports.MediaProcess
	serverName string
	stopped    bool
	reconnect  *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a consumer state machine. Nothing happens until
// Start.
func NewWatcher(aspect string, discoveryTimeout, reconnectDelay time.Duration,
	discoverer ports.Discoverer, dialer ports.Dialer, start ports.DecoderStarter,
	logger *zap.SugaredLogger) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		aspect:           aspect,
		discoveryTimeout: discoveryTimeout,
		reconnectDelay:   reconnectDelay,
		discoverer:       discoverer,
		dialer:           dialer,
		startDecoder:     start,
		logger:           logger,
		state:            StateIdle,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// State returns the current lifecycle state.
func (w *Watcher) State() WatcherState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start enters discovery. If nothing is found within the discovery
// timeout a warning is logged and the watcher keeps listening.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return domain.ErrAlreadyStopped
	}
	w.state = StateDiscovering
	w.mu.Unlock()

	w.logger.Infow("searching for producers", "aspect", w.aspect)
	if err := w.discoverer.Discover(w.aspect, w.onAnnouncement); err != nil {
		return err
	}

	if w.discoveryTimeout > 0 {
		time.AfterFunc(w.discoveryTimeout, func() {
			if w.State() == StateDiscovering {
				w.logger.Warnw("no producers found yet, still listening",
					"aspect", w.aspect, "waited", w.discoveryTimeout)
			}
		})
	}
	return nil
}

// onAnnouncement reacts to a matching announcement by opening a link.
// Announcements arriving while a connection attempt is in flight are
// swallowed so no duplicate link can come up.
func (w *Watcher) onAnnouncement(ann domain.Announcement) {
	if !ann.HasAspect(w.aspect) {
		return
	}

	w.mu.Lock()
	if w.stopped || w.state == StateConnecting || w.state == StateConnected || w.link != nil {
		w.mu.Unlock()
		return
	}
	w.state = StateConnecting
	w.serverName = ann.Nickname()
	w.mu.Unlock()

	w.logger.Infow("discovered producer",
		"nickname", ann.Nickname(), "source", ann.Source,
		"res", ann.Metadata["res"], "fps", ann.Metadata["fps"])

	go func() {
		if err := w.dialer.OpenLink(w.ctx, ann, w); err != nil {
			w.logger.Warnw("connection attempt failed", "source", ann.Source, "error", err)
			w.mu.Lock()
			if !w.stopped && w.state == StateConnecting {
				w.state = StateDiscovering
			}
			w.mu.Unlock()
		}
	}()
}

// OnLinkEstablished starts the decoder. A decoder start failure tears
// the link right back down; there is no retry at this layer.
func (w *Watcher) OnLinkEstablished(link ports.Link) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		link.Teardown()
		return
	}
	w.link = link
	w.state = StateConnected
	name := w.serverName
	w.mu.Unlock()

	w.logger.Infow("link established", "nickname", name, "remote", link.Remote())

	dec, err := w.startDecoder(name)
	if err != nil {
		w.logger.Errorw("failed to start decoder, tearing down link", "error", err)
		link.Teardown()
		return
	}

	w.mu.Lock()
	if w.stopped || w.link != link {
		// Torn down while the decoder was starting.
		w.mu.Unlock()
		dec.Stop()
		return
	}
	w.decoder = dec
	w.mu.Unlock()
	w.logger.Infow("decoder started, waiting for stream data", "pid", dec.PID())
}

// OnPacket intercepts control messages and forwards everything else to
// the decoder pipe. Control tokens never reach the decoder.
func (w *Watcher) OnPacket(link ports.Link, msg []byte) {
	switch {
	case domain.IsPing(msg):
		if err := link.Send(domain.PongMessage); err != nil {
			w.logger.Warnw("failed to send pong", "error", err)
		}
		return
	case domain.IsMaxClients(msg):
		w.logger.Warn("producer at capacity, closing link")
		w.stopDecoder()
		link.Teardown()
		return
	}

	w.mu.Lock()
	dec := w.decoder
	w.mu.Unlock()
	if dec == nil {
		return
	}

	if err := dec.Write(msg); err != nil {
		// A dead renderer is not recoverable mid-stream; discovery
		// takes over after the teardown.
		w.logger.Warnw("decoder pipe write failed, closing link", "error", err)
		w.stopDecoder()
		link.Teardown()
	}
}

// OnLinkClosed stops the decoder, clears the link reference and
// schedules re-discovery after the reconnect delay.
func (w *Watcher) OnLinkClosed(link ports.Link) {
	w.mu.Lock()
	if w.link != link && w.link != nil {
		w.mu.Unlock()
		return
	}
	w.link = nil
	name := w.serverName
	w.serverName = ""
	stopped := w.stopped
	if !stopped {
		w.state = StateDisconnected
	}
	w.mu.Unlock()

	w.logger.Infow("link closed", "nickname", name)
	w.stopDecoder()

	if stopped {
		return
	}

	w.logger.Infow("re-entering discovery after delay", "delay", w.reconnectDelay)
	w.mu.Lock()
	w.reconnect = time.AfterFunc(w.reconnectDelay, w.resumeDiscovery)
	w.mu.Unlock()
}

func (w *Watcher) resumeDiscovery() {
	w.mu.Lock()
	if w.stopped || w.link != nil {
		w.mu.Unlock()
		return
	}
	w.state = StateDiscovering
	w.mu.Unlock()

	w.logger.Infow("searching for producers", "aspect", w.aspect)
	if err := w.discoverer.Discover(w.aspect, w.onAnnouncement); err != nil {
		w.logger.Errorw("failed to restart discovery", "error", err)
	}
}

// Stop is terminal and reachable from any state: it cancels discovery,
// tears down any link and stops the decoder.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.state = StateStopped
	link := w.link
	w.link = nil
	if w.reconnect != nil {
		w.reconnect.Stop()
	}
	w.mu.Unlock()

	w.cancel()
	w.discoverer.Cancel()
	if link != nil {
		link.Teardown()
	}
	w.stopDecoder()
	w.logger.Info("watcher stopped")
}

// stopDecoder stops the decoder if one is running. Safe to call any
// number of times.
func (w *Watcher) stopDecoder() {
	w.mu.Lock()
	dec := w.decoder
	w.decoder = nil
	w.mu.Unlock()
	if dec != nil {
		dec.Stop()
	}
}
