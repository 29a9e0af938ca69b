package transport

import (
	"context"
	"net"
	"net/http"
	"time"

	"adstream/internal/core/domain"
	"adstream/internal/core/ports"
	"adstream/pkg/identity"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const streamPath = "/stream"

// Listener accepts inbound link connections, authenticates peers and
// hands established links to the configured handler.
type Listener struct {
	identity *identity.Identity
	handler  ports.LinkHandler
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader

	ln  net.Listener
	srv *http.Server
}

func NewListener(id *identity.Identity, handler ports.LinkHandler, logger *zap.SugaredLogger) *Listener {
	return &Listener{
		identity: id,
		handler:  handler,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Start binds the listen address and begins serving connections in the
// background.
func (s *Listener) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.HandleFunc(streamPath, s.handleStream)
	s.ln = ln
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Errorw("link listener stopped", "error", err)
		}
	}()
	s.logger.Infow("link listener started", "address", ln.Addr().String())
	return nil
}

// Endpoint reports the bound address, valid after Start.
func (s *Listener) Endpoint() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Listener) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	aead, peerPub, err := performHandshake(conn, s.identity, false)
	if err != nil {
		s.logger.Warnw("handshake failed", "remote", r.RemoteAddr, "error", err)
		conn.Close()
		return
	}
	remote := domain.AddressHash(identity.HashPublicKey(peerPub))
	link := newLink(conn, aead, remote, s.handler, s.logger)
	s.logger.Infow("link established", "link", link.ID(), "remote", remote)
	link.run()
}

func (s *Listener) Close(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
