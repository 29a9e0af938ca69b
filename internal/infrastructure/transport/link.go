package transport

import (
	"crypto/cipher"
	"sync"
	"sync/atomic"
	"time"

	"adstream/internal/core/domain"
	"adstream/internal/core/ports"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeDeadline = 10 * time.Second

// wsLink is a point-to-point encrypted link over a websocket
// connection. All frames after the handshake are AEAD-sealed binary
// messages.
type wsLink struct {
	id      domain.LinkID
	remote  domain.AddressHash
	conn    *websocket.Conn
	aead    cipher.AEAD
	handler ports.LinkHandler
	logger  *zap.SugaredLogger

	writeMu   sync.Mutex
	active    atomic.Bool
	closeOnce sync.Once
}

func newLink(conn *websocket.Conn, aead cipher.AEAD, remote domain.AddressHash, handler ports.LinkHandler, logger *zap.SugaredLogger) *wsLink {
	l := &wsLink{
		id:      domain.LinkID(uuid.New().String()),
		remote:  remote,
		conn:    conn,
		aead:    aead,
		handler: handler,
		logger:  logger,
	}
	l.active.Store(true)
	return l
}

func (l *wsLink) ID() domain.LinkID          { return l.id }
func (l *wsLink) Remote() domain.AddressHash { return l.remote }
func (l *wsLink) Active() bool               { return l.active.Load() }

func (l *wsLink) Send(data []byte) error {
	if !l.active.Load() {
		return domain.ErrLinkClosed
	}
	frame, err := sealFrame(l.aead, data)
	if err != nil {
		return err
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	l.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := l.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return err
	}
	return nil
}

// Teardown closes the link. The close notification is delivered on a
// separate goroutine so callers holding locks are safe.
func (l *wsLink) Teardown() {
	l.closeOnce.Do(func() {
		l.active.Store(false)
		l.writeMu.Lock()
		l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		l.writeMu.Unlock()
		l.conn.Close()
		go l.handler.OnLinkClosed(l)
	})
}

// run announces the link to its handler and pumps inbound frames until
// the connection dies. It blocks for the lifetime of the link.
func (l *wsLink) run() {
	l.handler.OnLinkEstablished(l)
	for {
		_, frame, err := l.conn.ReadMessage()
		if err != nil {
			l.Teardown()
			return
		}
		plain, err := openFrame(l.aead, frame)
		if err != nil {
			l.logger.Warnw("dropping undecryptable frame", "link", l.id, "error", err)
			continue
		}
		l.handler.OnPacket(l, plain)
	}
}
