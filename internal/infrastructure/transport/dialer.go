package transport

import (
	"context"
	"errors"
	"net/url"

	"adstream/internal/core/domain"
	"adstream/internal/core/ports"
	"adstream/pkg/identity"
	"adstream/pkg/retry"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Dialer opens outbound links to announced endpoints, retrying the
// connection attempt with backoff before giving up.
type Dialer struct {
	identity *identity.Identity
	retryCfg retry.Config
	logger   *zap.SugaredLogger
}

func NewDialer(id *identity.Identity, retryCfg retry.Config, logger *zap.SugaredLogger) *Dialer {
	return &Dialer{identity: id, retryCfg: retryCfg, logger: logger}
}

// OpenLink connects to the announced endpoint, authenticates the peer
// and verifies it is the identity that signed the announcement. The
// established link is reported through the handler asynchronously,
// once its read loop is up.
func (d *Dialer) OpenLink(ctx context.Context, ann domain.Announcement, handler ports.LinkHandler) error {
	u := url.URL{Scheme: "ws", Host: ann.Endpoint, Path: streamPath}

	var conn *websocket.Conn
	err := retry.Do(ctx, d.retryCfg, func() error {
		c, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			d.logger.Debugw("dial attempt failed", "endpoint", ann.Endpoint, "error", err)
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return err
	}

	aead, peerPub, err := performHandshake(conn, d.identity, true)
	if err != nil {
		conn.Close()
		return err
	}
	remote := domain.AddressHash(identity.HashPublicKey(peerPub))
	if remote != ann.Source {
		conn.Close()
		return errors.New("peer identity does not match announcement")
	}

	link := newLink(conn, aead, remote, handler, d.logger)
	d.logger.Infow("link opened", "link", link.ID(), "remote", remote, "endpoint", ann.Endpoint)
	go link.run()
	return nil
}
