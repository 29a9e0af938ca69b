package transport

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"adstream/internal/core/domain"
	"adstream/pkg/identity"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
)

const announceBufferSize = 2048

// announceMessage is the signed service advertisement sent to the
// discovery multicast group.
type announceMessage struct {
	AppName   string   `json:"app_name"`
	Aspects   []string `json:"aspects"`
	Metadata  string   `json:"metadata"`
	Endpoint  string   `json:"endpoint"`
	Timestamp int64    `json:"ts"`
	PublicKey string   `json:"public_key"`
	Signature string   `json:"sig"`
}

func (m *announceMessage) signedPayload() []byte {
	s := strings.Join([]string{
		m.AppName,
		strings.Join(m.Aspects, ","),
		m.Metadata,
		m.Endpoint,
	}, "|")
	return []byte(s)
}

func encodeAnnounce(id *identity.Identity, addr domain.ServiceAddress, metadata map[string]string, endpoint string) ([]byte, error) {
	msg := announceMessage{
		AppName:   addr.AppName,
		Aspects:   []string{addr.Aspect},
		Metadata:  domain.EncodeMetadata(metadata),
		Endpoint:  endpoint,
		Timestamp: time.Now().Unix(),
		PublicKey: base64.RawURLEncoding.EncodeToString(id.PublicKey),
	}
	msg.Signature = base64.RawURLEncoding.EncodeToString(id.Sign(msg.signedPayload()))
	return json.Marshal(&msg)
}

// decodeAnnounce parses and verifies one advertisement. The src
// address fills in the endpoint host when the announcer bound a
// wildcard address.
func decodeAnnounce(data []byte, src *net.UDPAddr) (domain.Announcement, error) {
	var msg announceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.Announcement{}, err
	}
	pub, err := base64.RawURLEncoding.DecodeString(msg.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return domain.Announcement{}, errors.New("invalid announcer key")
	}
	sig, err := base64.RawURLEncoding.DecodeString(msg.Signature)
	if err != nil {
		return domain.Announcement{}, err
	}
	if !identity.Verify(ed25519.PublicKey(pub), msg.signedPayload(), sig) {
		return domain.Announcement{}, errors.New("announcement signature verification failed")
	}

	endpoint := msg.Endpoint
	if host, port, err := net.SplitHostPort(endpoint); err == nil {
		if src != nil && (host == "" || host == "::" || host == "0.0.0.0") {
			endpoint = net.JoinHostPort(src.IP.String(), port)
		}
	}

	return domain.Announcement{
		Source:   domain.AddressHash(identity.HashPublicKey(ed25519.PublicKey(pub))),
		AppName:  msg.AppName,
		Aspects:  msg.Aspects,
		Metadata: domain.ParseMetadata(msg.Metadata),
		Endpoint: endpoint,
	}, nil
}

// Announcer publishes signed service advertisements to the discovery
// multicast group.
type Announcer struct {
	identity *identity.Identity
	endpoint string
	conn     *net.UDPConn
	logger   *zap.SugaredLogger
}

func NewAnnouncer(multicastAddr, endpoint string, id *identity.Identity, logger *zap.SugaredLogger) (*Announcer, error) {
	group, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp4", nil, group)
	if err != nil {
		return nil, err
	}
	// Loopback delivery lets a watcher on the same host find the
	// server.
	p := ipv4.NewPacketConn(conn)
	if err := p.SetMulticastLoopback(true); err != nil {
		logger.Debugw("multicast loopback not available", "error", err)
	}
	return &Announcer{identity: id, endpoint: endpoint, conn: conn, logger: logger}, nil
}

func (a *Announcer) Announce(addr domain.ServiceAddress, metadata map[string]string) error {
	data, err := encodeAnnounce(a.identity, addr, metadata, a.endpoint)
	if err != nil {
		return err
	}
	if _, err := a.conn.Write(data); err != nil {
		return err
	}
	a.logger.Debugw("announced service", "app", addr.AppName, "aspect", addr.Aspect)
	return nil
}

func (a *Announcer) Close() error {
	return a.conn.Close()
}

// Discoverer listens on the discovery multicast group and reports
// verified advertisements matching the registered aspect.
type Discoverer struct {
	multicastAddr string
	logger        *zap.SugaredLogger

	mu     sync.Mutex
	aspect string
	fn     func(domain.Announcement)
	conn   *net.UDPConn
}

func NewDiscoverer(multicastAddr string, logger *zap.SugaredLogger) *Discoverer {
	return &Discoverer{multicastAddr: multicastAddr, logger: logger}
}

// Discover registers the callback for advertisements carrying the
// aspect. A second call replaces the previous registration.
func (d *Discoverer) Discover(aspect string, fn func(domain.Announcement)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aspect = aspect
	d.fn = fn
	if d.conn != nil {
		return nil
	}
	group, err := net.ResolveUDPAddr("udp4", d.multicastAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return err
	}
	conn.SetReadBuffer(announceBufferSize * 16)
	d.conn = conn
	go d.readLoop(conn)
	d.logger.Infow("discovery listening", "group", d.multicastAddr, "aspect", aspect)
	return nil
}

// Cancel stops delivery and releases the socket.
func (d *Discoverer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fn = nil
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

func (d *Discoverer) readLoop(conn *net.UDPConn) {
	buf := make([]byte, announceBufferSize)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		ann, err := decodeAnnounce(buf[:n], src)
		if err != nil {
			d.logger.Debugw("dropping invalid announcement", "from", src, "error", err)
			continue
		}

		d.mu.Lock()
		fn, aspect := d.fn, d.aspect
		d.mu.Unlock()
		if fn == nil || !ann.HasAspect(aspect) {
			continue
		}
		fn(ann)
	}
}
