package services

import (
	"context"
	"io"
	"sync"
	"time"

	"adstream/internal/core/domain"
	"adstream/internal/core/ports"
)

// fakeLink is an in-memory Link that records sent frames and delivers
// OnLinkClosed synchronously on the first Teardown.
type fakeLink struct {
	id      domain.LinkID
	handler ports.LinkHandler

	mu       sync.Mutex
	sent     [][]byte
	active   bool
	failSend bool
	torn     int
}

func newFakeLink(id string, handler ports.LinkHandler) *fakeLink {
	return &fakeLink{id: domain.LinkID(id), handler: handler, active: true}
}

func (l *fakeLink) ID() domain.LinkID          { return l.id }
func (l *fakeLink) Remote() domain.AddressHash { return domain.AddressHash("remote-" + string(l.id)) }

func (l *fakeLink) Send(msg []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active || l.failSend {
		return domain.ErrLinkClosed
	}
	cp := make([]byte, len(msg))
	copy(cp, msg)
	l.sent = append(l.sent, cp)
	return nil
}

func (l *fakeLink) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

func (l *fakeLink) Teardown() {
	l.mu.Lock()
	l.torn++
	first := l.torn == 1
	l.active = false
	l.mu.Unlock()
	if first && l.handler != nil {
		l.handler.OnLinkClosed(l)
	}
}

func (l *fakeLink) teardowns() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.torn
}

func (l *fakeLink) sentFrames() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.sent))
	copy(out, l.sent)
	return out
}

func (l *fakeLink) sentContains(msg []byte) bool {
	for _, f := range l.sentFrames() {
		if string(f) == string(msg) {
			return true
		}
	}
	return false
}

// fakeProc is an in-memory MediaProcess. Queued chunks are returned by
// Read; after exit and drain, Read reports io.EOF.
type fakeProc struct {
	pid int

	mu        sync.Mutex
	queue     [][]byte
	writes    [][]byte
	alive     bool
	stopped   int
	failWrite bool
}

func newFakeProc(pid int) *fakeProc {
	return &fakeProc{pid: pid, alive: true}
}

func (p *fakeProc) PID() int { return p.pid }

func (p *fakeProc) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *fakeProc) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.queue) > 0 {
		chunk := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		return copy(b, chunk), nil
	}
	exited := !p.alive
	p.mu.Unlock()
	if exited {
		return 0, io.EOF
	}
	time.Sleep(time.Millisecond) // bounded wait
	return 0, nil
}

func (p *fakeProc) Write(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWrite || !p.alive {
		return domain.ErrProcessExited
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	p.writes = append(p.writes, cp)
	return nil
}

func (p *fakeProc) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped++
	p.alive = false
}

func (p *fakeProc) exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
}

func (p *fakeProc) push(chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, chunk)
}

func (p *fakeProc) stops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (p *fakeProc) written() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	copy(out, p.writes)
	return out
}

// countingMetrics counts callbacks for assertions.
type countingMetrics struct {
	mu        sync.Mutex
	opened    int
	closed    int
	rejected  int
	timeouts  int
	bytesSent int
}

func (m *countingMetrics) SessionOpened()    { m.mu.Lock(); m.opened++; m.mu.Unlock() }
func (m *countingMetrics) SessionClosed()    { m.mu.Lock(); m.closed++; m.mu.Unlock() }
func (m *countingMetrics) SessionRejected()  { m.mu.Lock(); m.rejected++; m.mu.Unlock() }
func (m *countingMetrics) HeartbeatTimeout() { m.mu.Lock(); m.timeouts++; m.mu.Unlock() }
func (m *countingMetrics) BytesRelayed(n int) {
	m.mu.Lock()
	m.bytesSent += n
	m.mu.Unlock()
}

func (m *countingMetrics) snapshot() (opened, closed, rejected, timeouts, bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened, m.closed, m.rejected, m.timeouts, m.bytesSent
}

// fakeDiscoverer invokes the registered callback on demand.
type fakeDiscoverer struct {
	mu        sync.Mutex
	fn        func(domain.Announcement)
	registers int
	cancels   int
}

func (d *fakeDiscoverer) Discover(aspect string, fn func(domain.Announcement)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fn = fn
	d.registers++
	return nil
}

func (d *fakeDiscoverer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fn = nil
	d.cancels++
}

func (d *fakeDiscoverer) announce(ann domain.Announcement) {
	d.mu.Lock()
	fn := d.fn
	d.mu.Unlock()
	if fn != nil {
		fn(ann)
	}
}

func (d *fakeDiscoverer) registrations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registers
}

// fakeDialer records open attempts without producing a link; tests
// drive OnLinkEstablished directly.
type fakeDialer struct {
	mu    sync.Mutex
	opens int
	err   error
}

func (d *fakeDialer) OpenLink(ctx context.Context, ann domain.Announcement, handler ports.LinkHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	return d.err
}

func (d *fakeDialer) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}
