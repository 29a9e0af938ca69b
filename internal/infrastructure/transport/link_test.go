package transport

import (
	"context"
	"testing"
	"time"

	"adstream/internal/core/domain"
	"adstream/internal/core/ports"
	"adstream/pkg/identity"
	"adstream/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type captureHandler struct {
	established chan ports.Link
	packets     chan []byte
	closed      chan ports.Link
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{
		established: make(chan ports.Link, 4),
		packets:     make(chan []byte, 16),
		closed:      make(chan ports.Link, 4),
	}
}

func (h *captureHandler) OnLinkEstablished(l ports.Link) { h.established <- l }
func (h *captureHandler) OnPacket(l ports.Link, data []byte) {
	buf := append([]byte{}, data...)
	h.packets <- buf
}
func (h *captureHandler) OnLinkClosed(l ports.Link) { h.closed <- l }

func waitLink(t *testing.T, ch chan ports.Link) ports.Link {
	t.Helper()
	select {
	case l := <-ch:
		return l
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for link event")
		return nil
	}
}

func waitPacket(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for packet")
		return nil
	}
}

func quickRetry() retry.Config {
	return retry.Config{MaxAttempts: 2, InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2}
}

func TestLinkEndToEnd(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	serverID, err := identity.Generate()
	require.NoError(t, err)
	clientID, err := identity.Generate()
	require.NoError(t, err)

	serverSide := newCaptureHandler()
	listener := NewListener(serverID, serverSide, logger)
	require.NoError(t, listener.Start("127.0.0.1:0"))
	defer listener.Close(context.Background())

	ann := domain.Announcement{
		Source:   domain.AddressHash(serverID.Hash()),
		Endpoint: listener.Endpoint(),
	}

	clientSide := newCaptureHandler()
	dialer := NewDialer(clientID, quickRetry(), logger)
	require.NoError(t, dialer.OpenLink(context.Background(), ann, clientSide))

	serverLink := waitLink(t, serverSide.established)
	clientLink := waitLink(t, clientSide.established)

	assert.Equal(t, domain.AddressHash(clientID.Hash()), serverLink.Remote())
	assert.Equal(t, domain.AddressHash(serverID.Hash()), clientLink.Remote())
	assert.True(t, serverLink.Active())
	assert.NotEmpty(t, serverLink.ID())

	require.NoError(t, serverLink.Send([]byte("media chunk")))
	assert.Equal(t, []byte("media chunk"), waitPacket(t, clientSide.packets))

	require.NoError(t, clientLink.Send(domain.PongMessage))
	assert.Equal(t, domain.PongMessage, waitPacket(t, serverSide.packets))

	clientLink.Teardown()
	waitLink(t, clientSide.closed)
	waitLink(t, serverSide.closed)

	assert.False(t, clientLink.Active())
	assert.ErrorIs(t, clientLink.Send([]byte("late")), domain.ErrLinkClosed)
}

func TestDialerRejectsImpersonation(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	serverID, err := identity.Generate()
	require.NoError(t, err)
	clientID, err := identity.Generate()
	require.NoError(t, err)
	otherID, err := identity.Generate()
	require.NoError(t, err)

	listener := NewListener(serverID, newCaptureHandler(), logger)
	require.NoError(t, listener.Start("127.0.0.1:0"))
	defer listener.Close(context.Background())

	// Announcement claims a different identity than the one serving
	// the endpoint.
	ann := domain.Announcement{
		Source:   domain.AddressHash(otherID.Hash()),
		Endpoint: listener.Endpoint(),
	}

	dialer := NewDialer(clientID, quickRetry(), logger)
	err = dialer.OpenLink(context.Background(), ann, newCaptureHandler())
	assert.Error(t, err)
}

func TestDialerRetriesUnreachableEndpoint(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	clientID, err := identity.Generate()
	require.NoError(t, err)

	ann := domain.Announcement{Endpoint: "127.0.0.1:1"}
	dialer := NewDialer(clientID, quickRetry(), logger)
	err = dialer.OpenLink(context.Background(), ann, newCaptureHandler())
	assert.Error(t, err)
}
