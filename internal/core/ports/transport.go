package ports

import (
	"context"

	"adstream/internal/core/domain"
)

// Link is one established bidirectional channel to a remote identity.
// Implementations must never invoke LinkHandler callbacks synchronously
// from Send or Teardown.
type Link interface {
	ID() domain.LinkID
	Remote() domain.AddressHash

	// Send transmits one message over the link. It fails once the link
	// is no longer active.
	Send(msg []byte) error

	Active() bool

	// Teardown closes the link. It is idempotent and triggers the
	// handler's OnLinkClosed exactly once.
	Teardown()
}

// LinkHandler receives lifecycle and packet events for links. Events
// for different links may be delivered concurrently.
type LinkHandler interface {
	OnLinkEstablished(link Link)
	OnPacket(link Link, msg []byte)
	OnLinkClosed(link Link)
}

// Announcer makes a service address discoverable. Announce is
// fire-and-forget; a lost announcement is repaired by the next one.
type Announcer interface {
	Announce(addr domain.ServiceAddress, metadata map[string]string) error
	Close() error
}

// Discoverer registers a filtered announcement listener. Calling
// Discover again replaces the previous registration.
type Discoverer interface {
	Discover(aspect string, fn func(domain.Announcement)) error
	Cancel()
}

// Dialer opens an outbound link to an announced producer. The handler
// receives OnLinkEstablished once the link is up.
type Dialer interface {
	OpenLink(ctx context.Context, ann domain.Announcement, handler LinkHandler) error
}
