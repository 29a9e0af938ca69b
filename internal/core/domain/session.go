package domain

import "time"

type LinkID string
type AddressHash string

// Session is the server-side record for one admitted consumer link.
// It is owned exclusively by the session registry; LastPongAt only
// moves forward after creation.
type Session struct {
	LinkID     LinkID
	Remote     AddressHash
	CreatedAt  time.Time
	LastPongAt time.Time
	BytesSent  uint64
	Active     bool
}

// Stale reports whether the session has gone longer than timeout
// without a pong.
func (s *Session) Stale(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastPongAt) > timeout
}
