package domain

import (
	"fmt"
	"time"
)

// StreamSettings is the immutable configuration snapshot taken at
// startup. It is shared read-only between the registry, relay loops
// and the media process builders.
type StreamSettings struct {
	Width      int
	Height     int
	FPS        int
	CRF        int
	Preset     string
	GOPSeconds int

	MaxClients        int // 0 = unbounded
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	PollInterval      time.Duration
	MaxSendKbps       int // 0 = uncapped
}

// KeyframeInterval is the derived GOP length in frames.
func (s StreamSettings) KeyframeInterval() int {
	return s.FPS * s.GOPSeconds
}

// Resolution returns the WxH wire form used in announcements.
func (s StreamSettings) Resolution() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}
