package services

import (
	"io"
	"time"

	"adstream/internal/core/domain"
	"adstream/pkg/optimize"

	"golang.org/x/time/rate"
)

// relayChunkSize is how much encoder output is forwarded per link send.
const relayChunkSize = 4096

// chunkPool hands out relay scratch buffers. Sessions come and go with
// watchers, so the buffers are worth recycling.
var chunkPool = optimize.NewBytePool(relayChunkSize)

// relay pumps encoder output to one consumer link until the link stops
// accepting writes, the encoder goes away, or the registry shuts down.
// Whatever the exit reason, the link is torn down; session and encoder
// cleanup happen in OnLinkClosed, never here.
func (r *Registry) relay(st *sessionState) {
	defer st.link.Teardown()

	var limiter *rate.Limiter
	if r.settings.MaxSendKbps > 0 {
		bytesPerSec := r.settings.MaxSendKbps * 1024 / 8
		limiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
	}

	buf := chunkPool.Get()
	defer chunkPool.Put(buf)
	lastPing := time.Now()

	for st.link.Active() && !r.isClosed() {
		now := time.Now()
		if now.Sub(lastPing) > r.settings.HeartbeatInterval {
			if err := st.link.Send(domain.PingMessage); err != nil {
				r.logger.Debugw("ping send failed, stopping relay", "link", st.link.ID(), "error", err)
				return
			}
			lastPing = now
		}

		if !r.encoderCurrent(st.encoder) {
			r.logger.Warnw("encoder stopped or replaced, ending relay",
				"link", st.link.ID(), "pid", st.encoder.PID())
			return
		}

		n, err := st.encoder.Read(buf)
		if n > 0 {
			if limiter != nil {
				if werr := limiter.WaitN(r.ctx, n); werr != nil {
					return
				}
			}
			if serr := st.link.Send(buf[:n]); serr != nil {
				r.logger.Debugw("chunk send failed, stopping relay", "link", st.link.ID(), "error", serr)
				return
			}
			r.addBytes(st, n)
		}
		if err != nil {
			if err == io.EOF {
				r.logger.Infow("encoder output ended mid-stream", "link", st.link.ID())
			} else {
				r.logger.Warnw("encoder read failed", "link", st.link.ID(), "error", err)
			}
			return
		}
		// Empty read with the process alive: the handle already bounded
		// the wait, go around again.
	}
}
